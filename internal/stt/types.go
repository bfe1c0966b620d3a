package stt

// EventKind tags a transcript event as provisional or terminal
type EventKind int

const (
	// KindInterim marks a low-confidence result that a later interim or
	// final event for the same utterance may supersede
	KindInterim EventKind = iota

	// KindFinal marks a terminal result for its utterance segment;
	// final events are never retracted
	KindFinal
)

// String returns a human-readable name for the event kind
func (k EventKind) String() string {
	if k == KindFinal {
		return "final"
	}
	return "interim"
}

// TranscriptEvent is one recognized speech result emitted by the bridge
type TranscriptEvent struct {
	// Kind indicates whether the result is interim or final
	Kind EventKind

	// Text is the recognized text
	Text string

	// Language is the language tag of the recognition
	Language string
}

// EventSink receives transcript events in arrival order. The bridge calls
// it from the session goroutine; implementations must not block for long
// or they stall audio ingestion.
type EventSink func(TranscriptEvent)
