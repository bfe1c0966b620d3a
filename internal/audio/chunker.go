package audio

import "time"

// Chunking policy names.
const (
	PolicyTimebox   = "timebox"
	PolicyUtterance = "utterance"
)

// Chunk is a finalized, immutable byte range cut from the PCM buffer at
// dispatch time, annotated with its sequence position and duration
type Chunk struct {
	// Seq is the strictly increasing dispatch position, starting at 0
	Seq int

	// PCM holds 16-bit mono little-endian samples at SampleRate
	PCM []byte

	// SampleRate is the rate of the PCM bytes in Hz
	SampleRate int

	// Duration is the audio length of the chunk in seconds
	Duration float64
}

// Chunker accumulates resampled PCM bytes and decides when they constitute
// a dispatchable chunk. The timebox policy cuts a chunk once the configured
// wall-clock threshold has elapsed since the last dispatch and the buffer
// is non-empty. The utterance policy treats the whole stream as one
// already-segmented utterance and cuts a single chunk at stream end.
//
// Every buffered byte is dispatched exactly once; Flush hands out the final
// partial remainder instead of discarding it.
type Chunker struct {
	policy    string
	threshold time.Duration
	buf       *PCMBuffer
	rate      int
	seq       int
	lastCut   time.Time

	// now is replaceable for tests
	now func() time.Time
}

// NewChunker creates a chunker for the given policy. The threshold only
// applies to the timebox policy.
func NewChunker(policy string, threshold time.Duration, sampleRate int) (*Chunker, error) {
	switch policy {
	case PolicyTimebox:
		if threshold <= 0 {
			return nil, &ConfigurationError{Field: "CHUNK_SECONDS", Reason: "threshold must be positive"}
		}
	case PolicyUtterance:
	default:
		return nil, &ConfigurationError{Field: "CHUNK_POLICY", Reason: "unknown policy " + policy}
	}

	c := &Chunker{
		policy:    policy,
		threshold: threshold,
		buf:       NewPCMBuffer(sampleRate),
		rate:      sampleRate,
		now:       time.Now,
	}
	c.lastCut = c.now()

	return c, nil
}

// Push appends resampled PCM bytes and returns a chunk when one is ready
// under the configured policy, or nil otherwise
func (c *Chunker) Push(pcm []byte) *Chunk {
	c.buf.Append(pcm)

	if c.policy != PolicyTimebox {
		return nil
	}

	if c.now().Sub(c.lastCut) >= c.threshold && c.buf.Len() > 0 {
		return c.cut()
	}

	return nil
}

// Flush dispatches any buffered remainder at stream end, regardless of
// elapsed time. Returns nil when nothing is buffered.
func (c *Chunker) Flush() *Chunk {
	if c.buf.Len() == 0 {
		return nil
	}
	return c.cut()
}

// Dispatched returns the number of chunks cut so far
func (c *Chunker) Dispatched() int {
	return c.seq
}

// Buffered returns the number of bytes awaiting dispatch
func (c *Chunker) Buffered() int {
	return c.buf.Len()
}

func (c *Chunker) cut() *Chunk {
	pcm := c.buf.Take()
	chunk := &Chunk{
		Seq:        c.seq,
		PCM:        pcm,
		SampleRate: c.rate,
		Duration:   float64(len(pcm)/2) / float64(c.rate),
	}

	c.seq++
	c.lastCut = c.now()

	return chunk
}
