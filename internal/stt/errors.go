package stt

import (
	"fmt"

	"github.com/voicelab/stt-bridge/internal/audio"
)

// ConfigurationError reports a missing credential or an unsupported policy
// combination. It is fatal and surfaced before any network activity. The
// type lives with the audio pipeline; the alias keeps every failure kind
// reachable from one package.
type ConfigurationError = audio.ConfigurationError

// AuthenticationError reports a rejected handshake on the streaming
// connection. It is fatal for the connection; no audio was sent yet.
type AuthenticationError struct {
	Response string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication rejected: %s", e.Response)
}

// TranscriptionRequestError reports a failed REST transcription call
// (non-2xx status, network failure, or timeout). It is recoverable: the
// affected chunk is lost but the session continues with the next one.
type TranscriptionRequestError struct {
	Status int // HTTP status, 0 for network-level failures
	Reason string
	Err    error
}

func (e *TranscriptionRequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transcription request failed: status %d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("transcription request failed: %s", e.Reason)
}

func (e *TranscriptionRequestError) Unwrap() error {
	return e.Err
}

// StreamProtocolError reports a malformed or unexpected server message, or
// a mid-connection failure, on the streaming transport. The session is
// terminated gracefully; events emitted so far are preserved.
type StreamProtocolError struct {
	Reason string
	Err    error
}

func (e *StreamProtocolError) Error() string {
	return fmt.Sprintf("stream protocol error: %s", e.Reason)
}

func (e *StreamProtocolError) Unwrap() error {
	return e.Err
}
