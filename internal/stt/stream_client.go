package stt

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voicelab/stt-bridge/internal/audio"
	"github.com/voicelab/stt-bridge/internal/observability"
)

// SessionState tracks the streaming connection lifecycle
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateAuthenticating
	StateActive
	StateDraining
	StateClosed
)

// String returns a human-readable name for the session state
func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client → server messages.

type authMessage struct {
	Type    string      `json:"type"`
	Context authContext `json:"context"`
}

type authContext struct {
	Languages []string `json:"languages"`
}

type appendMessage struct {
	Type     string  `json:"type"`
	Audio    string  `json:"audio"` // base64-encoded WAV
	Position int     `json:"position"`
	Duration float64 `json:"duration"` // seconds
}

type commitMessage struct {
	Type         string `json:"type"`
	TotalPackets int    `json:"total_packets"`
}

// serverMessage covers all server → client message shapes
type serverMessage struct {
	Status string `json:"status"` // auth, text, info, error
	Text   string `json:"text,omitempty"`
	Final  bool   `json:"final,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// StreamConfig contains configuration for the streaming client
type StreamConfig struct {
	Endpoint     string
	APIKey       string // passed in the query string
	Languages    []string
	PollTimeout  time.Duration // bounded wait for a message after each append
	DrainTimeout time.Duration // bounded wait per poll in the drain phase
	Dialer       *websocket.Dialer
}

// StreamClient holds one long-lived bidirectional connection for the
// lifetime of one audio stream. Exactly one authentication handshake per
// connection; no chunk is sent before the active state.
type StreamClient struct {
	cfg      StreamConfig
	language string
	logger   zerolog.Logger

	conn     *websocket.Conn
	state    SessionState
	position int
	mu       sync.Mutex

	// inbound messages from the receive goroutine
	msgs       chan serverMessage
	readErr    chan error
	readerDone chan struct{}
	quit       chan struct{}
}

// NewStreamClient creates a streaming transcription client
func NewStreamClient(cfg StreamConfig, logger zerolog.Logger) *StreamClient {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Millisecond
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}

	language := ""
	if len(cfg.Languages) > 0 {
		language = cfg.Languages[0]
	}

	return &StreamClient{
		cfg:      cfg,
		language: language,
		logger:   logger,
		state:    StateDisconnected,
	}
}

// State returns the current session state
func (s *StreamClient) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Position returns the number of append messages sent so far
func (s *StreamClient) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Connect opens the connection, sends the authentication message and
// blocks for exactly one acknowledgment. On a rejected handshake the
// connection is closed and an *AuthenticationError is returned; nothing
// was sent yet, so no audio is lost.
func (s *StreamClient) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		state := s.state
		s.mu.Unlock()
		return &StreamProtocolError{Reason: "connect called in state " + state.String()}
	}
	s.state = StateAuthenticating
	s.mu.Unlock()

	endpoint := s.cfg.Endpoint + "?api_key=" + url.QueryEscape(s.cfg.APIKey)

	conn, _, err := s.cfg.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		s.setState(StateClosed)
		return &StreamProtocolError{Reason: "failed to open connection", Err: err}
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if err := conn.WriteJSON(authMessage{
		Type:    "auth",
		Context: authContext{Languages: s.cfg.Languages},
	}); err != nil {
		s.closeConn()
		return &StreamProtocolError{Reason: "failed to send auth message", Err: err}
	}

	// The handshake is the one place a timeout aborts the whole session
	deadline := time.Now().Add(s.cfg.DrainTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	var ack serverMessage
	if err := conn.ReadJSON(&ack); err != nil {
		s.closeConn()
		return &StreamProtocolError{Reason: "failed to read auth acknowledgment", Err: err}
	}
	_ = conn.SetReadDeadline(time.Time{})

	if ack.Status != "auth" {
		s.closeConn()
		return &AuthenticationError{Response: ack.Status}
	}

	s.msgs = make(chan serverMessage, 16)
	s.readErr = make(chan error, 1)
	s.readerDone = make(chan struct{})
	s.quit = make(chan struct{})
	go s.readLoop(conn)

	s.setState(StateActive)
	s.logger.Info().Strs("languages", s.cfg.Languages).Msg("Streaming session authenticated")

	return nil
}

// readLoop drains inbound messages into a channel so the send path can
// race a bounded wait against them instead of blocking on the socket.
// When the buffer is full the loop blocks until the send path catches up
// or the session closes; no message is ever dropped.
func (s *StreamClient) readLoop(conn *websocket.Conn) {
	defer close(s.readerDone)

	for {
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case s.readErr <- err:
			default:
			}
			return
		}

		select {
		case s.msgs <- msg:
		case <-s.quit:
			return
		}
	}
}

// flushBuffered forwards transcripts the read loop already delivered
// before an exit path abandons the channel. Every buffered message
// precedes any connection error, so emit order is preserved. Protocol
// errors are dropped here; the session is ending either way.
func (s *StreamClient) flushBuffered(emit EventSink) {
	for {
		select {
		case msg := <-s.msgs:
			s.classify(msg, emit)
		default:
			return
		}
	}
}

// Append sends one chunk and then performs a short bounded poll for an
// inbound transcript, emitting it immediately if one arrived. The receive
// path never blocks the send path beyond the poll budget.
func (s *StreamClient) Append(chunk *audio.Chunk, emit EventSink) error {
	s.mu.Lock()
	if s.state != StateActive {
		state := s.state
		s.mu.Unlock()
		return &StreamProtocolError{Reason: "append called in state " + state.String()}
	}
	conn := s.conn
	position := s.position
	s.mu.Unlock()

	wavB64, err := audio.EncodeWAVBase64(chunk.PCM, chunk.SampleRate)
	if err != nil {
		return &StreamProtocolError{Reason: "failed to encode chunk", Err: err}
	}

	if err := conn.WriteJSON(appendMessage{
		Type:     "append",
		Audio:    wavB64,
		Position: position,
		Duration: chunk.Duration,
	}); err != nil {
		return &StreamProtocolError{Reason: "failed to send append message", Err: err}
	}

	s.mu.Lock()
	s.position++
	s.mu.Unlock()

	// Non-blocking poll: forward a pending transcript if the server has
	// one ready, otherwise keep the audio flowing
	select {
	case msg := <-s.msgs:
		if _, err := s.classify(msg, emit); err != nil {
			return err
		}
	case err := <-s.readErr:
		s.flushBuffered(emit)
		return &StreamProtocolError{Reason: "connection failed", Err: err}
	case <-time.After(s.cfg.PollTimeout):
	}

	return nil
}

// Commit declares end-of-input with the total appended chunk count, then
// drains remaining inbound messages under a bounded per-poll wait. The
// drain ends on a final transcript, an error status, or the wait expiring,
// whichever comes first. Transcripts already received are emitted on every
// exit path, including failure ones. The connection is closed
// unconditionally.
func (s *StreamClient) Commit(emit EventSink) error {
	s.mu.Lock()
	if s.state != StateActive {
		state := s.state
		s.mu.Unlock()
		return &StreamProtocolError{Reason: "commit called in state " + state.String()}
	}
	s.state = StateDraining
	conn := s.conn
	total := s.position
	s.mu.Unlock()

	defer s.Close()

	if err := conn.WriteJSON(commitMessage{
		Type:         "commit",
		TotalPackets: total,
	}); err != nil {
		// The connection died around commit; transcripts received in the
		// meantime still go out before the error does
		s.flushBuffered(emit)
		return &StreamProtocolError{Reason: "failed to send commit message", Err: err}
	}

	s.logger.Debug().Int("total_packets", total).Msg("Committed audio stream, draining responses")

	for {
		select {
		case msg := <-s.msgs:
			final, err := s.classify(msg, emit)
			if err != nil {
				return err
			}
			if final {
				return nil
			}
		case err := <-s.readErr:
			s.flushBuffered(emit)
			// The server closing after commit is a normal end of stream
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return &StreamProtocolError{Reason: "connection failed during drain", Err: err}
		case <-time.After(s.cfg.DrainTimeout):
			s.flushBuffered(emit)
			s.logger.Debug().Msg("Drain wait expired")
			return nil
		}
	}
}

// classify maps one server message to at most one emitted event. It
// returns true when the message is final-and-terminal for the stream.
func (s *StreamClient) classify(msg serverMessage, emit EventSink) (bool, error) {
	switch msg.Status {
	case "text":
		if msg.Text == "" {
			return msg.Final, nil
		}
		kind := KindInterim
		if msg.Final {
			kind = KindFinal
		}
		emit(TranscriptEvent{Kind: kind, Text: msg.Text, Language: s.language})
		observability.RecordEvent(kind.String())
		return msg.Final, nil

	case "info", "auth":
		return false, nil

	case "error":
		return false, &StreamProtocolError{Reason: fmt.Sprintf("server error: %s", msg.Reason)}

	default:
		return false, &StreamProtocolError{Reason: "unexpected server status " + msg.Status}
	}
}

// Close closes the connection and advances to the closed state. It is
// idempotent and safe on every exit path.
func (s *StreamClient) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	conn := s.conn
	done := s.readerDone
	quit := s.quit
	s.state = StateClosed
	s.mu.Unlock()

	if quit != nil {
		close(quit)
	}

	var err error
	if conn != nil {
		err = conn.Close()
	}

	// The receive goroutine exits once the connection is gone; wait for it
	// so no work outlives the session
	if done != nil {
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}

	return err
}

// closeConn tears down a connection that never reached the active state
func (s *StreamClient) closeConn() {
	s.mu.Lock()
	conn := s.conn
	s.state = StateClosed
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (s *StreamClient) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
