package bridge

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicelab/stt-bridge/internal/audio"
	"github.com/voicelab/stt-bridge/internal/config"
	"github.com/voicelab/stt-bridge/internal/observability"
	"github.com/voicelab/stt-bridge/internal/resilience"
	"github.com/voicelab/stt-bridge/internal/stt"
)

// Frame is one immutable unit of inbound audio: 16-bit little-endian
// signed mono PCM at the declared sample rate. Frames arrive in strict
// temporal order and are never revisited.
type Frame struct {
	SampleRate int
	Channels   int
	PCM        []byte
}

// Bridge consumes a continuous stream of audio frames, converts it into
// transcription requests against the configured backend, and re-emits the
// responses as an ordered sequence of transcript events.
//
// Transport and chunking strategies are chosen once at construction and
// never re-read from process-wide state.
type Bridge struct {
	cfg       *config.Config
	language  string
	sessionID string
	logger    zerolog.Logger
}

// New creates a bridge for one audio session. Configuration problems are
// reported here, before any network activity.
func New(cfg *config.Config) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sessionID := observability.NewSessionID()

	return &Bridge{
		cfg:       cfg,
		language:  cfg.Languages[0],
		sessionID: sessionID,
		logger:    observability.WithSessionID(sessionID),
	}, nil
}

// SessionID returns the identifier attached to this session's log lines
func (b *Bridge) SessionID() string {
	return b.sessionID
}

// Run drains the frame stream to completion (or until ctx is cancelled),
// delivering transcript events to emit in arrival order. It is a one-shot
// consumption of a single audio session: when Run returns, buffered audio
// has been flushed, the drain phase has been attempted, the connection is
// closed, and no background work remains.
func (b *Bridge) Run(ctx context.Context, frames <-chan Frame, emit stt.EventSink) error {
	metrics := observability.NewSessionMetrics()
	defer metrics.End()

	// The first frame establishes the resampler configuration
	first, ok := b.nextFrame(ctx, frames)
	if !ok {
		return nil
	}

	b.logger.Info().
		Int("sample_rate", first.SampleRate).
		Int("channels", first.Channels).
		Int("bytes", len(first.PCM)).
		Str("transport", b.cfg.Transport).
		Msg("First audio frame received")

	if first.Channels != 1 {
		return &stt.ConfigurationError{Field: "channels", Reason: "only mono input is supported"}
	}

	resampler, err := audio.NewResampler(b.cfg.ResamplePolicy, first.SampleRate, b.cfg.TargetSampleRate)
	if err != nil {
		return err
	}

	chunker, err := audio.NewChunker(b.cfg.ChunkPolicy, b.cfg.ChunkThreshold(), b.cfg.TargetSampleRate)
	if err != nil {
		return err
	}

	session := &session{
		bridge:    b,
		inputRate: first.SampleRate,
		resampler: resampler,
		chunker:   chunker,
	}

	if b.cfg.Transport == config.TransportWebSocket {
		return session.runStreaming(ctx, first, frames, emit)
	}
	return session.runBatch(ctx, first, frames, emit)
}

// nextFrame waits for one frame, a closed stream, or cancellation
func (b *Bridge) nextFrame(ctx context.Context, frames <-chan Frame) (Frame, bool) {
	select {
	case f, ok := <-frames:
		return f, ok
	case <-ctx.Done():
		return Frame{}, false
	}
}

// session holds the per-stream pipeline state shared by both transports
type session struct {
	bridge    *Bridge
	inputRate int
	resampler audio.Resampler
	chunker   *audio.Chunker
}

// ingest resamples one frame into the chunk buffer and returns a chunk
// when the policy declares one ready. A mid-stream sample-rate change is
// rejected.
func (s *session) ingest(f Frame) (*audio.Chunk, error) {
	if f.SampleRate != s.inputRate {
		return nil, &stt.ConfigurationError{
			Field:  "sample_rate",
			Reason: "sample rate changed mid-stream",
		}
	}
	return s.chunker.Push(s.resampler.Resample(f.PCM)), nil
}

// runBatch drives the REST transport: each ready chunk becomes one
// request. A failed chunk is logged and the session continues; a single
// failure never aborts the stream.
func (s *session) runBatch(ctx context.Context, first Frame, frames <-chan Frame, emit stt.EventSink) error {
	b := s.bridge

	var retry *resilience.RetryConfig
	if b.cfg.RetryMaxAttempts > 1 {
		retry = resilience.DefaultRetryConfig()
		retry.MaxAttempts = b.cfg.RetryMaxAttempts
		retry.InitialBackoff = time.Duration(b.cfg.RetryInitialBackoff) * time.Millisecond
	}

	client := stt.NewRESTClient(stt.RESTConfig{
		Endpoint:      b.cfg.RESTEndpoint,
		Authorization: b.cfg.AuthorizationHeader(),
		Languages:     b.cfg.Languages,
		Timeout:       b.cfg.RequestTimeout(),
		Retry:         retry,
	}, b.logger)

	frame := first
	for {
		chunk, err := s.ingest(frame)
		if err != nil {
			return err
		}
		if chunk != nil {
			s.transcribeChunk(ctx, client, chunk, emit)
		}

		select {
		case f, ok := <-frames:
			if !ok {
				// Flush-on-close: the final partial chunk is dispatched,
				// never discarded
				if last := s.chunker.Flush(); last != nil {
					s.transcribeChunk(context.Background(), client, last, emit)
				}
				return nil
			}
			frame = f
		case <-ctx.Done():
			if last := s.chunker.Flush(); last != nil {
				s.transcribeChunk(context.Background(), client, last, emit)
			}
			return ctx.Err()
		}
	}
}

// transcribeChunk issues one REST call and emits a final event when the
// chunk contained speech. The flush path passes a fresh context so the
// final chunk still gets its bounded request after cancellation.
func (s *session) transcribeChunk(ctx context.Context, client *stt.RESTClient, chunk *audio.Chunk, emit stt.EventSink) {
	b := s.bridge

	observability.RecordChunk(len(chunk.PCM))
	b.logger.Debug().
		Int("seq", chunk.Seq).
		Int("bytes", len(chunk.PCM)).
		Float64("duration_s", chunk.Duration).
		Msg("Chunk ready, sending for transcription")

	text, err := client.Transcribe(ctx, chunk.PCM, chunk.SampleRate)
	if err != nil {
		observability.RecordError("transcription_request", "rest_client")
		b.logger.Error().Err(err).Int("seq", chunk.Seq).Msg("Chunk transcription failed, continuing")
		return
	}

	if text == "" {
		b.logger.Debug().Int("seq", chunk.Seq).Msg("No speech detected in chunk")
		return
	}

	emit(stt.TranscriptEvent{Kind: stt.KindFinal, Text: text, Language: b.language})
	observability.RecordEvent(stt.KindFinal.String())
}

// runStreaming drives the WebSocket transport: authenticate once, append
// each chunk with a short post-send poll, then commit and drain. The
// connection is closed on every exit path.
func (s *session) runStreaming(ctx context.Context, first Frame, frames <-chan Frame, emit stt.EventSink) error {
	b := s.bridge

	client := stt.NewStreamClient(stt.StreamConfig{
		Endpoint:     b.cfg.WSEndpoint,
		APIKey:       b.cfg.APIKey,
		Languages:    b.cfg.Languages,
		PollTimeout:  b.cfg.PollTimeout(),
		DrainTimeout: b.cfg.DrainTimeout(),
	}, b.logger)

	if err := client.Connect(ctx); err != nil {
		observability.RecordError("authentication", "stream_client")
		return err
	}
	defer client.Close()

	frame := first
	for {
		chunk, err := s.ingest(frame)
		if err != nil {
			return err
		}
		if chunk != nil {
			observability.RecordChunk(len(chunk.PCM))
			if err := client.Append(chunk, emit); err != nil {
				observability.RecordError("stream_protocol", "stream_client")
				return err
			}
		}

		select {
		case f, ok := <-frames:
			if !ok {
				return s.finishStreaming(client, emit)
			}
			frame = f
		case <-ctx.Done():
			// Flush and drain before stopping; the bounded drain wait is
			// the only long wait after cancellation
			if err := s.finishStreaming(client, emit); err != nil {
				return err
			}
			return ctx.Err()
		}
	}
}

// finishStreaming flushes the chunk remainder, commits, and drains
func (s *session) finishStreaming(client *stt.StreamClient, emit stt.EventSink) error {
	if last := s.chunker.Flush(); last != nil {
		observability.RecordChunk(len(last.PCM))
		if err := client.Append(last, emit); err != nil {
			observability.RecordError("stream_protocol", "stream_client")
			return err
		}
	}

	if err := client.Commit(emit); err != nil {
		observability.RecordError("stream_protocol", "stream_client")
		return err
	}
	return nil
}
