package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicelab/stt-bridge/internal/audio"
	"github.com/voicelab/stt-bridge/internal/observability"
	"github.com/voicelab/stt-bridge/internal/resilience"
)

// RESTConfig contains configuration for the one-shot transcription client
type RESTConfig struct {
	Endpoint      string
	Authorization string // rendered Authorization header value (raw key or Bearer-prefixed)
	Languages     []string
	Timeout       time.Duration
	Retry         *resilience.RetryConfig // nil disables retries
}

// restRequest is the JSON body sent to the transcription endpoint
type restRequest struct {
	Audio    string   `json:"audio"`    // base64-encoded WAV
	Language []string `json:"language"` // target language hints
}

// restResponse is the JSON body returned on success
type restResponse struct {
	Text      string  `json:"text"`
	TotalTime float64 `json:"total_time"`
}

// RESTClient issues one-shot request/response transcription calls for
// complete audio segments
type RESTClient struct {
	cfg        RESTConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewRESTClient creates a new one-shot transcription client
func NewRESTClient(cfg RESTConfig, logger zerolog.Logger) *RESTClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &RESTClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Transcribe sends one audio chunk and returns the recognized text.
// An empty string is a legitimate "no speech detected" outcome, not an
// error. Failures return a *TranscriptionRequestError; the caller logs
// and continues with the next chunk.
func (c *RESTClient) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	start := time.Now()

	var text string
	call := func() error {
		var err error
		text, err = c.doRequest(ctx, pcm, sampleRate)
		return err
	}

	var err error
	if c.cfg.Retry != nil && c.cfg.Retry.MaxAttempts > 1 {
		err = resilience.Retry(ctx, call, c.cfg.Retry, resilience.IsRetryableNetworkError)
	} else {
		err = call()
	}

	observability.RecordRequest("rest", err == nil, time.Since(start))
	return text, err
}

func (c *RESTClient) doRequest(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	wavB64, err := audio.EncodeWAVBase64(pcm, sampleRate)
	if err != nil {
		return "", &TranscriptionRequestError{Reason: "failed to encode audio", Err: err}
	}

	body, err := json.Marshal(restRequest{
		Audio:    wavB64,
		Language: c.cfg.Languages,
	})
	if err != nil {
		return "", &TranscriptionRequestError{Reason: "failed to marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &TranscriptionRequestError{Reason: "failed to create request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.cfg.Authorization)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TranscriptionRequestError{Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TranscriptionRequestError{Status: resp.StatusCode, Reason: "failed to read response body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &TranscriptionRequestError{
			Status: resp.StatusCode,
			Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
		}
	}

	var parsed restResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &TranscriptionRequestError{Status: resp.StatusCode, Reason: "failed to parse response JSON", Err: err}
	}

	text := strings.TrimSpace(parsed.Text)

	c.logger.Debug().
		Int("bytes", len(pcm)).
		Float64("backend_ms", parsed.TotalTime).
		Str("text", text).
		Msg("Transcription response received")

	return text, nil
}
