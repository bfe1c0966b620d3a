package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/voicelab/stt-bridge/internal/stt"
)

// Transport selects how audio chunks reach the transcription backend.
const (
	TransportREST      = "rest"
	TransportWebSocket = "websocket"
)

// Chunking policies.
const (
	ChunkPolicyTimebox   = "timebox"
	ChunkPolicyUtterance = "utterance"
)

// Resampling policies.
const (
	ResamplePolicyLinear   = "linear"
	ResamplePolicyDecimate = "decimate"
)

// Auth header schemes for the REST endpoint.
const (
	AuthSchemeRaw    = "raw"
	AuthSchemeBearer = "bearer"
)

// Config holds all configuration for the transcription bridge
type Config struct {
	// Transcription backend configuration
	APIKey       string `envconfig:"WISPRFLOW_API_KEY" required:"true"`
	RESTEndpoint string `envconfig:"WISPRFLOW_REST_URL" default:"https://platform-api.wisprflow.ai/api/v1/dash/api"`
	WSEndpoint   string `envconfig:"WISPRFLOW_WS_URL" default:"wss://platform-api.wisprflow.ai/api/v1/dash/ws"`
	AuthScheme   string `envconfig:"WISPRFLOW_AUTH_SCHEME" default:"raw"` // raw or bearer

	// Target languages for recognition (comma-separated language codes)
	Languages []string `envconfig:"STT_LANGUAGES" default:"ka"`

	// Transport selection: rest (one-shot per chunk) or websocket (streaming)
	Transport string `envconfig:"STT_TRANSPORT" default:"rest"`

	// Chunking configuration
	ChunkPolicy  string  `envconfig:"CHUNK_POLICY" default:"timebox"` // timebox or utterance
	ChunkSeconds float64 `envconfig:"CHUNK_SECONDS" default:"5"`      // timebox threshold in seconds

	// Resampling configuration
	ResamplePolicy   string `envconfig:"RESAMPLE_POLICY" default:"linear"` // linear or decimate
	TargetSampleRate int    `envconfig:"TARGET_SAMPLE_RATE" default:"16000"`

	// Timeouts
	RequestTimeoutSec int `envconfig:"REQUEST_TIMEOUT_SEC" default:"10"` // per REST request
	PollTimeoutMs     int `envconfig:"POLL_TIMEOUT_MS" default:"10"`     // per post-append receive poll
	DrainTimeoutSec   int `envconfig:"DRAIN_TIMEOUT_SEC" default:"5"`    // per post-commit drain poll

	// Resilience configuration (REST transport only)
	RetryMaxAttempts    int `envconfig:"RETRY_MAX_ATTEMPTS" default:"1"`      // 1 disables retries
	RetryInitialBackoff int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"` // initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
	MetricsPort    string `envconfig:"METRICS_PORT" default:"9090"`    // Port for /metrics and /health
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &stt.ConfigurationError{Field: "environment", Reason: err.Error()}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks credential presence and policy selections before any
// network activity happens
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return &stt.ConfigurationError{Field: "WISPRFLOW_API_KEY", Reason: "missing API key"}
	}
	if len(c.Languages) == 0 {
		return &stt.ConfigurationError{Field: "STT_LANGUAGES", Reason: "at least one language code is required"}
	}

	switch c.Transport {
	case TransportREST, TransportWebSocket:
	default:
		return &stt.ConfigurationError{Field: "STT_TRANSPORT", Reason: "must be rest or websocket, got " + c.Transport}
	}

	switch c.ChunkPolicy {
	case ChunkPolicyTimebox, ChunkPolicyUtterance:
	default:
		return &stt.ConfigurationError{Field: "CHUNK_POLICY", Reason: "must be timebox or utterance, got " + c.ChunkPolicy}
	}

	switch c.ResamplePolicy {
	case ResamplePolicyLinear, ResamplePolicyDecimate:
	default:
		return &stt.ConfigurationError{Field: "RESAMPLE_POLICY", Reason: "must be linear or decimate, got " + c.ResamplePolicy}
	}

	switch c.AuthScheme {
	case AuthSchemeRaw, AuthSchemeBearer:
	default:
		return &stt.ConfigurationError{Field: "WISPRFLOW_AUTH_SCHEME", Reason: "must be raw or bearer, got " + c.AuthScheme}
	}

	if c.ChunkSeconds <= 0 {
		return &stt.ConfigurationError{Field: "CHUNK_SECONDS", Reason: "must be positive"}
	}
	if c.TargetSampleRate <= 0 {
		return &stt.ConfigurationError{Field: "TARGET_SAMPLE_RATE", Reason: "must be positive"}
	}

	return nil
}

// ChunkThreshold returns the timebox threshold as a duration
func (c *Config) ChunkThreshold() time.Duration {
	return time.Duration(c.ChunkSeconds * float64(time.Second))
}

// RequestTimeout returns the per-request REST timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// PollTimeout returns the post-append receive poll budget
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMs) * time.Millisecond
}

// DrainTimeout returns the per-poll budget for the post-commit drain phase
func (c *Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutSec) * time.Second
}

// AuthorizationHeader renders the API key per the configured header scheme
func (c *Config) AuthorizationHeader() string {
	if c.AuthScheme == AuthSchemeBearer {
		return "Bearer " + c.APIKey
	}
	return c.APIKey
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ParseLanguages splits a comma-separated language list, trimming blanks
func ParseLanguages(raw string) []string {
	parts := strings.Split(raw, ",")
	langs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			langs = append(langs, p)
		}
	}
	return langs
}
