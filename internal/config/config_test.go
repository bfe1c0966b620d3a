package config

import (
	"errors"
	"os"
	"testing"

	"github.com/voicelab/stt-bridge/internal/stt"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("WISPRFLOW_API_KEY", "test-api-key")
	t.Cleanup(func() { os.Unsetenv("WISPRFLOW_API_KEY") })
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.APIKey != "test-api-key" {
		t.Errorf("Expected APIKey 'test-api-key', got '%s'", cfg.APIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("WISPRFLOW_API_KEY")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when API key is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)
	// Clear optional knobs so defaults apply
	for _, key := range []string{"STT_TRANSPORT", "CHUNK_POLICY", "CHUNK_SECONDS", "RESAMPLE_POLICY", "STT_LANGUAGES"} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Transport != TransportREST {
		t.Errorf("Expected default Transport 'rest', got '%s'", cfg.Transport)
	}
	if cfg.ChunkPolicy != ChunkPolicyTimebox {
		t.Errorf("Expected default ChunkPolicy 'timebox', got '%s'", cfg.ChunkPolicy)
	}
	if cfg.ChunkSeconds != 5 {
		t.Errorf("Expected default ChunkSeconds 5, got %f", cfg.ChunkSeconds)
	}
	if cfg.ResamplePolicy != ResamplePolicyLinear {
		t.Errorf("Expected default ResamplePolicy 'linear', got '%s'", cfg.ResamplePolicy)
	}
	if cfg.TargetSampleRate != 16000 {
		t.Errorf("Expected default TargetSampleRate 16000, got %d", cfg.TargetSampleRate)
	}
	if len(cfg.Languages) != 1 || cfg.Languages[0] != "ka" {
		t.Errorf("Expected default Languages [ka], got %v", cfg.Languages)
	}
	if cfg.AuthScheme != AuthSchemeRaw {
		t.Errorf("Expected default AuthScheme 'raw', got '%s'", cfg.AuthScheme)
	}
	if cfg.RequestTimeoutSec != 10 {
		t.Errorf("Expected default RequestTimeoutSec 10, got %d", cfg.RequestTimeoutSec)
	}
	if cfg.PollTimeoutMs != 10 {
		t.Errorf("Expected default PollTimeoutMs 10, got %d", cfg.PollTimeoutMs)
	}
	if cfg.DrainTimeoutSec != 5 {
		t.Errorf("Expected default DrainTimeoutSec 5, got %d", cfg.DrainTimeoutSec)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}
	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}

func TestLoad_Languages(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("STT_LANGUAGES", "en,ka")
	defer os.Unsetenv("STT_LANGUAGES")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(cfg.Languages) != 2 || cfg.Languages[0] != "en" || cfg.Languages[1] != "ka" {
		t.Errorf("Expected Languages [en ka], got %v", cfg.Languages)
	}
}

func TestLoad_InvalidTransport(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("STT_TRANSPORT", "carrier-pigeon")
	defer os.Unsetenv("STT_TRANSPORT")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error for invalid transport")
	}

	var cfgErr *stt.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected ConfigurationError, got %T", err)
	}
}

func TestValidate_InvalidPolicies(t *testing.T) {
	base := func() *Config {
		return &Config{
			APIKey:           "key",
			Languages:        []string{"ka"},
			Transport:        TransportREST,
			ChunkPolicy:      ChunkPolicyTimebox,
			ChunkSeconds:     5,
			ResamplePolicy:   ResamplePolicyLinear,
			AuthScheme:       AuthSchemeRaw,
			TargetSampleRate: 16000,
		}
	}

	cfg := base()
	cfg.ChunkPolicy = "silence"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for invalid chunk policy")
	}

	cfg = base()
	cfg.ResamplePolicy = "sinc"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for invalid resample policy")
	}

	cfg = base()
	cfg.AuthScheme = "digest"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for invalid auth scheme")
	}

	cfg = base()
	cfg.ChunkSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero chunk threshold")
	}
}

func TestAuthorizationHeader(t *testing.T) {
	cfg := &Config{APIKey: "secret", AuthScheme: AuthSchemeRaw}
	if got := cfg.AuthorizationHeader(); got != "secret" {
		t.Errorf("Expected raw key 'secret', got '%s'", got)
	}

	cfg.AuthScheme = AuthSchemeBearer
	if got := cfg.AuthorizationHeader(); got != "Bearer secret" {
		t.Errorf("Expected 'Bearer secret', got '%s'", got)
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	if value := GetEnv("TEST_KEY", "default"); value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}
	if value := GetEnv("NON_EXISTENT_KEY", "default"); value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}

func TestParseLanguages(t *testing.T) {
	langs := ParseLanguages(" en, ka ,,fr ")
	if len(langs) != 3 || langs[0] != "en" || langs[1] != "ka" || langs[2] != "fr" {
		t.Errorf("Expected [en ka fr], got %v", langs)
	}
}
