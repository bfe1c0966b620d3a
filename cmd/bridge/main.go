package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicelab/stt-bridge/internal/audio"
	"github.com/voicelab/stt-bridge/internal/bridge"
	"github.com/voicelab/stt-bridge/internal/config"
	"github.com/voicelab/stt-bridge/internal/observability"
	"github.com/voicelab/stt-bridge/internal/stt"
)

// frameDuration is the slice size used when replaying a WAV file as a
// live frame stream
const frameDuration = 20 * time.Millisecond

func main() {
	inPath := flag.String("in", "", "path to a mono 16-bit PCM WAV file to transcribe")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("transport", cfg.Transport).
		Str("chunk_policy", cfg.ChunkPolicy).
		Str("resample_policy", cfg.ResamplePolicy).
		Strs("languages", cfg.Languages).
		Msg("Transcription bridge starting")

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: bridge -in <audio.wav>")
		os.Exit(2)
	}

	// Metrics and health endpoints
	if cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", observability.HealthCheckHandler())

		server := &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.MetricsPort),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}

		go func() {
			logger.Info().Str("port", cfg.MetricsPort).Msg("Prometheus metrics enabled at /metrics")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer server.Close()
	}

	// Cancel the session on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info().Msg("Shutting down session...")
		cancel()
	}()

	frames, err := framesFromWAV(ctx, *inPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *inPath).Msg("Failed to read input audio")
	}

	br, err := bridge.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create bridge")
	}

	emit := func(ev stt.TranscriptEvent) {
		logger.Info().
			Str("kind", ev.Kind.String()).
			Str("language", ev.Language).
			Str("text", ev.Text).
			Msg("Transcript")
		fmt.Printf("[%s] %s\n", ev.Kind, ev.Text)
	}

	if err := br.Run(ctx, frames, emit); err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("Transcription session failed")
	}

	logger.Info().Msg("Session finished")
}

// framesFromWAV decodes a WAV file and replays it as a closed channel of
// fixed-duration frames
func framesFromWAV(ctx context.Context, path string) (<-chan bridge.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	pcm, sampleRate, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, err
	}

	frameBytes := int(float64(sampleRate)*frameDuration.Seconds()) * 2

	out := make(chan bridge.Frame)
	go func() {
		defer close(out)
		for off := 0; off < len(pcm); off += frameBytes {
			end := off + frameBytes
			if end > len(pcm) {
				end = len(pcm)
			}
			select {
			case out <- bridge.Frame{
				SampleRate: sampleRate,
				Channels:   1,
				PCM:        pcm[off:end],
			}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
