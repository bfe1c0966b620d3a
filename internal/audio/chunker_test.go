package audio

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// fakeClock advances manually so timebox behavior is deterministic
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// newTestChunker wires a chunker to a fake clock
func newTestChunker(t *testing.T, policy string, threshold time.Duration) (*Chunker, *fakeClock) {
	t.Helper()

	c, err := NewChunker(policy, threshold, 16000)
	if err != nil {
		t.Fatalf("NewChunker failed: %v", err)
	}

	clock := &fakeClock{t: time.Unix(1000, 0)}
	c.now = clock.now
	c.lastCut = clock.now()

	return c, clock
}

// frame100ms is 100ms of audio at 16kHz (1600 samples, 3200 bytes)
func frame100ms(fill byte) []byte {
	f := make([]byte, 3200)
	for i := range f {
		f[i] = fill
	}
	return f
}

func TestChunker_TimeboxChunkCount(t *testing.T) {
	// Frames totaling duration D with threshold T must dispatch
	// ceil(D/T) chunks once flushed
	cases := []struct {
		name           string
		totalSeconds   int
		expectedChunks int
	}{
		{"12s_over_5s", 12, 3},
		{"10s_over_5s", 10, 2},
		{"3s_over_5s", 3, 1},
		{"5s_over_5s", 5, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, clock := newTestChunker(t, PolicyTimebox, 5*time.Second)

			var input []byte
			var chunks []*Chunk

			for i := 0; i < tc.totalSeconds*10; i++ {
				f := frame100ms(byte(i))
				input = append(input, f...)
				clock.advance(100 * time.Millisecond)
				if chunk := c.Push(f); chunk != nil {
					chunks = append(chunks, chunk)
				}
			}
			if last := c.Flush(); last != nil {
				chunks = append(chunks, last)
			}

			if len(chunks) != tc.expectedChunks {
				t.Fatalf("Expected %d chunks, got %d", tc.expectedChunks, len(chunks))
			}

			// Concatenation must reproduce the input byte sequence in order
			var concat []byte
			for _, chunk := range chunks {
				concat = append(concat, chunk.PCM...)
			}
			if !bytes.Equal(concat, input) {
				t.Errorf("Expected chunk concatenation to equal input: %d vs %d bytes", len(concat), len(input))
			}
		})
	}
}

func TestChunker_TimeboxEmptyInput(t *testing.T) {
	c, _ := newTestChunker(t, PolicyTimebox, 5*time.Second)

	if chunk := c.Flush(); chunk != nil {
		t.Errorf("Expected no chunk for empty input, got %d bytes", len(chunk.PCM))
	}
	if c.Dispatched() != 0 {
		t.Errorf("Expected 0 dispatched chunks, got %d", c.Dispatched())
	}
}

func TestChunker_SequencePositions(t *testing.T) {
	c, clock := newTestChunker(t, PolicyTimebox, time.Second)

	var seqs []int
	for i := 0; i < 35; i++ {
		clock.advance(100 * time.Millisecond)
		if chunk := c.Push(frame100ms(0)); chunk != nil {
			seqs = append(seqs, chunk.Seq)
		}
	}
	if last := c.Flush(); last != nil {
		seqs = append(seqs, last.Seq)
	}

	// Strictly increasing from 0, no gaps, no repeats
	for i, seq := range seqs {
		if seq != i {
			t.Fatalf("Expected sequence %d at position %d, got %d", i, i, seq)
		}
	}
	if c.Dispatched() != len(seqs) {
		t.Errorf("Expected Dispatched %d, got %d", len(seqs), c.Dispatched())
	}
}

func TestChunker_ChunkDuration(t *testing.T) {
	c, clock := newTestChunker(t, PolicyTimebox, time.Second)

	var chunk *Chunk
	for i := 0; i < 10 && chunk == nil; i++ {
		clock.advance(100 * time.Millisecond)
		chunk = c.Push(frame100ms(0))
	}

	if chunk == nil {
		t.Fatal("Expected a chunk after 1s of audio")
	}
	// 10 frames of 100ms = 1 second
	if chunk.Duration != 1.0 {
		t.Errorf("Expected duration 1.0s, got %f", chunk.Duration)
	}
	if chunk.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", chunk.SampleRate)
	}
}

func TestChunker_UtteranceSingleChunk(t *testing.T) {
	c, clock := newTestChunker(t, PolicyUtterance, 0)

	var input []byte
	for i := 0; i < 80; i++ {
		f := frame100ms(byte(i))
		input = append(input, f...)
		clock.advance(100 * time.Millisecond)
		if chunk := c.Push(f); chunk != nil {
			t.Fatal("Utterance policy must not dispatch before stream end")
		}
	}

	chunk := c.Flush()
	if chunk == nil {
		t.Fatal("Expected one chunk at stream end")
	}
	if chunk.Seq != 0 {
		t.Errorf("Expected sequence 0, got %d", chunk.Seq)
	}
	if !bytes.Equal(chunk.PCM, input) {
		t.Errorf("Expected chunk to carry all %d input bytes, got %d", len(input), len(chunk.PCM))
	}
}

func TestChunker_UtteranceEmptyInput(t *testing.T) {
	c, _ := newTestChunker(t, PolicyUtterance, 0)

	if chunk := c.Flush(); chunk != nil {
		t.Error("Expected no chunk for zero-byte utterance")
	}
}

func TestNewChunker_InvalidPolicy(t *testing.T) {
	_, err := NewChunker("vad", time.Second, 16000)
	if err == nil {
		t.Fatal("Expected error for unknown policy")
	}

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected ConfigurationError, got %T", err)
	}
}

func TestNewChunker_InvalidThreshold(t *testing.T) {
	if _, err := NewChunker(PolicyTimebox, 0, 16000); err == nil {
		t.Error("Expected error for zero timebox threshold")
	}
}
