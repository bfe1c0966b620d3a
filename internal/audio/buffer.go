package audio

import (
	"sync"
	"time"
)

// PCMBuffer is an append-only accumulator for 16-bit mono PCM bytes
// collected for the current chunk. It is owned by the chunker and reset
// (cleared, not destroyed) after each dispatch.
type PCMBuffer struct {
	data       []byte
	sampleRate int
	mu         sync.Mutex
}

// NewPCMBuffer creates a buffer for audio at the given sample rate
func NewPCMBuffer(sampleRate int) *PCMBuffer {
	return &PCMBuffer{
		data:       make([]byte, 0, 4096),
		sampleRate: sampleRate,
	}
}

// Append adds PCM bytes to the buffer
func (b *PCMBuffer) Append(pcm []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, pcm...)
}

// Len returns the number of buffered bytes
func (b *PCMBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.data)
}

// Duration returns the audio duration represented by the buffered bytes
func (b *PCMBuffer) Duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	samples := len(b.data) / 2
	return time.Duration(float64(samples) / float64(b.sampleRate) * float64(time.Second))
}

// Take returns a copy of the buffered bytes and clears the buffer,
// keeping the underlying capacity for the next chunk
func (b *PCMBuffer) Take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.data) == 0 {
		return nil
	}

	out := make([]byte, len(b.data))
	copy(out, b.data)
	b.data = b.data[:0]

	return out
}

// Reset clears the buffer without returning its contents
func (b *PCMBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = b.data[:0]
}
