package audio

import "math"

// Resampler converts 16-bit little-endian mono PCM from an input sample
// rate to a fixed target rate. Implementations carry state across frame
// boundaries so the output is seamless; one resampler serves one stream.
type Resampler interface {
	// Resample converts one frame of PCM bytes. The returned slice may be
	// empty when the frame did not yield a full output sample yet.
	Resample(pcm []byte) []byte

	// Rate returns the target sample rate in Hz
	Rate() int
}

// Resampling policy names.
const (
	PolicyLinear   = "linear"
	PolicyDecimate = "decimate"
)

// NewResampler creates a resampler for the given policy. The linear policy
// interpolates between neighboring samples and accepts any rate ratio. The
// decimate policy takes every Nth sample and is valid only for integer
// ratios; it is cheaper but aliases, so it is the lower-fidelity fallback.
// When the rates already match, a pass-through resampler is returned.
func NewResampler(policy string, inputRate, targetRate int) (Resampler, error) {
	if inputRate <= 0 || targetRate <= 0 {
		return nil, &ConfigurationError{Field: "sample_rate", Reason: "rates must be positive"}
	}

	if inputRate == targetRate {
		return &passthroughResampler{rate: targetRate}, nil
	}

	switch policy {
	case PolicyLinear:
		return &linearResampler{
			step: float64(inputRate) / float64(targetRate),
			rate: targetRate,
		}, nil

	case PolicyDecimate:
		if inputRate%targetRate != 0 {
			return nil, &ConfigurationError{
				Field:  "RESAMPLE_POLICY",
				Reason: "decimate requires an integer rate ratio",
			}
		}
		return &decimatingResampler{
			factor: inputRate / targetRate,
			rate:   targetRate,
		}, nil

	default:
		return nil, &ConfigurationError{Field: "RESAMPLE_POLICY", Reason: "unknown policy " + policy}
	}
}

// passthroughResampler is used when input and target rates already match
type passthroughResampler struct {
	rate int
}

func (r *passthroughResampler) Resample(pcm []byte) []byte {
	out := make([]byte, len(pcm))
	copy(out, pcm)
	return out
}

func (r *passthroughResampler) Rate() int { return r.rate }

// linearResampler interpolates between adjacent input samples. It keeps the
// last input sample and the fractional read position across calls, so chunk
// seams line up without clicks.
type linearResampler struct {
	step float64 // input samples advanced per output sample
	pos  float64 // position of the next output sample, in input sample units
	read int     // total input samples consumed so far
	prev int16   // last sample of the previous frame
	rate int
}

func (r *linearResampler) Resample(pcm []byte) []byte {
	n := len(pcm) / 2
	if n == 0 {
		return nil
	}

	out := make([]byte, 0, int(float64(n)/r.step)*2+2)

	for {
		i0 := int(math.Floor(r.pos))
		i1 := i0 + 1
		// Interpolation needs the sample after i0; wait for the next frame
		// once we run past the end of this one.
		if i1 >= r.read+n {
			break
		}

		frac := r.pos - float64(i0)
		s0 := r.sampleAt(i0, pcm)
		s1 := r.sampleAt(i1, pcm)
		v := int16(float64(s0)*(1.0-frac) + float64(s1)*frac)

		out = append(out, byte(v), byte(uint16(v)>>8))
		r.pos += r.step
	}

	r.prev = int16(pcm[(n-1)*2]) | int16(pcm[(n-1)*2+1])<<8
	r.read += n

	return out
}

// sampleAt resolves a global input index against the current frame, falling
// back to the carried-over sample for the index just before it
func (r *linearResampler) sampleAt(idx int, pcm []byte) int16 {
	if idx < r.read {
		return r.prev
	}
	off := (idx - r.read) * 2
	return int16(pcm[off]) | int16(pcm[off+1])<<8
}

func (r *linearResampler) Rate() int { return r.rate }

// decimatingResampler takes every Nth input sample. Valid only for integer
// rate ratios; aliasing artifacts are accepted in exchange for zero math.
type decimatingResampler struct {
	factor int
	skip   int // input samples to discard before the next pick
	rate   int
}

func (r *decimatingResampler) Resample(pcm []byte) []byte {
	n := len(pcm) / 2
	if n == 0 {
		return nil
	}

	out := make([]byte, 0, (n/r.factor+1)*2)

	i := r.skip
	for ; i < n; i += r.factor {
		out = append(out, pcm[i*2], pcm[i*2+1])
	}
	r.skip = i - n

	return out
}

func (r *decimatingResampler) Rate() int { return r.rate }
