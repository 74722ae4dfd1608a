package audio

// Encoder turns captured frames into wire chunks at a fixed rate.
type Encoder struct {
	rate int
}

// NewEncoder returns an Encoder for the given wire rate; zero means WireSampleRate.
func NewEncoder(rate int) *Encoder {
	if rate <= 0 {
		rate = WireSampleRate
	}
	return &Encoder{rate: rate}
}

// Rate is the wire sample rate.
func (e *Encoder) Rate() int { return e.rate }

// Encode resamples f to the wire rate when needed and converts it to PCM16.
func (e *Encoder) Encode(f Frame) Chunk {
	samples := f.Samples
	if f.SampleRate != e.rate {
		samples = Resample(samples, f.SampleRate, e.rate)
	}
	return Chunk{PCM: EncodePCM16(samples), SampleRate: e.rate}
}
