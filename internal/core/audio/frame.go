package audio

import "time"

// Frame is one fixed-size buffer of captured mono samples. Frames are produced
// by a Capture and consumed once by the Encoder.
type Frame struct {
	Samples    []float32
	SampleRate int
	Timestamp  time.Duration // offset since capture start
}

// Duration returns the playback length of the frame.
func (f Frame) Duration() time.Duration {
	return SamplesDuration(len(f.Samples), f.SampleRate)
}

// Chunk is encoded outbound audio. Ownership passes to the transport on Send.
type Chunk struct {
	PCM        []byte // PCM16 LE mono
	SampleRate int
}

// MIMEType describes the chunk encoding.
func (c Chunk) MIMEType() string {
	return PCMMIMEType(c.SampleRate)
}

// Payload is one received block of agent audio, scheduled exactly once.
type Payload struct {
	PCM        []byte // PCM16 LE mono
	SampleRate int
	ArrivedAt  time.Time
}

// Duration returns the playback length of the payload.
func (p Payload) Duration() time.Duration {
	return SamplesDuration(len(p.PCM)/2, p.SampleRate)
}

// OpusPacket is one encoded Opus packet from an OpusSource.
type OpusPacket struct {
	Data     []byte
	Duration time.Duration
}
