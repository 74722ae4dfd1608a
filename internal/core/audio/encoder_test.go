package audio

import (
	"testing"

	"github.com/matryer/is"
)

func TestEncoderResamplesToWireRate(t *testing.T) {
	is := is.New(t)
	enc := NewEncoder(0)
	frame := Frame{Samples: make([]float32, 4800), SampleRate: 48000}

	chunk := enc.Encode(frame)

	is.Equal(enc.Rate(), WireSampleRate)
	is.Equal(chunk.SampleRate, WireSampleRate)
	is.Equal(len(chunk.PCM), 2*1600) // 100ms at 16 kHz
	is.Equal(chunk.MIMEType(), "audio/pcm;rate=16000")
}

func TestEncoderPassThroughAtWireRate(t *testing.T) {
	is := is.New(t)
	enc := NewEncoder(16000)

	chunk := enc.Encode(Frame{Samples: []float32{1, -1}, SampleRate: 16000})

	is.Equal(chunk.PCM, []byte{0xff, 0x7f, 0x00, 0x80})
}
