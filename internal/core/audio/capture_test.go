package audio

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
)

func TestInputArgs(t *testing.T) {
	tests := []struct {
		name   string
		goos   string
		cfg    CaptureConfig
		format string
		device string
	}{
		{"linux default", "linux", CaptureConfig{SampleRate: 48000}, "pulse", "default"},
		{"darwin default", "darwin", CaptureConfig{SampleRate: 48000}, "avfoundation", ":0"},
		{"explicit", "windows", CaptureConfig{SampleRate: 44100, InputFormat: "dshow", InputDevice: "audio=Mic"}, "dshow", "audio=Mic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			args, err := inputArgs(tt.goos, tt.cfg)
			is.NoErr(err)
			is.Equal(args[3], "-f")
			is.Equal(args[4], tt.format)
			is.Equal(args[6], tt.device)
		})
	}
}

func TestInputArgsUnsupportedPlatform(t *testing.T) {
	is := is.New(t)
	_, err := inputArgs("plan9", CaptureConfig{})
	is.True(errors.Is(err, ErrDeviceUnavailable))
}

func TestCaptureMissingTool(t *testing.T) {
	is := is.New(t)
	c := NewFFmpegCapture(CaptureConfig{FFmpegPath: "definitely-not-a-real-ffmpeg"})

	err := c.Start(context.Background())

	is.True(errors.Is(err, ErrDeviceUnavailable))
	is.NoErr(c.Stop())
	is.NoErr(c.Stop()) // repeated stop is a no-op
}

func TestOpusCaptureMissingTool(t *testing.T) {
	is := is.New(t)
	c := NewOggOpusCapture(CaptureConfig{FFmpegPath: "definitely-not-a-real-ffmpeg"})

	err := c.Start(context.Background())

	is.True(errors.Is(err, ErrDeviceUnavailable))
	is.NoErr(c.Stop())
}

func TestCaptureStartAfterStop(t *testing.T) {
	is := is.New(t)
	c := NewFFmpegCapture(CaptureConfig{})
	is.NoErr(c.Stop())
	is.True(c.Start(context.Background()) != nil)
}
