package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// ErrDeviceUnavailable reports that the microphone could not be opened: the
// capture tool is missing, access was denied, or no input device exists.
var ErrDeviceUnavailable = errors.New("audio input device unavailable")

var errCaptureStopped = errors.New("capture already stopped")

// Capture is a microphone pipeline. Start blocks until audio flows or the
// device fails. Stop releases the device and may be called any number of times.
type Capture interface {
	Start(ctx context.Context) error
	Frames() <-chan Frame
	Tap() *Analyser
	Stop() error
}

// CaptureConfig selects the ffmpeg input and framing.
type CaptureConfig struct {
	FFmpegPath     string
	InputFormat    string // e.g. pulse, avfoundation, alsa; empty picks a platform default
	InputDevice    string // empty picks the platform default
	SampleRate     int
	FrameSize      int // samples per Frame
	StartupTimeout time.Duration
	Logger         *slog.Logger
}

func (c CaptureConfig) withDefaults() CaptureConfig {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.FrameSize <= 0 {
		c.FrameSize = 2048
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// inputArgs returns the ffmpeg arguments that open the microphone.
func inputArgs(goos string, cfg CaptureConfig) ([]string, error) {
	format, device := cfg.InputFormat, cfg.InputDevice
	if format == "" {
		switch goos {
		case "darwin":
			format = "avfoundation"
		case "linux":
			format = "pulse"
		default:
			return nil, fmt.Errorf("%w: no default capture format for %s", ErrDeviceUnavailable, goos)
		}
	}
	if device == "" {
		if format == "avfoundation" {
			device = ":0"
		} else {
			device = "default"
		}
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", format, "-i", device,
		"-ac", "1", "-ar", strconv.Itoa(cfg.SampleRate),
	}, nil
}

// startFFmpeg launches ffmpeg with output args appended and returns its stdout.
func startFFmpeg(cfg CaptureConfig, output ...string) (*exec.Cmd, io.ReadCloser, error) {
	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		return nil, nil, fmt.Errorf("%w: %s not found: %v", ErrDeviceUnavailable, cfg.FFmpegPath, err)
	}
	args, err := inputArgs(runtime.GOOS, cfg)
	if err != nil {
		return nil, nil, err
	}
	cmd := exec.Command(cfg.FFmpegPath, append(args, output...)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("%w: start ffmpeg: %v", ErrDeviceUnavailable, err)
	}
	return cmd, stdout, nil
}

func stopProcess(cmd *exec.Cmd) {
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
}

// FFmpegCapture reads mono float32 PCM from an ffmpeg subprocess.
// It is single-use: once stopped it cannot be started again.
type FFmpegCapture struct {
	cfg    CaptureConfig
	tap    *Analyser
	frames chan Frame

	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool
	done    chan struct{}
	once    sync.Once
}

// NewFFmpegCapture returns an unstarted capture.
func NewFFmpegCapture(cfg CaptureConfig) *FFmpegCapture {
	return &FFmpegCapture{
		cfg:    cfg.withDefaults(),
		tap:    NewAnalyser(),
		frames: make(chan Frame, 16),
		done:   make(chan struct{}),
	}
}

func (c *FFmpegCapture) Frames() <-chan Frame { return c.frames }
func (c *FFmpegCapture) Tap() *Analyser       { return c.tap }

func (c *FFmpegCapture) Start(ctx context.Context) error {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return errCaptureStopped
	default:
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	cmd, stdout, err := startFFmpeg(c.cfg, "-f", "f32le", "-")
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.cmd = cmd
	c.mu.Unlock()

	first := make(chan error, 1)
	go c.read(stdout, first)

	timer := time.NewTimer(c.cfg.StartupTimeout)
	defer timer.Stop()
	select {
	case err := <-first:
		if err != nil {
			c.Stop()
			return err
		}
	case <-timer.C:
		c.Stop()
		return fmt.Errorf("%w: no audio within %s", ErrDeviceUnavailable, c.cfg.StartupTimeout)
	case <-ctx.Done():
		c.Stop()
		return ctx.Err()
	}
	c.cfg.Logger.Debug("capture started",
		slog.Int("sample_rate", c.cfg.SampleRate),
		slog.Int("frame_size", c.cfg.FrameSize))
	return nil
}

func (c *FFmpegCapture) read(r io.Reader, first chan<- error) {
	defer close(c.frames)
	buf := make([]byte, 4*c.cfg.FrameSize)
	var offset int
	signalled := false
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if !signalled {
				first <- fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
			}
			return
		}
		if !signalled {
			signalled = true
			first <- nil
		}
		samples := make([]float32, c.cfg.FrameSize)
		for i := range samples {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
		}
		f := Frame{
			Samples:    samples,
			SampleRate: c.cfg.SampleRate,
			Timestamp:  SamplesDuration(offset, c.cfg.SampleRate),
		}
		offset += len(samples)
		c.tap.Observe(samples)
		select {
		case c.frames <- f:
		case <-c.done:
			return
		default:
			// consumer is behind; stale audio is not worth queueing
		}
	}
}

func (c *FFmpegCapture) Stop() error {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		cmd := c.cmd
		c.mu.Unlock()
		stopProcess(cmd)
	})
	return nil
}
