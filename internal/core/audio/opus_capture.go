package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/pion/webrtc/v3/pkg/media/oggreader"
)

// OpusSource is a microphone pipeline whose encoding happens below us, in the
// capture tool, and which yields Opus packets ready for a media track.
type OpusSource interface {
	Start(ctx context.Context) error
	Packets() <-chan OpusPacket
	Tap() *Analyser
	Stop() error
}

// OggOpusCapture runs ffmpeg with libopus and demuxes its Ogg output.
type OggOpusCapture struct {
	cfg     CaptureConfig
	tap     *Analyser
	packets chan OpusPacket

	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool
	done    chan struct{}
	once    sync.Once
}

// NewOggOpusCapture returns an unstarted capture. The sample rate is forced to 48 kHz.
func NewOggOpusCapture(cfg CaptureConfig) *OggOpusCapture {
	cfg.SampleRate = OpusSampleRate
	return &OggOpusCapture{
		cfg:     cfg.withDefaults(),
		tap:     NewAnalyser(),
		packets: make(chan OpusPacket, 32),
		done:    make(chan struct{}),
	}
}

func (c *OggOpusCapture) Packets() <-chan OpusPacket { return c.packets }
func (c *OggOpusCapture) Tap() *Analyser             { return c.tap }

func (c *OggOpusCapture) Start(ctx context.Context) error {
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
	cmd, stdout, err := startFFmpeg(c.cfg,
		"-c:a", "libopus", "-b:a", "32k",
		"-frame_duration", "20", "-page_duration", "20000",
		"-f", "ogg", "-")
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.cmd = cmd
	c.mu.Unlock()

	type opened struct {
		r   *oggreader.OggReader
		err error
	}
	ready := make(chan opened, 1)
	go func() {
		r, _, err := oggreader.NewWith(stdout)
		ready <- opened{r: r, err: err}
	}()

	timer := time.NewTimer(c.cfg.StartupTimeout)
	defer timer.Stop()
	select {
	case o := <-ready:
		if o.err != nil {
			c.Stop()
			return fmt.Errorf("%w: %v", ErrDeviceUnavailable, o.err)
		}
		go c.read(o.r)
	case <-timer.C:
		c.Stop()
		return fmt.Errorf("%w: no audio within %s", ErrDeviceUnavailable, c.cfg.StartupTimeout)
	case <-ctx.Done():
		c.Stop()
		return ctx.Err()
	}
	c.cfg.Logger.Debug("opus capture started")
	return nil
}

func (c *OggOpusCapture) read(r *oggreader.OggReader) {
	defer close(c.packets)
	var lastGranule uint64
	for {
		page, header, err := r.ParseNextPage()
		if err != nil {
			if err != io.EOF {
				c.cfg.Logger.Debug("opus capture ended", slog.String("error", err.Error()))
			}
			return
		}
		if bytes.HasPrefix(page, []byte("OpusTags")) {
			continue
		}
		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		p := OpusPacket{
			Data:     page,
			Duration: SamplesDuration(int(samples), OpusSampleRate),
		}
		c.tap.ObserveBytes(len(page))
		select {
		case c.packets <- p:
		case <-c.done:
			return
		}
	}
}

func (c *OggOpusCapture) Stop() error {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		cmd := c.cmd
		c.mu.Unlock()
		stopProcess(cmd)
	})
	return nil
}
