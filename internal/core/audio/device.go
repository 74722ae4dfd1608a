package audio

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// ErrDeviceClosed is returned when a sink is requested from a device nobody holds open.
var ErrDeviceClosed = errors.New("audio output device is not open")

// Clock is a playback clock: time elapsed on the output device.
type Clock interface {
	Now() time.Duration
}

// Sink consumes encoded output in the format it was opened with.
type Sink interface {
	io.Writer
	Close() error
}

// SinkFormat describes what a Sink will be fed.
type SinkFormat struct {
	Codec      string // CodecPCM16 or CodecOggOpus
	SampleRate int
}

const (
	CodecPCM16   = "s16le"
	CodecOggOpus = "ogg"
)

// SinkOpener creates output sinks. FFplay is the production opener.
type SinkOpener interface {
	OpenSink(SinkFormat) (Sink, error)
}

// Device is the process-wide audio output. The first Open initialises it and
// starts its clock; the last Close tears down every sink still open.
type Device struct {
	opener SinkOpener
	now    func() time.Time

	mu      sync.Mutex
	refs    int
	started time.Time
	sinks   map[*trackedSink]struct{}
}

// NewDevice returns a closed device backed by opener.
func NewDevice(opener SinkOpener) *Device {
	return &Device{
		opener: opener,
		now:    time.Now,
		sinks:  make(map[*trackedSink]struct{}),
	}
}

// Open takes a reference on the device.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refs == 0 {
		d.started = d.now()
	}
	d.refs++
	return nil
}

// Close drops a reference; extra calls are ignored.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.refs == 0 {
		d.mu.Unlock()
		return nil
	}
	d.refs--
	if d.refs > 0 {
		d.mu.Unlock()
		return nil
	}
	sinks := make([]*trackedSink, 0, len(d.sinks))
	for s := range d.sinks {
		sinks = append(sinks, s)
	}
	d.started = time.Time{}
	d.mu.Unlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Refs reports how many holders have the device open.
func (d *Device) Refs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refs
}

// Now implements Clock. It is zero while the device is closed.
func (d *Device) Now() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refs == 0 {
		return 0
	}
	return d.now().Sub(d.started)
}

// OpenSink opens an output on the device. The sink is closed with the device
// if its owner has not closed it first.
func (d *Device) OpenSink(f SinkFormat) (Sink, error) {
	d.mu.Lock()
	if d.refs == 0 {
		d.mu.Unlock()
		return nil, ErrDeviceClosed
	}
	d.mu.Unlock()

	s, err := d.opener.OpenSink(f)
	if err != nil {
		return nil, err
	}
	t := &trackedSink{Sink: s, dev: d}
	d.mu.Lock()
	d.sinks[t] = struct{}{}
	d.mu.Unlock()
	return t, nil
}

type trackedSink struct {
	Sink
	dev  *Device
	once sync.Once
	err  error
}

func (t *trackedSink) Close() error {
	t.once.Do(func() {
		t.dev.mu.Lock()
		delete(t.dev.sinks, t)
		t.dev.mu.Unlock()
		t.err = t.Sink.Close()
	})
	return t.err
}

// FFplay opens sinks as ffplay subprocesses reading stdin.
type FFplay struct {
	Path string
}

func (p FFplay) OpenSink(f SinkFormat) (Sink, error) {
	path := p.Path
	if path == "" {
		path = "ffplay"
	}
	if _, err := exec.LookPath(path); err != nil {
		return nil, fmt.Errorf("%s is required for playback: %w", path, err)
	}
	args := []string{"-nodisp", "-autoexit", "-loglevel", "error"}
	switch f.Codec {
	case CodecPCM16:
		args = append(args, "-f", "s16le", "-ar", strconv.Itoa(f.SampleRate), "-ac", "1")
	case CodecOggOpus:
		args = append(args, "-f", "ogg")
	default:
		return nil, fmt.Errorf("unsupported sink codec %q", f.Codec)
	}
	args = append(args, "-i", "pipe:0")

	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffplay stdin: %w", err)
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffplay: %w", err)
	}
	return &ffplaySink{cmd: cmd, stdin: stdin}, nil
}

type ffplaySink struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func (s *ffplaySink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdin == nil {
		return 0, errors.New("ffplay sink is closed")
	}
	return s.stdin.Write(p)
}

func (s *ffplaySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}
	stopProcess(s.cmd)
	s.cmd = nil
	return nil
}
