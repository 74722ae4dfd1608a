package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/steveyiyo/tutor-voice/internal/core/audio"
	"github.com/steveyiyo/tutor-voice/internal/core/session"
	"github.com/steveyiyo/tutor-voice/internal/core/turn"
)

// DefaultLiveURL is the Gemini Live bidirectional streaming endpoint.
const DefaultLiveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

var errCaptureEnded = errors.New("capture ended")

// Options configures a LiveClient.
type Options struct {
	APIKey string
	Model  string
	Voice  string
	URL    string

	// Device is the shared output device. Required.
	Device *audio.Device
	// Capture builds the microphone pipeline for one connection. Defaults to
	// an ffmpeg capture configured by CaptureConfig.
	Capture       func() audio.Capture
	CaptureConfig audio.CaptureConfig

	Policy           turn.Policy
	Dialer           *websocket.Dialer
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// LiveClient is the message-oriented Transport: PCM16 audio and JSON control
// messages over one websocket to Gemini Live.
type LiveClient struct {
	opts Options
	life *session.Lifecycle
	enc  *audio.Encoder
	log  *slog.Logger

	mu   sync.Mutex
	conn *liveConn
}

// liveConn is the per-connection half of a session.Context.
type liveConn struct {
	sc      *session.Context
	ws      *websocket.Conn
	capture audio.Capture

	writeMu sync.Mutex
}

// NewLiveClient returns an idle client.
func NewLiveClient(opts Options) *LiveClient {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.URL == "" {
		opts.URL = DefaultLiveURL
	}
	if opts.Dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = 10 * time.Second
		opts.Dialer = &d
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 15 * time.Second
	}
	if opts.Policy.WatchdogTimeout <= 0 {
		opts.Policy = turn.DefaultPolicy(true)
	}
	opts.Policy.AutoResponds = true
	if opts.Capture == nil {
		cc := opts.CaptureConfig
		if cc.Logger == nil {
			cc.Logger = opts.Logger
		}
		opts.Capture = func() audio.Capture { return audio.NewFFmpegCapture(cc) }
	}
	log := opts.Logger.With(slog.String("provider", "gemini"))
	return &LiveClient{
		opts: opts,
		life: session.NewLifecycle(log),
		enc:  audio.NewEncoder(audio.WireSampleRate),
		log:  log,
	}
}

func (c *LiveClient) State() session.State { return c.life.State() }

// Connect runs the handshake: microphone, playback, dial, setup, and waits
// for setupComplete before sending the greeting and starting the uplink.
func (c *LiveClient) Connect(ctx context.Context, cfg session.Config) error {
	sc, ok := c.life.Begin(cfg, c.opts.Policy, nil)
	if !ok {
		return nil
	}
	lc := &liveConn{sc: sc}

	lc.capture = c.opts.Capture()
	sc.Defer("microphone", lc.capture.Stop)
	if err := lc.capture.Start(ctx); err != nil {
		return c.life.Abort(sc, session.KindPermission, "microphone", err)
	}
	if !c.life.Alive(sc) {
		return session.Errorf(session.KindNegotiation, "connect", session.ErrAborted)
	}

	if err := c.openPlayback(sc); err != nil {
		return c.life.Abort(sc, session.KindPermission, "playback", err)
	}

	u, err := c.endpoint()
	if err != nil {
		return c.life.Abort(sc, session.KindNegotiation, "dial", err)
	}
	ws, _, err := c.opts.Dialer.DialContext(ctx, u, nil)
	if err != nil {
		return c.life.Abort(sc, session.KindNegotiation, "dial", err)
	}
	lc.ws = ws
	sc.Defer("socket", func() error { return closeSocket(ws) })
	if !c.life.Alive(sc) {
		return session.Errorf(session.KindNegotiation, "connect", session.ErrAborted)
	}

	c.mu.Lock()
	c.conn = lc
	c.mu.Unlock()
	sc.Defer("connection", func() error {
		c.mu.Lock()
		if c.conn == lc {
			c.conn = nil
		}
		c.mu.Unlock()
		return nil
	})

	if err := lc.write(setupMessage(c.opts.Model, c.opts.Voice, cfg.Instructions())); err != nil {
		return c.life.Abort(sc, session.KindNegotiation, "setup", err)
	}

	ready := make(chan error, 1)
	go c.read(lc, ready)

	timer := time.NewTimer(c.opts.HandshakeTimeout)
	defer timer.Stop()
	select {
	case err := <-ready:
		if err != nil {
			return c.life.Abort(sc, session.KindNegotiation, "setup", err)
		}
	case <-timer.C:
		return c.life.Abort(sc, session.KindNegotiation, "setup",
			fmt.Errorf("no setupComplete within %s", c.opts.HandshakeTimeout))
	case <-ctx.Done():
		return c.life.Abort(sc, session.KindNegotiation, "setup", ctx.Err())
	}

	if !c.life.Established(sc) {
		return session.Errorf(session.KindNegotiation, "connect", session.ErrAborted)
	}
	if err := c.greet(lc); err != nil {
		return err
	}
	go c.uplink(lc)
	return nil
}

// greet sends the one greeting turn of a connection. A failed write ends the
// session and is returned to the Connect caller like any handshake failure.
func (c *LiveClient) greet(lc *liveConn) error {
	if !lc.sc.MarkGreeted() {
		return nil
	}
	if err := lc.write(greetingMessage()); err != nil {
		return c.life.Abort(lc.sc, session.KindTransport, "greeting", err)
	}
	return nil
}

func (c *LiveClient) endpoint() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse live url: %w", err)
	}
	if c.opts.APIKey != "" {
		q := u.Query()
		q.Set("key", c.opts.APIKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *LiveClient) openPlayback(sc *session.Context) error {
	dev := c.opts.Device
	if dev == nil {
		return errors.New("no output device")
	}
	if err := dev.Open(); err != nil {
		return err
	}
	sc.Defer("output device", dev.Close)
	sink, err := dev.OpenSink(audio.SinkFormat{Codec: audio.CodecPCM16, SampleRate: audio.OutputSampleRate})
	if err != nil {
		return err
	}
	sc.Defer("output sink", sink.Close)
	sched := audio.NewScheduler(dev, sink, audio.OutputSampleRate, sc.Log)
	sc.Defer("scheduler", func() error { sched.Close(); return nil })
	sc.SetPlayback(sched)
	return nil
}

// read owns the socket's read side for one connection. ready receives the
// handshake outcome exactly once.
func (c *LiveClient) read(lc *liveConn, ready chan<- error) {
	sc := lc.sc
	dec := newDecoder()
	handshaking := true
	for {
		_, data, err := lc.ws.ReadMessage()
		if err != nil {
			if handshaking {
				ready <- err
				return
			}
			if c.life.Alive(sc) {
				c.life.Fail(sc, session.Errorf(session.KindTransport, "read", err))
			}
			return
		}
		if !c.life.Alive(sc) {
			if handshaking {
				ready <- session.ErrAborted
			}
			return
		}
		setupDone, events, err := dec.decode(data)
		if err != nil {
			sc.Log.Debug("inbound message dropped", slog.String("error", err.Error()))
			continue
		}
		if setupDone && handshaking {
			handshaking = false
			ready <- nil
		}
		for _, ev := range events {
			c.life.Dispatch(sc, ev)
		}
	}
}

// uplink encodes captured frames until the capture stops or the session ends.
func (c *LiveClient) uplink(lc *liveConn) {
	for f := range lc.capture.Frames() {
		if !c.life.Connected(lc.sc) {
			return
		}
		if err := lc.write(audioMessage(c.enc.Encode(f))); err != nil {
			c.life.Fail(lc.sc, session.Errorf(session.KindTransport, "send audio", err))
			return
		}
	}
	if c.life.Connected(lc.sc) {
		c.life.Fail(lc.sc, session.Errorf(session.KindPermission, "microphone", errCaptureEnded))
	}
}

// Send forwards one chunk on the current connection. It is a no-op unless
// connected.
func (c *LiveClient) Send(chunk audio.Chunk) {
	c.mu.Lock()
	lc := c.conn
	c.mu.Unlock()
	if lc == nil || !c.life.Connected(lc.sc) {
		return
	}
	if err := lc.write(audioMessage(chunk)); err != nil {
		c.life.Fail(lc.sc, session.Errorf(session.KindTransport, "send audio", err))
	}
}

func (c *LiveClient) Disconnect() { c.life.End() }

func (c *LiveClient) InputTap() *audio.Analyser {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.capture.Tap()
}

func (c *LiveClient) OutputTap() *audio.Analyser {
	sc := c.life.Current()
	if sc == nil {
		return nil
	}
	if p := sc.Playback(); p != nil {
		return p.Tap()
	}
	return nil
}

func (lc *liveConn) write(m clientMessage) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	lc.writeMu.Lock()
	defer lc.writeMu.Unlock()
	return lc.ws.WriteMessage(websocket.TextMessage, b)
}

func closeSocket(ws *websocket.Conn) error {
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return ws.Close()
}

var _ session.Transport = (*LiveClient)(nil)
