package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"

	"github.com/steveyiyo/tutor-voice/internal/core/audio"
	"github.com/steveyiyo/tutor-voice/internal/core/session"
	"github.com/steveyiyo/tutor-voice/internal/core/turn"
	"github.com/steveyiyo/tutor-voice/pkg/types"
)

// DefaultRealtimeURL accepts SDP offers for realtime sessions.
const DefaultRealtimeURL = "https://api.openai.com/v1/realtime"

const eventsLabel = "oai-events"

var errChannelClosed = errors.New("event channel closed")

// Options configures a RealtimeSession.
type Options struct {
	// Credentials is usually a RelayClient.
	Credentials CredentialSource
	RealtimeURL string
	Voice       string
	// ICEServers are used when the credential carries none.
	ICEServers []string

	// Device is the shared output device. Required.
	Device *audio.Device
	// Capture builds the Opus microphone pipeline for one connection.
	Capture       func() audio.OpusSource
	CaptureConfig audio.CaptureConfig

	Policy           turn.Policy
	HTTPClient       *http.Client
	HandshakeTimeout time.Duration
	Logger           *slog.Logger

	newPeerConnection func(webrtc.Configuration) (*webrtc.PeerConnection, error)
}

// RealtimeSession is the peer-connection Transport: microphone Opus on a
// media track, model audio on the remote track, and JSON control events on
// the "oai-events" data channel.
type RealtimeSession struct {
	opts Options
	life *session.Lifecycle
	log  *slog.Logger

	mu   sync.Mutex
	conn *rtcConn
}

// rtcConn is the per-connection half of a session.Context.
type rtcConn struct {
	sc      *session.Context
	capture audio.OpusSource
	pc      *webrtc.PeerConnection
	track   *webrtc.TrackLocalStaticSample

	mu     sync.Mutex
	dc     *webrtc.DataChannel
	outTap *audio.Analyser
}

func NewRealtimeSession(opts Options) *RealtimeSession {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RealtimeURL == "" {
		opts.RealtimeURL = DefaultRealtimeURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 20 * time.Second
	}
	if opts.Policy.WatchdogTimeout <= 0 {
		opts.Policy = turn.DefaultPolicy(false)
	}
	opts.Policy.AutoResponds = false
	if opts.Capture == nil {
		cc := opts.CaptureConfig
		if cc.Logger == nil {
			cc.Logger = opts.Logger
		}
		opts.Capture = func() audio.OpusSource { return audio.NewOggOpusCapture(cc) }
	}
	if opts.newPeerConnection == nil {
		opts.newPeerConnection = webrtc.NewPeerConnection
	}
	log := opts.Logger.With(slog.String("provider", "openai"))
	return &RealtimeSession{
		opts: opts,
		life: session.NewLifecycle(log),
		log:  log,
	}
}

func (s *RealtimeSession) State() session.State { return s.life.State() }

// Connect acquires the microphone, fetches a credential, negotiates the peer
// connection and waits for the event channel to open. Session configuration
// and the greeting are sent once it is open.
func (s *RealtimeSession) Connect(ctx context.Context, cfg session.Config) error {
	rc := &rtcConn{}
	sc, ok := s.life.Begin(cfg, s.opts.Policy, func() error { return rc.send(newResponseCreate()) })
	if !ok {
		return nil
	}
	rc.sc = sc

	rc.capture = s.opts.Capture()
	sc.Defer("microphone", rc.capture.Stop)
	if err := rc.capture.Start(ctx); err != nil {
		return s.life.Abort(sc, session.KindPermission, "microphone", err)
	}
	if !s.life.Alive(sc) {
		return session.Errorf(session.KindNegotiation, "connect", session.ErrAborted)
	}

	dev := s.opts.Device
	if dev == nil {
		return s.life.Abort(sc, session.KindPermission, "playback", errors.New("no output device"))
	}
	if err := dev.Open(); err != nil {
		return s.life.Abort(sc, session.KindPermission, "playback", err)
	}
	sc.Defer("output device", dev.Close)

	cred, err := s.opts.Credentials.FetchCredential(ctx)
	if err != nil {
		return s.life.Abort(sc, session.KindNegotiation, "credential", err)
	}
	if !s.life.Alive(sc) {
		return session.Errorf(session.KindNegotiation, "connect", session.ErrAborted)
	}

	opened, failed, err := s.negotiate(ctx, rc, cred)
	if err != nil {
		return s.life.Abort(sc, session.KindNegotiation, "negotiate", err)
	}

	timer := time.NewTimer(s.opts.HandshakeTimeout)
	defer timer.Stop()
	select {
	case <-opened:
	case err := <-failed:
		return s.life.Abort(sc, session.KindNegotiation, "negotiate", err)
	case <-timer.C:
		return s.life.Abort(sc, session.KindNegotiation, "negotiate",
			fmt.Errorf("event channel not open within %s", s.opts.HandshakeTimeout))
	case <-ctx.Done():
		return s.life.Abort(sc, session.KindNegotiation, "negotiate", ctx.Err())
	}

	if !s.life.Established(sc) {
		return session.Errorf(session.KindNegotiation, "connect", session.ErrAborted)
	}
	if err := s.configure(rc, cfg); err != nil {
		return err
	}
	go s.uplink(rc)
	return nil
}

// configure sends session.update and then the greeting request. A failed send
// ends the session and is returned to the Connect caller.
func (s *RealtimeSession) configure(rc *rtcConn, cfg session.Config) error {
	if err := rc.send(newSessionUpdate(cfg.Instructions(), s.opts.Voice)); err != nil {
		return s.life.Abort(rc.sc, session.KindTransport, "session.update", err)
	}
	if !rc.sc.MarkGreeted() {
		return nil
	}
	if err := rc.send(newGreeting()); err != nil {
		return s.life.Abort(rc.sc, session.KindTransport, "greeting", err)
	}
	return nil
}

// negotiate builds the peer connection and runs the offer/answer exchange.
// opened fires when the event channel opens; failed carries a connection
// failure seen before that.
func (s *RealtimeSession) negotiate(ctx context.Context, rc *rtcConn, cred types.SessionResp) (<-chan struct{}, <-chan error, error) {
	sc := rc.sc
	pc, err := s.opts.newPeerConnection(webrtc.Configuration{ICEServers: s.iceServers(cred)})
	if err != nil {
		return nil, nil, fmt.Errorf("new peer connection: %w", err)
	}
	rc.pc = pc
	sc.Defer("peer connection", pc.Close)

	s.mu.Lock()
	s.conn = rc
	s.mu.Unlock()
	sc.Defer("connection", func() error {
		s.mu.Lock()
		if s.conn == rc {
			s.conn = nil
		}
		s.mu.Unlock()
		return nil
	})

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: audio.OpusSampleRate, Channels: 2},
		"audio", "tutor-"+uuid.NewString())
	if err != nil {
		return nil, nil, fmt.Errorf("new local track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		return nil, nil, fmt.Errorf("add track: %w", err)
	}
	rc.track = track

	dc, err := pc.CreateDataChannel(eventsLabel, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create data channel: %w", err)
	}
	sc.Defer("event channel", dc.Close)

	opened := make(chan struct{})
	failed := make(chan error, 1)
	var openOnce sync.Once
	dc.OnOpen(func() {
		rc.mu.Lock()
		rc.dc = dc
		rc.mu.Unlock()
		openOnce.Do(func() { close(opened) })
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if !msg.IsString {
			return
		}
		ev, err := classify(msg.Data)
		if err != nil {
			sc.Log.Debug("inbound event dropped", slog.String("error", err.Error()))
			return
		}
		s.life.Dispatch(sc, ev)
	})
	// Teardown closes the peer connection, which must not happen on a pion
	// callback goroutine; failures are handed off.
	dc.OnClose(func() {
		if s.life.Connected(sc) {
			go s.life.Fail(sc, session.Errorf(session.KindTransport, "event channel", errChannelClosed))
		}
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		go s.play(rc, remote)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		sc.Log.Debug("peer connection state", slog.String("state", state.String()))
		if state != webrtc.PeerConnectionStateFailed && state != webrtc.PeerConnectionStateClosed {
			return
		}
		err := fmt.Errorf("peer connection %s", state)
		if s.life.Connected(sc) {
			go s.life.Fail(sc, session.Errorf(session.KindTransport, "peer connection", err))
			return
		}
		select {
		case failed <- err:
		default:
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return nil, nil, fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	if !s.life.Alive(sc) {
		return nil, nil, session.ErrAborted
	}

	answer, err := s.exchange(ctx, cred, pc.LocalDescription().SDP)
	if err != nil {
		return nil, nil, err
	}
	if !s.life.Alive(sc) {
		return nil, nil, session.ErrAborted
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		return nil, nil, fmt.Errorf("set remote description: %w", err)
	}
	return opened, failed, nil
}

// exchange posts the offer SDP and returns the answer SDP.
func (s *RealtimeSession) exchange(ctx context.Context, cred types.SessionResp, offer string) (string, error) {
	u, err := url.Parse(s.opts.RealtimeURL)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	q.Set("model", cred.Model)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(offer))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+cred.ClientSecret)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sdp exchange: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("sdp exchange: read answer: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("sdp exchange: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return "", errors.New("sdp exchange: empty answer")
	}
	return string(body), nil
}

func (s *RealtimeSession) iceServers(cred types.SessionResp) []webrtc.ICEServer {
	var out []webrtc.ICEServer
	for _, srv := range cred.ICEServers {
		if len(srv.URLs) > 0 {
			out = append(out, webrtc.ICEServer{URLs: srv.URLs})
		}
	}
	if len(out) == 0 && len(s.opts.ICEServers) > 0 {
		out = append(out, webrtc.ICEServer{URLs: s.opts.ICEServers})
	}
	return out
}

// uplink feeds captured Opus packets to the local track.
func (s *RealtimeSession) uplink(rc *rtcConn) {
	for p := range rc.capture.Packets() {
		if !s.life.Connected(rc.sc) {
			return
		}
		if err := rc.track.WriteSample(media.Sample{Data: p.Data, Duration: p.Duration}); err != nil {
			rc.sc.Log.Debug("sample dropped", slog.String("error", err.Error()))
		}
	}
	if s.life.Connected(rc.sc) {
		s.life.Fail(rc.sc, session.Errorf(session.KindPermission, "microphone", errors.New("capture ended")))
	}
}

// play writes the remote track into an Ogg sink on the output device. The
// output analyser is created with the first remote track.
func (s *RealtimeSession) play(rc *rtcConn, remote *webrtc.TrackRemote) {
	sc := rc.sc
	if !s.life.Alive(sc) {
		return
	}
	sink, err := s.opts.Device.OpenSink(audio.SinkFormat{Codec: audio.CodecOggOpus, SampleRate: audio.OpusSampleRate})
	if err != nil {
		sc.Log.Warn("remote audio not playable", slog.String("error", err.Error()))
		return
	}
	sc.Defer("output sink", sink.Close)
	w, err := oggwriter.NewWith(sink, audio.OpusSampleRate, 1)
	if err != nil {
		sc.Log.Warn("remote audio not playable", slog.String("error", err.Error()))
		return
	}
	defer w.Close()

	rc.mu.Lock()
	if rc.outTap == nil {
		rc.outTap = audio.NewAnalyser()
	}
	tap := rc.outTap
	rc.mu.Unlock()

	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			return
		}
		if !s.life.Alive(sc) {
			return
		}
		tap.ObserveBytes(len(pkt.Payload))
		if err := w.WriteRTP(pkt); err != nil {
			sc.Log.Debug("remote audio write failed", slog.String("error", err.Error()))
			return
		}
	}
}

func (rc *rtcConn) send(v any) error {
	rc.mu.Lock()
	dc := rc.dc
	rc.mu.Unlock()
	if dc == nil {
		return session.ErrNotConnected
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return dc.SendText(string(b))
}

// Send is a no-op: microphone audio reaches the provider on the media track.
func (s *RealtimeSession) Send(audio.Chunk) {}

func (s *RealtimeSession) Disconnect() { s.life.End() }

func (s *RealtimeSession) InputTap() *audio.Analyser {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.capture.Tap()
}

func (s *RealtimeSession) OutputTap() *audio.Analyser {
	s.mu.Lock()
	rc := s.conn
	s.mu.Unlock()
	if rc == nil {
		return nil
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.outTap
}

var _ session.Transport = (*RealtimeSession)(nil)
