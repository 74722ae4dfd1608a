package session

import (
	"log/slog"
	"sync"

	"github.com/steveyiyo/tutor-voice/internal/core/turn"
)

// Lifecycle is the state machine shared by both transports. All transitions
// go through it; the current Context is the session identity that async
// continuations are checked against.
type Lifecycle struct {
	log *slog.Logger

	mu      sync.Mutex
	state   State
	current *Context
}

func NewLifecycle(log *slog.Logger) *Lifecycle {
	if log == nil {
		log = slog.Default()
	}
	return &Lifecycle{log: log}
}

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Current returns the active context, or nil when idle.
func (l *Lifecycle) Current() *Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Begin moves Idle to Connecting and returns the new context. ok is false,
// and nothing changes, when the lifecycle is not idle.
func (l *Lifecycle) Begin(cfg Config, policy turn.Policy, request func() error, opts ...turn.Option) (*Context, bool) {
	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return nil, false
	}
	sc := newContext(cfg, l.log)
	opts = append([]turn.Option{turn.WithLogger(sc.Log)}, opts...)
	sc.Turns = turn.New(policy, cfg.userTranscript, request, opts...)
	l.current = sc
	l.state = StateConnecting
	l.mu.Unlock()

	sc.Log.Info("session connecting")
	notify(cfg, StateConnecting)
	return sc, true
}

// Alive reports whether sc is still the active session.
func (l *Lifecycle) Alive(sc *Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sc != nil && l.current == sc
}

// Established moves Connecting to Connected for sc. It returns false if sc
// has been superseded.
func (l *Lifecycle) Established(sc *Context) bool {
	l.mu.Lock()
	if l.current != sc || l.state != StateConnecting {
		l.mu.Unlock()
		return false
	}
	l.state = StateConnected
	l.mu.Unlock()

	sc.Log.Info("session connected")
	notify(sc.Config, StateConnected)
	return true
}

// Connected reports whether sc is the active, established session.
func (l *Lifecycle) Connected(sc *Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sc != nil && l.current == sc && l.state == StateConnected
}

// End tears down the active session, if any, and returns to Idle.
func (l *Lifecycle) End() {
	l.mu.Lock()
	sc := l.current
	if sc == nil {
		l.mu.Unlock()
		return
	}
	l.end(sc)
}

// EndIf is End restricted to sc; a stale context is ignored.
func (l *Lifecycle) EndIf(sc *Context) bool {
	l.mu.Lock()
	if sc == nil || l.current != sc {
		l.mu.Unlock()
		return false
	}
	l.end(sc)
	return true
}

// end is entered with l.mu held and releases it.
func (l *Lifecycle) end(sc *Context) {
	l.current = nil
	l.state = StateClosing
	l.mu.Unlock()

	sc.Log.Info("session closing")
	notify(sc.Config, StateClosing)
	sc.teardown()

	l.mu.Lock()
	if l.current == nil {
		l.state = StateIdle
	}
	l.mu.Unlock()
	notify(sc.Config, StateIdle)
}

// Fail ends sc, if still active, and surfaces err through OnError. Used for
// failures of an established session.
func (l *Lifecycle) Fail(sc *Context, err error) {
	if !l.EndIf(sc) {
		return
	}
	sc.Log.Warn("session failed", slog.String("error", err.Error()))
	sc.Config.fail(err)
}

// Abort rolls back a failed Connect for sc and returns the error to hand the
// caller. If sc was already superseded the result is ErrAborted.
func (l *Lifecycle) Abort(sc *Context, kind Kind, op string, err error) error {
	if !l.EndIf(sc) {
		return Errorf(kind, op, ErrAborted)
	}
	sc.Log.Warn("connect failed", slog.String("op", op), slog.String("error", err.Error()))
	return Errorf(kind, op, err)
}

// Dispatch routes one classified inbound event for sc. Events for a
// superseded context are dropped.
func (l *Lifecycle) Dispatch(sc *Context, ev Event) {
	if !l.Alive(sc) {
		return
	}
	switch ev.Kind {
	case EventTranscript:
		switch {
		case ev.Role != RoleUser:
			sc.Config.agentTranscript(ev.Text)
		case ev.Delta:
			sc.Config.userTranscript(ev.Text)
		default:
			sc.Turns.OnUserUtteranceComplete(ev.Text)
		}
	case EventUtterance:
		sc.Turns.OnStreamedUtterance(ev.Text)
	case EventAudio:
		if p := sc.Playback(); p != nil {
			p.Schedule(ev.Audio)
		}
	case EventResponse:
		switch ev.Phase {
		case PhaseCreated:
			sc.Turns.OnAgentTurnStarted()
		case PhaseDone:
			sc.Turns.OnAgentTurnEnded()
		case PhaseInterrupted:
			sc.Turns.OnAgentTurnEnded()
			if p := sc.Playback(); p != nil {
				p.Reset()
			}
		case PhaseError:
			sc.Turns.OnAgentTurnEnded()
			sc.Log.Warn("provider reported response error", slog.String("error", ev.Text))
			sc.Config.fail(Errorf(KindProvider, "response", providerError(ev.Text, "response failed")))
		}
	case EventError:
		sc.Log.Warn("provider reported error", slog.String("error", ev.Text))
		sc.Config.fail(Errorf(KindProvider, "provider", providerError(ev.Text, "provider error")))
	case EventSession:
		sc.Log.Debug("session event", slog.String("name", ev.Text))
	default:
		sc.Log.Debug("inbound message ignored", slog.String("detail", ev.Text))
	}
}

func notify(cfg Config, s State) {
	if cfg.OnStateChange != nil {
		cfg.OnStateChange(s)
	}
}
