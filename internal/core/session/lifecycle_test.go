package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/matryer/is"

	"github.com/steveyiyo/tutor-voice/internal/core/turn"
)

type recorder struct {
	mu     sync.Mutex
	states []State
	users  []string
	agents []string
	errs   []error
}

func (r *recorder) config() Config {
	return Config{
		Question:      "2+2",
		CorrectAnswer: "4",
		OnUserTranscript: func(s string) {
			r.mu.Lock()
			r.users = append(r.users, s)
			r.mu.Unlock()
		},
		OnAgentTranscript: func(s string) {
			r.mu.Lock()
			r.agents = append(r.agents, s)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		OnStateChange: func(s State) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
	}
}

func begin(t *testing.T, l *Lifecycle, cfg Config) *Context {
	t.Helper()
	sc, ok := l.Begin(cfg, turn.DefaultPolicy(true), func() error { return nil })
	if !ok {
		t.Fatal("begin refused")
	}
	return sc
}

func TestLifecycleHappyPath(t *testing.T) {
	is := is.New(t)
	rec := &recorder{}
	l := NewLifecycle(nil)

	sc := begin(t, l, rec.config())
	is.Equal(l.State(), StateConnecting)
	is.True(sc.ID != "")
	is.True(l.Established(sc))
	is.Equal(l.State(), StateConnected)
	is.True(l.Connected(sc))

	l.End()
	is.Equal(l.State(), StateIdle)
	is.Equal(rec.states, []State{StateConnecting, StateConnected, StateClosing, StateIdle})
}

func TestBeginWhileActiveIsNoop(t *testing.T) {
	is := is.New(t)
	l := NewLifecycle(nil)
	sc := begin(t, l, Config{})

	again, ok := l.Begin(Config{}, turn.DefaultPolicy(true), nil)
	is.True(!ok)
	is.True(again == nil)
	is.True(l.Current() == sc)
}

func TestEndIsIdempotent(t *testing.T) {
	is := is.New(t)
	l := NewLifecycle(nil)
	l.End() // idle: nothing to do

	sc := begin(t, l, Config{})
	calls := 0
	sc.Defer("thing", func() error { calls++; return nil })

	l.End()
	l.End()
	is.True(!l.EndIf(sc))
	is.Equal(calls, 1)
	is.Equal(l.State(), StateIdle)
}

func TestTeardownRunsInReverse(t *testing.T) {
	is := is.New(t)
	l := NewLifecycle(nil)
	sc := begin(t, l, Config{})

	var order []string
	for _, name := range []string{"mic", "socket", "playback"} {
		name := name
		sc.Defer(name, func() error {
			order = append(order, name)
			if name == "socket" {
				return errors.New("already closed")
			}
			return nil
		})
	}
	l.End()
	is.Equal(order, []string{"playback", "socket", "mic"})
}

func TestDeferAfterTeardownRunsImmediately(t *testing.T) {
	is := is.New(t)
	l := NewLifecycle(nil)
	sc := begin(t, l, Config{})
	l.End()

	released := false
	sc.Defer("late", func() error { released = true; return nil })
	is.True(released)
}

func TestStaleContextCannotEstablish(t *testing.T) {
	is := is.New(t)
	l := NewLifecycle(nil)
	old := begin(t, l, Config{})
	l.End()
	fresh := begin(t, l, Config{})

	is.True(!l.Alive(old))
	is.True(!l.Established(old))
	is.True(l.Alive(fresh))
	is.Equal(l.State(), StateConnecting)
}

func TestAbortSupersededReturnsAborted(t *testing.T) {
	is := is.New(t)
	l := NewLifecycle(nil)
	sc := begin(t, l, Config{})
	l.End()

	err := l.Abort(sc, KindNegotiation, "dial", errors.New("boom"))
	is.True(errors.Is(err, ErrAborted))
	is.True(IsKind(err, KindNegotiation))
}

func TestAbortActive(t *testing.T) {
	is := is.New(t)
	rec := &recorder{}
	l := NewLifecycle(nil)
	sc := begin(t, l, rec.config())

	err := l.Abort(sc, KindPermission, "microphone", errors.New("denied"))
	is.True(IsKind(err, KindPermission))
	is.Equal(l.State(), StateIdle)
	is.Equal(len(rec.errs), 0) // returned, not reported twice
}

func TestFailReportsOnce(t *testing.T) {
	is := is.New(t)
	rec := &recorder{}
	l := NewLifecycle(nil)
	sc := begin(t, l, rec.config())
	l.Established(sc)

	err := Errorf(KindTransport, "read", errors.New("closed"))
	l.Fail(sc, err)
	l.Fail(sc, err)
	is.Equal(len(rec.errs), 1)
	is.True(IsKind(rec.errs[0], KindTransport))
	is.Equal(l.State(), StateIdle)
}

func TestDispatch(t *testing.T) {
	is := is.New(t)
	rec := &recorder{}
	l := NewLifecycle(nil)
	sc := begin(t, l, rec.config())
	l.Established(sc)

	l.Dispatch(sc, Transcript(RoleUser, "is it four"))
	l.Dispatch(sc, Transcript(RoleUser, "is it four"))
	l.Dispatch(sc, Transcript(RoleAgent, "Good "))
	l.Dispatch(sc, Response(PhaseCreated))
	is.True(sc.Turns.Responding())
	l.Dispatch(sc, Response(PhaseDone))
	is.True(!sc.Turns.Responding())
	l.Dispatch(sc, ResponseError("rate limited"))
	l.Dispatch(sc, Ignored("rate_limits.updated"))

	is.Equal(rec.users, []string{"is it four"})
	is.Equal(rec.agents, []string{"Good "})
	is.Equal(len(rec.errs), 1)
	is.True(IsKind(rec.errs[0], KindProvider))
}

func TestDispatchDropsStaleEvents(t *testing.T) {
	is := is.New(t)
	rec := &recorder{}
	l := NewLifecycle(nil)
	sc := begin(t, l, rec.config())
	l.End()

	l.Dispatch(sc, Transcript(RoleAgent, "late"))
	is.Equal(len(rec.agents), 0)
}

func TestMarkGreetedOnce(t *testing.T) {
	is := is.New(t)
	l := NewLifecycle(nil)
	sc := begin(t, l, Config{})
	is.True(sc.MarkGreeted())
	is.True(!sc.MarkGreeted())
}

func TestDispatchUserDeltas(t *testing.T) {
	is := is.New(t)
	rec := &recorder{}
	l := NewLifecycle(nil)
	sc := begin(t, l, rec.config())
	l.Established(sc)

	l.Dispatch(sc, UserDelta(" two"))
	l.Dispatch(sc, UserDelta(" two"))
	l.Dispatch(sc, UtteranceEnd("two two"))
	l.Dispatch(sc, Response(PhaseDone))
	l.Dispatch(sc, UserDelta(" wait")) // right after the agent finished

	is.Equal(rec.users, []string{" two", " two", " wait"})
}

func TestDispatchProviderErrorLeavesTurn(t *testing.T) {
	is := is.New(t)
	rec := &recorder{}
	l := NewLifecycle(nil)
	sc := begin(t, l, rec.config())
	l.Established(sc)

	l.Dispatch(sc, Response(PhaseCreated))
	l.Dispatch(sc, ProviderError("unknown parameter"))
	is.True(sc.Turns.Responding())
	is.Equal(len(rec.errs), 1)
	is.True(IsKind(rec.errs[0], KindProvider))
	is.Equal(l.State(), StateConnected)
}
