package session

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/steveyiyo/tutor-voice/internal/core/audio"
	"github.com/steveyiyo/tutor-voice/internal/core/turn"
)

// Context is everything owned by one connection attempt. It is created by
// Lifecycle.Begin and torn down exactly once; callbacks that outlive it check
// Lifecycle.Alive before touching shared state.
type Context struct {
	ID     string
	Config Config
	Turns  *turn.Coordinator
	Log    *slog.Logger

	mu       sync.Mutex
	cleanups []cleanup
	torn     bool
	playback *audio.Scheduler
	greeted  atomic.Bool
}

type cleanup struct {
	name string
	fn   func() error
}

func newContext(cfg Config, log *slog.Logger) *Context {
	id := uuid.NewString()
	return &Context{
		ID:     id,
		Config: cfg,
		Log:    log.With(slog.String("session_id", id)),
	}
}

// Defer registers a release step. Steps run in reverse order of
// registration. Registering on a context already torn down runs fn at once,
// so a resource acquired by a late continuation is never leaked.
func (c *Context) Defer(name string, fn func() error) {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		c.release(name, fn)
		return
	}
	c.cleanups = append(c.cleanups, cleanup{name: name, fn: fn})
	c.mu.Unlock()
}

// SetPlayback attaches the scheduler inbound audio is routed to.
func (c *Context) SetPlayback(s *audio.Scheduler) {
	c.mu.Lock()
	c.playback = s
	c.mu.Unlock()
}

// Playback returns the attached scheduler, or nil.
func (c *Context) Playback() *audio.Scheduler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playback
}

// MarkGreeted returns true the first time it is called.
func (c *Context) MarkGreeted() bool {
	return c.greeted.CompareAndSwap(false, true)
}

func (c *Context) teardown() {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return
	}
	c.torn = true
	steps := c.cleanups
	c.cleanups = nil
	c.mu.Unlock()

	for i := len(steps) - 1; i >= 0; i-- {
		c.release(steps[i].name, steps[i].fn)
	}
	if c.Turns != nil {
		c.Turns.Stop()
	}
}

func (c *Context) release(name string, fn func() error) {
	if err := fn(); err != nil {
		c.Log.Debug("release failed", slog.String("resource", name), slog.String("error", err.Error()))
	}
}
