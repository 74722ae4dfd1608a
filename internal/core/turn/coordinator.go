// Package turn tracks who holds the floor in a voice session.
//
// Providers differ in one respect that matters here: some create a response
// on their own when server-side voice activity detection sees the user stop,
// others wait for the client to ask. The Coordinator hides that difference
// behind three events and a request callback.
package turn

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	DefaultEchoWindow      = time.Second
	DefaultWatchdogTimeout = 12 * time.Second
)

// Policy configures a Coordinator for one provider.
type Policy struct {
	// AutoResponds is true when the provider starts a response by itself.
	AutoResponds bool
	// EchoWindow drops user transcripts that arrive this soon after the agent
	// finished, which are usually the agent's own voice picked up by the mic.
	EchoWindow time.Duration
	// WatchdogTimeout clears a response that never reports completion.
	WatchdogTimeout time.Duration
}

// DefaultPolicy returns the standard windows for a provider.
func DefaultPolicy(autoResponds bool) Policy {
	return Policy{
		AutoResponds:    autoResponds,
		EchoWindow:      DefaultEchoWindow,
		WatchdogTimeout: DefaultWatchdogTimeout,
	}
}

// Timer is the subset of *time.Timer the watchdog needs.
type Timer interface {
	Stop() bool
}

type Option func(*Coordinator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithTimers replaces time.AfterFunc.
func WithTimers(after func(time.Duration, func()) Timer) Option {
	return func(c *Coordinator) { c.after = after }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// Coordinator is safe for concurrent use. Callbacks run without its lock held.
type Coordinator struct {
	policy  Policy
	deliver func(text string)
	request func() error
	now     func() time.Time
	after   func(time.Duration, func()) Timer
	log     *slog.Logger

	mu           sync.Mutex
	responding   bool
	lastUser     string
	lastAgentEnd time.Time
	watchdog     Timer
	arm          uint64
	stopped      bool
}

// New returns a Coordinator. deliver receives accepted user transcripts;
// request asks the provider for a response and is only used when the policy
// does not auto-respond.
func New(policy Policy, deliver func(text string), request func() error, opts ...Option) *Coordinator {
	if policy.EchoWindow < 0 {
		policy.EchoWindow = 0
	}
	if policy.WatchdogTimeout <= 0 {
		policy.WatchdogTimeout = DefaultWatchdogTimeout
	}
	c := &Coordinator{
		policy:  policy,
		deliver: deliver,
		request: request,
		now:     time.Now,
		after: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		log: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// OnUserUtteranceComplete handles a finished user transcript and reports
// whether it was accepted.
func (c *Coordinator) OnUserUtteranceComplete(text string) bool {
	return c.accept(text, true)
}

// OnStreamedUtterance is OnUserUtteranceComplete for an utterance whose
// fragments were already delivered as they arrived. The same rules decide
// whether a response is requested, but nothing is delivered again.
func (c *Coordinator) OnStreamedUtterance(text string) bool {
	return c.accept(text, false)
}

func (c *Coordinator) accept(text string, deliver bool) bool {
	norm := normalize(text)
	if norm == "" {
		return false
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return false
	}
	if norm == c.lastUser {
		c.mu.Unlock()
		c.log.Debug("duplicate user transcript dropped", slog.String("text", text))
		return false
	}
	if !c.lastAgentEnd.IsZero() && c.now().Sub(c.lastAgentEnd) < c.policy.EchoWindow {
		c.mu.Unlock()
		c.log.Debug("user transcript inside echo window dropped", slog.String("text", text))
		return false
	}
	c.lastUser = norm
	ask := !c.policy.AutoResponds && !c.responding
	if ask {
		c.responding = true
		c.armLocked()
	}
	c.mu.Unlock()

	if deliver && c.deliver != nil {
		c.deliver(text)
	}
	if ask && c.request != nil {
		if err := c.request(); err != nil {
			c.log.Warn("response request failed", slog.String("error", err.Error()))
			c.mu.Lock()
			c.responding = false
			c.disarmLocked()
			c.mu.Unlock()
		}
	}
	return true
}

// OnAgentTurnStarted marks a response in flight and (re)arms the watchdog.
func (c *Coordinator) OnAgentTurnStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responding = true
	c.armLocked()
}

// OnAgentTurnEnded marks the response finished, whether it completed or failed.
func (c *Coordinator) OnAgentTurnEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responding = false
	c.lastAgentEnd = c.now()
	c.disarmLocked()
}

// Responding reports whether the agent is considered mid-response.
func (c *Coordinator) Responding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responding
}

// Reset clears all turn state and disarms the watchdog.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarmLocked()
	c.responding = false
	c.lastUser = ""
	c.lastAgentEnd = time.Time{}
}

// Stop resets the coordinator and rejects everything after it.
func (c *Coordinator) Stop() {
	c.Reset()
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
}

func (c *Coordinator) armLocked() {
	c.disarmLocked()
	if c.stopped {
		return
	}
	arm := c.arm
	c.watchdog = c.after(c.policy.WatchdogTimeout, func() { c.fire(arm) })
}

func (c *Coordinator) disarmLocked() {
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
	c.arm++
}

// fire is the watchdog body. It only clears the flag; the remote response,
// if it is still running, is left alone.
func (c *Coordinator) fire(arm uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if arm != c.arm {
		return
	}
	c.watchdog = nil
	if c.responding {
		c.responding = false
		c.log.Warn("response watchdog fired; clearing responding flag",
			slog.Duration("timeout", c.policy.WatchdogTimeout))
	}
}
