package audio

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// Slot is the span a payload occupies on the playback timeline.
type Slot struct {
	Start time.Duration
	End   time.Duration
}

type scheduled struct {
	payload Payload
	slot    Slot
	epoch   uint64
}

// Scheduler places received payloads back to back on one playback timeline
// and feeds them to a sink in arrival order. A payload starts at
// max(clock.Now(), end of the previous payload); if the network starves the
// scheduler a gap opens, and nothing is buffered ahead to hide it.
type Scheduler struct {
	clock Clock
	sink  io.Writer
	rate  int
	tap   *Analyser
	log   *slog.Logger
	sleep func(d time.Duration, done <-chan struct{}) bool

	mu      sync.Mutex
	next    time.Duration
	epoch   uint64
	pending []scheduled
	closed  bool

	wake chan struct{}
	done chan struct{}
	exit chan struct{}
}

// NewScheduler starts a scheduler writing PCM16 at rate to sink.
func NewScheduler(clock Clock, sink io.Writer, rate int, logger *slog.Logger) *Scheduler {
	return newScheduler(clock, sink, rate, logger, sleepUntil)
}

func newScheduler(clock Clock, sink io.Writer, rate int, logger *slog.Logger, sleep func(time.Duration, <-chan struct{}) bool) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		clock: clock,
		sink:  sink,
		rate:  rate,
		tap:   NewAnalyser(),
		log:   logger,
		sleep: sleep,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		exit:  make(chan struct{}),
	}
	go s.run()
	return s
}

func sleepUntil(d time.Duration, done <-chan struct{}) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-done:
		return false
	}
}

// Tap is the analyser on the playback path.
func (s *Scheduler) Tap() *Analyser { return s.tap }

// Schedule reserves the next slot for p and queues it for playback.
// Payloads at a different rate than the sink are resampled first.
func (s *Scheduler) Schedule(p Payload) Slot {
	if p.SampleRate != s.rate && p.SampleRate > 0 {
		p.PCM = EncodePCM16(Resample(DecodePCM16(p.PCM), p.SampleRate, s.rate))
		p.SampleRate = s.rate
	}

	s.mu.Lock()
	start := s.clock.Now()
	if s.next > start {
		start = s.next
	}
	slot := Slot{Start: start, End: start + p.Duration()}
	s.next = slot.End
	if s.closed {
		s.mu.Unlock()
		return slot
	}
	s.pending = append(s.pending, scheduled{payload: p, slot: slot, epoch: s.epoch})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return slot
}

// Reset drops queued payloads and rewinds the timeline, e.g. when the agent
// is interrupted.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.epoch++
	s.pending = nil
	s.next = 0
	s.mu.Unlock()
}

// Close stops playback. Queued payloads are discarded.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.pending = nil
	s.mu.Unlock()
	close(s.done)
	<-s.exit
}

func (s *Scheduler) pop() (scheduled, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return scheduled{}, false
	}
	item := s.pending[0]
	s.pending = s.pending[1:]
	return item, true
}

func (s *Scheduler) current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.epoch == epoch
}

func (s *Scheduler) run() {
	defer close(s.exit)
	for {
		item, ok := s.pop()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		if !s.sleep(item.slot.Start-s.clock.Now(), s.done) {
			return
		}
		if !s.current(item.epoch) {
			continue
		}
		s.tap.Observe(DecodePCM16(item.payload.PCM))
		if _, err := s.sink.Write(item.payload.PCM); err != nil {
			s.log.Warn("playback write failed", slog.String("error", err.Error()))
		}
	}
}
