package audio

import (
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

type chanSink struct {
	writes chan []byte
}

func (s *chanSink) Write(p []byte) (int, error) {
	s.writes <- append([]byte(nil), p...)
	return len(p), nil
}

func noSleep(time.Duration, <-chan struct{}) bool { return true }

func pcmFor(d time.Duration, rate int) []byte {
	return make([]byte, 2*int(int64(d)*int64(rate)/int64(time.Second)))
}

func TestSchedulerSlotsNeverOverlap(t *testing.T) {
	is := is.New(t)
	clock := &fakeClock{}
	s := newScheduler(clock, &chanSink{writes: make(chan []byte, 64)}, OutputSampleRate, nil, noSleep)
	defer s.Close()

	steps := []struct {
		advance time.Duration
		length  time.Duration
	}{
		{0, 40 * time.Millisecond},
		{5 * time.Millisecond, 40 * time.Millisecond},   // faster than real time: queues
		{5 * time.Millisecond, 20 * time.Millisecond},   // still queued
		{500 * time.Millisecond, 40 * time.Millisecond}, // starved: gap opens
		{0, 10 * time.Millisecond},
	}

	var prev Slot
	for i, st := range steps {
		clock.Advance(st.advance)
		now := clock.Now()
		slot := s.Schedule(Payload{PCM: pcmFor(st.length, OutputSampleRate), SampleRate: OutputSampleRate})

		is.True(slot.Start >= now)              // never in the past
		is.Equal(slot.End-slot.Start, st.length) // occupies exactly its duration
		if i > 0 {
			is.True(slot.Start >= prev.End)   // no overlap
			is.True(slot.Start >= prev.Start) // non-decreasing
		}
		prev = slot
	}
}

func TestSchedulerBackToBackWithoutGap(t *testing.T) {
	is := is.New(t)
	clock := &fakeClock{now: time.Second}
	s := newScheduler(clock, &chanSink{writes: make(chan []byte, 8)}, OutputSampleRate, nil, noSleep)
	defer s.Close()

	a := s.Schedule(Payload{PCM: pcmFor(100*time.Millisecond, OutputSampleRate), SampleRate: OutputSampleRate})
	b := s.Schedule(Payload{PCM: pcmFor(100*time.Millisecond, OutputSampleRate), SampleRate: OutputSampleRate})

	is.Equal(a.Start, time.Second)
	is.Equal(b.Start, a.End)
}

func TestSchedulerPlaysInArrivalOrder(t *testing.T) {
	is := is.New(t)
	sink := &chanSink{writes: make(chan []byte, 8)}
	s := newScheduler(&fakeClock{}, sink, OutputSampleRate, nil, noSleep)
	defer s.Close()

	for i := byte(1); i <= 3; i++ {
		s.Schedule(Payload{PCM: []byte{i, 0, i, 0}, SampleRate: OutputSampleRate})
	}

	for i := byte(1); i <= 3; i++ {
		select {
		case got := <-sink.writes:
			is.Equal(got[0], i)
		case <-time.After(time.Second):
			t.Fatalf("payload %d was not played", i)
		}
	}
	is.True(s.Tap().Levels().Peak > 0) // playback tap saw the audio
}

func TestSchedulerResamplesToSinkRate(t *testing.T) {
	is := is.New(t)
	s := newScheduler(&fakeClock{}, &chanSink{writes: make(chan []byte, 8)}, OutputSampleRate, nil, noSleep)
	defer s.Close()

	slot := s.Schedule(Payload{PCM: pcmFor(100*time.Millisecond, 16000), SampleRate: 16000})

	is.Equal(slot.End-slot.Start, 100*time.Millisecond)
}

func TestSchedulerResetRewindsTimeline(t *testing.T) {
	is := is.New(t)
	clock := &fakeClock{}
	block := make(chan struct{})
	sleep := func(_ time.Duration, done <-chan struct{}) bool {
		select {
		case <-block:
			return true
		case <-done:
			return false
		}
	}
	sink := &chanSink{writes: make(chan []byte, 8)}
	s := newScheduler(clock, sink, OutputSampleRate, nil, sleep)
	defer s.Close()

	s.Schedule(Payload{PCM: pcmFor(time.Second, OutputSampleRate), SampleRate: OutputSampleRate})
	s.Reset()
	clock.Advance(10 * time.Millisecond)
	slot := s.Schedule(Payload{PCM: []byte{9, 0}, SampleRate: OutputSampleRate})
	is.Equal(slot.Start, 10*time.Millisecond)

	close(block)
	select {
	case got := <-sink.writes:
		is.Equal(got, []byte{9, 0}) // the pre-reset payload was dropped
	case <-time.After(time.Second):
		t.Fatal("post-reset payload was not played")
	}
}

func TestSchedulerCloseIsIdempotent(t *testing.T) {
	s := NewScheduler(&fakeClock{}, &chanSink{writes: make(chan []byte, 1)}, OutputSampleRate, nil)
	s.Close()
	s.Close()
	s.Schedule(Payload{PCM: []byte{1, 0}, SampleRate: OutputSampleRate})
}
