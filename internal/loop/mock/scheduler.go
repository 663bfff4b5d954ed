// Package mock provides a manually driven [loop.Scheduler] for tests.
//
// Timers never fire on their own. Tests call [Scheduler.Advance] to move the
// virtual clock forward; every timer that becomes due runs synchronously on
// the calling goroutine, in deadline order, so the test goroutine plays the
// role of the event loop.
package mock

import (
	"sort"
	"sync"
	"time"

	"github.com/MrWong99/voxportal/internal/loop"
)

// Scheduler is a fake clock-driven scheduler. It is safe for concurrent use,
// but callbacks only ever run inside Advance.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*Timer
}

var _ loop.Scheduler = (*Scheduler)(nil)

// Timer is a pending callback registered with a [Scheduler].
type Timer struct {
	s        *Scheduler
	deadline time.Duration
	seq      int
	fn       func()
	stopped  bool
	fired    bool

	// Delay is the duration the timer was created with.
	Delay time.Duration
}

// AfterFunc implements [loop.Scheduler].
func (s *Scheduler) AfterFunc(d time.Duration, fn func()) loop.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &Timer{s: s, deadline: s.now + d, seq: s.seq, fn: fn, Delay: d}
	s.timers = append(s.timers, t)
	return t
}

// Stop implements [loop.Timer].
func (t *Timer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the virtual clock forward by d and runs every timer that is
// due, including timers scheduled by callbacks during the advance.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		t := s.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	s.mu.Lock()
	s.now = target
	s.mu.Unlock()
}

func (s *Scheduler) nextDue(target time.Duration) *Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	s.timers = live
	sort.SliceStable(s.timers, func(i, j int) bool {
		if s.timers[i].deadline != s.timers[j].deadline {
			return s.timers[i].deadline < s.timers[j].deadline
		}
		return s.timers[i].seq < s.timers[j].seq
	})
	if len(s.timers) == 0 || s.timers[0].deadline > target {
		return nil
	}
	t := s.timers[0]
	t.fired = true
	if t.deadline > s.now {
		s.now = t.deadline
	}
	return t
}

// Pending returns the delays of all timers that have neither fired nor been
// stopped, in deadline order.
func (s *Scheduler) Pending() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	type entry struct {
		deadline time.Duration
		seq      int
		delay    time.Duration
	}
	var live []entry
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			live = append(live, entry{t.deadline, t.seq, t.Delay})
		}
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].deadline != live[j].deadline {
			return live[i].deadline < live[j].deadline
		}
		return live[i].seq < live[j].seq
	})
	for _, e := range live {
		out = append(out, e.delay)
	}
	return out
}

// Now returns the virtual time elapsed since the scheduler was created.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}
