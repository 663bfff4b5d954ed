// Package loop provides the single-goroutine event loop that owns all voice
// state of one page.
//
// Every collaborator callback (recognition events, synthesis events, audio
// state, hotkeys) is posted into the loop's inbox as a closure and executed
// strictly in arrival order. Timers created through [Loop.AfterFunc] post
// their callback into the same inbox, so code running on the loop never needs
// locks.
package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by [Loop.Post] after the loop has stopped.
var ErrClosed = errors.New("loop: closed")

// Timer is a pending callback created by a [Scheduler].
type Timer interface {
	// Stop cancels the callback. It reports whether the call prevented the
	// callback from running.
	Stop() bool
}

// Scheduler creates timers whose callbacks run on the owning loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

const defaultInboxSize = 64

// Loop is a serial executor. The zero value is not usable; call [New].
type Loop struct {
	inbox chan func()
	done  chan struct{}

	closeOnce sync.Once
}

// New creates a Loop with an inbox of the given capacity. A non-positive size
// selects the default of 64.
func New(size int) *Loop {
	if size <= 0 {
		size = defaultInboxSize
	}
	return &Loop{
		inbox: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Post enqueues fn for execution on the loop. It blocks while the inbox is
// full and returns [ErrClosed] once the loop has stopped.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case l.inbox <- fn:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// Run executes posted closures until ctx is cancelled. Closures still queued
// at that point are discarded. Run returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	defer l.closeOnce.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.inbox:
			fn()
		}
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// AfterFunc schedules fn to run on the loop after d. Stopping the returned
// timer on the loop guarantees fn does not run, even when the underlying
// timer already fired and the callback is waiting in the inbox.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		_ = l.Post(func() {
			if lt.cancelled.Load() {
				return
			}
			lt.ran.Store(true)
			fn()
		})
	})
	return lt
}

type loopTimer struct {
	t         *time.Timer
	cancelled atomic.Bool
	ran       atomic.Bool
}

func (lt *loopTimer) Stop() bool {
	lt.t.Stop()
	return !lt.cancelled.Swap(true) && !lt.ran.Load()
}
