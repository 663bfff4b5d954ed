// Package recognition manages browser speech-to-text sessions for one page.
//
// A [Session] wraps one logical listening mode (wake or command) on top of the
// page's [Service]. Sessions of a page share one [Microphone]: at most one of
// them may be starting, listening or stopping at a time, which mirrors the
// browser's refusal to run two recognisers concurrently.
//
// Sessions are not safe for concurrent use. All methods, event deliveries and
// timer callbacks must run on the page's event loop.
package recognition

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/voxportal/internal/loop"
	"github.com/MrWong99/voxportal/internal/resilience"
)

var (
	// ErrAlreadyListening is returned by [Session.Start] when another session
	// holds the microphone.
	ErrAlreadyListening = errors.New("recognition: another session holds the microphone")

	// ErrPermissionDenied is returned by [Session.Start] once the session has
	// received a permanent error.
	ErrPermissionDenied = errors.New("recognition: permission denied")
)

const (
	defaultLanguage     = "id-ID"
	defaultRestartDelay = 300 * time.Millisecond
	defaultErrorBackoff = 1500 * time.Millisecond
	defaultStopTimeout  = 2 * time.Second
)

// Config configures a [Session].
type Config struct {
	// Mode is the listening mode.
	Mode Mode

	// Language is the BCP-47 recognition locale. Default: "id-ID".
	Language string

	// Continuous sessions restart after every natural end. Non-continuous
	// sessions capture one utterance and report [NoticeEnded].
	Continuous bool

	// RestartDelay is the pause before restarting after a natural end.
	// Default: 300ms.
	RestartDelay time.Duration

	// ErrorBackoff is the pause before restarting after a transient error.
	// Default: 1.5s.
	ErrorBackoff time.Duration

	// StopTimeout bounds how long a requested stop waits for the service's
	// end event before the microphone is released anyway. Default: 2s.
	StopTimeout time.Duration
}

// Option is a functional option for [NewSession].
type Option func(*Session)

// WithBreaker guards service starts with cb. When cb is open, restarts are
// rescheduled after its remaining cool-down.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(s *Session) { s.breaker = cb }
}

// WithRestartGuard installs a veto on automatic restarts. When guard returns
// false the restart is skipped and the session waits idle for an explicit
// [Session.Start].
func WithRestartGuard(guard func() bool) Option {
	return func(s *Session) { s.guard = guard }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Session is one recognition mode bound to a page microphone.
type Session struct {
	cfg     Config
	svc     Service
	mic     *Microphone
	sched   loop.Scheduler
	notify  func(Notice)
	breaker *resilience.CircuitBreaker
	guard   func() bool
	log     *slog.Logger

	state State
	runID uint64

	// wanted is true between Start and Stop. Restarts only happen while the
	// session is wanted.
	wanted bool

	// stopRequested marks the current run as ending because Stop was called.
	stopRequested bool

	// startAfterStop is set when Start is called while a stop is in flight.
	startAfterStop bool

	// lastError is the transient error of the current run, consumed by the
	// end event.
	lastError ErrorCode

	unusable bool
	timer    loop.Timer
}

// NewSession creates an idle session. notify receives every [Notice] on the
// event loop and must not be nil.
func NewSession(cfg Config, svc Service, mic *Microphone, sched loop.Scheduler, notify func(Notice), opts ...Option) *Session {
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = defaultRestartDelay
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = defaultErrorBackoff
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	s := &Session{
		cfg:    cfg,
		svc:    svc,
		mic:    mic,
		sched:  sched,
		notify: notify,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("mode", cfg.Mode.String())
	return s
}

// Mode returns the session's listening mode.
func (s *Session) Mode() Mode { return s.cfg.Mode }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Idle reports whether the session is idle and does not hold the microphone.
func (s *Session) Idle() bool { return s.state == StateIdle }

// Active reports whether the session is starting or listening.
func (s *Session) Active() bool { return s.state == StateStarting || s.state == StateListening }

// Unusable reports whether a permanent error disabled the session.
func (s *Session) Unusable() bool { return s.unusable }

// RunID returns the id of the current run, or 0 when idle.
func (s *Session) RunID() uint64 { return s.runID }

// Start requests listening. It is a no-op when the session is already
// starting or listening. A pending automatic restart is replaced by an
// immediate start.
func (s *Session) Start() error {
	if s.unusable {
		return ErrPermissionDenied
	}
	switch s.state {
	case StateStarting, StateListening:
		s.wanted = true
		return nil
	case StateStopping:
		s.wanted = true
		s.startAfterStop = true
		return nil
	}
	if h := s.mic.holder; h != nil && h != s {
		return ErrAlreadyListening
	}
	s.wanted = true
	return s.launch()
}

// Stop ends listening gracefully and cancels any pending restart. It is a
// no-op when idle. When the service is asked to stop, [NoticeStopped] follows
// once the microphone is free; callers check [Session.Idle] right after Stop
// to learn whether they must wait for it.
func (s *Session) Stop() {
	s.wanted = false
	s.startAfterStop = false
	s.cancelTimer()

	switch s.state {
	case StateIdle, StateStopping:
		return
	}

	s.state = StateStopping
	s.stopRequested = true
	if err := s.svc.Stop(s.runID); err != nil {
		s.log.Warn("recognition: stop failed, releasing microphone", "run_id", s.runID, "err", err)
		s.release()
		return
	}
	s.timer = s.sched.AfterFunc(s.cfg.StopTimeout, s.stopTimedOut)
}

// Close stops the session without waiting and cancels every timer. The
// session cannot be used afterwards.
func (s *Session) Close() {
	s.wanted = false
	s.startAfterStop = false
	s.cancelTimer()
	if s.state == StateStarting || s.state == StateListening {
		if err := s.svc.Stop(s.runID); err != nil {
			s.log.Debug("recognition: stop on close failed", "err", err)
		}
	}
	if s.state != StateIdle {
		s.release()
	}
	s.unusable = true
}

// launch issues a service start for a new run. The session must be idle and
// the microphone free.
func (s *Session) launch() error {
	s.cancelTimer()
	s.runID = s.mic.claim(s)
	s.state = StateStarting
	s.stopRequested = false
	s.lastError = ""

	req := Request{
		RunID:      s.runID,
		Mode:       s.cfg.Mode,
		Language:   s.cfg.Language,
		Continuous: s.cfg.Continuous,
		Interim:    false,
	}
	start := func() error { return s.svc.Start(req) }
	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(start)
	} else {
		err = start()
	}
	if err == nil {
		return nil
	}

	s.release()
	delay := s.cfg.ErrorBackoff
	if errors.Is(err, resilience.ErrCircuitOpen) && s.breaker != nil {
		if d := s.breaker.RetryAfter(); d > 0 {
			delay = d
		}
	}
	s.log.Warn("recognition: start failed", "err", err, "retry_in", delay)
	s.scheduleRestart(delay)
	return fmt.Errorf("recognition: start %s session: %w", s.cfg.Mode, err)
}

// deliver applies one event of the current run.
func (s *Session) deliver(ev Event) {
	switch ev.Kind {
	case EventStart:
		if s.state == StateStarting {
			s.state = StateListening
			s.notify(Notice{Kind: NoticeListening, Mode: s.cfg.Mode})
		}

	case EventResult:
		if s.state == StateStopping || !ev.Transcript.IsFinal {
			return
		}
		if s.state == StateStarting {
			s.state = StateListening
		}
		s.notify(Notice{Kind: NoticeTranscript, Mode: s.cfg.Mode, Transcript: ev.Transcript})

	case EventError:
		s.onError(ev)

	case EventEnd:
		s.onEnd()
	}
}

func (s *Session) onError(ev Event) {
	code := ev.Error
	if code == ErrAborted && s.stopRequested {
		return
	}
	if code.Permanent() {
		s.log.Error("recognition: permanent error", "code", code, "message", ev.Message)
		s.unusable = true
		s.wanted = false
		s.cancelTimer()
		s.release()
		s.notify(Notice{Kind: NoticeFatal, Mode: s.cfg.Mode, Code: code})
		return
	}
	s.log.Debug("recognition: transient error", "code", code, "message", ev.Message)
	s.lastError = code
	s.notify(Notice{Kind: NoticeError, Mode: s.cfg.Mode, Code: code})
}

func (s *Session) onEnd() {
	code := s.lastError
	requested := s.stopRequested
	s.cancelTimer()
	s.release()

	if requested {
		s.notify(Notice{Kind: NoticeStopped, Mode: s.cfg.Mode})
		if s.startAfterStop {
			s.startAfterStop = false
			if err := s.Start(); err != nil {
				s.log.Warn("recognition: deferred start failed", "err", err)
			}
		}
		return
	}
	if !s.wanted {
		return
	}
	if !s.cfg.Continuous {
		s.wanted = false
		s.notify(Notice{Kind: NoticeEnded, Mode: s.cfg.Mode, Code: code})
		return
	}

	delay := s.cfg.RestartDelay
	if code != "" {
		delay = s.cfg.ErrorBackoff
	}
	s.scheduleRestart(delay)
}

func (s *Session) stopTimedOut() {
	s.timer = nil
	if s.state != StateStopping {
		return
	}
	s.log.Warn("recognition: no end event after stop, releasing microphone", "run_id", s.runID)
	s.onEnd()
}

// scheduleRestart debounces restarts: a new timer always replaces the old.
func (s *Session) scheduleRestart(delay time.Duration) {
	s.cancelTimer()
	s.notify(Notice{Kind: NoticeRestarting, Mode: s.cfg.Mode, Delay: delay})
	s.timer = s.sched.AfterFunc(delay, s.restart)
}

func (s *Session) restart() {
	s.timer = nil
	if !s.wanted || s.unusable || s.state != StateIdle {
		return
	}
	if s.guard != nil && !s.guard() {
		s.log.Debug("recognition: restart vetoed")
		return
	}
	if h := s.mic.holder; h != nil && h != s {
		s.log.Debug("recognition: restart skipped, microphone busy")
		return
	}
	if err := s.launch(); err != nil {
		s.log.Debug("recognition: restart failed", "err", err)
	}
}

// release frees the microphone and forgets the current run so late events
// for it are dropped as stale.
func (s *Session) release() {
	s.state = StateIdle
	s.stopRequested = false
	s.runID = 0
	s.mic.releaseIfHeld(s)
}

func (s *Session) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
