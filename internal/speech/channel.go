// Package speech serialises spoken feedback through the browser's speech
// synthesiser.
//
// A [Channel] has at most one active utterance. Speaking again interrupts the
// active utterance: its continuation is dropped and never runs. Completion is
// reported exactly once per utterance, by an end event, a synthesis error or
// the watchdog, whichever comes first. Browsers occasionally never fire the
// end event; the watchdog bounds how long the voice loop can be stuck behind
// such an utterance.
//
// A Channel is confined to the page's event loop.
package speech

import (
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/voxportal/internal/loop"
)

const (
	defaultLocale          = "id-ID"
	defaultWatchdogBase    = 3 * time.Second
	defaultWatchdogPerChar = 80 * time.Millisecond
)

// Outcome labels how an utterance finished.
type Outcome string

const (
	OutcomeEnded      Outcome = "ended"
	OutcomeError      Outcome = "error"
	OutcomeWatchdog   Outcome = "watchdog"
	OutcomeSuperseded Outcome = "superseded"
	OutcomeCancelled  Outcome = "cancelled"
)

// Utterance is one synthesis request.
type Utterance struct {
	ID     uint64  `json:"id"`
	Text   string  `json:"text"`
	Locale string  `json:"locale"`
	Rate   float64 `json:"rate"`
	Volume float64 `json:"volume"`
}

// Synthesizer is the browser speech synthesis capability.
type Synthesizer interface {
	// Speak starts speaking u. Start, end and error events for u.ID arrive
	// later through [Channel.Deliver].
	Speak(u Utterance) error

	// Cancel silences whatever is being spoken.
	Cancel() error
}

// Playback is the slice of the audio transport the channel needs to speak
// over a playing track without talking over it.
type Playback interface {
	IsPlaying() bool
	Pause() error
	Resume() error
}

// EventKind tags a synthesis event.
type EventKind string

const (
	EventStart EventKind = "start"
	EventEnd   EventKind = "end"
	EventError EventKind = "error"
)

// Event is a synthesis callback for one utterance.
type Event struct {
	UtteranceID uint64    `json:"utterance_id"`
	Kind        EventKind `json:"kind"`
	Error       string    `json:"error,omitempty"`
}

// Config configures a [Channel]. Zero values select defaults.
type Config struct {
	// Locale is the synthesis voice locale. Default: "id-ID".
	Locale string

	// Rate and Volume are passed to the synthesiser. Default: 1.
	Rate   float64
	Volume float64

	// WatchdogBase plus WatchdogPerChar times the text length is the longest
	// an utterance may run before it is treated as completed.
	// Defaults: 3s and 80ms.
	WatchdogBase    time.Duration
	WatchdogPerChar time.Duration
}

// Option is a functional option for [NewChannel].
type Option func(*Channel)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) { c.log = l }
}

// WithFinishHook registers fn to be called when an utterance finishes, for
// metrics. It runs before the utterance's continuation.
func WithFinishHook(fn func(outcome Outcome, spoken time.Duration)) Option {
	return func(c *Channel) { c.onFinish = fn }
}

type active struct {
	id         uint64
	text       string
	onComplete func()
	resume     Playback
	timer      loop.Timer
	begun      time.Time
}

// Channel is the speech output channel of one page.
type Channel struct {
	cfg      Config
	synth    Synthesizer
	sched    loop.Scheduler
	log      *slog.Logger
	onFinish func(Outcome, time.Duration)
	now      func() time.Time

	lastID uint64
	cur    *active
}

// NewChannel creates an idle channel.
func NewChannel(cfg Config, synth Synthesizer, sched loop.Scheduler, opts ...Option) *Channel {
	if cfg.Locale == "" {
		cfg.Locale = defaultLocale
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Volume <= 0 {
		cfg.Volume = 1
	}
	if cfg.WatchdogBase <= 0 {
		cfg.WatchdogBase = defaultWatchdogBase
	}
	if cfg.WatchdogPerChar <= 0 {
		cfg.WatchdogPerChar = defaultWatchdogPerChar
	}
	c := &Channel{
		cfg:   cfg,
		synth: synth,
		sched: sched,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// IsSpeaking reports whether an utterance is active. It stays true from Speak
// until the utterance's continuation has been called.
func (c *Channel) IsSpeaking() bool {
	return c.cur != nil
}

// Speak interrupts any active utterance and speaks text. onComplete, which
// may be nil, runs on the loop once the utterance ends or fails. It returns
// the utterance id.
func (c *Channel) Speak(text string, onComplete func()) uint64 {
	return c.speak(text, nil, onComplete)
}

// SpeakWithoutInterruptingAudio pauses pb while text is spoken and resumes it
// on completion. When pb is not playing it behaves like [Channel.Speak].
func (c *Channel) SpeakWithoutInterruptingAudio(text string, pb Playback, onComplete func()) uint64 {
	var resume Playback
	if pb != nil && pb.IsPlaying() {
		if err := pb.Pause(); err != nil {
			c.log.Warn("speech: pause audio failed", "err", err)
		} else {
			resume = pb
		}
	}
	return c.speak(text, resume, onComplete)
}

// Cancel silences the active utterance without running its continuation.
// Audio paused for it is resumed.
func (c *Channel) Cancel() {
	u := c.cur
	if u == nil {
		return
	}
	c.cur = nil
	c.stopTimer(u)
	if err := c.synth.Cancel(); err != nil {
		c.log.Debug("speech: cancel failed", "err", err)
	}
	c.finished(u, OutcomeCancelled)
	c.resumeAudio(u)
}

// Deliver applies a synthesis event. It reports false when the event belongs
// to an utterance that is no longer active.
func (c *Channel) Deliver(ev Event) bool {
	u := c.cur
	if u == nil || ev.UtteranceID != u.id {
		return false
	}
	switch ev.Kind {
	case EventStart:
		u.begun = c.now()
	case EventEnd:
		c.complete(u, OutcomeEnded)
	case EventError:
		c.log.Debug("speech: synthesis error treated as completion", "id", u.id, "error", ev.Error)
		c.complete(u, OutcomeError)
	}
	return true
}

func (c *Channel) speak(text string, resume Playback, onComplete func()) uint64 {
	if prev := c.cur; prev != nil {
		c.cur = nil
		c.stopTimer(prev)
		if err := c.synth.Cancel(); err != nil {
			c.log.Debug("speech: cancel superseded utterance failed", "err", err)
		}
		c.finished(prev, OutcomeSuperseded)
		// The superseded continuation is dropped but the audio it paused
		// must still come back once the new utterance is done.
		if resume == nil {
			resume = prev.resume
		}
	}

	c.lastID++
	u := &active{
		id:         c.lastID,
		text:       text,
		onComplete: onComplete,
		resume:     resume,
		begun:      c.now(),
	}
	c.cur = u

	err := c.synth.Speak(Utterance{
		ID:     u.id,
		Text:   text,
		Locale: c.cfg.Locale,
		Rate:   c.cfg.Rate,
		Volume: c.cfg.Volume,
	})
	if err != nil {
		c.log.Warn("speech: speak failed, completing", "id", u.id, "err", err)
		// Complete on the next loop turn so callers never see their
		// continuation run before Speak returns.
		u.timer = c.sched.AfterFunc(0, func() { c.complete(u, OutcomeError) })
		return u.id
	}

	limit := c.cfg.WatchdogBase + time.Duration(utf8.RuneCountInString(text))*c.cfg.WatchdogPerChar
	u.timer = c.sched.AfterFunc(limit, func() {
		c.log.Warn("speech: no completion before watchdog", "id", u.id, "limit", limit)
		if err := c.synth.Cancel(); err != nil {
			c.log.Debug("speech: cancel after watchdog failed", "err", err)
		}
		c.complete(u, OutcomeWatchdog)
	})
	return u.id
}

// complete finishes u if it is still the active utterance.
func (c *Channel) complete(u *active, outcome Outcome) {
	if c.cur != u {
		return
	}
	c.cur = nil
	c.stopTimer(u)
	c.finished(u, outcome)
	c.resumeAudio(u)
	if u.onComplete != nil {
		u.onComplete()
	}
}

func (c *Channel) finished(u *active, outcome Outcome) {
	if c.onFinish != nil {
		c.onFinish(outcome, c.now().Sub(u.begun))
	}
}

func (c *Channel) resumeAudio(u *active) {
	if u.resume == nil {
		return
	}
	if err := u.resume.Resume(); err != nil {
		c.log.Warn("speech: resume audio failed", "err", err)
	}
}

func (c *Channel) stopTimer(u *active) {
	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
	}
}
