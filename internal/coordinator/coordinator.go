// Package coordinator runs the voice command cycle of one page.
//
// A [Coordinator] owns the page's two recognition sessions (wake and
// command), its speech channel and its intent dispatcher, and moves between
// them:
//
//	wake listening -> (wake phrase) -> speaking prompt -> command listening
//	  -> (final transcript) -> processing -> speaking feedback -> wake listening
//
// Switching sessions always stops the old one and waits for its end before
// starting the next. Nothing listens while something is spoken.
//
// The coordinator is confined to the page's event loop: every method, and
// every event handed to [Coordinator.HandleRecognition] and
// [Coordinator.HandleSpeech], must run on it.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/voxportal/internal/dispatch"
	"github.com/MrWong99/voxportal/internal/grammar"
	"github.com/MrWong99/voxportal/internal/loop"
	"github.com/MrWong99/voxportal/internal/observe"
	"github.com/MrWong99/voxportal/internal/recognition"
	"github.com/MrWong99/voxportal/internal/resilience"
	"github.com/MrWong99/voxportal/internal/speech"
)

const (
	defaultCommandTimeout = 8 * time.Second
	defaultConsentTimeout = 10 * time.Second
)

// Config configures a [Coordinator]. Zero durations select defaults.
type Config struct {
	// Language is the recognition locale. Default: "id-ID".
	Language string

	// RestartDelay and ErrorBackoff are passed to both recognition sessions.
	RestartDelay time.Duration
	ErrorBackoff time.Duration

	// CommandTimeout bounds command listening. Default: 8s.
	CommandTimeout time.Duration

	// ConsentTimeout bounds the guidance question. No answer counts as no.
	// Default: 10s.
	ConsentTimeout time.Duration

	// GuidanceEnabled asks the guidance question when a document loads.
	GuidanceEnabled bool

	// AutoPlay starts the document's audio once the guidance dialogue ends.
	AutoPlay bool

	Speech   speech.Config
	Playback dispatch.Config
	Breaker  resilience.CircuitBreakerConfig
}

// DefaultConfig returns a config with guidance and auto-play enabled.
func DefaultConfig() Config {
	return Config{
		CommandTimeout:  defaultCommandTimeout,
		ConsentTimeout:  defaultConsentTimeout,
		GuidanceEnabled: true,
		AutoPlay:        true,
		Playback:        dispatch.DefaultConfig(),
	}
}

// Deps are the page collaborators.
type Deps struct {
	Recognizer recognition.Service
	Synth      speech.Synthesizer
	Audio      dispatch.AudioTransport
	Documents  dispatch.DocumentEnumerator
	Filters    dispatch.FilterCatalog
	Navigator  dispatch.Navigator

	// Notifier and Observer are optional.
	Notifier Notifier
	Observer Observer
}

// Option is a functional option for [New].
type Option func(*Coordinator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithMetrics records recognition, speech and intent metrics to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithGrammar sets the command grammar. Default: [grammar.Default].
func WithGrammar(g *grammar.Grammar) Option {
	return func(c *Coordinator) { c.grammar = g }
}

// Coordinator is the voice command state machine of one page.
type Coordinator struct {
	cfg      Config
	deps     Deps
	sched    loop.Scheduler
	log      *slog.Logger
	metrics  *observe.Metrics
	grammar  *grammar.Grammar
	ctx      context.Context
	playback speech.Playback

	mic        *recognition.Microphone
	wake       *recognition.Session
	command    *recognition.Session
	speech     *speech.Channel
	dispatcher *dispatch.Dispatcher

	phase    Phase
	disabled bool
	closed   bool

	// pending is the session to start once the other one has stopped.
	pending    *recognition.Session
	rearm      bool
	timeout    loop.Timer
	guidanceOf string
	guidance   bool
	guiding    bool
}

// New creates an idle coordinator. Call [Coordinator.Start] to begin
// listening.
func New(cfg Config, deps Deps, sched loop.Scheduler, opts ...Option) *Coordinator {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if cfg.ConsentTimeout <= 0 {
		cfg.ConsentTimeout = defaultConsentTimeout
	}
	c := &Coordinator{
		cfg:      cfg,
		deps:     deps,
		sched:    sched,
		log:      slog.Default(),
		ctx:      context.Background(),
		playback: transportPlayback{deps.Audio},
	}
	for _, o := range opts {
		o(c)
	}
	if c.grammar == nil {
		c.grammar = grammar.Default()
	}

	c.mic = recognition.NewMicrophone()
	c.wake = c.newSession(recognition.ModeWake, true)
	c.command = c.newSession(recognition.ModeCommand, false)

	speechOpts := []speech.Option{speech.WithLogger(c.log)}
	if c.metrics != nil {
		speechOpts = append(speechOpts, speech.WithFinishHook(func(o speech.Outcome, d time.Duration) {
			c.metrics.RecordUtterance(c.ctx, string(o), d)
		}))
	}
	c.speech = speech.NewChannel(cfg.Speech, deps.Synth, sched, speechOpts...)

	dispatchOpts := []dispatch.Option{dispatch.WithLogger(c.log)}
	if c.metrics != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithMetrics(c.metrics))
	}
	c.dispatcher = dispatch.New(cfg.Playback, dispatch.Deps{
		Audio:     deps.Audio,
		Documents: deps.Documents,
		Filters:   deps.Filters,
		Navigator: deps.Navigator,
	}, dispatchOpts...)
	return c
}

func (c *Coordinator) newSession(mode recognition.Mode, continuous bool) *recognition.Session {
	bcfg := c.cfg.Breaker
	if bcfg.Name == "" {
		bcfg.Name = "recognition-" + mode.String()
	} else {
		bcfg.Name += "-" + mode.String()
	}
	bcfg.OnStateChange = func(from, to resilience.State) {
		c.log.Info("coordinator: recognition breaker changed state",
			"mode", mode.String(), "from", from.String(), "to", to.String())
		if c.metrics != nil {
			c.metrics.RecordBreakerTransition(c.ctx, to.String())
		}
	}

	var guard func() bool
	if mode == recognition.ModeWake {
		guard = func() bool { return c.mayListen() && c.phase == PhaseWakeListening }
	} else {
		guard = func() bool {
			return c.mayListen() && (c.phase == PhaseCommandListening || c.phase == PhaseAwaitingConsent)
		}
	}

	return recognition.NewSession(recognition.Config{
		Mode:         mode,
		Language:     c.cfg.Language,
		Continuous:   continuous,
		RestartDelay: c.cfg.RestartDelay,
		ErrorBackoff: c.cfg.ErrorBackoff,
	}, c.deps.Recognizer, c.mic, c.sched, c.onNotice,
		recognition.WithBreaker(resilience.NewCircuitBreaker(bcfg)),
		recognition.WithRestartGuard(guard),
		recognition.WithLogger(c.log),
	)
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase { return c.phase }

// IsSpeaking reports whether an utterance is active.
func (c *Coordinator) IsSpeaking() bool { return c.speech.IsSpeaking() }

// Start begins wake listening. ctx is used for spans and notices for the
// coordinator's lifetime. It returns [recognition.ErrPermissionDenied] when
// voice commands are disabled.
func (c *Coordinator) Start(ctx context.Context) error {
	if ctx != nil {
		c.ctx = ctx
	}
	if c.disabled {
		return recognition.ErrPermissionDenied
	}
	if c.closed || c.phase != PhaseIdle {
		return nil
	}
	c.enterWake()
	if c.disabled {
		return recognition.ErrPermissionDenied
	}
	return nil
}

// Unsupported disables voice commands on a page whose browser has no speech
// recognition. It has the same effect as a permission denial.
func (c *Coordinator) Unsupported(ctx context.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
	if c.closed {
		return
	}
	c.disable(PhraseUnsupported)
}

// SetGrammar replaces the command grammar for subsequent transcripts.
func (c *Coordinator) SetGrammar(g *grammar.Grammar) {
	if g != nil {
		c.grammar = g
	}
}

// HandleRecognition routes a recognition service event. It reports false
// when the event was stale and dropped.
func (c *Coordinator) HandleRecognition(ev recognition.Event) bool {
	if c.closed {
		return false
	}
	if !c.mic.Deliver(ev) {
		c.log.Debug("coordinator: stale recognition event", "run_id", ev.RunID, "kind", ev.Kind)
		return false
	}
	return true
}

// HandleSpeech routes a synthesis event. It reports false when the event was
// stale and dropped.
func (c *Coordinator) HandleSpeech(ev speech.Event) bool {
	if c.closed {
		return false
	}
	if !c.speech.Deliver(ev) {
		c.log.Debug("coordinator: stale speech event", "utterance_id", ev.UtteranceID, "kind", ev.Kind)
		return false
	}
	return true
}

// ToggleManual handles the keyboard shortcut. It switches wake listening to
// command listening and back and wakes a suspended coordinator. During the
// guidance dialogue it skips the guidance; otherwise it interrupts speech to
// listen for a command.
func (c *Coordinator) ToggleManual() {
	if c.closed || c.disabled {
		return
	}
	switch {
	case c.guiding:
		c.finishGuidance()
	case c.phase == PhaseIdle || c.phase == PhaseSuspended:
		c.speech.Cancel()
		c.enterWake()
	case c.phase == PhaseWakeListening:
		c.awaken()
	case c.phase == PhaseCommandListening:
		c.enterWake()
	case c.phase == PhaseSpeaking || c.phase == PhaseProcessing:
		c.speech.Cancel()
		c.enterCommand()
	}
}

// DocumentLoading reports that the page started loading document id. The
// first time each document loads, the guidance question is asked; an open
// guidance dialogue for a previous document is abandoned.
func (c *Coordinator) DocumentLoading(id string) {
	if c.closed {
		return
	}
	if c.guidance && id == c.guidanceOf {
		return
	}
	c.guidanceOf = id
	c.guidance = true

	if !c.cfg.GuidanceEnabled {
		return
	}
	if c.disabled || c.phase == PhaseSuspended || c.phase == PhaseIdle {
		c.autoPlay()
		return
	}

	c.cancelTimeout()
	c.quiet()
	// Cancel resumes audio a previous utterance paused; it is paused again
	// for the whole dialogue.
	c.speech.Cancel()
	if st := c.deps.Audio.State(); st.Playing() {
		if err := c.deps.Audio.Pause(); err != nil {
			c.log.Warn("coordinator: pause for guidance failed", "err", err)
		}
	}

	c.guiding = true
	c.setPhase(PhaseAwaitingConsent)
	c.speech.Speak(PromptConsent, func() {
		c.listenFor(c.command)
		c.armTimeout(c.cfg.ConsentTimeout, PhaseAwaitingConsent, c.finishGuidance)
	})
}

// Close stops listening and speaking and cancels every timer. It is
// idempotent.
func (c *Coordinator) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.cancelTimeout()
	c.pending = nil
	c.wake.Close()
	c.command.Close()
	c.speech.Cancel()
}

func (c *Coordinator) mayListen() bool {
	return !c.closed && !c.disabled && !c.speech.IsSpeaking()
}

func (c *Coordinator) setPhase(p Phase) {
	if p == c.phase {
		return
	}
	from := c.phase
	c.phase = p
	c.log.Debug("coordinator: phase changed", "from", from.String(), "to", p.String())
	if c.deps.Observer != nil {
		c.deps.Observer.PhaseChanged(from, p)
	}
}

// transportPlayback lets the speech channel pause and resume the page audio.
type transportPlayback struct {
	a dispatch.AudioTransport
}

func (p transportPlayback) IsPlaying() bool { return p.a != nil && p.a.State().Playing() }
func (p transportPlayback) Pause() error    { return p.a.Pause() }
func (p transportPlayback) Resume() error   { return p.a.Play() }
