// Package dispatch turns recognised intents into effects on the page: audio
// transport changes, document and filter navigation, and spoken feedback.
//
// A [Dispatcher] never speaks by itself. [Dispatcher.Dispatch] returns a
// [Result] carrying the feedback phrase, and the caller decides how to
// voice it. Every numeric change is clamped to its configured range and the
// feedback reports the value actually applied.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/voxportal/internal/grammar"
	"github.com/MrWong99/voxportal/internal/observe"
)

// Outcome classifies how an intent was handled.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeOutOfRange   Outcome = "out_of_range"
	OutcomeNotReady     Outcome = "not_ready"
	OutcomeFailed       Outcome = "failed"
	OutcomeUnrecognized Outcome = "unrecognized"
)

// Effect tells the caller what kind of follow-up the result needs.
type Effect int

const (
	// EffectNone means the result only carries feedback.
	EffectNone Effect = iota

	// EffectPlayback means the audio transport changed.
	EffectPlayback

	// EffectNavigation means the page navigated or re-filtered; a new document
	// listing may follow.
	EffectNavigation

	// EffectHelp means the feedback is the command guide.
	EffectHelp

	// EffectExit means voice commands should be suspended.
	EffectExit
)

// Result is the outcome of dispatching one intent.
type Result struct {
	Intent   grammar.Intent
	Outcome  Outcome
	Effect   Effect
	Feedback string
}

// Config holds the adjustment limits and increments.
type Config struct {
	RateMin    float64
	RateMax    float64
	RateStep   float64
	VolumeStep float64
	SeekStep   time.Duration
}

// DefaultConfig returns the stock adjustment limits.
func DefaultConfig() Config {
	return Config{
		RateMin:    0.5,
		RateMax:    2.0,
		RateStep:   0.25,
		VolumeStep: 0.1,
		SeekStep:   10 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.RateMin <= 0 {
		c.RateMin = d.RateMin
	}
	if c.RateMax <= 0 {
		c.RateMax = d.RateMax
	}
	if c.RateMax < c.RateMin {
		c.RateMin, c.RateMax = c.RateMax, c.RateMin
	}
	if c.RateStep <= 0 {
		c.RateStep = d.RateStep
	}
	if c.VolumeStep <= 0 {
		c.VolumeStep = d.VolumeStep
	}
	if c.SeekStep <= 0 {
		c.SeekStep = d.SeekStep
	}
}

// Deps are the page collaborators a [Dispatcher] acts on.
type Deps struct {
	Audio     AudioTransport
	Documents DocumentEnumerator
	Filters   FilterCatalog
	Navigator Navigator
}

// Option is a functional option for [New].
type Option func(*Dispatcher)

// WithMetrics records every dispatched intent to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the logger used for collaborator failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// Dispatcher maps intents to collaborator calls. It is not safe for
// concurrent use; callers serialise dispatches on the page loop.
type Dispatcher struct {
	cfg     Config
	deps    Deps
	metrics *observe.Metrics
	log     *slog.Logger
}

// New creates a Dispatcher. Zero-valued config fields take their defaults.
func New(cfg Config, deps Deps, opts ...Option) *Dispatcher {
	cfg.applyDefaults()
	d := &Dispatcher{cfg: cfg, deps: deps, log: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Config returns the effective configuration.
func (d *Dispatcher) Config() Config { return d.cfg }

// Dispatch executes in and returns its result. Collaborator errors are
// reported through [OutcomeFailed]; Dispatch itself never fails.
func (d *Dispatcher) Dispatch(ctx context.Context, in grammar.Intent) Result {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "dispatch."+in.Kind.String())
	defer span.End()
	span.SetAttributes(
		attribute.String("intent.kind", in.Kind.String()),
		attribute.String("intent.rule", in.Rule),
	)

	res, err := d.dispatch(in)
	res.Intent = in
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observe.Logger(ctx).Warn("dispatch: collaborator failed",
			"kind", in.Kind.String(),
			"rule", in.Rule,
			"err", err,
		)
		res.Outcome = OutcomeFailed
		res.Feedback = PhraseFailed
	}
	span.SetAttributes(attribute.String("intent.outcome", string(res.Outcome)))

	if d.metrics != nil {
		d.metrics.RecordIntent(ctx, in.Kind.String(), string(res.Outcome), time.Since(start))
	}
	return res
}

func (d *Dispatcher) dispatch(in grammar.Intent) (Result, error) {
	switch in.Kind {
	case grammar.KindPlayDocument, grammar.KindSelectDocument:
		return d.document(in)
	case grammar.KindPlaybackControl:
		return d.transport(in)
	case grammar.KindTimeJump:
		return d.timeJump(in)
	case grammar.KindSpeedChange:
		return d.speed(in)
	case grammar.KindVolumeChange:
		return d.volume(in)
	case grammar.KindFilter:
		return d.filter(in)
	case grammar.KindNavigation:
		return d.navigate(in)
	case grammar.KindInfo:
		return d.info(in)
	case grammar.KindHelp:
		return Result{Outcome: OutcomeOK, Effect: EffectHelp, Feedback: HelpText}, nil
	case grammar.KindExit:
		return Result{Outcome: OutcomeOK, Effect: EffectExit, Feedback: PhraseExit}, nil
	default:
		return Result{Outcome: OutcomeUnrecognized, Feedback: PhraseUnrecognized}, nil
	}
}

func ok(effect Effect, feedback string) Result {
	return Result{Outcome: OutcomeOK, Effect: effect, Feedback: feedback}
}

// document resolves the ordinal against the visible listing. A listing newer
// than the one the command was spoken against is treated as not found.
func (d *Dispatcher) document(in grammar.Intent) (Result, error) {
	list := d.deps.Documents.VisibleDocuments()
	if in.Generation != 0 && in.Generation != list.Generation {
		return Result{Outcome: OutcomeNotFound, Feedback: phraseDocumentNotFound(in.Ordinal)}, nil
	}
	if in.Ordinal < 1 || in.Ordinal > len(list.Documents) {
		return Result{Outcome: OutcomeNotFound, Feedback: phraseDocumentNotFound(in.Ordinal)}, nil
	}
	doc := list.Documents[in.Ordinal-1]

	if in.Kind == grammar.KindPlayDocument {
		if err := d.deps.Navigator.PlayDocument(doc); err != nil {
			return Result{}, err
		}
		return ok(EffectNavigation, phraseDocumentPlaying(in.Ordinal, doc.Title)), nil
	}
	if err := d.deps.Navigator.OpenDocument(doc); err != nil {
		return Result{}, err
	}
	return ok(EffectNavigation, phraseDocumentOpened(in.Ordinal, doc.Title)), nil
}

func (d *Dispatcher) transport(in grammar.Intent) (Result, error) {
	if in.Action == grammar.ActionDownload {
		if err := d.deps.Navigator.Download(); err != nil {
			return Result{}, err
		}
		return ok(EffectNone, phraseDownload), nil
	}

	a := d.deps.Audio
	st := a.State()
	if !st.HasSource {
		return Result{Outcome: OutcomeNotReady, Feedback: PhraseNoAudio}, nil
	}

	switch in.Action {
	case grammar.ActionPlay:
		if err := a.Play(); err != nil {
			return Result{}, err
		}
		return ok(EffectPlayback, phrasePlay), nil

	case grammar.ActionPause:
		if err := a.Pause(); err != nil {
			return Result{}, err
		}
		return ok(EffectPlayback, phrasePause), nil

	case grammar.ActionStop:
		if err := errors.Join(a.Pause(), a.Seek(0)); err != nil {
			return Result{}, err
		}
		return ok(EffectPlayback, phraseStop), nil

	case grammar.ActionRestart:
		if err := a.Seek(0); err != nil {
			return Result{}, err
		}
		if err := a.Play(); err != nil {
			return Result{}, err
		}
		return ok(EffectPlayback, phraseRestart), nil

	case grammar.ActionForward, grammar.ActionBackward:
		offset := d.cfg.SeekStep.Seconds()
		if in.Action == grammar.ActionBackward {
			offset = -offset
		}
		return d.seekRelative(st, offset)

	default:
		return Result{Outcome: OutcomeUnrecognized, Feedback: PhraseUnrecognized}, nil
	}
}

func (d *Dispatcher) timeJump(in grammar.Intent) (Result, error) {
	st := d.deps.Audio.State()
	if !st.HasSource {
		return Result{Outcome: OutcomeNotReady, Feedback: PhraseNoAudio}, nil
	}
	if !in.Absolute {
		return d.seekRelative(st, in.Seconds)
	}

	known := st.DurationKnown()
	if in.Seconds < 0 || !known || in.Seconds > st.Duration {
		return Result{
			Outcome:  OutcomeOutOfRange,
			Feedback: phraseOutOfRange(in.Seconds, st.Duration, known),
		}, nil
	}
	if err := d.deps.Audio.Seek(in.Seconds); err != nil {
		return Result{}, err
	}
	return ok(EffectPlayback, phraseSeeked(in.Seconds)), nil
}

// seekRelative moves by offset seconds, clamped to the track.
func (d *Dispatcher) seekRelative(st AudioState, offset float64) (Result, error) {
	if !st.DurationKnown() {
		return Result{Outcome: OutcomeNotReady, Feedback: PhraseNotReady}, nil
	}
	target := clamp(st.CurrentTime+offset, 0, st.Duration)
	if err := d.deps.Audio.Seek(target); err != nil {
		return Result{}, err
	}
	return ok(EffectPlayback, phraseSeeked(target)), nil
}

func (d *Dispatcher) speed(in grammar.Intent) (Result, error) {
	a := d.deps.Audio
	st := a.State()
	if !st.HasSource {
		return Result{Outcome: OutcomeNotReady, Feedback: PhraseNoAudio}, nil
	}

	want := in.Value
	if !in.Absolute {
		want = st.Rate + float64(in.Steps)*d.cfg.RateStep
	}
	rate := round2(clamp(want, d.cfg.RateMin, d.cfg.RateMax))
	if err := a.SetRate(rate); err != nil {
		return Result{}, err
	}
	applied := a.State().Rate
	return ok(EffectPlayback, phraseRate(applied, rate != round2(want))), nil
}

func (d *Dispatcher) volume(in grammar.Intent) (Result, error) {
	a := d.deps.Audio
	switch in.Volume {
	case grammar.VolumeMute:
		if err := a.Mute(); err != nil {
			return Result{}, err
		}
		return ok(EffectPlayback, phraseMute), nil
	case grammar.VolumeUnmute:
		if err := a.Unmute(); err != nil {
			return Result{}, err
		}
		return ok(EffectPlayback, phraseUnmute), nil
	}

	st := a.State()
	want := in.Value
	if !in.Absolute {
		want = st.Volume + float64(in.Steps)*d.cfg.VolumeStep
	}
	vol := round2(clamp(want, 0, 1))
	if err := a.SetVolume(vol); err != nil {
		return Result{}, err
	}
	applied := a.State().Volume
	return ok(EffectPlayback, phraseVolume(applied, vol != round2(want))), nil
}

// filter applies the first option whose label contains the spoken value,
// compared case-insensitively.
func (d *Dispatcher) filter(in grammar.Intent) (Result, error) {
	if in.Reset {
		if err := d.deps.Navigator.ResetFilters(); err != nil {
			return Result{}, err
		}
		return ok(EffectNavigation, phraseFilterReset), nil
	}

	needle := strings.ToLower(strings.TrimSpace(in.FilterValue))
	if needle != "" {
		for _, opt := range d.deps.Filters.FilterOptions(in.Dimension) {
			if !strings.Contains(strings.ToLower(opt.Label), needle) {
				continue
			}
			if err := d.deps.Navigator.ApplyFilter(in.Dimension, opt); err != nil {
				return Result{}, err
			}
			return ok(EffectNavigation, phraseFilterApplied(string(in.Dimension), opt.Label)), nil
		}
	}
	return Result{
		Outcome:  OutcomeNotFound,
		Feedback: phraseFilterNotFound(string(in.Dimension), in.FilterValue),
	}, nil
}

func (d *Dispatcher) navigate(in grammar.Intent) (Result, error) {
	if in.Direction == grammar.DirectionPrevious {
		if err := d.deps.Navigator.PreviousPage(); err != nil {
			return Result{}, err
		}
		return ok(EffectNavigation, phrasePrevPage), nil
	}
	if err := d.deps.Navigator.NextPage(); err != nil {
		return Result{}, err
	}
	return ok(EffectNavigation, phraseNextPage), nil
}

func (d *Dispatcher) info(in grammar.Intent) (Result, error) {
	if in.Topic == grammar.InfoDocumentCount {
		n := len(d.deps.Documents.VisibleDocuments().Documents)
		return ok(EffectNone, phraseDocumentCount(n)), nil
	}
	st := d.deps.Audio.State()
	if !st.HasSource {
		return Result{Outcome: OutcomeNotReady, Feedback: PhraseNoAudio}, nil
	}
	return ok(EffectNone, phrasePosition(st.CurrentTime, st.Duration, st.DurationKnown())), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
