package coordinator

import (
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/voxportal/internal/dispatch"
	"github.com/MrWong99/voxportal/internal/grammar"
	"github.com/MrWong99/voxportal/internal/observe"
	"github.com/MrWong99/voxportal/internal/recognition"
)

// enterWake returns to wake listening.
func (c *Coordinator) enterWake() {
	c.cancelTimeout()
	c.rearm = false
	c.setPhase(PhaseWakeListening)
	c.listenFor(c.wake)
}

// awaken answers the wake phrase with a prompt and then listens for a
// command.
func (c *Coordinator) awaken() {
	c.cancelTimeout()
	c.quiet()
	c.setPhase(PhaseSpeaking)
	c.speech.SpeakWithoutInterruptingAudio(PromptWake, c.playback, c.enterCommand)
}

func (c *Coordinator) enterCommand() {
	c.rearm = false
	c.setPhase(PhaseCommandListening)
	c.listenFor(c.command)
	c.armTimeout(c.cfg.CommandTimeout, PhaseCommandListening, c.enterWake)
}

// listenFor starts s once the other session has released the microphone.
func (c *Coordinator) listenFor(s *recognition.Session) {
	if !c.mayListen() {
		return
	}
	other := c.wake
	if s == c.wake {
		other = c.command
	}
	c.pending = nil
	if !other.Idle() {
		other.Stop()
		if !other.Idle() {
			c.pending = s
			return
		}
	}
	if err := s.Start(); err != nil {
		c.startFailed(s, err)
	}
}

func (c *Coordinator) startFailed(s *recognition.Session, err error) {
	if errors.Is(err, recognition.ErrPermissionDenied) {
		c.disable(PhrasePermissionDenied)
		return
	}
	// The session schedules its own retry after a failed service start.
	c.log.Warn("coordinator: start listening failed", "mode", s.Mode().String(), "err", err)
}

// quiet stops both sessions and forgets any pending start.
func (c *Coordinator) quiet() {
	c.pending = nil
	c.wake.Stop()
	c.command.Stop()
}

func (c *Coordinator) onNotice(n recognition.Notice) {
	if c.closed {
		return
	}
	switch n.Kind {
	case recognition.NoticeTranscript:
		c.onTranscript(n)
	case recognition.NoticeError:
		if c.metrics != nil {
			c.metrics.RecordRecognitionError(c.ctx, string(n.Code), n.Mode.String())
		}
	case recognition.NoticeRestarting:
		if c.metrics != nil {
			c.metrics.RecordRecognitionRestart(c.ctx, n.Mode.String())
		}
	case recognition.NoticeStopped:
		if s := c.pending; s != nil {
			c.pending = nil
			c.listenFor(s)
		}
	case recognition.NoticeEnded:
		c.onEnded(n)
	case recognition.NoticeFatal:
		if c.metrics != nil {
			c.metrics.RecordRecognitionError(c.ctx, string(n.Code), n.Mode.String())
		}
		c.disable(PhrasePermissionDenied)
	}
}

func (c *Coordinator) onTranscript(n recognition.Notice) {
	text := n.Transcript.Text
	if c.speech.IsSpeaking() || c.phase == PhaseProcessing {
		c.log.Debug("coordinator: transcript dropped while busy", "phase", c.phase.String())
		return
	}

	switch {
	case n.Mode == recognition.ModeWake && c.phase == PhaseWakeListening:
		m := c.grammar.MatchWake(text)
		if !m.Matched {
			return
		}
		c.log.Info("coordinator: wake phrase heard", "phrase", m.Phrase, "score", m.Score)
		if m.Remainder != "" {
			c.handleCommand(m.Remainder, n.Transcript.Generation)
			return
		}
		c.awaken()

	case n.Mode == recognition.ModeCommand && c.phase == PhaseCommandListening:
		if m := c.grammar.MatchWake(text); m.Matched {
			if m.Remainder == "" {
				// Already awake; keep listening for the command.
				c.rearm = true
				return
			}
			text = m.Remainder
		}
		c.handleCommand(text, n.Transcript.Generation)

	case n.Mode == recognition.ModeCommand && c.phase == PhaseAwaitingConsent:
		switch c.grammar.MatchConsent(text) {
		case grammar.ConsentYes:
			c.giveGuidance()
		case grammar.ConsentNo:
			c.finishGuidance()
		default:
			c.rearm = true
		}
	}
}

// onEnded handles a command session that ended on its own.
func (c *Coordinator) onEnded(n recognition.Notice) {
	if n.Mode != recognition.ModeCommand {
		return
	}
	switch c.phase {
	case PhaseCommandListening:
		if c.rearm {
			c.rearm = false
			c.listenFor(c.command)
			return
		}
		c.log.Debug("coordinator: no command heard", "code", string(n.Code))
		c.enterWake()
	case PhaseAwaitingConsent:
		// Keep asking until an answer or the consent timeout.
		c.rearm = false
		c.listenFor(c.command)
	}
}

// handleCommand dispatches one command transcript and speaks the feedback.
// gen is the document list generation the transcript was heard against.
func (c *Coordinator) handleCommand(text string, gen uint64) {
	c.cancelTimeout()
	c.rearm = false
	c.setPhase(PhaseProcessing)
	c.quiet()

	ctx, span := observe.StartSpan(c.ctx, "coordinator.command")
	defer span.End()

	in := c.grammar.Match(text)
	in.Generation = gen
	res := c.dispatcher.Dispatch(ctx, in)
	span.SetAttributes(
		attribute.String("intent.kind", in.Kind.String()),
		attribute.String("intent.outcome", string(res.Outcome)),
	)
	observe.Logger(ctx).Info("coordinator: command handled",
		"text", in.ArgumentText,
		"kind", in.Kind.String(),
		"rule", in.Rule,
		"outcome", string(res.Outcome),
	)

	if res.Effect == dispatch.EffectExit {
		c.suspend(res.Feedback)
		return
	}
	c.setPhase(PhaseSpeaking)
	c.speech.SpeakWithoutInterruptingAudio(res.Feedback, c.playback, c.enterWake)
}

// suspend stops listening until the hotkey.
func (c *Coordinator) suspend(text string) {
	c.cancelTimeout()
	c.quiet()
	c.setPhase(PhaseSuspended)
	c.speech.SpeakWithoutInterruptingAudio(text, c.playback, nil)
}

// disable turns voice commands off for good. The notice and the spoken
// phrase are given once.
func (c *Coordinator) disable(reason string) {
	if c.disabled {
		return
	}
	c.disabled = true
	c.cancelTimeout()
	c.rearm = false
	c.guiding = false
	c.quiet()
	c.setPhase(PhaseDisabled)
	c.log.Warn("coordinator: voice commands disabled", "reason", reason)
	if c.deps.Notifier != nil {
		c.deps.Notifier.Notice(c.ctx, reason)
	}
	c.speech.SpeakWithoutInterruptingAudio(reason, c.playback, nil)
}

func (c *Coordinator) giveGuidance() {
	c.cancelTimeout()
	c.rearm = false
	c.quiet()
	c.setPhase(PhaseSpeaking)
	c.speech.Speak(GuideText, c.finishGuidance)
}

// finishGuidance closes the guidance dialogue, starts the document audio and
// returns to wake listening.
func (c *Coordinator) finishGuidance() {
	c.cancelTimeout()
	c.rearm = false
	c.guiding = false
	c.quiet()
	c.speech.Cancel()
	c.autoPlay()
	c.enterWake()
}

func (c *Coordinator) autoPlay() {
	if !c.cfg.AutoPlay {
		return
	}
	if err := c.deps.Audio.Play(); err != nil {
		c.log.Warn("coordinator: auto-play failed", "err", err)
	}
}

// armTimeout runs fn after d unless the phase has left in by then.
func (c *Coordinator) armTimeout(d time.Duration, in Phase, fn func()) {
	c.cancelTimeout()
	c.timeout = c.sched.AfterFunc(d, func() {
		c.timeout = nil
		if c.closed || c.phase != in {
			return
		}
		c.log.Debug("coordinator: listening timed out", "phase", in.String(), "after", d)
		fn()
	})
}

func (c *Coordinator) cancelTimeout() {
	if c.timeout != nil {
		c.timeout.Stop()
		c.timeout = nil
	}
}
