package coordinator

import "context"

// Phase is the coordinator's position in the voice cycle.
type Phase int

const (
	// PhaseIdle is the phase before Start.
	PhaseIdle Phase = iota

	// PhaseDisabled: recognition permission was denied. Terminal.
	PhaseDisabled

	// PhaseSuspended: the user said exit. Nothing listens until the hotkey.
	PhaseSuspended

	// PhaseAwaitingConsent: the guidance yes/no question is open.
	PhaseAwaitingConsent

	// PhaseWakeListening: listening for the wake phrase.
	PhaseWakeListening

	// PhaseCommandListening: listening for one command utterance.
	PhaseCommandListening

	// PhaseProcessing: a command is being dispatched.
	PhaseProcessing

	// PhaseSpeaking: a prompt or feedback is being spoken.
	PhaseSpeaking
)

// String returns the phase name sent to the page.
func (p Phase) String() string {
	switch p {
	case PhaseDisabled:
		return "disabled"
	case PhaseSuspended:
		return "suspended"
	case PhaseAwaitingConsent:
		return "awaiting_consent"
	case PhaseWakeListening:
		return "wake_listening"
	case PhaseCommandListening:
		return "command_listening"
	case PhaseProcessing:
		return "processing"
	case PhaseSpeaking:
		return "speaking"
	default:
		return "idle"
	}
}

// listening reports whether a recognition session may run in p.
func (p Phase) listening() bool {
	return p == PhaseWakeListening || p == PhaseCommandListening || p == PhaseAwaitingConsent
}

// Notifier shows a visible notice on the page.
type Notifier interface {
	Notice(ctx context.Context, text string)
}

// Observer is told about every phase change.
type Observer interface {
	PhaseChanged(from, to Phase)
}

// ObserverFunc adapts a function to [Observer].
type ObserverFunc func(from, to Phase)

// PhaseChanged implements [Observer].
func (f ObserverFunc) PhaseChanged(from, to Phase) { f(from, to) }
