package recognition

import (
	"fmt"
	"time"
)

// Mode is the purpose a session listens for.
type Mode int

const (
	// ModeWake listens continuously for the wake phrase.
	ModeWake Mode = iota

	// ModeCommand captures one follow-up utterance. The guidance consent
	// answer is captured by a command session as well.
	ModeCommand
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeCommand {
		return "command"
	}
	return "wake"
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "wake":
		*m = ModeWake
	case "command":
		*m = ModeCommand
	default:
		return fmt.Errorf("recognition: unknown mode %q", b)
	}
	return nil
}

// State is the lifecycle state of a [Session].
type State int

const (
	StateIdle State = iota
	StateStarting
	StateListening
	StateStopping
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// ErrorCode is an error reported by the browser speech recognition service.
type ErrorCode string

const (
	ErrNoSpeech             ErrorCode = "no-speech"
	ErrAudioCapture         ErrorCode = "audio-capture"
	ErrNetwork              ErrorCode = "network"
	ErrAborted              ErrorCode = "aborted"
	ErrNotAllowed           ErrorCode = "not-allowed"
	ErrServiceNotAllowed    ErrorCode = "service-not-allowed"
	ErrLanguageNotSupported ErrorCode = "language-not-supported"
)

// Permanent reports whether the error makes the recogniser unusable for the
// rest of the page's life.
func (c ErrorCode) Permanent() bool {
	switch c {
	case ErrNotAllowed, ErrServiceNotAllowed, ErrLanguageNotSupported:
		return true
	}
	return false
}

// Transcript is one recognition result.
type Transcript struct {
	Text       string    `json:"text"`
	IsFinal    bool      `json:"is_final"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`

	// Generation is the document list generation the page was showing when
	// the utterance was heard. Zero means unknown.
	Generation uint64 `json:"generation,omitempty"`
}

// EventKind tags the variant of an [Event].
type EventKind string

const (
	EventStart  EventKind = "start"
	EventResult EventKind = "result"
	EventError  EventKind = "error"
	EventEnd    EventKind = "end"
)

// Event is a recognition service callback. Every event carries the run id of
// the start request it belongs to; events for any other run are stale.
type Event struct {
	RunID      uint64     `json:"run_id"`
	Kind       EventKind  `json:"kind"`
	Transcript Transcript `json:"transcript,omitzero"`
	Error      ErrorCode  `json:"error,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// Request asks the service to start recognising.
type Request struct {
	RunID      uint64 `json:"run_id"`
	Mode       Mode   `json:"mode"`
	Language   string `json:"language"`
	Continuous bool   `json:"continuous"`
	Interim    bool   `json:"interim_results"`
}

// Service is the browser speech recognition capability.
type Service interface {
	// Start begins a recognition run. Events for it arrive later through
	// [Microphone.Deliver].
	Start(req Request) error

	// Stop asks the service to end the run gracefully; an end event follows.
	Stop(runID uint64) error
}

// NoticeKind tags the variant of a [Notice].
type NoticeKind int

const (
	// NoticeListening: the service confirmed the run started.
	NoticeListening NoticeKind = iota

	// NoticeTranscript: a final transcript arrived.
	NoticeTranscript

	// NoticeError: a transient error occurred; a restart may follow.
	NoticeError

	// NoticeRestarting: a restart has been scheduled after Delay.
	NoticeRestarting

	// NoticeStopped: a requested stop completed and the microphone is free.
	NoticeStopped

	// NoticeEnded: a one-shot session ended without being asked to. Code is
	// the error that ended it, if any.
	NoticeEnded

	// NoticeFatal: a permanent error made the session unusable.
	NoticeFatal
)

// Notice is what a [Session] reports to its owner.
type Notice struct {
	Kind       NoticeKind
	Mode       Mode
	Transcript Transcript
	Code       ErrorCode
	Delay      time.Duration
}
