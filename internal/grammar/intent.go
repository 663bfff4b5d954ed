package grammar

// Kind classifies what a voice command asks for.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindPlayDocument
	KindSelectDocument
	KindPlaybackControl
	KindTimeJump
	KindSpeedChange
	KindVolumeChange
	KindFilter
	KindNavigation
	KindInfo
	KindHelp
	KindExit
)

// String returns the snake_case name of the kind. Used as a metric attribute.
func (k Kind) String() string {
	switch k {
	case KindPlayDocument:
		return "play_document"
	case KindSelectDocument:
		return "select_document"
	case KindPlaybackControl:
		return "playback_control"
	case KindTimeJump:
		return "time_jump"
	case KindSpeedChange:
		return "speed_change"
	case KindVolumeChange:
		return "volume_change"
	case KindFilter:
		return "filter"
	case KindNavigation:
		return "navigation"
	case KindInfo:
		return "info"
	case KindHelp:
		return "help"
	case KindExit:
		return "exit"
	default:
		return "unrecognized"
	}
}

// Action is a bare transport verb carried by [KindPlaybackControl].
type Action int

const (
	ActionNone Action = iota
	ActionPlay
	ActionPause
	ActionStop
	ActionForward
	ActionBackward
	ActionRestart
	ActionDownload
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionPlay:
		return "play"
	case ActionPause:
		return "pause"
	case ActionStop:
		return "stop"
	case ActionForward:
		return "forward"
	case ActionBackward:
		return "backward"
	case ActionRestart:
		return "restart"
	case ActionDownload:
		return "download"
	default:
		return "none"
	}
}

// VolumeOp distinguishes level changes from mute toggles in [KindVolumeChange].
type VolumeOp int

const (
	VolumeAdjust VolumeOp = iota
	VolumeMute
	VolumeUnmute
)

// Dimension names a filter control on the document listing.
type Dimension string

const (
	DimensionYear      Dimension = "tahun"
	DimensionIndicator Dimension = "indikator"
)

// Direction is a pagination direction.
type Direction int

const (
	DirectionNext Direction = iota
	DirectionPrevious
)

// InfoTopic selects what an informational command asks about.
type InfoTopic int

const (
	InfoDocumentCount InfoTopic = iota
	InfoPosition
)

// Intent is the structured form of one recognised voice command. Only the
// fields relevant to Kind are populated.
type Intent struct {
	Kind Kind

	// Action is set for KindPlaybackControl.
	Action Action

	// Ordinal is the 1-based document position for KindPlayDocument and
	// KindSelectDocument.
	Ordinal int

	// Seconds is the seek target when Absolute is true, otherwise a signed
	// offset (KindTimeJump).
	Seconds float64

	// Steps is a signed number of configured increments for relative
	// KindSpeedChange and KindVolumeChange.
	Steps int

	// Value is the requested playback rate or volume level (0..1) when
	// Absolute is true.
	Value float64

	// Absolute reports whether Seconds or Value is a target rather than a
	// relative change.
	Absolute bool

	// Volume is the volume operation for KindVolumeChange.
	Volume VolumeOp

	// Dimension and FilterValue describe a KindFilter command. Reset clears all
	// filters and leaves both empty.
	Dimension   Dimension
	FilterValue string
	Reset       bool

	// Direction is set for KindNavigation.
	Direction Direction

	// Topic is set for KindInfo.
	Topic InfoTopic

	// Rule is the name of the grammar rule that produced the intent.
	Rule string

	// ArgumentText is the normalised transcript the intent was parsed from.
	ArgumentText string

	// Generation is the document list generation observed when the transcript
	// arrived. It is copied from the transcript by the coordinator, never set
	// by the grammar; zero means "whatever is current".
	Generation uint64
}

// Consent is the answer to the guidance yes/no prompt.
type Consent int

const (
	ConsentNone Consent = iota
	ConsentYes
	ConsentNo
)

// String returns the consent answer name.
func (c Consent) String() string {
	switch c {
	case ConsentYes:
		return "yes"
	case ConsentNo:
		return "no"
	default:
		return "none"
	}
}

// WakeMatch is the result of checking a transcript for the wake phrase.
type WakeMatch struct {
	// Matched reports whether a wake phrase was heard.
	Matched bool

	// Phrase is the configured wake phrase that matched.
	Phrase string

	// Score is 1 for an exact match, otherwise the Jaro-Winkler similarity.
	Score float64

	// Remainder is the normalised text following the wake phrase in the same
	// utterance, or empty when the wake phrase stood alone.
	Remainder string
}
