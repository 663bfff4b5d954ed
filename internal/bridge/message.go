package bridge

import (
	"github.com/MrWong99/voxportal/internal/dispatch"
	"github.com/MrWong99/voxportal/internal/grammar"
	"github.com/MrWong99/voxportal/internal/recognition"
	"github.com/MrWong99/voxportal/internal/speech"
)

// Server to page message types.
const (
	TypeRecognitionStart = "recognition.start"
	TypeRecognitionStop  = "recognition.stop"
	TypeSpeechSpeak      = "speech.speak"
	TypeSpeechCancel     = "speech.cancel"
	TypeAudioPlay        = "audio.play"
	TypeAudioPause       = "audio.pause"
	TypeAudioSeek        = "audio.seek"
	TypeAudioRate        = "audio.rate"
	TypeAudioVolume      = "audio.volume"
	TypeAudioMute        = "audio.mute"
	TypeAudioUnmute      = "audio.unmute"
	TypeNavOpen          = "nav.open"
	TypeNavPlay          = "nav.play"
	TypeNavFilter        = "nav.filter"
	TypeNavResetFilters  = "nav.reset_filters"
	TypeNavNextPage      = "nav.next_page"
	TypeNavPreviousPage  = "nav.previous_page"
	TypeNavDownload      = "nav.download"
	TypeVoiceState       = "voice.state"
	TypeNotice           = "notice"
)

// Page to server message types.
const (
	TypeHello            = "hello"
	TypeRecognitionEvent = "recognition.event"
	TypeSpeechEvent      = "speech.event"
	TypeAudioState       = "audio.state"
	TypeDocumentsChanged = "documents.changed"
	TypeFiltersChanged   = "filters.changed"
	TypeDocumentLoading  = "document.loading"
	TypeHotkeyToggle     = "hotkey.toggle"
	TypePageUnload       = "page.unload"
)

// Hello is the first message of every page. It lists what the browser
// supports.
type Hello struct {
	Recognition bool   `json:"recognition"`
	Synthesis   bool   `json:"synthesis"`
	Language    string `json:"language,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Message is the JSON envelope in both directions. Type selects which of the
// other fields are set.
type Message struct {
	Type string `json:"type"`

	// hello
	Hello *Hello `json:"hello,omitempty"`

	// recognition.start, recognition.stop, recognition.event
	Request     *recognition.Request `json:"request,omitempty"`
	RunID       uint64               `json:"run_id,omitempty"`
	Recognition *recognition.Event   `json:"recognition,omitempty"`

	// speech.speak, speech.event
	Utterance *speech.Utterance `json:"utterance,omitempty"`
	Speech    *speech.Event     `json:"speech,omitempty"`

	// audio.seek, audio.rate, audio.volume
	Value *float64 `json:"value,omitempty"`

	// audio.state
	Audio *dispatch.AudioState `json:"audio,omitempty"`

	// nav.open, nav.play, document.loading
	Document *dispatch.Document `json:"document,omitempty"`

	// nav.filter
	Dimension grammar.Dimension      `json:"dimension,omitempty"`
	Option    *dispatch.FilterOption `json:"option,omitempty"`

	// documents.changed, filters.changed
	Documents *dispatch.DocumentList                         `json:"documents,omitempty"`
	Filters   map[grammar.Dimension][]dispatch.FilterOption `json:"filters,omitempty"`

	// voice.state
	Phase    string `json:"phase,omitempty"`
	Previous string `json:"previous,omitempty"`

	// notice
	Text string `json:"text,omitempty"`
}

func value(v float64) *float64 { return &v }
