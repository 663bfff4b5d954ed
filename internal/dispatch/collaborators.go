package dispatch

import (
	"math"

	"github.com/MrWong99/voxportal/internal/grammar"
)

// AudioState is a snapshot of the page's audio element.
type AudioState struct {
	// HasSource reports whether a track is loaded.
	HasSource bool `json:"has_source"`

	// CurrentTime and Duration are in seconds. A zero, negative or
	// non-finite Duration means the metadata has not loaded yet.
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`

	Paused bool    `json:"paused"`
	Rate   float64 `json:"rate"`
	Volume float64 `json:"volume"`
	Muted  bool    `json:"muted"`
}

// DurationKnown reports whether Duration is usable.
func (s AudioState) DurationKnown() bool {
	return s.Duration > 0 && !math.IsInf(s.Duration, 0) && !math.IsNaN(s.Duration)
}

// Playing reports whether a loaded track is playing.
func (s AudioState) Playing() bool {
	return s.HasSource && !s.Paused
}

// AudioTransport is the page's persistent audio player. Calls initiate the
// change; State returns the latest known values, including the effect of
// calls already made.
type AudioTransport interface {
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetRate(rate float64) error
	SetVolume(volume float64) error
	Mute() error
	Unmute() error
	State() AudioState
}

// Document is one entry of the visible document listing.
type Document struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

// DocumentList is the visible listing at one point in time. Generation
// increases every time the page re-enumerates its documents.
type DocumentList struct {
	Generation uint64     `json:"generation"`
	Documents  []Document `json:"documents"`
}

// DocumentEnumerator returns the current visible listing.
type DocumentEnumerator interface {
	VisibleDocuments() DocumentList
}

// FilterOption is one choice of a filter control, in document order.
type FilterOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FilterCatalog lists the options of the page's filter controls.
type FilterCatalog interface {
	FilterOptions(d grammar.Dimension) []FilterOption
}

// Navigator performs page navigation on behalf of voice commands.
type Navigator interface {
	OpenDocument(d Document) error
	PlayDocument(d Document) error
	ApplyFilter(d grammar.Dimension, o FilterOption) error
	ResetFilters() error
	NextPage() error
	PreviousPage() error
	Download() error
}
