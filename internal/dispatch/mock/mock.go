// Package mock provides an in-memory page implementing every dispatch
// collaborator interface.
//
// The mock records each call and lets tests preset the audio state, the
// document listing and the filter options through exported fields. It is
// safe for concurrent use.
package mock

import (
	"sync"

	"github.com/MrWong99/voxportal/internal/dispatch"
	"github.com/MrWong99/voxportal/internal/grammar"
)

// Compile-time interface assertions.
var (
	_ dispatch.AudioTransport     = (*Page)(nil)
	_ dispatch.DocumentEnumerator = (*Page)(nil)
	_ dispatch.FilterCatalog      = (*Page)(nil)
	_ dispatch.Navigator          = (*Page)(nil)
)

// AppliedFilter records one [Page.ApplyFilter] call.
type AppliedFilter struct {
	Dimension grammar.Dimension
	Option    dispatch.FilterOption
}

// Page is a fake page. Audio calls mutate Audio so that State reflects them.
type Page struct {
	mu sync.Mutex

	// Audio is the current audio state.
	Audio dispatch.AudioState

	// List is returned by VisibleDocuments.
	List dispatch.DocumentList

	// Options maps a filter dimension to its options.
	Options map[grammar.Dimension][]dispatch.FilterOption

	// Err is returned by every mutating call while non-nil.
	Err error

	// Recorded calls.
	Seeks         []float64
	Plays         int
	Pauses        int
	Opened        []dispatch.Document
	Played        []dispatch.Document
	Filters       []AppliedFilter
	FilterResets  int
	NextPages     int
	PreviousPages int
	Downloads     int
}

// NewPage returns a page with a loaded, paused track of the given duration
// and the stock rate and volume.
func NewPage(duration float64, docs ...dispatch.Document) *Page {
	return &Page{
		Audio: dispatch.AudioState{
			HasSource: true,
			Duration:  duration,
			Paused:    true,
			Rate:      1,
			Volume:    1,
		},
		List: dispatch.DocumentList{Generation: 1, Documents: docs},
	}
}

// Documents returns n numbered documents.
func Documents(n int) []dispatch.Document {
	out := make([]dispatch.Document, n)
	for i := range out {
		id := string(rune('a' + i))
		out[i] = dispatch.Document{ID: id, Title: "Dokumen " + id}
	}
	return out
}

// Play implements [dispatch.AudioTransport].
func (p *Page) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Plays++
	if p.Err != nil {
		return p.Err
	}
	p.Audio.Paused = false
	return nil
}

// Pause implements [dispatch.AudioTransport].
func (p *Page) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Pauses++
	if p.Err != nil {
		return p.Err
	}
	p.Audio.Paused = true
	return nil
}

// Seek implements [dispatch.AudioTransport].
func (p *Page) Seek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Seeks = append(p.Seeks, seconds)
	if p.Err != nil {
		return p.Err
	}
	p.Audio.CurrentTime = seconds
	return nil
}

// SetRate implements [dispatch.AudioTransport].
func (p *Page) SetRate(rate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Audio.Rate = rate
	return nil
}

// SetVolume implements [dispatch.AudioTransport].
func (p *Page) SetVolume(volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Audio.Volume = volume
	return nil
}

// Mute implements [dispatch.AudioTransport].
func (p *Page) Mute() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Audio.Muted = true
	return nil
}

// Unmute implements [dispatch.AudioTransport].
func (p *Page) Unmute() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Audio.Muted = false
	return nil
}

// State implements [dispatch.AudioTransport].
func (p *Page) State() dispatch.AudioState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Audio
}

// VisibleDocuments implements [dispatch.DocumentEnumerator].
func (p *Page) VisibleDocuments() dispatch.DocumentList {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.List
}

// FilterOptions implements [dispatch.FilterCatalog].
func (p *Page) FilterOptions(d grammar.Dimension) []dispatch.FilterOption {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Options[d]
}

// OpenDocument implements [dispatch.Navigator].
func (p *Page) OpenDocument(d dispatch.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Opened = append(p.Opened, d)
	return p.Err
}

// PlayDocument implements [dispatch.Navigator]. On success the page's audio
// starts playing from the beginning.
func (p *Page) PlayDocument(d dispatch.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Played = append(p.Played, d)
	if p.Err != nil {
		return p.Err
	}
	p.Audio.HasSource = true
	p.Audio.Paused = false
	p.Audio.CurrentTime = 0
	return nil
}

// ApplyFilter implements [dispatch.Navigator].
func (p *Page) ApplyFilter(d grammar.Dimension, o dispatch.FilterOption) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Filters = append(p.Filters, AppliedFilter{Dimension: d, Option: o})
	return p.Err
}

// ResetFilters implements [dispatch.Navigator].
func (p *Page) ResetFilters() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.FilterResets++
	return p.Err
}

// NextPage implements [dispatch.Navigator].
func (p *Page) NextPage() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.NextPages++
	return p.Err
}

// PreviousPage implements [dispatch.Navigator].
func (p *Page) PreviousPage() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PreviousPages++
	return p.Err
}

// Download implements [dispatch.Navigator].
func (p *Page) Download() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Downloads++
	return p.Err
}

// SetPlaying sets whether the loaded track is playing.
func (p *Page) SetPlaying(playing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Audio.Paused = !playing
}
