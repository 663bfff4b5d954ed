// Package mock provides recording fakes for the speech package interfaces.
package mock

import (
	"sync"

	"github.com/MrWong99/voxportal/internal/speech"
)

// Synthesizer records every utterance and cancel call.
type Synthesizer struct {
	mu sync.Mutex

	// SpeakErr is returned by Speak while non-nil.
	SpeakErr error

	Spoken  []speech.Utterance
	Cancels int
}

var _ speech.Synthesizer = (*Synthesizer)(nil)

// Speak implements [speech.Synthesizer].
func (s *Synthesizer) Speak(u speech.Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Spoken = append(s.Spoken, u)
	return s.SpeakErr
}

// Cancel implements [speech.Synthesizer].
func (s *Synthesizer) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Cancels++
	return nil
}

// Last returns the most recent utterance, or the zero value.
func (s *Synthesizer) Last() speech.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Spoken) == 0 {
		return speech.Utterance{}
	}
	return s.Spoken[len(s.Spoken)-1]
}

// Texts returns the text of every utterance in order.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Spoken))
	for i, u := range s.Spoken {
		out[i] = u.Text
	}
	return out
}

// Playback is a fake audio transport with a playing flag.
type Playback struct {
	Playing bool
	Pauses  int
	Resumes int
}

var _ speech.Playback = (*Playback)(nil)

// IsPlaying implements [speech.Playback].
func (p *Playback) IsPlaying() bool { return p.Playing }

// Pause implements [speech.Playback].
func (p *Playback) Pause() error {
	p.Pauses++
	p.Playing = false
	return nil
}

// Resume implements [speech.Playback].
func (p *Playback) Resume() error {
	p.Resumes++
	p.Playing = true
	return nil
}
