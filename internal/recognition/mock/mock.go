// Package mock provides a recording [recognition.Service] for tests.
package mock

import (
	"sync"

	"github.com/MrWong99/voxportal/internal/recognition"
)

// Service records Start and Stop calls. Set StartErr or StopErr to make the
// next calls fail.
type Service struct {
	mu sync.Mutex

	// StartErr is returned by every Start call while non-nil.
	StartErr error

	// StopErr is returned by every Stop call while non-nil.
	StopErr error

	StartCalls []recognition.Request
	StopCalls  []uint64
}

var _ recognition.Service = (*Service)(nil)

// Start implements [recognition.Service].
func (s *Service) Start(req recognition.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCalls = append(s.StartCalls, req)
	return s.StartErr
}

// Stop implements [recognition.Service].
func (s *Service) Stop(runID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCalls = append(s.StopCalls, runID)
	return s.StopErr
}

// LastStart returns the most recent start request and whether there was one.
func (s *Service) LastStart() (recognition.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.StartCalls) == 0 {
		return recognition.Request{}, false
	}
	return s.StartCalls[len(s.StartCalls)-1], true
}

// Starts returns the number of Start calls.
func (s *Service) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.StartCalls)
}

// Stops returns the number of Stop calls.
func (s *Service) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.StopCalls)
}
