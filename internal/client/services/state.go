package services

import (
	"sync"

	"github.com/dmitrijs2005/talentdir/internal/client/models"
)

// profileState holds the view-model of one activation. Once closed, every
// update is dropped so late responses cannot touch a view nobody shows.
type profileState struct {
	mu      sync.Mutex
	profile *models.Profile
	closed  bool
}

func (s *profileState) snapshot() *models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Clone()
}

// replace installs p wholesale. It reports false if the view is closed.
func (s *profileState) replace(p *models.Profile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.profile = p.Clone()
	return true
}

// update applies fn to the current profile under the lock.
func (s *profileState) update(fn func(*models.Profile) *models.Profile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.profile == nil {
		return false
	}
	s.profile = fn(s.profile)
	return true
}

func (s *profileState) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *profileState) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
