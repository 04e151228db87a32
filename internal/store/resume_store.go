package store

import (
	"sync"

	"github.com/fadilmartias/job-matcher/internal/model"
)

// ResumeStore holds at most one resume.
type ResumeStore struct {
	mu     sync.RWMutex
	resume *model.Resume
}

func NewResumeStore() *ResumeStore {
	return &ResumeStore{}
}

func (s *ResumeStore) Set(r model.Resume) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resume = &r
}

func (s *ResumeStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resume = nil
}

// Get returns a copy of the current resume.
func (s *ResumeStore) Get() (model.Resume, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.resume == nil {
		return model.Resume{}, false
	}
	return *s.resume, true
}
