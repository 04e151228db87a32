package store

import (
	"sync"

	"github.com/fadilmartias/job-matcher/internal/model"
)

// Snapshot is a read-only copy of the queue. Every job in Jobs has an entry
// in Results.
type Snapshot struct {
	Jobs    []model.JobInput
	Results map[string]model.MatchResult
}

// Processing counts the results still waiting for the analyzer.
func (s Snapshot) Processing() int {
	n := 0
	for _, r := range s.Results {
		if r.Analyzing {
			n++
		}
	}
	return n
}

// JobStore keeps the job queue and the result map behind one lock so a job
// never exists without its result entry.
type JobStore struct {
	mu      sync.RWMutex
	jobs    []model.JobInput
	results map[string]model.MatchResult
}

func NewJobStore() *JobStore {
	return &JobStore{results: make(map[string]model.MatchResult)}
}

// Add prepends jobs as one block, keeping their relative order, and inserts a
// placeholder result for each of them.
func (s *JobStore) Add(jobs ...model.JobInput) {
	if len(jobs) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.JobInput, 0, len(jobs)+len(s.jobs))
	next = append(next, jobs...)
	next = append(next, s.jobs...)
	s.jobs = next

	for _, j := range jobs {
		s.results[j.ID] = model.NewPlaceholderResult(j.ID)
	}
}

// Remove deletes the job and its result. It reports whether anything was removed.
func (s *JobStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, j := range s.jobs {
		if j.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	s.jobs = append(s.jobs[:idx:idx], s.jobs[idx+1:]...)
	delete(s.results, id)
	return true
}

// Complete records a successful analysis. It is a no-op unless the entry
// exists and is still analyzing.
func (s *JobStore) Complete(id string, analysis model.Analysis) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.results[id]
	if !ok || !r.Analyzing {
		return false
	}

	s.results[id] = model.MatchResult{
		JobID:          id,
		Score:          analysis.Score,
		Reasoning:      analysis.Reasoning,
		CoverLetter:    analysis.CoverLetter,
		MatchingSkills: cloneStrings(analysis.MatchingSkills),
		MissingSkills:  cloneStrings(analysis.MissingSkills),
	}
	return true
}

// Fail records a failed analysis and keeps the placeholder fields.
func (s *JobStore) Fail(id, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.results[id]
	if !ok || !r.Analyzing {
		return false
	}

	r.Analyzing = false
	r.Error = message
	s.results[id] = r
	return true
}

func (s *JobStore) Get(id string) (model.JobInput, model.MatchResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, j := range s.jobs {
		if j.ID == id {
			return j, cloneResult(s.results[id]), true
		}
	}
	return model.JobInput{}, model.MatchResult{}, false
}

func (s *JobStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Jobs:    make([]model.JobInput, len(s.jobs)),
		Results: make(map[string]model.MatchResult, len(s.results)),
	}
	copy(snap.Jobs, s.jobs)
	for id, r := range s.results {
		snap.Results[id] = cloneResult(r)
	}
	return snap
}

func cloneResult(r model.MatchResult) model.MatchResult {
	r.MatchingSkills = cloneStrings(r.MatchingSkills)
	r.MissingSkills = cloneStrings(r.MissingSkills)
	return r
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
