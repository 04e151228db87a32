package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fadilmartias/job-matcher/internal/importer"
	"github.com/fadilmartias/job-matcher/internal/model"
	"github.com/fadilmartias/job-matcher/internal/store"
	"github.com/fadilmartias/job-matcher/internal/util"
	"github.com/fadilmartias/job-matcher/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	mu      sync.Mutex
	calls   []model.JobInput
	resumes []model.Resume
	fn      func(job model.JobInput) (*model.Analysis, error)
}

func (f *fakeAnalyzer) Analyze(_ context.Context, resume model.Resume, job model.JobInput) (*model.Analysis, error) {
	f.mu.Lock()
	f.calls = append(f.calls, job)
	f.resumes = append(f.resumes, resume)
	fn := f.fn
	f.mu.Unlock()

	if fn == nil {
		return &model.Analysis{Score: 50, Reasoning: "ok", MatchingSkills: []string{}, MissingSkills: []string{}}, nil
	}
	return fn(job)
}

func (f *fakeAnalyzer) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Title)
	}
	return out
}

type harness struct {
	uc       *MatchUsecase
	jobs     *store.JobStore
	analyzer *fakeAnalyzer
}

func newHarness(t *testing.T, cooldown time.Duration) *harness {
	t.Helper()

	jobs := store.NewJobStore()
	analyzer := &fakeAnalyzer{}
	queue := worker.NewQueue(cooldown)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		queue.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	uc := NewMatchUsecase(store.NewResumeStore(), jobs, queue, analyzer, importer.NewLinkedInParser())
	n := 0
	uc.newID = func() string {
		n++
		return fmt.Sprintf("job-%d", n)
	}
	return &harness{uc: uc, jobs: jobs, analyzer: analyzer}
}

func (h *harness) setResume(t *testing.T) {
	t.Helper()
	_, err := h.uc.SetResume("r.txt", []byte("5 years React, Node"))
	require.NoError(t, err)
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.jobs.Snapshot().Processing() == 0
	}, 2*time.Second, time.Millisecond)
}

func requireInvariant(t *testing.T, snap store.Snapshot) {
	t.Helper()
	require.Len(t, snap.Results, len(snap.Jobs))
	ids := make([]string, 0, len(snap.Jobs))
	for _, j := range snap.Jobs {
		ids = append(ids, j.ID)
	}
	keys := make([]string, 0, len(snap.Results))
	for k := range snap.Results {
		keys = append(keys, k)
	}
	sort.Strings(ids)
	sort.Strings(keys)
	assert.Equal(t, ids, keys)
}

func TestSubmit_RequiresResume(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.uc.Submit(model.JobDetails{})
	assert.ErrorIs(t, err, ErrResumeRequired)

	_, err = h.uc.SubmitBatch([]model.JobDetails{{Title: "Dev", Description: "Go"}})
	assert.ErrorIs(t, err, ErrResumeRequired)

	snap := h.uc.Snapshot()
	assert.Empty(t, snap.Jobs)
	assert.Empty(t, snap.Results)
	assert.Empty(t, h.analyzer.titles())
}

func TestSubmit_RequiresTitleAndDescription(t *testing.T) {
	h := newHarness(t, 0)
	h.setResume(t)

	_, err := h.uc.Submit(model.JobDetails{Title: "   ", Company: "Acme", Description: "\n\t"})
	var formErr *util.FormError
	require.ErrorAs(t, err, &formErr)
	assert.Equal(t, "is required", formErr.Errors["title"])
	assert.Equal(t, "is required", formErr.Errors["description"])

	assert.Empty(t, h.uc.Snapshot().Jobs)
}

func TestSubmit_RoundTrip(t *testing.T) {
	h := newHarness(t, 0)
	h.setResume(t)
	h.analyzer.fn = func(model.JobInput) (*model.Analysis, error) {
		return &model.Analysis{
			Score:          82,
			Reasoning:      "Strong overlap",
			CoverLetter:    "Dear Hiring Manager, ...",
			MatchingSkills: []string{"React"},
			MissingSkills:  []string{"TypeScript"},
		}, nil
	}

	id, err := h.uc.Submit(model.JobDetails{Title: "Frontend Engineer", Company: "Acme", Description: "Need React and TypeScript skills"})
	require.NoError(t, err)

	h.waitIdle(t)

	_, res, ok := h.jobs.Get(id)
	require.True(t, ok)
	assert.False(t, res.Analyzing)
	assert.Equal(t, 82.0, res.Score)
	assert.Equal(t, []string{"React"}, res.MatchingSkills)
	assert.Equal(t, []string{"TypeScript"}, res.MissingSkills)
	assert.Empty(t, res.Error)

	name, data := h.uc.ExportCSV(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "job_match_results_2026-10-15.csv", name)
	assert.Contains(t, string(data), "\n"+`"Frontend Engineer","Acme",82,"Strong overlap","Dear Hiring Manager, ...",""`)

	h.analyzer.mu.Lock()
	assert.Equal(t, "5 years React, Node", h.analyzer.resumes[0].Text)
	h.analyzer.mu.Unlock()
}

func TestSubmit_PlaceholderIsVisibleBeforeAnalysis(t *testing.T) {
	h := newHarness(t, 0)
	h.setResume(t)

	release := make(chan struct{})
	h.analyzer.fn = func(model.JobInput) (*model.Analysis, error) {
		<-release
		return &model.Analysis{Score: 10, MatchingSkills: []string{}, MissingSkills: []string{}}, nil
	}

	id, err := h.uc.Submit(model.JobDetails{Title: "Dev", Description: "Go"})
	require.NoError(t, err)

	snap := h.uc.Snapshot()
	requireInvariant(t, snap)
	res := snap.Results[id]
	assert.True(t, res.Analyzing)
	assert.Zero(t, res.Score)
	assert.Equal(t, 1, snap.Processing())

	close(release)
	h.waitIdle(t)
}

func TestSubmit_NormalizesWhitespace(t *testing.T) {
	h := newHarness(t, 0)
	h.setResume(t)

	id, err := h.uc.Submit(model.JobDetails{
		Title:       "  Frontend\tEngineer ",
		Company:     " Acme  Corp ",
		Description: "Build   apps\n\nwith   React",
		URL:         "  https://example.com/job  ",
	})
	require.NoError(t, err)
	h.waitIdle(t)

	job, _, ok := h.jobs.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Frontend Engineer", job.Title)
	assert.Equal(t, "Acme Corp", job.Company)
	assert.Equal(t, "Build apps with React", job.Description)
	assert.Equal(t, "https://example.com/job", job.URL)

	h.analyzer.mu.Lock()
	defer h.analyzer.mu.Unlock()
	require.Len(t, h.analyzer.calls, 1)
	assert.Equal(t, "Build apps with React", h.analyzer.calls[0].Description)
}

func TestSubmitBatch_OrderAndPlaceholders(t *testing.T) {
	h := newHarness(t, 0)
	h.setResume(t)

	release := make(chan struct{})
	h.analyzer.fn = func(model.JobInput) (*model.Analysis, error) {
		<-release
		return &model.Analysis{MatchingSkills: []string{}, MissingSkills: []string{}}, nil
	}

	_, err := h.uc.Submit(model.JobDetails{Title: "Old", Description: "old"})
	require.NoError(t, err)

	result, err := h.uc.SubmitBatch([]model.JobDetails{
		{Title: "A", Description: "a"},
		{Title: "", Description: "missing title"},
		{Title: "B", Description: "b"},
		{Title: "C", Description: ""},
		{Title: "D", Description: "d"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"job-2", "job-3", "job-4"}, result.IDs)
	require.Len(t, result.Rejected, 2)
	assert.Equal(t, 1, result.Rejected[0].Index)
	assert.Contains(t, result.Rejected[0].Errors, "title")
	assert.Equal(t, 3, result.Rejected[1].Index)
	assert.Contains(t, result.Rejected[1].Errors, "description")

	snap := h.uc.Snapshot()
	requireInvariant(t, snap)
	titles := make([]string, 0, len(snap.Jobs))
	for _, j := range snap.Jobs {
		titles = append(titles, j.Title)
	}
	assert.Equal(t, []string{"A", "B", "D", "Old"}, titles)
	for _, id := range result.IDs {
		assert.True(t, snap.Results[id].Analyzing)
	}

	close(release)
	h.waitIdle(t)
}

func TestSubmitBatch_SequentialOrdering(t *testing.T) {
	h := newHarness(t, 5*time.Millisecond)
	h.setResume(t)

	var violations []string
	var mu sync.Mutex
	h.analyzer.fn = func(job model.JobInput) (*model.Analysis, error) {
		snap := h.jobs.Snapshot()
		for _, j := range snap.Jobs {
			// Every earlier batch member must already be terminal.
			if j.Title < job.Title && snap.Results[j.ID].Analyzing {
				mu.Lock()
				violations = append(violations, job.Title+" started before "+j.Title+" finished")
				mu.Unlock()
			}
		}
		time.Sleep(2 * time.Millisecond)
		if job.Title == "B" {
			return nil, errors.New("remote service unavailable")
		}
		return &model.Analysis{Score: 70, MatchingSkills: []string{}, MissingSkills: []string{}}, nil
	}

	result, err := h.uc.SubmitBatch([]model.JobDetails{
		{Title: "A", Description: "a"},
		{Title: "B", Description: "b"},
		{Title: "C", Description: "c"},
	})
	require.NoError(t, err)
	h.waitIdle(t)

	assert.Equal(t, []string{"A", "B", "C"}, h.analyzer.titles())
	mu.Lock()
	assert.Empty(t, violations)
	mu.Unlock()

	snap := h.uc.Snapshot()
	a, b, c := snap.Results[result.IDs[0]], snap.Results[result.IDs[1]], snap.Results[result.IDs[2]]
	assert.False(t, a.Analyzing)
	assert.Equal(t, 70.0, a.Score)
	assert.Empty(t, a.Error)

	assert.False(t, b.Analyzing)
	assert.Equal(t, AnalysisFailedMessage, b.Error)
	assert.Zero(t, b.Score)
	assert.Empty(t, b.MatchingSkills)

	assert.False(t, c.Analyzing)
	assert.Equal(t, 70.0, c.Score)
	assert.Empty(t, c.Error)
}

func TestAnalyze_NilAnalysisAndPanicAreFailures(t *testing.T) {
	h := newHarness(t, 0)
	h.setResume(t)
	h.analyzer.fn = func(job model.JobInput) (*model.Analysis, error) {
		if job.Title == "nil" {
			return nil, nil
		}
		panic("unexpected")
	}

	result, err := h.uc.SubmitBatch([]model.JobDetails{
		{Title: "nil", Description: "x"},
		{Title: "panic", Description: "y"},
	})
	require.NoError(t, err)
	h.waitIdle(t)

	snap := h.uc.Snapshot()
	for _, id := range result.IDs {
		assert.False(t, snap.Results[id].Analyzing)
		assert.Equal(t, AnalysisFailedMessage, snap.Results[id].Error)
	}
}

func TestRemove_WhileAnalyzing(t *testing.T) {
	h := newHarness(t, 0)
	h.setResume(t)

	started := make(chan struct{})
	release := make(chan struct{})
	h.analyzer.fn = func(model.JobInput) (*model.Analysis, error) {
		close(started)
		<-release
		return &model.Analysis{Score: 90, MatchingSkills: []string{}, MissingSkills: []string{}}, nil
	}

	id, err := h.uc.Submit(model.JobDetails{Title: "Dev", Description: "Go"})
	require.NoError(t, err)
	<-started

	assert.True(t, h.uc.Remove(id))
	assert.False(t, h.uc.Remove(id))
	close(release)

	require.Eventually(t, func() bool { return len(h.analyzer.titles()) == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	snap := h.uc.Snapshot()
	requireInvariant(t, snap)
	assert.Empty(t, snap.Jobs)
}

func TestRemove_WhilePendingSkipsAnalyzer(t *testing.T) {
	h := newHarness(t, 0)
	h.setResume(t)

	started := make(chan struct{}, 3)
	release := make(chan struct{})
	h.analyzer.fn = func(job model.JobInput) (*model.Analysis, error) {
		started <- struct{}{}
		if job.Title == "A" {
			<-release
		}
		return &model.Analysis{Score: 40, MatchingSkills: []string{}, MissingSkills: []string{}}, nil
	}

	result, err := h.uc.SubmitBatch([]model.JobDetails{
		{Title: "A", Description: "a"},
		{Title: "B", Description: "b"},
		{Title: "C", Description: "c"},
	})
	require.NoError(t, err)
	<-started

	assert.True(t, h.uc.Remove(result.IDs[1]))
	close(release)
	h.waitIdle(t)

	assert.Equal(t, []string{"A", "C"}, h.analyzer.titles())

	snap := h.uc.Snapshot()
	requireInvariant(t, snap)
	assert.Len(t, snap.Jobs, 2)
	assert.Equal(t, 40.0, snap.Results[result.IDs[2]].Score)
}

func TestSubmit_UsesResumeCurrentAtSubmission(t *testing.T) {
	h := newHarness(t, 0)
	h.setResume(t)

	release := make(chan struct{})
	h.analyzer.fn = func(model.JobInput) (*model.Analysis, error) {
		<-release
		return &model.Analysis{MatchingSkills: []string{}, MissingSkills: []string{}}, nil
	}

	_, err := h.uc.Submit(model.JobDetails{Title: "Dev", Description: "Go"})
	require.NoError(t, err)

	_, err = h.uc.SetResume("new.txt", []byte("Rust"))
	require.NoError(t, err)
	close(release)
	h.waitIdle(t)

	h.analyzer.mu.Lock()
	defer h.analyzer.mu.Unlock()
	assert.Equal(t, "r.txt", h.analyzer.resumes[0].FileName)
}

func TestResumeLifecycle(t *testing.T) {
	h := newHarness(t, 0)

	_, ok := h.uc.Resume()
	assert.False(t, ok)

	_, err := h.uc.SetResume("cv.docx", []byte("x"))
	assert.ErrorIs(t, err, util.ErrUnsupportedFileType)
	_, ok = h.uc.Resume()
	assert.False(t, ok)

	r, err := h.uc.SetResume("r.txt", []byte(" 5 years\nReact, Node "))
	require.NoError(t, err)
	assert.Equal(t, model.Resume{Text: "5 years React, Node", FileName: "r.txt"}, r)

	h.uc.ClearResume()
	_, ok = h.uc.Resume()
	assert.False(t, ok)
}

func TestImport(t *testing.T) {
	h := newHarness(t, 0)
	h.setResume(t)

	result, found, err := h.uc.Import("<p>nothing here</p>")
	require.NoError(t, err)
	assert.Zero(t, found)
	assert.Empty(t, result.IDs)
	assert.Empty(t, h.uc.Snapshot().Jobs)

	markup := `
		<div class="base-card"><a href="/jobs/view/1"></a><h3 class="base-search-card__title">One</h3><h4 class="base-search-card__subtitle">Acme</h4></div>
		<div class="base-card"><a href="/jobs/view/2"></a><h3 class="base-search-card__title">Two</h3></div>`
	result, found, err = h.uc.Import(markup)
	require.NoError(t, err)
	assert.Equal(t, 2, found)
	assert.Len(t, result.IDs, 2)
	h.waitIdle(t)

	snap := h.uc.Snapshot()
	require.Len(t, snap.Jobs, 2)
	assert.Equal(t, "One", snap.Jobs[0].Title)
	assert.Equal(t, "Two", snap.Jobs[1].Title)
	assert.Equal(t, importer.PlaceholderDescription, snap.Jobs[0].Description)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/1", snap.Jobs[0].URL)
}

func TestImport_RequiresResume(t *testing.T) {
	h := newHarness(t, 0)

	_, found, err := h.uc.Import(`<div class="base-card"></div>`)
	assert.ErrorIs(t, err, ErrResumeRequired)
	assert.Equal(t, 1, found)
	assert.Empty(t, h.uc.Snapshot().Jobs)
}

func TestSearchURL(t *testing.T) {
	h := newHarness(t, 0)

	url, err := h.uc.SearchURL(model.SearchFilters{Keyword: "golang", JobType: []string{"F"}})
	require.NoError(t, err)
	assert.Equal(t, "https://www.linkedin.com/jobs/search/?f_TPR=r86400&keywords=golang&f_JT=F", url)

	_, err = h.uc.SearchURL(model.SearchFilters{ExperienceLevel: []string{"9"}})
	var formErr *util.FormError
	require.ErrorAs(t, err, &formErr)
	assert.Contains(t, formErr.Errors, "experience_level[0]")
}

func TestExportXLSX(t *testing.T) {
	h := newHarness(t, 0)
	name, data, err := h.uc.ExportXLSX(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "job_match_results_2026-10-15.xlsx", name)
	assert.NotEmpty(t, data)
}
