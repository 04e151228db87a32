package usecase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/fadilmartias/job-matcher/internal/export"
	"github.com/fadilmartias/job-matcher/internal/importer"
	"github.com/fadilmartias/job-matcher/internal/model"
	"github.com/fadilmartias/job-matcher/internal/search"
	"github.com/fadilmartias/job-matcher/internal/service"
	"github.com/fadilmartias/job-matcher/internal/store"
	"github.com/fadilmartias/job-matcher/internal/util"
	"github.com/fadilmartias/job-matcher/internal/worker"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrResumeRequired = errors.New("please upload your resume first")

// AnalysisFailedMessage is what a failed job shows; the cause goes to the log.
const AnalysisFailedMessage = "AI matching failed. Please try again."

// TaskQueue accepts analysis tasks. worker.Queue is the production implementation.
type TaskQueue interface {
	Enqueue(tasks ...worker.Task)
}

// Rejection describes a batch item that failed validation.
type Rejection struct {
	Index  int               `json:"index"`
	Errors map[string]string `json:"errors"`
}

type BatchResult struct {
	IDs      []string    `json:"ids"`
	Rejected []Rejection `json:"rejected,omitempty"`
}

type MatchUsecase struct {
	resumes  *store.ResumeStore
	jobs     *store.JobStore
	queue    TaskQueue
	analyzer service.Analyzer
	parser   importer.Parser
	archive  *Archive
	validate *validator.Validate
	newID    func() string
}

func NewMatchUsecase(resumes *store.ResumeStore, jobs *store.JobStore, queue TaskQueue, analyzer service.Analyzer, parser importer.Parser) *MatchUsecase {
	return &MatchUsecase{
		resumes:  resumes,
		jobs:     jobs,
		queue:    queue,
		analyzer: analyzer,
		parser:   parser,
		validate: newValidator(),
		newID:    uuid.NewString,
	}
}

// WithArchive enables persisting finished matches.
func (uc *MatchUsecase) WithArchive(a *Archive) *MatchUsecase {
	uc.archive = a
	return uc
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// SetResume extracts the text of an uploaded file and makes it the active resume.
func (uc *MatchUsecase) SetResume(fileName string, data []byte) (model.Resume, error) {
	text, err := util.ExtractResumeText(fileName, data)
	if err != nil {
		return model.Resume{}, err
	}

	resume := model.Resume{Text: text, FileName: fileName}
	uc.resumes.Set(resume)
	zap.S().Infow("resume updated", "file_name", fileName, "chars", len(text))
	return resume, nil
}

func (uc *MatchUsecase) Resume() (model.Resume, bool) {
	return uc.resumes.Get()
}

func (uc *MatchUsecase) ClearResume() {
	uc.resumes.Clear()
}

// Submit queues one job for analysis and returns its id. Validation happens
// before anything is stored.
func (uc *MatchUsecase) Submit(details model.JobDetails) (string, error) {
	resume, ok := uc.resumes.Get()
	if !ok {
		return "", ErrResumeRequired
	}

	details = normalizeDetails(details)
	if err := uc.validate.Struct(details); err != nil {
		return "", util.FormErrorFromValidation("title and description are required", err)
	}

	job := uc.newJob(details)
	uc.jobs.Add(job)
	uc.queue.Enqueue(uc.analysisTask(resume, job))

	zap.S().Infow("job queued", "job_id", job.ID, "title", job.Title)
	return job.ID, nil
}

// SubmitBatch queues every valid item as one block, in input order.
// Invalid items are reported and skipped.
func (uc *MatchUsecase) SubmitBatch(items []model.JobDetails) (BatchResult, error) {
	resume, ok := uc.resumes.Get()
	if !ok {
		return BatchResult{}, ErrResumeRequired
	}

	result := BatchResult{IDs: make([]string, 0, len(items))}
	accepted := make([]model.JobInput, 0, len(items))

	for i, item := range items {
		item = normalizeDetails(item)
		if err := uc.validate.Struct(item); err != nil {
			var formErr *util.FormError
			if errors.As(util.FormErrorFromValidation("invalid job", err), &formErr) {
				result.Rejected = append(result.Rejected, Rejection{Index: i, Errors: formErr.Errors})
				continue
			}
			return BatchResult{}, err
		}

		job := uc.newJob(item)
		accepted = append(accepted, job)
		result.IDs = append(result.IDs, job.ID)
	}

	if len(accepted) == 0 {
		return result, nil
	}

	uc.jobs.Add(accepted...)

	tasks := make([]worker.Task, 0, len(accepted))
	for _, job := range accepted {
		tasks = append(tasks, uc.analysisTask(resume, job))
	}
	uc.queue.Enqueue(tasks...)

	zap.S().Infow("batch queued", "accepted", len(accepted), "rejected", len(result.Rejected))
	return result, nil
}

// Import parses pasted search results and queues what it finds. found is the
// number of postings recognized in the markup.
func (uc *MatchUsecase) Import(markup string) (result BatchResult, found int, err error) {
	items, err := uc.parser.Parse(markup)
	if err != nil {
		return BatchResult{}, 0, err
	}
	if len(items) == 0 {
		return BatchResult{IDs: []string{}}, 0, nil
	}

	result, err = uc.SubmitBatch(items)
	return result, len(items), err
}

// Remove drops a job together with its result.
func (uc *MatchUsecase) Remove(id string) bool {
	return uc.jobs.Remove(id)
}

func (uc *MatchUsecase) Snapshot() store.Snapshot {
	return uc.jobs.Snapshot()
}

func (uc *MatchUsecase) ExportCSV(now time.Time) (string, []byte) {
	return export.FileName(now, "csv"), export.CSV(uc.jobs.Snapshot())
}

func (uc *MatchUsecase) ExportXLSX(now time.Time) (string, []byte, error) {
	data, err := export.XLSX(uc.jobs.Snapshot())
	if err != nil {
		return "", nil, err
	}
	return export.FileName(now, "xlsx"), data, nil
}

func (uc *MatchUsecase) SearchURL(filters model.SearchFilters) (string, error) {
	if err := uc.validate.Struct(filters); err != nil {
		return "", util.FormErrorFromValidation("invalid search filters", err)
	}
	return search.BuildURL(filters), nil
}

func (uc *MatchUsecase) newJob(d model.JobDetails) model.JobInput {
	return model.JobInput{
		ID:          uc.newID(),
		Title:       d.Title,
		Company:     d.Company,
		Description: d.Description,
		URL:         d.URL,
	}
}

func (uc *MatchUsecase) analysisTask(resume model.Resume, job model.JobInput) worker.Task {
	return worker.Task{
		Name: job.ID,
		Run: func(ctx context.Context) {
			uc.analyze(ctx, resume, job)
		},
	}
}

// analyze performs the single analyzer call for a job and records the
// terminal transition. Nothing escapes this function.
func (uc *MatchUsecase) analyze(ctx context.Context, resume model.Resume, job model.JobInput) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("analyzer panicked", "job_id", job.ID, "panic", r)
			uc.jobs.Fail(job.ID, AnalysisFailedMessage)
		}
	}()

	if _, _, ok := uc.jobs.Get(job.ID); !ok {
		zap.S().Infow("job removed before analysis started", "job_id", job.ID)
		return
	}

	analysis, err := uc.analyzer.Analyze(ctx, resume, job)
	if err == nil && analysis == nil {
		err = fmt.Errorf("%w: analyzer returned nothing", service.ErrMalformedAnalysis)
	}
	if err != nil {
		zap.S().Errorw("failed to analyze job", "job_id", job.ID, "title", job.Title, "error", err)
		uc.jobs.Fail(job.ID, AnalysisFailedMessage)
		return
	}

	if !uc.jobs.Complete(job.ID, *analysis) {
		zap.S().Infow("job removed before analysis finished", "job_id", job.ID)
		return
	}
	zap.S().Infow("job analyzed", "job_id", job.ID, "score", analysis.Score)

	if uc.archive != nil {
		uc.archive.Record(ctx, resume, job, *analysis)
	}
}

func normalizeDetails(d model.JobDetails) model.JobDetails {
	return model.JobDetails{
		Title:       util.CollapseWhitespace(d.Title),
		Company:     util.CollapseWhitespace(d.Company),
		Description: util.CollapseWhitespace(d.Description),
		URL:         strings.TrimSpace(d.URL),
	}
}
