package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/fadilmartias/job-matcher/internal/model"
	"github.com/fadilmartias/job-matcher/internal/response"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

var (
	ErrArchiveDisabled       = errors.New("match archive is not configured")
	ErrEmbeddingsUnavailable = errors.New("similarity search needs an embedding provider")
)

// MatchStore persists finished matches. repository.MatchRepository implements it.
type MatchStore interface {
	Save(ctx context.Context, record *model.MatchRecord) error
	List(ctx context.Context, page, pageSize int) ([]model.MatchRecord, int64, error)
	SearchSimilar(ctx context.Context, embedding pgvector.Vector, topK int) ([]model.MatchRecord, error)
}

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Archive keeps successful matches beyond the in-memory session. Failures
// here are logged and never touch the live result.
type Archive struct {
	store    MatchStore
	embedder Embedder
}

// NewArchive builds an archive; embedder may be nil, which disables
// similarity search.
func NewArchive(store MatchStore, embedder Embedder) *Archive {
	return &Archive{store: store, embedder: embedder}
}

func (a *Archive) Record(ctx context.Context, resume model.Resume, job model.JobInput, analysis model.Analysis) {
	record := &model.MatchRecord{
		ID:             job.ID,
		Title:          job.Title,
		Company:        job.Company,
		Description:    job.Description,
		URL:            job.URL,
		ResumeFileName: resume.FileName,
		Score:          analysis.Score,
		Reasoning:      analysis.Reasoning,
		CoverLetter:    analysis.CoverLetter,
		MatchingSkills: analysis.MatchingSkills,
		MissingSkills:  analysis.MissingSkills,
	}

	if a.embedder != nil {
		emb, err := a.embedder.GenerateEmbedding(ctx, job.Title+"\n"+job.Description)
		if err != nil {
			zap.S().Warnw("failed to embed job for archive", "job_id", job.ID, "error", err)
		} else {
			v := pgvector.NewVector(emb)
			record.Embedding = &v
		}
	}

	if err := a.store.Save(ctx, record); err != nil {
		zap.S().Errorw("failed to archive match", "job_id", job.ID, "error", err)
	}
}

func (a *Archive) History(ctx context.Context, page, pageSize int) ([]model.MatchRecord, *response.Pagination, error) {
	records, total, err := a.store.List(ctx, page, pageSize)
	if err != nil {
		return nil, nil, fmt.Errorf("list archived matches: %w", err)
	}
	return records, paginate(page, pageSize, total, len(records)), nil
}

func (a *Archive) Similar(ctx context.Context, resume model.Resume, topK int) ([]model.MatchRecord, error) {
	if a.embedder == nil {
		return nil, ErrEmbeddingsUnavailable
	}

	emb, err := a.embedder.GenerateEmbedding(ctx, resume.Text)
	if err != nil {
		return nil, fmt.Errorf("embed resume: %w", err)
	}

	records, err := a.store.SearchSimilar(ctx, pgvector.NewVector(emb), topK)
	if err != nil {
		return nil, fmt.Errorf("search archived matches: %w", err)
	}
	return records, nil
}

func paginate(page, pageSize int, total int64, count int) *response.Pagination {
	totalPages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		totalPages++
	}

	from := (page-1)*pageSize + 1
	to := from + count - 1
	if count == 0 {
		from, to = 0, 0
	}

	return &response.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		TotalItems: total,
		HasMore:    int64(page) < totalPages,
		From:       from,
		To:         to,
	}
}

// History lists archived matches.
func (uc *MatchUsecase) History(ctx context.Context, page, pageSize int) ([]model.MatchRecord, *response.Pagination, error) {
	if uc.archive == nil {
		return nil, nil, ErrArchiveDisabled
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return uc.archive.History(ctx, page, pageSize)
}

// SimilarJobs ranks archived jobs by closeness to the current resume.
func (uc *MatchUsecase) SimilarJobs(ctx context.Context, topK int) ([]model.MatchRecord, error) {
	if uc.archive == nil {
		return nil, ErrArchiveDisabled
	}
	resume, ok := uc.resumes.Get()
	if !ok {
		return nil, ErrResumeRequired
	}
	if topK < 1 || topK > 50 {
		topK = 5
	}
	return uc.archive.Similar(ctx, resume, topK)
}
