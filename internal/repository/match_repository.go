package repository

import (
	"context"

	"github.com/fadilmartias/job-matcher/internal/model"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db}
}

// Save upserts a record keyed by its job id.
func (r *MatchRepository) Save(ctx context.Context, record *model.MatchRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(record).Error
}

// List returns one page of records, newest first, and the total count.
func (r *MatchRepository) List(ctx context.Context, page, pageSize int) ([]model.MatchRecord, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.MatchRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []model.MatchRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	return records, total, err
}

// SearchSimilar returns the archived jobs closest to the embedding.
func (r *MatchRepository) SearchSimilar(ctx context.Context, embedding pgvector.Vector, topK int) ([]model.MatchRecord, error) {
	var records []model.MatchRecord

	err := r.db.WithContext(ctx).Raw(`
        SELECT *, embedding <-> ? AS distance
        FROM match_records
        WHERE embedding IS NOT NULL
        ORDER BY embedding <-> ?
        LIMIT ?
    `, embedding, embedding, topK).Scan(&records).Error

	return records, err
}
