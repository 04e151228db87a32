package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Analysis is the structured answer of the match analyzer for one job.
type Analysis struct {
	Score          float64  `json:"score"`
	Reasoning      string   `json:"reasoning"`
	CoverLetter    string   `json:"cover_letter"`
	MatchingSkills []string `json:"matching_skills"`
	MissingSkills  []string `json:"missing_skills"`
}

// MatchResult is the per-job status entry. It starts as a placeholder with
// Analyzing set and flips to Analyzing=false exactly once.
type MatchResult struct {
	JobID          string   `json:"job_id"`
	Score          float64  `json:"score"`
	Reasoning      string   `json:"reasoning"`
	CoverLetter    string   `json:"cover_letter"`
	MatchingSkills []string `json:"matching_skills"`
	MissingSkills  []string `json:"missing_skills"`
	Analyzing      bool     `json:"analyzing"`
	Error          string   `json:"error,omitempty"`
}

func NewPlaceholderResult(jobID string) MatchResult {
	return MatchResult{
		JobID:          jobID,
		MatchingSkills: []string{},
		MissingSkills:  []string{},
		Analyzing:      true,
	}
}

// MatchRecord is an archived, successfully analyzed job.
type MatchRecord struct {
	ID             string           `gorm:"type:varchar(64);primaryKey" json:"id"`
	Title          string           `json:"title"`
	Company        string           `json:"company"`
	Description    string           `gorm:"type:text" json:"description"`
	URL            string           `json:"url"`
	ResumeFileName string           `json:"resume_file_name"`
	Score          float64          `gorm:"type:float" json:"score"`
	Reasoning      string           `gorm:"type:text" json:"reasoning"`
	CoverLetter    string           `gorm:"type:text" json:"cover_letter"`
	MatchingSkills []string         `gorm:"type:jsonb;serializer:json" json:"matching_skills"`
	MissingSkills  []string         `gorm:"type:jsonb;serializer:json" json:"missing_skills"`
	Embedding      *pgvector.Vector `gorm:"type:vector(3072)" json:"-"`
	Distance       float64          `gorm:"->;-:migration" json:"distance,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (m *MatchRecord) TableName() string {
	return "match_records"
}
