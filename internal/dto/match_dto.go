package dto

import (
	"github.com/fadilmartias/job-matcher/internal/model"
	"github.com/fadilmartias/job-matcher/internal/search"
	"github.com/fadilmartias/job-matcher/internal/store"
)

type BatchRequest struct {
	Jobs []model.JobDetails `json:"jobs"`
}

type ImportRequest struct {
	HTML string `json:"html"`
}

type JobView struct {
	Job    model.JobInput    `json:"job"`
	Result model.MatchResult `json:"result"`
}

type SnapshotDTO struct {
	Jobs       []JobView `json:"jobs"`
	Total      int       `json:"total"`
	Processing int       `json:"processing"`
}

// NewSnapshotDTO pairs every job with its result, newest first.
func NewSnapshotDTO(snap store.Snapshot) SnapshotDTO {
	views := make([]JobView, 0, len(snap.Jobs))
	for _, j := range snap.Jobs {
		views = append(views, JobView{Job: j, Result: snap.Results[j.ID]})
	}
	return SnapshotDTO{
		Jobs:       views,
		Total:      len(views),
		Processing: snap.Processing(),
	}
}

type SearchOptionsDTO struct {
	ExperienceLevels []search.Option `json:"experience_levels"`
	RemoteOptions    []search.Option `json:"remote_options"`
	JobTypes         []search.Option `json:"job_types"`
}
