package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fadilmartias/job-matcher/internal/model"
	"github.com/fadilmartias/job-matcher/internal/store"
)

const baseFileName = "job_match_results"

var header = []string{"Title", "Company", "Score", "Reasoning", "Cover Letter", "Link"}

// Row is one exported job. Jobs whose result is missing or still analyzing
// export with empty text and a zero score.
type Row struct {
	Title       string
	Company     string
	Score       float64
	Reasoning   string
	CoverLetter string
	Link        string
}

// Rows flattens a snapshot in queue order.
func Rows(snap store.Snapshot) []Row {
	rows := make([]Row, 0, len(snap.Jobs))
	for _, job := range snap.Jobs {
		rows = append(rows, rowFor(job, snap.Results[job.ID]))
	}
	return rows
}

func rowFor(job model.JobInput, res model.MatchResult) Row {
	return Row{
		Title:       job.Title,
		Company:     job.Company,
		Score:       res.Score,
		Reasoning:   res.Reasoning,
		CoverLetter: res.CoverLetter,
		Link:        job.URL,
	}
}

// FileName returns the download name for the given export date and extension.
func FileName(now time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", baseFileName, now.Format("2006-01-02"), ext)
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
