package export

import (
	"strings"

	"github.com/fadilmartias/job-matcher/internal/store"
)

// CSV renders the snapshot. Every text field is quoted with embedded quotes
// doubled; the score is written bare.
func CSV(snap store.Snapshot) []byte {
	var b strings.Builder
	b.WriteString(strings.Join(header, ","))

	for _, row := range Rows(snap) {
		b.WriteByte('\n')
		b.WriteString(quote(row.Title))
		b.WriteByte(',')
		b.WriteString(quote(row.Company))
		b.WriteByte(',')
		b.WriteString(formatScore(row.Score))
		b.WriteByte(',')
		b.WriteString(quote(row.Reasoning))
		b.WriteByte(',')
		b.WriteString(quote(row.CoverLetter))
		b.WriteByte(',')
		b.WriteString(quote(row.Link))
	}
	return []byte(b.String())
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
