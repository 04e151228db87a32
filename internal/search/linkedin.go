package search

import (
	"net/url"
	"strings"

	"github.com/fadilmartias/job-matcher/internal/model"
)

// baseURL limits results to postings from the last 24 hours.
const baseURL = "https://www.linkedin.com/jobs/search/?f_TPR=r86400"

type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

var (
	ExperienceLevels = []Option{
		{Label: "Internship", Value: "1"},
		{Label: "Entry level", Value: "2"},
		{Label: "Associate", Value: "3"},
		{Label: "Mid-Senior level", Value: "4"},
		{Label: "Director", Value: "5"},
		{Label: "Executive", Value: "6"},
	}
	RemoteOptions = []Option{
		{Label: "On-Site", Value: "1"},
		{Label: "Remote", Value: "2"},
		{Label: "Hybrid", Value: "3"},
	}
	JobTypes = []Option{
		{Label: "Full-time", Value: "F"},
		{Label: "Part-time", Value: "P"},
		{Label: "Contract", Value: "C"},
		{Label: "Temporary", Value: "T"},
		{Label: "Other", Value: "O"},
		{Label: "Internship", Value: "I"},
	}
)

// BuildURL encodes the filters into a LinkedIn job search URL. Parameters are
// emitted in a fixed order so equal filters give equal URLs.
func BuildURL(f model.SearchFilters) string {
	var b strings.Builder
	b.WriteString(baseURL)

	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		b.WriteString("&keywords=" + escape(kw))
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		b.WriteString("&location=" + escape(loc))
	}
	writeList(&b, "f_E", f.ExperienceLevel)
	writeList(&b, "f_WT", f.Remote)
	writeList(&b, "f_JT", f.JobType)
	if f.EasyApply {
		b.WriteString("&f_EA=true")
	}
	return b.String()
}

// escape encodes a value the way browsers encode URI components, with %20
// for spaces.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func writeList(b *strings.Builder, key string, values []string) {
	if len(values) == 0 {
		return
	}
	b.WriteString("&" + key + "=" + strings.Join(values, ","))
}
