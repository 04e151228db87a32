package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fadilmartias/job-matcher/internal/model"
	"github.com/tidwall/gjson"
)

// Analyzer scores one job against a resume. Implementations make a single
// remote call per invocation and return an error for anything that is not a
// well-formed analysis.
type Analyzer interface {
	Analyze(ctx context.Context, resume model.Resume, job model.JobInput) (*model.Analysis, error)
}

var ErrMalformedAnalysis = errors.New("malformed analysis response")

const matcherSystemPrompt = `You are a helpful job matcher. Read the candidate resume, then analyze it against the given job description and provide a job matching score (0-100).

Also write a cover letter based on the resume and the job description.
CRITICAL REQUIREMENTS for the cover letter:
- It must be at least 2 paragraphs.
- Leave out the name, address and signature blocks at the start and the end.
- Do not include [Your Name], [Your Address] or generic placeholders for the sender/receiver info.
- Start directly with the salutation (e.g. "Dear Hiring Manager").

Additional analysis:
- Identify matching skills.
- Identify missing skills.
- Provide a brief reasoning for the score.

Return the response strictly as a JSON object with this schema:
{
  "score": <number 0-100>,
  "reasoning": "<brief professional explanation for the score>",
  "coverLetter": "<tailored cover letter, min 2 paragraphs, no headers/footers>",
  "matchingSkills": ["<skill from the resume that matches the job>"],
  "missingSkills": ["<key skill in the job that the resume lacks>"]
}`

func buildMatchPrompt(resume model.Resume, job model.JobInput) string {
	var b strings.Builder
	if job.Title != "" {
		fmt.Fprintf(&b, "job_title: %s\n", job.Title)
	}
	if job.Company != "" {
		fmt.Fprintf(&b, "company: %s\n", job.Company)
	}
	fmt.Fprintf(&b, "job_description: %s\n", job.Description)
	fmt.Fprintf(&b, "my_resume: %s\n", resume.Text)
	return b.String()
}

// ParseAnalysis validates and decodes the JSON text produced by the model.
// All five fields are required and must carry the right JSON type.
func ParseAnalysis(text string) (*model.Analysis, error) {
	text = stripCodeFence(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedAnalysis)
	}
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrMalformedAnalysis)
	}

	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedAnalysis)
	}

	score := doc.Get("score")
	if score.Type != gjson.Number {
		return nil, fmt.Errorf("%w: score must be a number", ErrMalformedAnalysis)
	}
	if s := score.Float(); s < 0 || s > 100 {
		return nil, fmt.Errorf("%w: score %v out of range 0-100", ErrMalformedAnalysis, s)
	}

	for _, key := range []string{"reasoning", "coverLetter"} {
		if doc.Get(key).Type != gjson.String {
			return nil, fmt.Errorf("%w: %s must be a string", ErrMalformedAnalysis, key)
		}
	}

	matching, err := stringArray(doc, "matchingSkills")
	if err != nil {
		return nil, err
	}
	missing, err := stringArray(doc, "missingSkills")
	if err != nil {
		return nil, err
	}

	return &model.Analysis{
		Score:          score.Float(),
		Reasoning:      doc.Get("reasoning").String(),
		CoverLetter:    doc.Get("coverLetter").String(),
		MatchingSkills: matching,
		MissingSkills:  missing,
	}, nil
}

func stringArray(doc gjson.Result, key string) ([]string, error) {
	v := doc.Get(key)
	if !v.IsArray() {
		return nil, fmt.Errorf("%w: %s must be an array", ErrMalformedAnalysis, key)
	}

	items := v.Array()
	out := make([]string, 0, len(items))
	for i, item := range items {
		if item.Type != gjson.String {
			return nil, fmt.Errorf("%w: %s[%d] must be a string", ErrMalformedAnalysis, key, i)
		}
		out = append(out, item.String())
	}
	return out, nil
}

// stripCodeFence removes a surrounding ```json ... ``` block some models add.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "json")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
