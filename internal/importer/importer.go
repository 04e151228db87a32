package importer

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fadilmartias/job-matcher/internal/model"
	"github.com/fadilmartias/job-matcher/internal/util"
)

// Parser extracts partial job records from pasted markup. Markup it does not
// recognize yields an empty list, not an error.
type Parser interface {
	Parse(markup string) ([]model.JobDetails, error)
}

const (
	PlaceholderDescription = "This job was imported from LinkedIn search. [Description placeholder - paste full details for better matching]"
	defaultTitle           = "Imported Job"
	defaultCompany         = "Unknown Company"
	linkedInOrigin         = "https://www.linkedin.com"
)

// Selectors for the LinkedIn search results list.
const (
	cardSelector    = `.base-card, [data-entity-urn*="jobPosting"]`
	titleSelector   = ".base-search-card__title, .job-search-card__title"
	companySelector = ".base-search-card__subtitle, .job-search-card__subtitle"
)

type LinkedInParser struct {
	base *url.URL
}

func NewLinkedInParser() *LinkedInParser {
	base, _ := url.Parse(linkedInOrigin)
	return &LinkedInParser{base: base}
}

func (p *LinkedInParser) Parse(markup string) ([]model.JobDetails, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	// A card can match both selectors through a wrapper; keep the outermost.
	cards := doc.Find(cardSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.ParentsFiltered(cardSelector).Length() == 0
	})

	jobs := make([]model.JobDetails, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		jobs = append(jobs, model.JobDetails{
			Title:       textOr(card.Find(titleSelector).First(), defaultTitle),
			Company:     textOr(card.Find(companySelector).First(), defaultCompany),
			Description: PlaceholderDescription,
			URL:         p.link(card),
		})
	})
	return jobs, nil
}

func (p *LinkedInParser) link(card *goquery.Selection) string {
	var anchor *goquery.Selection
	if goquery.NodeName(card) == "a" {
		anchor = card
	} else {
		anchor = card.Find("a[href]").First()
	}

	href, ok := anchor.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.base.ResolveReference(ref).String()
}

func textOr(s *goquery.Selection, fallback string) string {
	if text := util.CollapseWhitespace(s.Text()); text != "" {
		return text
	}
	return fallback
}
