package model

import (
	"fmt"
	"strings"
)

// Validate checks the structural invariants a post must satisfy before it
// enters the pipeline: a non-empty URL (the merge key) and a title. Called at
// the two trust boundaries: after scraping and after batch reconstruction.
func (p *Post) Validate() error {
	var issues []string
	if strings.TrimSpace(p.URL) == "" {
		issues = append(issues, "missing url")
	}
	if strings.TrimSpace(p.Title) == "" {
		issues = append(issues, "missing title")
	}
	if p.PublicationDate != "" && p.PublicationDate != NA {
		if _, ok := p.Date(); !ok {
			issues = append(issues, fmt.Sprintf("unparsable publication_date %q", p.PublicationDate))
		}
	}
	if len(issues) == 0 {
		return nil
	}
	return fmt.Errorf("invalid post %q: %s", p.URL, strings.Join(issues, "; "))
}

// Normalize fills in NA sentinels for any enrichment field left empty, so
// downstream code can rely on "never absent, only NA".
func (p *Post) Normalize() {
	if p.PublicationDate == "" {
		p.PublicationDate = NA
	}
	for _, f := range []*string{&p.Summary, &p.SEOKeywords, &p.FunnelStage, &p.TargetAudience} {
		if *f == "" {
			*f = NA
		}
	}
}
