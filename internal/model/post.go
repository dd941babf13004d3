package model

import (
	"sort"
	"strings"
	"time"
)

// NA is the explicit "unset" sentinel for enrichment fields. Fields are never
// absent: a post that has not been enriched carries NA, not "".
const NA = "N/A"

// EnrichmentStatus classifies the outcome of enriching one post.
type EnrichmentStatus string

const (
	StatusCompleted EnrichmentStatus = "completed"
	StatusFailed    EnrichmentStatus = "failed"
	StatusNoContent EnrichmentStatus = "no_content"
)

// Heading is a document heading captured during scraping.
type Heading struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

// Schema is a schema.org JSON-LD block captured during scraping. Only the
// type is kept structurally; the raw block is preserved for export.
type Schema struct {
	Type string         `json:"@type"`
	Raw  map[string]any `json:"raw,omitempty"`
}

// StrategicAnalysis holds the structured competitive analysis returned by the
// enrichment model.
type StrategicAnalysis struct {
	ContentAngle               string `json:"content_angle"`
	CompetitiveDifferentiation string `json:"competitive_differentiation"`
	ContentFreshnessScore      string `json:"content_freshness_score"`
	TargetPersonaIndicators    string `json:"target_persona_indicators"`
	ContentDepth               string `json:"content_depth"`
}

// ContentMetrics holds measurements computed by the content preprocessor.
type ContentMetrics struct {
	Words          int `json:"words"`
	ReadingMinutes int `json:"reading_minutes"`
	Sentences      int `json:"sentences"`
	Headings       int `json:"headings"`
	ListItems      int `json:"list_items"`
	Links          int `json:"links"`
	Images         int `json:"images"`
}

// ProcessingInfo records what the content preprocessor did to a post.
type ProcessingInfo struct {
	OriginalLength  int             `json:"original_length,omitempty"`
	ProcessedLength int             `json:"processed_length,omitempty"`
	ChunkLength     int             `json:"chunk_length,omitempty"`
	Chunked         bool            `json:"chunked"`
	ChunkNumber     int             `json:"chunk_number,omitempty"`
	TotalChunks     int             `json:"total_chunks,omitempty"`
	CleaningApplied bool            `json:"cleaning_applied,omitempty"`
	WasChunked      bool            `json:"was_chunked,omitempty"`
	ChunkCount      int             `json:"chunk_count,omitempty"`
	MergedBack      bool            `json:"merged_back,omitempty"`
	Metrics         *ContentMetrics `json:"metrics,omitempty"`
}

// Post is a scraped (and eventually enriched) blog post. URL is the stable
// identity: two posts with the same URL are the same logical entity no matter
// which scrape or batch job produced them.
type Post struct {
	Competitor      string    `json:"competitor,omitempty"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	PublicationDate string    `json:"publication_date"` // ISO date (2006-01-02) or NA
	Content         string    `json:"content"`
	SEOMetaKeywords string    `json:"seo_meta_keywords,omitempty"`
	Headings        []Heading `json:"headings,omitempty"`
	Schemas         []Schema  `json:"schemas,omitempty"`

	// Enrichment payload. NA until the enrichment router fills them in.
	Summary           string             `json:"summary"`
	SEOKeywords       string             `json:"seo_keywords"`
	FunnelStage       string             `json:"funnel_stage"`
	TargetAudience    string             `json:"target_audience"`
	StrategicAnalysis *StrategicAnalysis `json:"strategic_analysis,omitempty"`

	// Chunk bookkeeping, present only between Prepare and MergeChunkedResults.
	OriginalTitle string `json:"original_title,omitempty"`
	ChunkIndex    int    `json:"chunk_index,omitempty"`
	TotalChunks   int    `json:"total_chunks,omitempty"`

	Processing *ProcessingInfo  `json:"content_processing,omitempty"`
	Status     EnrichmentStatus `json:"enrichment_status,omitempty"`
}

// NewPost returns a Post with enrichment fields set to the NA sentinel.
func NewPost(competitor, title, url string) Post {
	return Post{
		Competitor:      competitor,
		Title:           title,
		URL:             url,
		PublicationDate: NA,
		Summary:         NA,
		SEOKeywords:     NA,
		FunnelStage:     NA,
		TargetAudience:  NA,
	}
}

// IsChunk reports whether the post is a transient content chunk.
func (p *Post) IsChunk() bool {
	return p.Processing != nil && p.Processing.Chunked
}

// HasContent reports whether the post has substantive content worth sending
// to the enrichment model. Whitespace and very short fragments don't count.
func (p *Post) HasContent() bool {
	if p.Content == "" || p.Content == NA {
		return false
	}
	return len(strings.TrimSpace(p.Content)) > 10
}

// IsEnriched reports whether at least one enrichment field holds a real value.
func (p *Post) IsEnriched() bool {
	for _, v := range []string{p.Summary, p.SEOKeywords, p.FunnelStage, p.TargetAudience} {
		if v != "" && v != NA {
			return true
		}
	}
	return p.StrategicAnalysis != nil
}

// NeedsEnrichment reports whether the post should be sent for enrichment and
// which fields are missing. Posts without content never need enrichment.
func (p *Post) NeedsEnrichment() (bool, []string) {
	if !p.HasContent() {
		return false, nil
	}

	var missing []string
	checks := []struct {
		name  string
		value string
	}{
		{"summary", p.Summary},
		{"seo_keywords", p.SEOKeywords},
		{"funnel_stage", p.FunnelStage},
		{"target_audience", p.TargetAudience},
	}
	for _, c := range checks {
		if c.value == "" || c.value == NA {
			missing = append(missing, c.name)
		}
	}
	if p.StrategicAnalysis == nil {
		missing = append(missing, "strategic_analysis")
	}
	if p.Status == StatusFailed {
		missing = append(missing, "enrichment_status")
	}
	return len(missing) > 0, missing
}

// RichnessScore counts non-empty, non-NA fields. Used as the tie-break when
// two records share a URL: the richer one wins.
func (p *Post) RichnessScore() int {
	score := 0
	for _, v := range []string{
		p.Title, p.PublicationDate, p.Content, p.SEOMetaKeywords,
		p.Summary, p.SEOKeywords, p.FunnelStage, p.TargetAudience,
	} {
		if v != "" && v != NA {
			score++
		}
	}
	if p.StrategicAnalysis != nil {
		score++
	}
	if len(p.Headings) > 0 {
		score++
	}
	if len(p.Schemas) > 0 {
		score++
	}
	return score
}

// Date returns the parsed publication date, or ok=false when the date is
// unknown or unparsable.
func (p *Post) Date() (time.Time, bool) {
	if p.PublicationDate == "" || p.PublicationDate == NA {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", p.PublicationDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SortByDateDesc orders posts newest first. Posts without a usable date are
// appended after the dated ones, their relative order unspecified.
func SortByDateDesc(posts []Post) []Post {
	dated := make([]Post, 0, len(posts))
	undated := make([]Post, 0)
	for _, p := range posts {
		if _, ok := p.Date(); ok {
			dated = append(dated, p)
		} else {
			undated = append(undated, p)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool {
		di, _ := dated[i].Date()
		dj, _ := dated[j].Date()
		return di.After(dj)
	})
	return append(dated, undated...)
}

// DedupeByURL keeps one post per URL, preferring the richer record when the
// same URL appears more than once. First-seen order is preserved.
func DedupeByURL(posts []Post) []Post {
	index := make(map[string]int, len(posts))
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		if i, seen := index[p.URL]; seen {
			if p.RichnessScore() > out[i].RichnessScore() {
				out[i] = p
			}
			continue
		}
		index[p.URL] = len(out)
		out = append(out, p)
	}
	return out
}

// MergeByURL overlays enriched posts onto a full post set, matching by URL.
// Posts in full that have no enriched counterpart pass through unchanged.
func MergeByURL(full, enriched []Post) []Post {
	byURL := make(map[string]Post, len(enriched))
	for _, p := range enriched {
		byURL[p.URL] = p
	}
	out := make([]Post, len(full))
	for i, p := range full {
		if e, ok := byURL[p.URL]; ok {
			out[i] = e
		} else {
			out[i] = p
		}
	}
	return out
}
