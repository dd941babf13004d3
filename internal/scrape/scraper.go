// Package scrape pulls blog posts out of competitor sites. Every site
// follows one of three CMS layout patterns (single paginated list, multiple
// category lists, or one flat page); selectors come from the competitor
// configuration. Requests go through a shared politeness limiter.
package scrape

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/blogwatch/internal/config"
	"github.com/sells-group/blogwatch/internal/model"
)

// Stats summarizes one competitor's scrape run.
type Stats struct {
	Successful int
	Skipped    int
	Errors     int
	FailedURLs []string
}

// ScrapingError reports a failed scrape for one competitor. The competitor
// loop logs it and continues; one broken site never stops the others.
type ScrapingError struct {
	Competitor string
	URL        string
	Err        error
}

func (e *ScrapingError) Error() string {
	return fmt.Sprintf("scrape: %s (%s): %v", e.Competitor, e.URL, e.Err)
}

func (e *ScrapingError) Unwrap() error { return e.Err }

// Options controls what a scrape run collects.
type Options struct {
	// Days limits collection to posts published within the window.
	Days int
	// All ignores the date window and collects everything.
	All bool
}

// Scraper fetches and parses competitor blogs.
type Scraper struct {
	client      *http.Client
	limiter     *rate.Limiter
	userAgent   string
	concurrency int
	batchSize   int
}

// New builds a Scraper from configuration.
func New(cfg config.ScrapeConfig) *Scraper {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 2.0
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Scraper{
		client:      &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		userAgent:   cfg.UserAgent,
		concurrency: concurrency,
		batchSize:   batchSize,
	}
}

// ScrapeCompetitor collects new posts for one competitor, skipping URLs in
// existing. Posts are returned oldest-page-first in discovery order.
func (s *Scraper) ScrapeCompetitor(ctx context.Context, comp config.Competitor, existing map[string]struct{}, opts Options) ([]model.Post, *Stats, error) {
	stats := &Stats{}
	run := &runState{
		scraper:  s,
		comp:     comp,
		existing: existing,
		seen:     make(map[string]struct{}),
		cutoff:   cutoffDate(opts),
		stats:    stats,
	}

	var posts []model.Post
	var err error
	switch comp.Pattern {
	case "single_list":
		posts, err = run.scrapeList(ctx, comp.CategoryPaths[0], true)
	case "multi_category":
		posts, err = run.scrapeCategories(ctx)
	case "single_page":
		posts, err = run.scrapeList(ctx, comp.CategoryPaths[0], false)
	default:
		// LoadCompetitors rejects unknown patterns; this is belt and braces.
		return nil, stats, &ScrapingError{Competitor: comp.Name, Err: fmt.Errorf("unknown pattern %q", comp.Pattern)}
	}
	if err != nil {
		return nil, stats, err
	}

	posts = model.DedupeByURL(posts)
	zap.L().Info("scrape finished",
		zap.String("competitor", comp.Name),
		zap.Int("new_posts", len(posts)),
		zap.Int("skipped_existing", stats.Skipped),
		zap.Int("errors", stats.Errors),
	)
	return posts, stats, nil
}

func cutoffDate(opts Options) time.Time {
	if opts.All || opts.Days <= 0 {
		return time.Time{}
	}
	return time.Now().AddDate(0, 0, -opts.Days)
}

// scrapeCategories runs the paginated list scraper once per category path.
func (r *runState) scrapeCategories(ctx context.Context) ([]model.Post, error) {
	var all []model.Post
	for _, path := range r.comp.CategoryPaths {
		posts, err := r.scrapeList(ctx, path, true)
		if err != nil {
			return nil, err
		}
		all = append(all, posts...)
	}
	return all, nil
}
