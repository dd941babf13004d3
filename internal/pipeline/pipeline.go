// Package pipeline orchestrates the scrape and enrichment flow across
// competitors. One competitor failing never stops the others; failures are
// recorded per competitor and reported at the end of the run.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/blogwatch/internal/config"
	"github.com/sells-group/blogwatch/internal/model"
	"github.com/sells-group/blogwatch/internal/scrape"
	"github.com/sells-group/blogwatch/internal/store"
)

// Scraper collects new posts for one competitor.
type Scraper interface {
	ScrapeCompetitor(ctx context.Context, comp config.Competitor, existing map[string]struct{}, opts scrape.Options) ([]model.Post, *scrape.Stats, error)
}

// Enricher routes posts to the live or batch enrichment path.
type Enricher interface {
	Enrich(ctx context.Context, competitor string, postsToEnrich, fullSet []model.Post) ([]model.Post, error)
}

// CompetitorResult summarizes one competitor's run. Error mirrors Err as a
// string so results serialize cleanly.
type CompetitorResult struct {
	Competitor     string `json:"competitor"`
	RunID          string `json:"run_id"`
	NewPosts       int    `json:"new_posts"`
	Enriched       int    `json:"enriched"`
	BatchSubmitted bool   `json:"batch_submitted"`
	Skipped        int    `json:"skipped"`
	Errors         int    `json:"errors"`
	Error          string `json:"error,omitempty"`
	Err            error  `json:"-"`
}

// Pipeline wires the scrape, store and enrichment collaborators together.
type Pipeline struct {
	store    store.Store
	scraper  Scraper
	enricher Enricher
}

// New creates a Pipeline with all dependencies.
func New(st store.Store, scraper Scraper, enricher Enricher) *Pipeline {
	return &Pipeline{store: st, scraper: scraper, enricher: enricher}
}

// Run scrapes and enriches every competitor in turn. It always returns one
// result per competitor; results with a non-nil Err describe competitors
// whose run failed after the others continued.
func (p *Pipeline) Run(ctx context.Context, competitors []config.Competitor, opts scrape.Options) []CompetitorResult {
	results := make([]CompetitorResult, 0, len(competitors))
	for _, comp := range competitors {
		res := p.runOne(ctx, comp, opts)
		if res.Err != nil {
			res.Error = res.Err.Error()
			zap.L().Error("competitor run failed, continuing",
				zap.String("competitor", comp.Name),
				zap.String("run_id", res.RunID),
				zap.Error(res.Err),
			)
		}
		results = append(results, res)

		if ctx.Err() != nil {
			break
		}
	}

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	zap.L().Info("pipeline run finished",
		zap.Int("competitors", len(results)),
		zap.Int("failed", failed),
	)
	return results
}

func (p *Pipeline) runOne(ctx context.Context, comp config.Competitor, opts scrape.Options) CompetitorResult {
	res := CompetitorResult{Competitor: comp.Name, RunID: uuid.NewString()}
	log := zap.L().With(zap.String("competitor", comp.Name), zap.String("run_id", res.RunID))
	log.Info("starting competitor run")

	existing, err := p.store.LoadRawURLs(ctx, comp.Name)
	if err != nil {
		res.Err = err
		return res
	}

	posts, stats, err := p.scraper.ScrapeCompetitor(ctx, comp, existing, opts)
	if stats != nil {
		res.Skipped = stats.Skipped
		res.Errors = stats.Errors
	}
	if err != nil {
		res.Err = err
		return res
	}
	res.NewPosts = len(posts)
	if len(posts) == 0 {
		log.Info("no new posts")
		return res
	}

	res = p.enrichPosts(ctx, comp.Name, posts, res, log)
	return res
}

// EnrichExisting re-runs enrichment over already persisted posts that still
// need it, without scraping. Used to pick up posts whose earlier enrichment
// failed or predates the enrichment fields.
func (p *Pipeline) EnrichExisting(ctx context.Context, competitor string) (CompetitorResult, error) {
	res := CompetitorResult{Competitor: competitor, RunID: uuid.NewString()}
	log := zap.L().With(zap.String("competitor", competitor), zap.String("run_id", res.RunID))

	fullSet, err := p.store.LoadProcessed(ctx, competitor)
	if err != nil {
		return res, err
	}
	if len(fullSet) == 0 {
		fullSet, err = p.store.LoadRaw(ctx, competitor)
		if err != nil {
			return res, err
		}
	}

	res = p.enrichPosts(ctx, competitor, fullSet, res, log)
	return res, res.Err
}

// enrichPosts filters fullSet down to the posts that need enrichment and
// routes them. On the live path it persists the merged result; on the batch
// path persistence happens at consolidation time.
func (p *Pipeline) enrichPosts(ctx context.Context, competitor string, fullSet []model.Post, res CompetitorResult, log *zap.Logger) CompetitorResult {
	var toEnrich []model.Post
	for _, post := range fullSet {
		if needs, _ := post.NeedsEnrichment(); needs {
			toEnrich = append(toEnrich, post)
		}
	}
	if len(toEnrich) == 0 {
		log.Info("nothing needs enrichment", zap.Int("posts", len(fullSet)))
		return res
	}

	merged, err := p.enricher.Enrich(ctx, competitor, toEnrich, fullSet)
	if err != nil {
		res.Err = err
		return res
	}
	if merged == nil {
		// Batch path: the submitter persisted the raw snapshot and a later
		// jobs check writes the processed output.
		res.BatchSubmitted = true
		return res
	}

	ref, err := p.store.SaveRaw(ctx, fullSet, competitor)
	if err != nil {
		res.Err = err
		return res
	}
	if err := p.store.SaveProcessed(ctx, merged, competitor, ref); err != nil {
		res.Err = err
		return res
	}

	var enriched int
	for _, post := range merged {
		if post.Status == model.StatusCompleted {
			enriched++
		}
	}
	res.Enriched = enriched
	log.Info("live enrichment persisted",
		zap.Int("posts", len(merged)),
		zap.Int("enriched", enriched),
	)
	return res
}
