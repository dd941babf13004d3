package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/blogwatch/internal/model"
)

// BatchSubmitter is the asynchronous path. Submitting returns before any
// results exist; completion is observed later through a separate check.
type BatchSubmitter interface {
	Submit(ctx context.Context, competitor string, posts []model.Post) error
}

// Router decides live versus batch enrichment by post count.
type Router struct {
	live       *Live
	batch      BatchSubmitter
	threshold  int
	batchModel string
}

// NewRouter builds the enrichment router. Post sets below threshold go to
// the live path; everything else is submitted as a batch job.
func NewRouter(live *Live, batch BatchSubmitter, threshold int, batchModel string) *Router {
	return &Router{live: live, batch: batch, threshold: threshold, batchModel: batchModel}
}

// Enrich dispatches postsToEnrich for one competitor.
//
// Live mode returns immediately: the enriched subset is merged back into
// fullSet by URL and the merged full list is returned. Batch mode returns
// (nil, nil) on successful submission; the caller observes completion later
// via the jobs check. The asymmetry is deliberate.
func (r *Router) Enrich(ctx context.Context, competitor string, postsToEnrich, fullSet []model.Post) ([]model.Post, error) {
	if len(postsToEnrich) == 0 {
		return fullSet, nil
	}

	if len(postsToEnrich) < r.threshold {
		zap.L().Info("routing to live enrichment",
			zap.String("competitor", competitor),
			zap.Int("posts", len(postsToEnrich)),
			zap.Int("threshold", r.threshold),
		)
		enriched, err := r.live.EnrichMany(ctx, postsToEnrich)
		if err != nil {
			return nil, &EnrichmentError{
				Competitor: competitor,
				Posts:      len(postsToEnrich),
				Model:      r.live.model,
				Err:        err,
			}
		}
		return model.MergeByURL(fullSet, enriched), nil
	}

	zap.L().Info("routing to batch enrichment",
		zap.String("competitor", competitor),
		zap.Int("posts", len(postsToEnrich)),
		zap.Int("threshold", r.threshold),
	)
	if err := r.batch.Submit(ctx, competitor, postsToEnrich); err != nil {
		return nil, &EnrichmentError{
			Competitor: competitor,
			Posts:      len(postsToEnrich),
			Model:      r.batchModel,
			Err:        err,
		}
	}
	return nil, nil
}
