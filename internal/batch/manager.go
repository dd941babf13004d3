// Package batch implements the four-phase batch enrichment lifecycle:
// submit, poll, consolidate, cleanup. Each phase is idempotent and
// restart-safe; the per-competitor tracking file is the single source of
// truth for outstanding jobs.
package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/blogwatch/internal/config"
	"github.com/sells-group/blogwatch/internal/contentproc"
	"github.com/sells-group/blogwatch/internal/enrich"
	"github.com/sells-group/blogwatch/internal/estimate"
	"github.com/sells-group/blogwatch/internal/model"
	"github.com/sells-group/blogwatch/internal/store"
	"github.com/sells-group/blogwatch/pkg/anthropic"
)

// Manager drives the batch enrichment lifecycle for one or more
// competitors. Only one invocation should run per competitor at a time.
type Manager struct {
	client    anthropic.Client
	store     store.Store
	ws        *Workspace
	tracker   *estimate.Tracker
	model     string
	maxTokens int64
	maxBytes  int
	primary   []string
	dxp       []string

	// Wait makes Submit poll synchronously until results land.
	Wait bool

	pollOpts []anthropic.PollOption
}

// NewManager builds a batch lifecycle manager from configuration.
func NewManager(client anthropic.Client, st store.Store, tracker *estimate.Tracker, cfg *config.Config) *Manager {
	return &Manager{
		client:    client,
		store:     st,
		ws:        NewWorkspace(cfg.Batch.WorkspaceDir),
		tracker:   tracker,
		model:     cfg.Anthropic.BatchModel,
		maxTokens: cfg.Anthropic.MaxTokens,
		maxBytes:  cfg.Batch.MaxChunkMB * 1024 * 1024,
		primary:   cfg.Enrich.PrimaryCompetitors,
		dxp:       cfg.Enrich.DXPCompetitors,
	}
}

// Submit is Phase 1. It snapshots the posts, preprocesses and splits them
// into size-bounded chunks, submits each chunk as an asynchronous job, and
// persists the tracking file. The unsubmitted-to-submitted rename of each
// chunk file is the durability boundary: a crash before the rename leaves
// work that is safely retried, a crash after it but before the tracking
// write leaves an orphaned provider-side job (accepted gap, found by
// listing jobs at the provider).
func (m *Manager) Submit(ctx context.Context, competitor string, posts []model.Post) error {
	sourceRef, err := m.store.SaveRaw(ctx, posts, competitor)
	if err != nil {
		return err
	}

	items := contentproc.Prepare(posts)
	chunks := SplitPosts(items, m.maxBytes)
	if len(chunks) > 1 {
		zap.L().Info("post set split into size-bounded chunks",
			zap.String("competitor", competitor),
			zap.Int("chunks", len(chunks)),
		)
	}

	var jobs []JobRecord
	for i, chunk := range chunks {
		num := i + 1
		if _, err := m.ws.WriteUnsubmittedChunk(competitor, num, chunk); err != nil {
			return err
		}

		req, manifest := m.buildBatchRequest(chunk)
		resp, err := m.client.CreateBatch(ctx, req)
		if err != nil {
			zap.L().Error("chunk submission failed, unsubmitted file kept for next run",
				zap.String("competitor", competitor),
				zap.Int("chunk", num),
				zap.Error(err),
			)
			continue
		}

		submittedPath, err := m.ws.PromoteChunk(competitor, num)
		if err != nil {
			return err
		}
		jobs = append(jobs, JobRecord{
			JobID:        resp.ID,
			RawPostsFile: filepath.Base(submittedPath),
			NumPosts:     len(chunk),
			Manifest:     manifest,
		})
		zap.L().Info("submitted batch chunk",
			zap.String("competitor", competitor),
			zap.Int("chunk", num),
			zap.String("job_id", resp.ID),
			zap.Int("posts", len(chunk)),
		)
	}

	if len(jobs) == 0 {
		return &BatchJobError{Competitor: competitor, State: JobFailed,
			Err: fmt.Errorf("no chunks were submitted")}
	}

	if err := m.ws.SaveTracking(competitor, &TrackingFile{
		SourceRawPath: sourceRef,
		Jobs:          jobs,
	}); err != nil {
		return err
	}

	if m.Wait {
		return m.waitAndConsolidate(ctx, competitor, jobs)
	}

	zap.L().Info("batch jobs submitted, check later with the jobs command",
		zap.String("competitor", competitor),
		zap.Int("jobs", len(jobs)),
		zap.String("eta", estimate.FormatETA(m.tracker.Estimate(len(posts)))),
	)
	return nil
}

// waitAndConsolidate blocks until every job ends, then runs the check path.
func (m *Manager) waitAndConsolidate(ctx context.Context, competitor string, jobs []JobRecord) error {
	for _, job := range jobs {
		if _, err := anthropic.WaitForBatch(ctx, m.client, job.JobID, m.pollOpts...); err != nil {
			return &BatchJobError{Competitor: competitor, JobID: job.JobID, State: JobRunning, Err: err}
		}
	}
	return m.Check(ctx, competitor)
}

// buildBatchRequest renders one chunk as a provider batch payload and the
// manifest needed to reconstruct each post from its custom id.
func (m *Manager) buildBatchRequest(chunk []model.Post) (anthropic.BatchRequest, map[string]PostRef) {
	system := enrich.SystemBlocks(m.primary, m.dxp)
	items := make([]anthropic.BatchRequestItem, len(chunk))
	manifest := make(map[string]PostRef, len(chunk))

	for j := range chunk {
		p := &chunk[j]
		customID := fmt.Sprintf("post-%d", j)
		items[j] = anthropic.BatchRequestItem{
			CustomID: customID,
			Params: anthropic.MessageRequest{
				Model:     m.model,
				MaxTokens: m.maxTokens,
				System:    system,
				Messages:  []anthropic.Message{{Role: "user", Content: enrich.UserPrompt(p)}},
			},
		}
		manifest[customID] = PostRef{
			Title:           p.Title,
			URL:             p.URL,
			PublicationDate: p.PublicationDate,
			SEOMetaKeywords: p.SEOMetaKeywords,
			OriginalTitle:   p.OriginalTitle,
			ChunkIndex:      p.ChunkIndex,
			TotalChunks:     p.TotalChunks,
		}
	}
	return anthropic.BatchRequest{Requests: items}, manifest
}

// Check is Phases 2 through 4. It polls every tracked job once and, when
// all have succeeded, consolidates results and cleans up the workspace.
// When any job failed it stops without consolidating; when jobs are still
// running it reports progress and returns, callers decide the polling
// cadence.
func (m *Manager) Check(ctx context.Context, competitor string) error {
	tf, err := m.ws.LoadTracking(competitor)
	if err != nil {
		return err
	}
	if tf == nil {
		zap.L().Info("no pending batch jobs", zap.String("competitor", competitor))
		return nil
	}

	states := make([]JobState, len(tf.Jobs))
	for i, job := range tf.Jobs {
		resp, err := m.client.GetBatch(ctx, job.JobID)
		if err != nil {
			return &BatchJobError{Competitor: competitor, JobID: job.JobID, State: JobRunning, Err: err}
		}
		states[i] = stateOf(resp)
	}

	succeeded, failed := tally(states)
	total := len(states)

	if failed > 0 {
		// Deliberate fail-stop: partial batch results cannot be reliably
		// told apart from full ones at this layer. Tracking state is
		// preserved for manual inspection.
		var firstFailed JobRecord
		for i, s := range states {
			if s == JobFailed {
				firstFailed = tf.Jobs[i]
				break
			}
		}
		zap.L().Error("batch jobs failed, consolidation skipped",
			zap.String("competitor", competitor),
			zap.Int("failed", failed),
			zap.Int("total", total),
		)
		return &BatchJobError{
			Competitor: competitor,
			JobID:      firstFailed.JobID,
			State:      JobFailed,
			Failed:     failed,
			Total:      total,
		}
	}

	if succeeded < total {
		zap.L().Info(fmt.Sprintf("%d/%d succeeded, waiting for %d", succeeded, total, total-succeeded),
			zap.String("competitor", competitor),
		)
		return nil
	}

	zap.L().Info("all batch jobs succeeded, consolidating",
		zap.String("competitor", competitor),
		zap.Int("jobs", total),
	)
	start := time.Now()
	totalPosts, err := m.consolidate(ctx, competitor, tf)
	if err != nil {
		// Workspace files are deliberately preserved: reconciliation
		// mutates the processed store, and a blind retry after a partial
		// write risks double-application.
		zap.L().Error("consolidation failed, workspace preserved for manual recovery",
			zap.String("competitor", competitor),
			zap.Error(err),
		)
		return err
	}

	if err := m.tracker.Record(totalPosts, time.Since(start)); err != nil {
		zap.L().Warn("could not record throughput", zap.Error(err))
	}
	return m.ws.Cleanup(competitor, tf)
}

func tally(states []JobState) (succeeded, failed int) {
	for _, s := range states {
		switch s {
		case JobSucceeded:
			succeeded++
		case JobFailed:
			failed++
		}
	}
	return succeeded, failed
}
