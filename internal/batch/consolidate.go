package batch

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blogwatch/internal/contentproc"
	"github.com/sells-group/blogwatch/internal/enrich"
	"github.com/sells-group/blogwatch/internal/model"
	"github.com/sells-group/blogwatch/internal/store"
)

// ReconstructedContent marks a post whose content could not be recovered
// because both the chunk file and the source snapshot were gone. The
// degradation is deliberate and visible, never an empty string posing as
// real content.
const ReconstructedContent = "N/A (reconstructed from batch result)"

// consolidate is Phase 3: download every job's results, rebuild per-post
// records, merge content chunks back into whole posts, reconcile against
// the original raw snapshot by URL, and persist the final set. Returns the
// number of posts processed for throughput accounting.
func (m *Manager) consolidate(ctx context.Context, competitor string, tf *TrackingFile) (int, error) {
	var all []model.Post
	totalPosts := 0

	for _, job := range tf.Jobs {
		totalPosts += job.NumPosts
		posts, err := m.consumeJob(ctx, competitor, job)
		if err != nil {
			return 0, err
		}
		all = append(all, posts...)
	}

	// Restore logical posts that were split at preprocessing. Chunks of
	// one post may span multiple jobs; merging runs across the whole set.
	merged := contentproc.MergeChunkedResults(all)

	final, err := m.reconcile(ctx, competitor, tf.SourceRawPath, merged)
	if err != nil {
		return 0, err
	}

	sourceName := filepath.Base(tf.SourceRawPath)
	if strings.Contains(tf.SourceRawPath, "://") {
		sourceName = competitor + "_batch"
	}
	if err := m.store.SaveProcessed(ctx, final, competitor, sourceName); err != nil {
		return 0, err
	}
	return totalPosts, nil
}

// consumeJob downloads one job's result stream and rebuilds its posts.
// Jobs are consumed sequentially; they are independent, so this is a
// simplicity choice rather than a correctness requirement.
func (m *Manager) consumeJob(ctx context.Context, competitor string, job JobRecord) ([]model.Post, error) {
	chunkPosts, err := m.ws.ReadChunk(competitor, job.RawPostsFile)
	if err != nil {
		return nil, err
	}
	if chunkPosts == nil {
		zap.L().Warn("chunk file missing, reconstructing posts from job manifest",
			zap.String("competitor", competitor),
			zap.String("job_id", job.JobID),
			zap.String("file", job.RawPostsFile),
		)
	}

	it, err := m.client.GetBatchResults(ctx, job.JobID)
	if err != nil {
		return nil, &BatchJobError{Competitor: competitor, JobID: job.JobID, State: JobSucceeded, Err: err}
	}
	defer it.Close()

	var posts []model.Post
	for it.Next() {
		item := it.Item()
		p, ok := basePost(chunkPosts, job, item.CustomID)
		if !ok {
			zap.L().Warn("result line has no usable base post, skipping",
				zap.String("job_id", job.JobID),
				zap.String("custom_id", item.CustomID),
			)
			continue
		}

		if item.Type != "succeeded" || item.Message == nil {
			p.Status = model.StatusFailed
			posts = append(posts, p)
			continue
		}

		// One bad response never aborts the rest of the batch.
		res, err := enrich.Parse(item.Message.Text())
		if err != nil {
			zap.L().Warn("could not parse enrichment from batch result",
				zap.String("job_id", job.JobID),
				zap.String("custom_id", item.CustomID),
				zap.Error(err),
			)
			p.Status = model.StatusFailed
		} else {
			res.Apply(&p)
			p.Status = model.StatusCompleted
		}
		posts = append(posts, p)
	}
	if err := it.Err(); err != nil {
		return nil, &BatchJobError{Competitor: competitor, JobID: job.JobID, State: JobSucceeded, Err: err}
	}
	return posts, nil
}

// basePost resolves a result line to its pre-enrichment post: by index
// into the chunk file when it survived, else rebuilt from the manifest.
func basePost(chunkPosts []model.Post, job JobRecord, customID string) (model.Post, bool) {
	if idx, ok := parseCustomID(customID); ok && idx < len(chunkPosts) {
		return chunkPosts[idx], true
	}

	ref, ok := job.Manifest[customID]
	if !ok {
		return model.Post{}, false
	}
	p := model.NewPost("", ref.Title, ref.URL)
	p.PublicationDate = orNA(ref.PublicationDate)
	p.SEOMetaKeywords = ref.SEOMetaKeywords
	p.Content = ReconstructedContent
	p.OriginalTitle = ref.OriginalTitle
	p.ChunkIndex = ref.ChunkIndex
	p.TotalChunks = ref.TotalChunks
	if ref.TotalChunks > 0 {
		p.Processing = &model.ProcessingInfo{
			Chunked:     true,
			ChunkNumber: ref.ChunkIndex,
			TotalChunks: ref.TotalChunks,
		}
	}

	p.Normalize()
	if err := p.Validate(); err != nil {
		zap.L().Warn("reconstructed post failed validation",
			zap.String("custom_id", customID),
			zap.Error(err),
		)
		return model.Post{}, false
	}
	return p, true
}

func parseCustomID(customID string) (int, bool) {
	rest, ok := strings.CutPrefix(customID, "post-")
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

func orNA(s string) string {
	if s == "" {
		return model.NA
	}
	return s
}

// reconcile overlays enrichment results onto the authoritative raw
// snapshot by URL. Matching originals are updated in place so fields only
// the scrape has, like full unchunked content, are preserved. Enriched
// posts with no original are appended rather than dropped.
func (m *Manager) reconcile(ctx context.Context, competitor, sourceRef string, enriched []model.Post) ([]model.Post, error) {
	originals, err := loadSnapshot(ctx, m.store, competitor, sourceRef)
	if err != nil {
		return nil, err
	}
	if len(originals) == 0 {
		zap.L().Warn("no original snapshot available, persisting reconstructed posts as-is",
			zap.String("competitor", competitor),
			zap.String("source", sourceRef),
		)
		return model.SortByDateDesc(enriched), nil
	}

	index := make(map[string]int, len(originals))
	for i, p := range originals {
		index[p.URL] = i
	}

	out := make([]model.Post, len(originals))
	copy(out, originals)
	for _, e := range enriched {
		i, ok := index[e.URL]
		if !ok {
			out = append(out, e)
			continue
		}
		applyEnrichment(&out[i], &e)
	}
	return model.SortByDateDesc(out), nil
}

// applyEnrichment copies only the enrichment payload onto the original.
func applyEnrichment(orig, enriched *model.Post) {
	orig.Summary = enriched.Summary
	orig.SEOKeywords = enriched.SEOKeywords
	orig.FunnelStage = enriched.FunnelStage
	orig.TargetAudience = enriched.TargetAudience
	orig.StrategicAnalysis = enriched.StrategicAnalysis
	orig.Status = enriched.Status
	if enriched.Processing != nil {
		orig.Processing = enriched.Processing
	}
}

// loadSnapshot reads the raw snapshot referenced by the tracking file,
// falling back to the store when the reference is not a readable file.
func loadSnapshot(ctx context.Context, st store.Store, competitor, sourceRef string) ([]model.Post, error) {
	if sourceRef == "" {
		return st.LoadRaw(ctx, competitor)
	}
	posts, err := store.ReadSnapshot(sourceRef)
	if err == nil {
		return posts, nil
	}
	if errors.Is(err, store.ErrSnapshotNotFile) {
		return st.LoadRaw(ctx, competitor)
	}
	zap.L().Warn("snapshot file unreadable, falling back to store",
		zap.String("source", sourceRef),
		zap.Error(err),
	)
	posts, storeErr := st.LoadRaw(ctx, competitor)
	if storeErr != nil {
		return nil, eris.Wrap(storeErr, "batch: load raw fallback")
	}
	return posts, nil
}
