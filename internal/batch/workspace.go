package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blogwatch/internal/model"
	"github.com/sells-group/blogwatch/internal/store"
)

const trackingFileName = "pending_jobs.json"

// PostRef is the metadata embedded per batch request at submission time.
// It is enough to reconstruct a minimal post when the original chunk file
// is gone, everything except the content itself.
type PostRef struct {
	Title           string `json:"title"`
	URL             string `json:"url"`
	PublicationDate string `json:"publication_date"`
	SEOMetaKeywords string `json:"seo_meta_keywords,omitempty"`
	OriginalTitle   string `json:"original_title,omitempty"`
	ChunkIndex      int    `json:"chunk_index,omitempty"`
	TotalChunks     int    `json:"total_chunks,omitempty"`
}

// JobRecord tracks one submitted batch job. Manifest maps each request's
// custom id to its reconstruction metadata; the provider does not echo
// request metadata back, so it has to live here.
type JobRecord struct {
	JobID        string             `json:"job_id"`
	RawPostsFile string             `json:"raw_posts_file"`
	NumPosts     int                `json:"num_posts"`
	Manifest     map[string]PostRef `json:"manifest"`
}

// TrackingFile is the single source of truth for a competitor's
// outstanding batch jobs. It survives process restarts.
type TrackingFile struct {
	SourceRawPath string      `json:"source_raw_filepath"`
	Jobs          []JobRecord `json:"jobs"`
}

// Workspace manages the per-competitor directory holding the tracking file
// and per-chunk raw post snapshots. Single-writer access per competitor is
// assumed; there is no file locking.
type Workspace struct {
	root string
}

// NewWorkspace creates a workspace rooted at the given directory.
func NewWorkspace(root string) *Workspace {
	return &Workspace{root: root}
}

func (w *Workspace) competitorDir(competitor string) string {
	return filepath.Join(w.root, competitor)
}

func (w *Workspace) trackingPath(competitor string) string {
	return filepath.Join(w.competitorDir(competitor), trackingFileName)
}

func (w *Workspace) unsubmittedChunkPath(competitor string, chunk int) string {
	return filepath.Join(w.competitorDir(competitor), fmt.Sprintf("unsubmitted_posts_chunk_%d.jsonl", chunk))
}

func (w *Workspace) submittedChunkPath(competitor string, chunk int) string {
	return filepath.Join(w.competitorDir(competitor), fmt.Sprintf("temp_posts_chunk_%d.jsonl", chunk))
}

// WriteUnsubmittedChunk persists one chunk's raw posts under the
// unsubmitted name. A crash from here until PromoteChunk leaves a file the
// next run can recognize as never-submitted work.
func (w *Workspace) WriteUnsubmittedChunk(competitor string, chunk int, posts []model.Post) (string, error) {
	dir := w.competitorDir(competitor)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "batch: create workspace %s", dir)
	}
	path := w.unsubmittedChunkPath(competitor, chunk)
	if err := store.WriteJSONL(path, posts); err != nil {
		return "", err
	}
	return path, nil
}

// PromoteChunk atomically renames a chunk from unsubmitted to submitted.
// This rename is the durability boundary for Phase 1.
func (w *Workspace) PromoteChunk(competitor string, chunk int) (string, error) {
	from := w.unsubmittedChunkPath(competitor, chunk)
	to := w.submittedChunkPath(competitor, chunk)
	if err := os.Rename(from, to); err != nil {
		return "", eris.Wrapf(err, "batch: promote chunk %d for %s", chunk, competitor)
	}
	return to, nil
}

// ReadChunk loads a submitted chunk's raw posts. A missing file returns
// (nil, nil): consolidation falls back to manifest reconstruction.
func (w *Workspace) ReadChunk(competitor, filename string) ([]model.Post, error) {
	path := filepath.Join(w.competitorDir(competitor), filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return store.ReadJSONL(path)
}

// SaveTracking writes the tracking file for a competitor.
func (w *Workspace) SaveTracking(competitor string, tf *TrackingFile) error {
	dir := w.competitorDir(competitor)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "batch: create workspace %s", dir)
	}
	raw, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return eris.Wrap(err, "batch: encode tracking file")
	}
	path := w.trackingPath(competitor)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return eris.Wrapf(err, "batch: write %s", path)
	}
	zap.L().Info("saved job tracking file",
		zap.String("competitor", competitor),
		zap.Int("jobs", len(tf.Jobs)),
		zap.String("path", path),
	)
	return nil
}

// LoadTracking reads a competitor's tracking file. A missing file returns
// (nil, nil): nothing is pending.
func (w *Workspace) LoadTracking(competitor string) (*TrackingFile, error) {
	raw, err := os.ReadFile(w.trackingPath(competitor))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read tracking file for %s", competitor)
	}
	var tf TrackingFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, eris.Wrapf(err, "batch: parse tracking file for %s", competitor)
	}
	return &tf, nil
}

// Cleanup removes every chunk file named in the tracking file, then the
// tracking file itself. Called only after consolidation fully succeeds.
func (w *Workspace) Cleanup(competitor string, tf *TrackingFile) error {
	for _, job := range tf.Jobs {
		path := filepath.Join(w.competitorDir(competitor), job.RawPostsFile)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "batch: remove chunk file %s", path)
		}
	}
	if err := os.Remove(w.trackingPath(competitor)); err != nil {
		return eris.Wrapf(err, "batch: remove tracking file for %s", competitor)
	}
	zap.L().Info("cleaned up workspace", zap.String("competitor", competitor))
	return nil
}

// Purge removes the competitor's entire workspace directory, tracking file
// and all. This abandons any pending jobs; it exists for manual recovery
// after a failed batch, not for the normal lifecycle.
func (w *Workspace) Purge(competitor string) error {
	dir := w.competitorDir(competitor)
	if err := os.RemoveAll(dir); err != nil {
		return eris.Wrapf(err, "batch: purge workspace for %s", competitor)
	}
	zap.L().Info("purged workspace", zap.String("competitor", competitor), zap.String("dir", dir))
	return nil
}
