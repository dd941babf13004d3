// Package estimate tracks batch enrichment throughput so the CLI can show a
// rough ETA before a caller decides whether to wait for a batch job. The
// numbers are advisory only and never influence scheduling.
package estimate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultSecondsPerPost is the assumed throughput before any real data exists.
const DefaultSecondsPerPost = 5.0

// Tracker accumulates (posts, seconds) totals across all completed batch
// jobs in a small JSON counter file.
type Tracker struct {
	path  string
	stats stats
}

type stats struct {
	TotalPosts   int     `json:"total_posts"`
	TotalSeconds float64 `json:"total_seconds"`
}

// NewTracker loads the counter file at path, starting from zero when the
// file does not exist yet.
func NewTracker(path string) (*Tracker, error) {
	t := &Tracker{path: path}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "estimate: read %s", path)
	}
	if err := json.Unmarshal(raw, &t.stats); err != nil {
		// A corrupt counter only costs ETA accuracy. Start over.
		zap.L().Warn("throughput counter unreadable, resetting",
			zap.String("path", path),
			zap.Error(err),
		)
		t.stats = stats{}
	}
	return t, nil
}

// AverageSecondsPerPost returns the observed throughput, or the default
// when nothing has been recorded yet.
func (t *Tracker) AverageSecondsPerPost() float64 {
	if t.stats.TotalPosts == 0 {
		return DefaultSecondsPerPost
	}
	return t.stats.TotalSeconds / float64(t.stats.TotalPosts)
}

// Estimate returns the expected wall-clock duration for enriching n posts.
func (t *Tracker) Estimate(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(float64(n) * t.AverageSecondsPerPost() * float64(time.Second))
}

// Record adds one completed job's totals and persists the counter.
func (t *Tracker) Record(posts int, elapsed time.Duration) error {
	if posts <= 0 {
		return nil
	}
	t.stats.TotalPosts += posts
	t.stats.TotalSeconds += elapsed.Seconds()

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return eris.Wrapf(err, "estimate: create dir for %s", t.path)
	}
	raw, err := json.MarshalIndent(t.stats, "", "  ")
	if err != nil {
		return eris.Wrap(err, "estimate: encode counter")
	}
	if err := os.WriteFile(t.path, raw, 0o644); err != nil {
		return eris.Wrapf(err, "estimate: write %s", t.path)
	}
	return nil
}

// FormatETA renders a duration the way the CLI reports it.
func FormatETA(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("about %d seconds", int(d.Seconds()+0.5))
	case d < time.Hour:
		return fmt.Sprintf("about %d minutes", int(d.Minutes()+0.5))
	default:
		return fmt.Sprintf("about %.1f hours", d.Hours())
	}
}
