package store

import (
	"context"
	"fmt"

	"github.com/sells-group/blogwatch/internal/model"
)

// StateError reports a persistence failure tagged with the operation and
// competitor it affected. Every Store built by Open surfaces its failures
// as *StateError; callers branch with errors.As.
type StateError struct {
	Competitor string
	Op         string
	Err        error
}

func (e *StateError) Error() string {
	if e.Competitor == "" {
		return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store: %s for %s: %v", e.Op, e.Competitor, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }

func stateErr(op, competitor string, err error) error {
	if err == nil {
		return nil
	}
	return &StateError{Competitor: competitor, Op: op, Err: err}
}

// tagged wraps a driver so each method's failure carries its operation and
// competitor. The drivers stay plain; tagging happens once, in Open.
type tagged struct {
	inner Store
}

func (t *tagged) SaveRaw(ctx context.Context, posts []model.Post, competitor string) (string, error) {
	ref, err := t.inner.SaveRaw(ctx, posts, competitor)
	return ref, stateErr("save raw", competitor, err)
}

func (t *tagged) SaveProcessed(ctx context.Context, posts []model.Post, competitor, sourceFilename string) error {
	return stateErr("save processed", competitor, t.inner.SaveProcessed(ctx, posts, competitor, sourceFilename))
}

func (t *tagged) LoadRaw(ctx context.Context, competitor string) ([]model.Post, error) {
	posts, err := t.inner.LoadRaw(ctx, competitor)
	return posts, stateErr("load raw", competitor, err)
}

func (t *tagged) LoadProcessed(ctx context.Context, competitor string) ([]model.Post, error) {
	posts, err := t.inner.LoadProcessed(ctx, competitor)
	return posts, stateErr("load processed", competitor, err)
}

func (t *tagged) LoadRawURLs(ctx context.Context, competitor string) (map[string]struct{}, error) {
	urls, err := t.inner.LoadRawURLs(ctx, competitor)
	return urls, stateErr("load raw urls", competitor, err)
}

func (t *tagged) Close() error {
	return stateErr("close", "", t.inner.Close())
}
