package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/blogwatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. One row per
// (competitor, stage, url); a re-save of the same URL replaces the row, so
// the database always holds the latest view of each post.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS posts (
	competitor TEXT NOT NULL,
	stage      TEXT NOT NULL,
	url        TEXT NOT NULL,
	title      TEXT NOT NULL,
	payload    TEXT NOT NULL,
	source_ref TEXT,
	saved_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(competitor, stage, url)
);

CREATE INDEX IF NOT EXISTS idx_posts_competitor_stage ON posts(competitor, stage);
`

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRaw(ctx context.Context, posts []model.Post, competitor string) (string, error) {
	if len(posts) == 0 {
		return "", eris.Errorf("sqlite: no raw posts to save for %q", competitor)
	}
	ref := "sqlite://raw/" + competitor
	if err := s.savePosts(ctx, posts, competitor, "raw", ref); err != nil {
		return "", err
	}
	zap.L().Info("saved raw posts",
		zap.String("competitor", competitor),
		zap.Int("posts", len(posts)),
		zap.String("source", ref),
	)
	return ref, nil
}

func (s *SQLiteStore) SaveProcessed(ctx context.Context, posts []model.Post, competitor, sourceFilename string) error {
	if len(posts) == 0 {
		return eris.Errorf("sqlite: no processed posts to save for %q", competitor)
	}
	if err := s.savePosts(ctx, posts, competitor, "processed", sourceFilename); err != nil {
		return err
	}
	zap.L().Info("saved processed posts",
		zap.String("competitor", competitor),
		zap.Int("posts", len(posts)),
		zap.String("source", sourceFilename),
	)
	return nil
}

func (s *SQLiteStore) savePosts(ctx context.Context, posts []model.Post, competitor, stage, sourceRef string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (competitor, stage, url, title, payload, source_ref, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(competitor, stage, url) DO UPDATE SET
			title      = excluded.title,
			payload    = excluded.payload,
			source_ref = excluded.source_ref,
			saved_at   = excluded.saved_at`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range posts {
		payload, err := json.Marshal(&posts[i])
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal post %s", posts[i].URL)
		}
		_, err = stmt.ExecContext(ctx,
			competitor, stage, posts[i].URL, posts[i].Title, string(payload), sourceRef, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert post %s", posts[i].URL)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) LoadRaw(ctx context.Context, competitor string) ([]model.Post, error) {
	return s.loadPosts(ctx, competitor, "raw")
}

func (s *SQLiteStore) LoadProcessed(ctx context.Context, competitor string) ([]model.Post, error) {
	return s.loadPosts(ctx, competitor, "processed")
}

func (s *SQLiteStore) loadPosts(ctx context.Context, competitor, stage string) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM posts WHERE competitor = ? AND stage = ? ORDER BY saved_at, url`,
		competitor, stage,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s posts", stage)
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan post")
		}
		var p model.Post
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse post payload")
		}
		posts = append(posts, p)
	}
	return posts, eris.Wrap(rows.Err(), "sqlite: iterate posts")
}

func (s *SQLiteStore) LoadRawURLs(ctx context.Context, competitor string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url FROM posts WHERE competitor = ? AND stage = 'raw'`,
		competitor,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query raw urls")
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan url")
		}
		urls[url] = struct{}{}
	}
	return urls, eris.Wrap(rows.Err(), "sqlite: iterate urls")
}
