package store

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blogwatch/internal/model"
)

// JSONLStore persists posts as line-delimited JSON files under
// <dataDir>/{raw,processed}/<competitor>/.
type JSONLStore struct {
	dataDir string
}

// NewJSONL creates a JSONL store rooted at dataDir.
func NewJSONL(dataDir string) *JSONLStore {
	return &JSONLStore{dataDir: dataDir}
}

func (s *JSONLStore) dir(stage, competitor string) string {
	return filepath.Join(s.dataDir, stage, competitor)
}

func (s *JSONLStore) SaveRaw(_ context.Context, posts []model.Post, competitor string) (string, error) {
	if len(posts) == 0 {
		return "", eris.Errorf("store: no raw posts to save for %q", competitor)
	}
	dir := s.dir("raw", competitor)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "store: create %s", dir)
	}
	path := filepath.Join(dir, competitor+"_"+time.Now().UTC().Format("20060102_150405")+".jsonl")
	if err := WriteJSONL(path, posts); err != nil {
		return "", err
	}
	zap.L().Info("saved raw posts",
		zap.String("competitor", competitor),
		zap.Int("posts", len(posts)),
		zap.String("path", path),
	)
	return path, nil
}

func (s *JSONLStore) SaveProcessed(_ context.Context, posts []model.Post, competitor, sourceFilename string) error {
	if len(posts) == 0 {
		return eris.Errorf("store: no processed posts to save for %q", competitor)
	}
	dir := s.dir("processed", competitor)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "store: create %s", dir)
	}
	base := strings.TrimSuffix(filepath.Base(sourceFilename), filepath.Ext(sourceFilename))
	if base == "" {
		base = competitor + "_processed"
	}
	path := filepath.Join(dir, base+".jsonl")
	if err := WriteJSONL(path, posts); err != nil {
		return err
	}
	zap.L().Info("saved processed posts",
		zap.String("competitor", competitor),
		zap.Int("posts", len(posts)),
		zap.String("path", path),
	)
	return nil
}

func (s *JSONLStore) LoadRaw(_ context.Context, competitor string) ([]model.Post, error) {
	return s.loadAll("raw", competitor)
}

func (s *JSONLStore) LoadProcessed(_ context.Context, competitor string) ([]model.Post, error) {
	return s.loadAll("processed", competitor)
}

func (s *JSONLStore) LoadRawURLs(ctx context.Context, competitor string) (map[string]struct{}, error) {
	posts, err := s.LoadRaw(ctx, competitor)
	if err != nil {
		return nil, err
	}
	urls := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		if p.URL != "" {
			urls[p.URL] = struct{}{}
		}
	}
	return urls, nil
}

func (s *JSONLStore) loadAll(stage, competitor string) ([]model.Post, error) {
	dir := s.dir(stage, competitor)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: read dir %s", dir)
	}

	var posts []model.Post
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		loaded, err := ReadJSONL(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		posts = append(posts, loaded...)
	}
	return posts, nil
}

func (s *JSONLStore) Close() error { return nil }

// WriteJSONL writes posts to path as one JSON object per line.
func WriteJSONL(path string, posts []model.Post) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "store: create %s", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range posts {
		if err := enc.Encode(&posts[i]); err != nil {
			return eris.Wrapf(err, "store: encode post %d to %s", i, path)
		}
	}
	if err := w.Flush(); err != nil {
		return eris.Wrapf(err, "store: flush %s", path)
	}
	return f.Sync()
}

// ReadJSONL reads line-delimited posts from path.
func ReadJSONL(path string) ([]model.Post, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %s", path)
	}
	defer f.Close()

	var posts []model.Post
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var p model.Post
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return nil, eris.Wrapf(err, "store: parse %s line %d", path, line)
		}
		posts = append(posts, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "store: scan %s", path)
	}
	return posts, nil
}
