package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blogwatch/internal/model"
)

// ErrSnapshotNotFile marks a source reference that does not point at a
// readable file, such as a database URI. Callers fall back to LoadRaw.
var ErrSnapshotNotFile = eris.New("store: snapshot reference is not a file")

// ReadSnapshot reads the posts from a snapshot source reference produced by
// SaveRaw. Only file-backed references are readable here; database URIs
// return ErrSnapshotNotFile.
func ReadSnapshot(ref string) ([]model.Post, error) {
	if strings.Contains(ref, "://") {
		return nil, ErrSnapshotNotFile
	}
	switch ext := filepath.Ext(ref); ext {
	case ".jsonl":
		return ReadJSONL(ref)
	case ".json":
		return readJSONArray(ref)
	case ".csv":
		return ReadCSV(ref)
	default:
		return nil, eris.Errorf("store: unsupported snapshot format %q", ext)
	}
}

func readJSONArray(path string) ([]model.Post, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: read %s", path)
	}
	var posts []model.Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		return nil, eris.Wrapf(err, "store: parse %s", path)
	}
	return posts, nil
}
