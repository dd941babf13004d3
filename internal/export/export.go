// Package export renders enriched posts to report files. Every format
// writes one file per call, named <name>-<yymmdd>.<ext> inside a
// per-name subdirectory of the configured output directory.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blogwatch/internal/config"
	"github.com/sells-group/blogwatch/internal/model"
)

// Format selects an output renderer.
type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatXLSX     Format = "xlsx"
)

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatMarkdown, FormatJSON, FormatCSV, FormatXLSX:
		return Format(s), nil
	}
	return "", eris.Errorf("export: unknown format %q (want txt, md, json, csv or xlsx)", s)
}

// CombinedName is the pseudo-competitor used when exporting all
// competitors into one file.
const CombinedName = "all_competitors"

// Exporter writes post reports under a single output directory.
type Exporter struct {
	outDir string
	now    func() time.Time
}

// New builds an Exporter from configuration.
func New(cfg config.ExportConfig) *Exporter {
	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "exports"
	}
	return &Exporter{outDir: outDir, now: time.Now}
}

// Export renders posts for one name (a competitor, or CombinedName) in the
// given format and returns the written file path.
func (e *Exporter) Export(posts []model.Post, name string, format Format) (string, error) {
	dir := filepath.Join(e.outDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "export: create directory %s", dir)
	}

	stamp := e.now().Format("060102")
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.%s", name, stamp, format))

	sorted := model.SortByDateDesc(append([]model.Post(nil), posts...))

	var err error
	switch format {
	case FormatText:
		err = writeText(path, name, sorted)
	case FormatMarkdown:
		err = writeMarkdown(path, name, sorted)
	case FormatJSON:
		err = writeJSON(path, sorted)
	case FormatCSV:
		err = writeCSVFile(path, sorted)
	case FormatXLSX:
		err = writeXLSX(path, sorted)
	default:
		err = eris.Errorf("export: unknown format %q", format)
	}
	if err != nil {
		return "", err
	}

	zap.L().Info("export written",
		zap.String("export_id", uuid.NewString()),
		zap.String("name", name),
		zap.String("format", string(format)),
		zap.Int("posts", len(sorted)),
		zap.String("path", path),
	)
	return path, nil
}
