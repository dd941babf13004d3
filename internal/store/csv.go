package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blogwatch/internal/model"
)

// CSVStore persists posts as CSV files under <dataDir>/{raw,processed}/<competitor>/.
// Nested fields (headings, schemas, strategic analysis, processing info) are
// stored as JSON inside their cells so a round trip loses nothing.
type CSVStore struct {
	dataDir string
}

// NewCSV creates a CSV store rooted at dataDir.
func NewCSV(dataDir string) *CSVStore {
	return &CSVStore{dataDir: dataDir}
}

// csvRow is the flat on-disk shape of a Post.
type csvRow struct {
	Competitor        string `csv:"competitor"`
	Title             string `csv:"title"`
	URL               string `csv:"url"`
	PublicationDate   string `csv:"publication_date"`
	Content           string `csv:"content"`
	SEOMetaKeywords   string `csv:"seo_meta_keywords"`
	Headings          string `csv:"headings"`
	Schemas           string `csv:"schemas"`
	Summary           string `csv:"summary"`
	SEOKeywords       string `csv:"seo_keywords"`
	FunnelStage       string `csv:"funnel_stage"`
	TargetAudience    string `csv:"target_audience"`
	StrategicAnalysis string `csv:"strategic_analysis"`
	OriginalTitle     string `csv:"original_title"`
	ChunkIndex        int    `csv:"chunk_index"`
	TotalChunks       int    `csv:"total_chunks"`
	Processing        string `csv:"content_processing"`
	Status            string `csv:"enrichment_status"`
}

func toRow(p model.Post) (csvRow, error) {
	row := csvRow{
		Competitor:      p.Competitor,
		Title:           p.Title,
		URL:             p.URL,
		PublicationDate: p.PublicationDate,
		Content:         p.Content,
		SEOMetaKeywords: p.SEOMetaKeywords,
		Summary:         p.Summary,
		SEOKeywords:     p.SEOKeywords,
		FunnelStage:     p.FunnelStage,
		TargetAudience:  p.TargetAudience,
		OriginalTitle:   p.OriginalTitle,
		ChunkIndex:      p.ChunkIndex,
		TotalChunks:     p.TotalChunks,
		Status:          string(p.Status),
	}
	var err error
	if row.Headings, err = jsonCell(p.Headings, len(p.Headings) > 0); err != nil {
		return row, err
	}
	if row.Schemas, err = jsonCell(p.Schemas, len(p.Schemas) > 0); err != nil {
		return row, err
	}
	if row.StrategicAnalysis, err = jsonCell(p.StrategicAnalysis, p.StrategicAnalysis != nil); err != nil {
		return row, err
	}
	if row.Processing, err = jsonCell(p.Processing, p.Processing != nil); err != nil {
		return row, err
	}
	return row, nil
}

func jsonCell(v any, present bool) (string, error) {
	if !present {
		return "", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "store: encode csv cell")
	}
	return string(raw), nil
}

func fromRow(row csvRow) (model.Post, error) {
	p := model.Post{
		Competitor:      row.Competitor,
		Title:           row.Title,
		URL:             row.URL,
		PublicationDate: row.PublicationDate,
		Content:         row.Content,
		SEOMetaKeywords: row.SEOMetaKeywords,
		Summary:         row.Summary,
		SEOKeywords:     row.SEOKeywords,
		FunnelStage:     row.FunnelStage,
		TargetAudience:  row.TargetAudience,
		OriginalTitle:   row.OriginalTitle,
		ChunkIndex:      row.ChunkIndex,
		TotalChunks:     row.TotalChunks,
		Status:          model.EnrichmentStatus(row.Status),
	}
	if row.Headings != "" {
		if err := json.Unmarshal([]byte(row.Headings), &p.Headings); err != nil {
			return p, eris.Wrapf(err, "store: parse headings cell for %s", row.URL)
		}
	}
	if row.Schemas != "" {
		if err := json.Unmarshal([]byte(row.Schemas), &p.Schemas); err != nil {
			return p, eris.Wrapf(err, "store: parse schemas cell for %s", row.URL)
		}
	}
	if row.StrategicAnalysis != "" {
		p.StrategicAnalysis = &model.StrategicAnalysis{}
		if err := json.Unmarshal([]byte(row.StrategicAnalysis), p.StrategicAnalysis); err != nil {
			return p, eris.Wrapf(err, "store: parse strategic analysis cell for %s", row.URL)
		}
	}
	if row.Processing != "" {
		p.Processing = &model.ProcessingInfo{}
		if err := json.Unmarshal([]byte(row.Processing), p.Processing); err != nil {
			return p, eris.Wrapf(err, "store: parse processing cell for %s", row.URL)
		}
	}
	return p, nil
}

func (s *CSVStore) dir(stage, competitor string) string {
	return filepath.Join(s.dataDir, stage, competitor)
}

func (s *CSVStore) SaveRaw(_ context.Context, posts []model.Post, competitor string) (string, error) {
	if len(posts) == 0 {
		return "", eris.Errorf("store: no raw posts to save for %q", competitor)
	}
	dir := s.dir("raw", competitor)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "store: create %s", dir)
	}
	path := filepath.Join(dir, competitor+"_"+time.Now().UTC().Format("20060102_150405")+".csv")
	if err := WriteCSV(path, posts); err != nil {
		return "", err
	}
	zap.L().Info("saved raw posts",
		zap.String("competitor", competitor),
		zap.Int("posts", len(posts)),
		zap.String("path", path),
	)
	return path, nil
}

func (s *CSVStore) SaveProcessed(_ context.Context, posts []model.Post, competitor, sourceFilename string) error {
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
	path := filepath.Join(dir, base+".csv")
	if err := WriteCSV(path, posts); err != nil {
		return err
	}
	zap.L().Info("saved processed posts",
		zap.String("competitor", competitor),
		zap.Int("posts", len(posts)),
		zap.String("path", path),
	)
	return nil
}

func (s *CSVStore) LoadRaw(_ context.Context, competitor string) ([]model.Post, error) {
	return s.loadAll("raw", competitor)
}

func (s *CSVStore) LoadProcessed(_ context.Context, competitor string) ([]model.Post, error) {
	return s.loadAll("processed", competitor)
}

func (s *CSVStore) LoadRawURLs(ctx context.Context, competitor string) (map[string]struct{}, error) {
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

func (s *CSVStore) loadAll(stage, competitor string) ([]model.Post, error) {
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
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		loaded, err := ReadCSV(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		posts = append(posts, loaded...)
	}
	return posts, nil
}

func (s *CSVStore) Close() error { return nil }

// WriteCSV writes posts to path as a headed CSV file.
func WriteCSV(path string, posts []model.Post) error {
	rows := make([]csvRow, 0, len(posts))
	for _, p := range posts {
		row, err := toRow(p)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	raw, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrapf(err, "store: marshal csv for %s", path)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return eris.Wrapf(err, "store: write %s", path)
	}
	return nil
}

// ReadCSV reads posts from a headed CSV file at path.
func ReadCSV(path string) ([]model.Post, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: read %s", path)
	}
	var rows []csvRow
	if err := csvutil.Unmarshal(raw, &rows); err != nil {
		return nil, eris.Wrapf(err, "store: parse csv %s", path)
	}
	posts := make([]model.Post, 0, len(rows))
	for _, row := range rows {
		p, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}
