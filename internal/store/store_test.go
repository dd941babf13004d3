package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blogwatch/internal/config"
	"github.com/sells-group/blogwatch/internal/model"
)

func samplePosts() []model.Post {
	a := model.NewPost("acme", "Intro to Widgets", "https://acme.example/blog/intro")
	a.PublicationDate = "2026-03-01"
	a.Content = "Widgets are the backbone of every modern assembly line."
	a.Headings = []model.Heading{{Tag: "h2", Text: "Why widgets"}}
	a.Schemas = []model.Schema{{Type: "BlogPosting"}}

	b := model.NewPost("acme", "Widget Pricing Teardown", "https://acme.example/blog/pricing")
	b.PublicationDate = "2026-02-15"
	b.Content = "A close look at how widget pricing tiers are structured."
	b.Summary = "Pricing tier analysis."
	b.SEOKeywords = "widgets, pricing"
	b.FunnelStage = "BOFU"
	b.TargetAudience = "Procurement leads"
	b.StrategicAnalysis = &model.StrategicAnalysis{
		ContentAngle: "cost comparison",
		ContentDepth: "deep",
	}
	b.Status = model.StatusCompleted

	return []model.Post{a, b}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.StoreConfig{Driver: "parquet"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestOpen_FailuresCarryStateError(t *testing.T) {
	ctx := context.Background()
	s, err := Open(config.StoreConfig{Driver: "jsonl", DataDir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.SaveRaw(ctx, nil, "acme")
	require.Error(t, err)

	var se *StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "save raw", se.Op)
	assert.Equal(t, "acme", se.Competitor)

	err = s.SaveProcessed(ctx, nil, "acme", "x.jsonl")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "save processed", se.Op)
}

func TestJSONLStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewJSONL(t.TempDir())

	ref, err := s.SaveRaw(ctx, samplePosts(), "acme")
	require.NoError(t, err)
	assert.FileExists(t, ref)

	loaded, err := s.LoadRaw(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "Intro to Widgets", loaded[0].Title)
	require.NotNil(t, loaded[1].StrategicAnalysis)
	assert.Equal(t, "cost comparison", loaded[1].StrategicAnalysis.ContentAngle)
	assert.Equal(t, model.StatusCompleted, loaded[1].Status)

	// Snapshot references from file drivers are directly readable.
	fromSnap, err := ReadSnapshot(ref)
	require.NoError(t, err)
	assert.Len(t, fromSnap, 2)
}

func TestJSONLStore_SaveProcessedUsesSourceName(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewJSONL(dir)

	err := s.SaveProcessed(ctx, samplePosts(), "acme", filepath.Join("anywhere", "acme_20260301_120000.jsonl"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "processed", "acme", "acme_20260301_120000.jsonl"))

	loaded, err := s.LoadProcessed(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestJSONLStore_EmptyCompetitor(t *testing.T) {
	ctx := context.Background()
	s := NewJSONL(t.TempDir())

	_, err := s.SaveRaw(ctx, nil, "acme")
	require.Error(t, err)

	loaded, err := s.LoadRaw(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestJSONLStore_LoadRawURLs(t *testing.T) {
	ctx := context.Background()
	s := NewJSONL(t.TempDir())

	_, err := s.SaveRaw(ctx, samplePosts(), "acme")
	require.NoError(t, err)

	urls, err := s.LoadRawURLs(ctx, "acme")
	require.NoError(t, err)
	assert.Contains(t, urls, "https://acme.example/blog/intro")
	assert.Contains(t, urls, "https://acme.example/blog/pricing")
	assert.Len(t, urls, 2)
}

func TestCSVStore_RoundTripNestedFields(t *testing.T) {
	ctx := context.Background()
	s := NewCSV(t.TempDir())

	posts := samplePosts()
	posts[0].Processing = &model.ProcessingInfo{
		OriginalLength:  5000,
		ProcessedLength: 4800,
		CleaningApplied: true,
		Metrics:         &model.ContentMetrics{Words: 900, ReadingMinutes: 5},
	}

	ref, err := s.SaveRaw(ctx, posts, "acme")
	require.NoError(t, err)
	assert.Equal(t, ".csv", filepath.Ext(ref))

	loaded, err := s.LoadRaw(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	require.Len(t, loaded[0].Headings, 1)
	assert.Equal(t, "Why widgets", loaded[0].Headings[0].Text)
	require.NotNil(t, loaded[0].Processing)
	assert.True(t, loaded[0].Processing.CleaningApplied)
	require.NotNil(t, loaded[0].Processing.Metrics)
	assert.Equal(t, 900, loaded[0].Processing.Metrics.Words)

	require.NotNil(t, loaded[1].StrategicAnalysis)
	assert.Equal(t, "deep", loaded[1].StrategicAnalysis.ContentDepth)
}

func TestReadSnapshot_Formats(t *testing.T) {
	dir := t.TempDir()

	jsonlPath := filepath.Join(dir, "snap.jsonl")
	require.NoError(t, WriteJSONL(jsonlPath, samplePosts()))
	posts, err := ReadSnapshot(jsonlPath)
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	jsonPath := filepath.Join(dir, "snap.json")
	require.NoError(t, os.WriteFile(jsonPath,
		[]byte(`[{"title":"One","url":"https://a.example/1","publication_date":"N/A","content":"","summary":"N/A","seo_keywords":"N/A","funnel_stage":"N/A","target_audience":"N/A"}]`),
		0o644))
	posts, err = ReadSnapshot(jsonPath)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "One", posts[0].Title)

	_, err = ReadSnapshot("sqlite://raw/acme")
	assert.ErrorIs(t, err, ErrSnapshotNotFile)

	_, err = ReadSnapshot(filepath.Join(dir, "snap.xml"))
	require.Error(t, err)
}
