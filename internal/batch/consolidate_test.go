package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blogwatch/internal/model"
	"github.com/sells-group/blogwatch/pkg/anthropic"
)

func TestConsolidate_ReconstructsFromManifestWhenChunkFileMissing(t *testing.T) {
	client := &fakeClient{
		getResults: func(context.Context, string) (anthropic.BatchResultIterator, error) {
			return &fakeIterator{items: []anthropic.BatchResultItem{
				succeededItem("post-0", `{"summary":"recovered","seo_keywords":["k"]}`),
			}}, nil
		},
	}
	m, _ := newTestManager(t, client)

	tf := &TrackingFile{
		SourceRawPath: filepath.Join(t.TempDir(), "missing_snapshot.jsonl"),
		Jobs: []JobRecord{{
			JobID:        "batch_gone",
			RawPostsFile: "temp_posts_chunk_1.jsonl", // never written
			NumPosts:     1,
			Manifest: map[string]PostRef{
				"post-0": {
					Title:           "Lost Post",
					URL:             "https://a.example/lost",
					PublicationDate: "2026-06-01",
					SEOMetaKeywords: "kw1, kw2",
				},
			},
		}},
	}

	n, err := m.consolidate(context.Background(), "acme", tf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	processed, err := m.store.LoadProcessed(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, processed, 1)

	p := processed[0]
	assert.Equal(t, "Lost Post", p.Title)
	assert.Equal(t, "https://a.example/lost", p.URL)
	assert.Equal(t, "2026-06-01", p.PublicationDate)
	assert.Equal(t, "kw1, kw2", p.SEOMetaKeywords)
	assert.Equal(t, "recovered", p.Summary)
	// Content unavailability is explicit, never an empty string.
	assert.Equal(t, ReconstructedContent, p.Content)
}

func TestConsolidate_SkipsInvalidReconstructedPosts(t *testing.T) {
	client := &fakeClient{
		getResults: func(context.Context, string) (anthropic.BatchResultIterator, error) {
			return &fakeIterator{items: []anthropic.BatchResultItem{
				succeededItem("post-0", `{"summary":"ok"}`),
				succeededItem("post-1", `{"summary":"orphan"}`),
			}}, nil
		},
	}
	m, _ := newTestManager(t, client)

	tf := &TrackingFile{
		Jobs: []JobRecord{{
			JobID:        "batch_gone",
			RawPostsFile: "temp_posts_chunk_1.jsonl", // never written
			NumPosts:     2,
			Manifest: map[string]PostRef{
				"post-0": {Title: "Good Post", URL: "https://a.example/good"},
				"post-1": {Title: "No URL Post"}, // fails validation
			},
		}},
	}

	n, err := m.consolidate(context.Background(), "acme", tf)
	require.NoError(t, err)
	// Throughput accounting counts submitted posts, not survivors.
	assert.Equal(t, 2, n)

	processed, err := m.store.LoadProcessed(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Equal(t, "Good Post", processed[0].Title)
}

func TestConsolidate_ParseFailureMarksPostFailedOnly(t *testing.T) {
	client := &fakeClient{
		getResults: func(context.Context, string) (anthropic.BatchResultIterator, error) {
			return &fakeIterator{items: []anthropic.BatchResultItem{
				succeededItem("post-0", "this is not JSON in any way"),
				succeededItem("post-1", `{"summary":"fine"}`),
			}}, nil
		},
	}
	m, _ := newTestManager(t, client)

	posts := batchPosts(2)
	_, err := m.ws.WriteUnsubmittedChunk("acme", 1, posts)
	require.NoError(t, err)
	_, err = m.ws.PromoteChunk("acme", 1)
	require.NoError(t, err)

	tf := &TrackingFile{
		Jobs: []JobRecord{{
			JobID:        "batch_1",
			RawPostsFile: "temp_posts_chunk_1.jsonl",
			NumPosts:     2,
		}},
	}

	_, err = m.consolidate(context.Background(), "acme", tf)
	require.NoError(t, err)

	processed, err := m.store.LoadProcessed(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, processed, 2)

	byURL := map[string]model.Post{}
	for _, p := range processed {
		byURL[p.URL] = p
	}
	assert.Equal(t, model.StatusFailed, byURL["https://a.example/post-0"].Status)
	assert.Equal(t, model.NA, byURL["https://a.example/post-0"].Summary)
	assert.Equal(t, model.StatusCompleted, byURL["https://a.example/post-1"].Status)
	assert.Equal(t, "fine", byURL["https://a.example/post-1"].Summary)
}

func TestConsolidate_MergesChunksAcrossJobs(t *testing.T) {
	results := map[string][]anthropic.BatchResultItem{
		"job_a": {succeededItem("post-0", `{"summary":"first half.","seo_keywords":["alpha"]}`)},
		"job_b": {succeededItem("post-0", `{"summary":"second half.","seo_keywords":["beta"]}`)},
	}
	client := &fakeClient{
		getResults: func(_ context.Context, id string) (anthropic.BatchResultIterator, error) {
			return &fakeIterator{items: results[id]}, nil
		},
	}
	m, _ := newTestManager(t, client)

	part := func(idx int) model.Post {
		p := model.NewPost("acme", "Long Post (Part "+string(rune('0'+idx))+"/2)", "https://a.example/long")
		p.OriginalTitle = "Long Post"
		p.ChunkIndex = idx
		p.TotalChunks = 2
		p.Content = "chunk body"
		p.Processing = &model.ProcessingInfo{Chunked: true, ChunkNumber: idx, TotalChunks: 2}
		return p
	}
	_, err := m.ws.WriteUnsubmittedChunk("acme", 1, []model.Post{part(1)})
	require.NoError(t, err)
	_, err = m.ws.PromoteChunk("acme", 1)
	require.NoError(t, err)
	_, err = m.ws.WriteUnsubmittedChunk("acme", 2, []model.Post{part(2)})
	require.NoError(t, err)
	_, err = m.ws.PromoteChunk("acme", 2)
	require.NoError(t, err)

	tf := &TrackingFile{
		Jobs: []JobRecord{
			{JobID: "job_a", RawPostsFile: "temp_posts_chunk_1.jsonl", NumPosts: 1},
			{JobID: "job_b", RawPostsFile: "temp_posts_chunk_2.jsonl", NumPosts: 1},
		},
	}

	_, err = m.consolidate(context.Background(), "acme", tf)
	require.NoError(t, err)

	processed, err := m.store.LoadProcessed(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, processed, 1, "two chunks across two jobs merge into one post")

	p := processed[0]
	assert.Equal(t, "Long Post", p.Title)
	assert.Equal(t, "first half. second half.", p.Summary)
	assert.Equal(t, "alpha, beta", p.SEOKeywords)
	assert.Zero(t, p.ChunkIndex)
	assert.Empty(t, p.OriginalTitle)
}

func TestWorkspace_TrackingRoundTrip(t *testing.T) {
	ws := NewWorkspace(t.TempDir())

	tf := &TrackingFile{
		SourceRawPath: "/data/raw/acme/acme_20260601.jsonl",
		Jobs: []JobRecord{{
			JobID:        "batch_x",
			RawPostsFile: "temp_posts_chunk_1.jsonl",
			NumPosts:     4,
			Manifest:     map[string]PostRef{"post-0": {URL: "https://a.example/p"}},
		}},
	}
	require.NoError(t, ws.SaveTracking("acme", tf))

	loaded, err := ws.LoadTracking("acme")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, tf.SourceRawPath, loaded.SourceRawPath)
	require.Len(t, loaded.Jobs, 1)
	assert.Equal(t, "batch_x", loaded.Jobs[0].JobID)
	assert.Equal(t, "https://a.example/p", loaded.Jobs[0].Manifest["post-0"].URL)

	require.NoError(t, ws.Cleanup("acme", loaded))
	gone, err := ws.LoadTracking("acme")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestWorkspace_PromoteIsTheDurabilityBoundary(t *testing.T) {
	ws := NewWorkspace(t.TempDir())

	posts := batchPosts(1)
	unsubmitted, err := ws.WriteUnsubmittedChunk("acme", 1, posts)
	require.NoError(t, err)
	assert.FileExists(t, unsubmitted)

	submitted, err := ws.PromoteChunk("acme", 1)
	require.NoError(t, err)
	assert.NoFileExists(t, unsubmitted)
	assert.FileExists(t, submitted)

	loaded, err := ws.ReadChunk("acme", filepath.Base(submitted))
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, posts[0].URL, loaded[0].URL)

	// A chunk file that never existed reads as nil, not an error.
	missing, err := ws.ReadChunk("acme", "temp_posts_chunk_9.jsonl")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_ = os.RemoveAll(filepath.Dir(submitted))
}
