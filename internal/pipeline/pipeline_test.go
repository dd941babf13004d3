package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blogwatch/internal/config"
	"github.com/sells-group/blogwatch/internal/model"
	"github.com/sells-group/blogwatch/internal/scrape"
)

type fakeStore struct {
	saveRaw       func(posts []model.Post, competitor string) (string, error)
	saveProcessed func(posts []model.Post, competitor, source string) error
	loadRaw       func(competitor string) ([]model.Post, error)
	loadProcessed func(competitor string) ([]model.Post, error)
	loadRawURLs   func(competitor string) (map[string]struct{}, error)
}

func (f *fakeStore) SaveRaw(_ context.Context, posts []model.Post, competitor string) (string, error) {
	if f.saveRaw != nil {
		return f.saveRaw(posts, competitor)
	}
	return competitor + "_raw.jsonl", nil
}

func (f *fakeStore) SaveProcessed(_ context.Context, posts []model.Post, competitor, source string) error {
	if f.saveProcessed != nil {
		return f.saveProcessed(posts, competitor, source)
	}
	return nil
}

func (f *fakeStore) LoadRaw(_ context.Context, competitor string) ([]model.Post, error) {
	if f.loadRaw != nil {
		return f.loadRaw(competitor)
	}
	return nil, nil
}

func (f *fakeStore) LoadProcessed(_ context.Context, competitor string) ([]model.Post, error) {
	if f.loadProcessed != nil {
		return f.loadProcessed(competitor)
	}
	return nil, nil
}

func (f *fakeStore) LoadRawURLs(_ context.Context, competitor string) (map[string]struct{}, error) {
	if f.loadRawURLs != nil {
		return f.loadRawURLs(competitor)
	}
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

type fakeScraper struct {
	scrape func(comp config.Competitor, existing map[string]struct{}, opts scrape.Options) ([]model.Post, *scrape.Stats, error)
}

func (f *fakeScraper) ScrapeCompetitor(_ context.Context, comp config.Competitor, existing map[string]struct{}, opts scrape.Options) ([]model.Post, *scrape.Stats, error) {
	return f.scrape(comp, existing, opts)
}

type fakeEnricher struct {
	enrich func(competitor string, toEnrich, fullSet []model.Post) ([]model.Post, error)
}

func (f *fakeEnricher) Enrich(_ context.Context, competitor string, toEnrich, fullSet []model.Post) ([]model.Post, error) {
	return f.enrich(competitor, toEnrich, fullSet)
}

func competitors(names ...string) []config.Competitor {
	comps := make([]config.Competitor, 0, len(names))
	for _, n := range names {
		comps = append(comps, config.Competitor{Name: n, BaseURL: "https://" + n + ".test"})
	}
	return comps
}

func scrapedPost(competitor, title string) model.Post {
	p := model.NewPost(competitor, title, "https://"+competitor+".test/"+title)
	p.Content = "body text long enough to count as real content"
	return p
}

func enrichedCopy(p model.Post) model.Post {
	p.Summary = "summary"
	p.Status = model.StatusCompleted
	return p
}

func TestRun_LivePathPersistsMergedPosts(t *testing.T) {
	var savedProcessed []model.Post
	st := &fakeStore{
		saveProcessed: func(posts []model.Post, competitor, source string) error {
			savedProcessed = posts
			assert.Equal(t, "acme", competitor)
			return nil
		},
	}
	sc := &fakeScraper{
		scrape: func(comp config.Competitor, _ map[string]struct{}, _ scrape.Options) ([]model.Post, *scrape.Stats, error) {
			return []model.Post{scrapedPost(comp.Name, "a"), scrapedPost(comp.Name, "b")},
				&scrape.Stats{Successful: 2}, nil
		},
	}
	en := &fakeEnricher{
		enrich: func(_ string, toEnrich, fullSet []model.Post) ([]model.Post, error) {
			require.Len(t, toEnrich, 2)
			out := make([]model.Post, 0, len(fullSet))
			for _, p := range fullSet {
				out = append(out, enrichedCopy(p))
			}
			return out, nil
		},
	}

	results := New(st, sc, en).Run(context.Background(), competitors("acme"), scrape.Options{All: true})
	require.Len(t, results, 1)

	res := results[0]
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.NewPosts)
	assert.Equal(t, 2, res.Enriched)
	assert.False(t, res.BatchSubmitted)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, savedProcessed, 2)
}

func TestRun_BatchPathSkipsPersistence(t *testing.T) {
	st := &fakeStore{
		saveProcessed: func([]model.Post, string, string) error {
			t.Fatal("processed posts must not be saved on the batch path")
			return nil
		},
	}
	sc := &fakeScraper{
		scrape: func(comp config.Competitor, _ map[string]struct{}, _ scrape.Options) ([]model.Post, *scrape.Stats, error) {
			return []model.Post{scrapedPost(comp.Name, "a")}, &scrape.Stats{Successful: 1}, nil
		},
	}
	en := &fakeEnricher{
		enrich: func(string, []model.Post, []model.Post) ([]model.Post, error) {
			return nil, nil
		},
	}

	results := New(st, sc, en).Run(context.Background(), competitors("acme"), scrape.Options{All: true})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.True(t, results[0].BatchSubmitted)
	assert.Zero(t, results[0].Enriched)
}

func TestRun_CompetitorFailureDoesNotStopOthers(t *testing.T) {
	sc := &fakeScraper{
		scrape: func(comp config.Competitor, _ map[string]struct{}, _ scrape.Options) ([]model.Post, *scrape.Stats, error) {
			if comp.Name == "bad" {
				return nil, &scrape.Stats{Errors: 1}, eris.New("listing fetch failed")
			}
			return []model.Post{scrapedPost(comp.Name, "a")}, &scrape.Stats{Successful: 1}, nil
		},
	}
	en := &fakeEnricher{
		enrich: func(_ string, _, fullSet []model.Post) ([]model.Post, error) {
			out := make([]model.Post, 0, len(fullSet))
			for _, p := range fullSet {
				out = append(out, enrichedCopy(p))
			}
			return out, nil
		},
	}

	results := New(&fakeStore{}, sc, en).Run(
		context.Background(), competitors("bad", "good"), scrape.Options{All: true})
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.Equal(t, 1, results[0].Errors)
	require.NoError(t, results[1].Err)
	assert.Equal(t, 1, results[1].Enriched)
}

func TestRun_ExistingURLsPassedToScraper(t *testing.T) {
	st := &fakeStore{
		loadRawURLs: func(string) (map[string]struct{}, error) {
			return map[string]struct{}{"https://acme.test/known": {}}, nil
		},
	}
	var gotExisting map[string]struct{}
	sc := &fakeScraper{
		scrape: func(_ config.Competitor, existing map[string]struct{}, _ scrape.Options) ([]model.Post, *scrape.Stats, error) {
			gotExisting = existing
			return nil, &scrape.Stats{}, nil
		},
	}

	results := New(st, sc, &fakeEnricher{}).Run(
		context.Background(), competitors("acme"), scrape.Options{All: true})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Contains(t, gotExisting, "https://acme.test/known")
}

func TestRun_NoNewPostsSkipsEnrichment(t *testing.T) {
	sc := &fakeScraper{
		scrape: func(config.Competitor, map[string]struct{}, scrape.Options) ([]model.Post, *scrape.Stats, error) {
			return nil, &scrape.Stats{Skipped: 3}, nil
		},
	}
	en := &fakeEnricher{
		enrich: func(string, []model.Post, []model.Post) ([]model.Post, error) {
			t.Fatal("enrichment must not run with no new posts")
			return nil, nil
		},
	}

	results := New(&fakeStore{}, sc, en).Run(
		context.Background(), competitors("acme"), scrape.Options{All: true})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 3, results[0].Skipped)
}

func TestEnrichExisting_FiltersToPostsNeedingEnrichment(t *testing.T) {
	done := enrichedCopy(scrapedPost("acme", "done"))
	todo := scrapedPost("acme", "todo")
	st := &fakeStore{
		loadProcessed: func(string) ([]model.Post, error) {
			return []model.Post{done, todo}, nil
		},
	}
	en := &fakeEnricher{
		enrich: func(_ string, toEnrich, fullSet []model.Post) ([]model.Post, error) {
			require.Len(t, toEnrich, 1)
			assert.Equal(t, todo.URL, toEnrich[0].URL)
			require.Len(t, fullSet, 2)
			out := make([]model.Post, 0, len(fullSet))
			for _, p := range fullSet {
				out = append(out, enrichedCopy(p))
			}
			return out, nil
		},
	}

	res, err := New(st, &fakeScraper{}, en).EnrichExisting(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Enriched)
}

func TestEnrichExisting_FallsBackToRaw(t *testing.T) {
	st := &fakeStore{
		loadRaw: func(string) ([]model.Post, error) {
			return []model.Post{scrapedPost("acme", "raw")}, nil
		},
	}
	var enrichCalled bool
	en := &fakeEnricher{
		enrich: func(_ string, toEnrich, _ []model.Post) ([]model.Post, error) {
			enrichCalled = true
			out := make([]model.Post, 0, len(toEnrich))
			for _, p := range toEnrich {
				out = append(out, enrichedCopy(p))
			}
			return out, nil
		},
	}

	_, err := New(st, &fakeScraper{}, en).EnrichExisting(context.Background(), "acme")
	require.NoError(t, err)
	assert.True(t, enrichCalled)
}
