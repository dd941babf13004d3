package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blogwatch/internal/config"
	"github.com/sells-group/blogwatch/internal/model"
)

var (
	recentDate  = time.Now().AddDate(0, 0, -8).Format("2006-01-02")
	olderDate   = time.Now().AddDate(0, 0, -18).Format("2006-01-02")
	ancientDate = time.Now().AddDate(0, 0, -2000).Format("2006-01-02")
)

func postPage(title, date, content string) string {
	return fmt.Sprintf(`<html><head>
		<meta name="keywords" content="cms, content">
		<script type="application/ld+json">{"@type":"BlogPosting","headline":%q}</script>
	</head><body>
		<h1 class="title">%s</h1>
		<time datetime="%s">%s</time>
		<div class="content"><h2>Section</h2><p>%s</p><script>junk()</script></div>
	</body></html>`, title, title, date, date, content)
}

func listingPage(next string, links ...string) string {
	page := "<html><body>"
	for _, l := range links {
		page += fmt.Sprintf(`<a class="post-link" href=%q>post</a>`, l)
	}
	if next != "" {
		page += fmt.Sprintf(`<a class="next" href=%q>next</a>`, next)
	}
	return page + "</body></html>"
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/blog", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage("/blog/page/2", "/posts/alpha", "/posts/beta"))
	})
	mux.HandleFunc("/blog/page/2", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage("", "/posts/gamma"))
	})
	mux.HandleFunc("/posts/alpha", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, postPage("Alpha Post", recentDate, "alpha body text with substance"))
	})
	mux.HandleFunc("/posts/beta", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, postPage("Beta Post", olderDate, "beta body text with substance"))
	})
	mux.HandleFunc("/posts/gamma", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, postPage("Gamma Post", ancientDate, "ancient gamma body text"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testCompetitor(baseURL string) config.Competitor {
	return config.Competitor{
		Name:             "acme",
		BaseURL:          baseURL,
		Pattern:          "single_list",
		CategoryPaths:    []string{"/blog"},
		PostListSelector: "a.post-link",
		TitleSelector:    "h1.title",
		DateSelector:     "time",
		ContentSelector:  "div.content",
		NextPageSelector: "a.next",
	}
}

func fastScraper() *Scraper {
	return New(config.ScrapeConfig{
		TimeoutSecs:    5,
		RequestsPerSec: 1000,
		Concurrency:    4,
	})
}

func TestScrapeCompetitor_SingleListFollowsPagination(t *testing.T) {
	srv := testServer(t)

	posts, stats, err := fastScraper().ScrapeCompetitor(
		context.Background(), testCompetitor(srv.URL), nil, Options{All: true})
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, 3, stats.Successful)
	assert.Zero(t, stats.Errors)

	titles := []string{posts[0].Title, posts[1].Title, posts[2].Title}
	assert.Contains(t, titles, "Alpha Post")
	assert.Contains(t, titles, "Gamma Post")

	var alpha model.Post
	for _, p := range posts {
		if p.Title == "Alpha Post" {
			alpha = p
		}
	}
	assert.Equal(t, recentDate, alpha.PublicationDate)
	assert.Contains(t, alpha.Content, "alpha body text")
	assert.NotContains(t, alpha.Content, "junk()", "scripts are stripped from content")
	assert.Equal(t, "cms, content", alpha.SEOMetaKeywords)
	require.NotEmpty(t, alpha.Schemas)
	assert.Equal(t, "BlogPosting", alpha.Schemas[0].Type)

	var tags []string
	for _, h := range alpha.Headings {
		tags = append(tags, h.Tag)
	}
	assert.Contains(t, tags, "h1")
	assert.Contains(t, tags, "h2")
}

func TestScrapeCompetitor_SkipsExistingURLs(t *testing.T) {
	srv := testServer(t)

	existing := map[string]struct{}{
		srv.URL + "/posts/alpha": {},
	}
	posts, stats, err := fastScraper().ScrapeCompetitor(
		context.Background(), testCompetitor(srv.URL), existing, Options{All: true})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, 1, stats.Skipped)
	for _, p := range posts {
		assert.NotEqual(t, "Alpha Post", p.Title)
	}
}

func TestScrapeCompetitor_DateWindowExcludesOldPosts(t *testing.T) {
	srv := testServer(t)

	posts, _, err := fastScraper().ScrapeCompetitor(
		context.Background(), testCompetitor(srv.URL), nil, Options{Days: 36500})
	require.NoError(t, err)
	// All three fall inside a hundred-year window.
	assert.Len(t, posts, 3)

	posts, _, err = fastScraper().ScrapeCompetitor(
		context.Background(), testCompetitor(srv.URL), nil, Options{Days: 365})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	for _, p := range posts {
		assert.NotEqual(t, "Gamma Post", p.Title, "posts older than the window are excluded")
	}
}

func TestScrapeCompetitor_SinglePageNoPagination(t *testing.T) {
	srv := testServer(t)

	comp := testCompetitor(srv.URL)
	comp.Pattern = "single_page"
	posts, _, err := fastScraper().ScrapeCompetitor(context.Background(), comp, nil, Options{All: true})
	require.NoError(t, err)
	// Only page one; gamma lives on page two.
	assert.Len(t, posts, 2)
}

func TestScrapeCompetitor_ListingErrorIsScrapingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	_, stats, err := fastScraper().ScrapeCompetitor(
		context.Background(), testCompetitor(srv.URL), nil, Options{All: true})
	require.Error(t, err)

	var se *ScrapingError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "acme", se.Competitor)
	assert.Equal(t, 1, stats.Errors)
}

func TestScrapeCompetitor_RejectsUntitledPosts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/blog", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage("", "/posts/untitled", "/posts/titled"))
	})
	mux.HandleFunc("/posts/untitled", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><div class="content">body with no title anywhere</div></body></html>`)
	})
	mux.HandleFunc("/posts/titled", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, postPage("Titled Post", recentDate, "titled body text"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	posts, stats, err := fastScraper().ScrapeCompetitor(
		context.Background(), testCompetitor(srv.URL), nil, Options{All: true})
	require.NoError(t, err)

	// The untitled post fails validation and is dropped as a per-post error.
	require.Len(t, posts, 1)
	assert.Equal(t, "Titled Post", posts[0].Title)
	assert.Equal(t, 1, stats.Errors)
	require.Len(t, stats.FailedURLs, 1)
	assert.Contains(t, stats.FailedURLs[0], "/posts/untitled")
}

func TestParseDate_Formats(t *testing.T) {
	cases := map[string]string{
		"2026-08-20":                "2026-08-20",
		"2026-08-20T10:30:00Z":      "2026-08-20",
		"January 2, 2026":           "2026-01-02",
		"Jan 2, 2026":               "2026-01-02",
		"2 January 2026":            "2026-01-02",
	}
	for input, want := range cases {
		got, ok := parseDate(input)
		require.True(t, ok, "should parse %q", input)
		assert.Equal(t, want, got.Format("2006-01-02"))
	}

	_, ok := parseDate("not a date")
	assert.False(t, ok)
}
