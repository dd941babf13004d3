package scrape

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/blogwatch/internal/config"
	"github.com/sells-group/blogwatch/internal/model"
)

// runState carries the per-run bookkeeping shared by the layout patterns.
type runState struct {
	scraper  *Scraper
	comp     config.Competitor
	existing map[string]struct{}
	seen     map[string]struct{}
	cutoff   time.Time
	stats    *Stats
}

// scrapeList walks one listing, following pagination when paginate is set.
// Post detail pages on each listing page are fetched concurrently; listing
// pages themselves are walked sequentially because each decides whether a
// next page exists.
func (r *runState) scrapeList(ctx context.Context, categoryPath string, paginate bool) ([]model.Post, error) {
	currentURL := joinURL(r.comp.BaseURL, categoryPath)
	page := 1

	var posts []model.Post
	for currentURL != "" {
		zap.L().Debug("scanning listing page",
			zap.String("competitor", r.comp.Name),
			zap.String("url", currentURL),
		)

		doc, status, err := r.scraper.fetchDocument(ctx, currentURL)
		if err != nil {
			r.stats.Errors++
			r.stats.FailedURLs = append(r.stats.FailedURLs, currentURL)
			return nil, &ScrapingError{Competitor: r.comp.Name, URL: currentURL, Err: err}
		}
		if status == 404 {
			// Walking past the last page. Normal end of pagination.
			break
		}

		links, total := r.collectPostLinks(doc)
		pagePosts, err := r.fetchDetails(ctx, links)
		if err != nil {
			return nil, err
		}
		posts = append(posts, pagePosts...)

		if !paginate {
			break
		}
		currentURL = r.nextPageURL(doc, page, total)
		page++
	}
	return posts, nil
}

// collectPostLinks extracts unseen post URLs from a listing page. The total
// selector match count feeds the end-of-pagination check.
func (r *runState) collectPostLinks(doc *goquery.Document) (links []string, total int) {
	doc.Find(r.comp.PostListSelector).Each(func(_ int, sel *goquery.Selection) {
		total++
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		postURL := joinURL(r.comp.BaseURL, href)
		if _, done := r.seen[postURL]; done {
			return
		}
		r.seen[postURL] = struct{}{}
		if _, known := r.existing[postURL]; known {
			r.stats.Skipped++
			return
		}
		links = append(links, postURL)
	})
	return links, total
}

// fetchDetails fetches post pages concurrently with positional results, so
// completion order never reorders the output.
func (r *runState) fetchDetails(ctx context.Context, links []string) ([]model.Post, error) {
	results := make([]*model.Post, len(links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.scraper.concurrency)
	for i, link := range links {
		g.Go(func() error {
			post, err := r.scraper.fetchPost(gctx, r.comp, link)
			if err != nil {
				zap.L().Warn("post fetch failed",
					zap.String("competitor", r.comp.Name),
					zap.String("url", link),
					zap.Error(err),
				)
				r.stats.recordFailure(link)
				return nil
			}
			results[i] = post
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var posts []model.Post
	for _, p := range results {
		if p == nil {
			continue
		}
		if !r.withinWindow(p) {
			r.stats.Skipped++
			continue
		}
		r.stats.Successful++
		posts = append(posts, *p)
	}
	return posts, nil
}

func (r *runState) withinWindow(p *model.Post) bool {
	if r.cutoff.IsZero() {
		return true
	}
	date, ok := p.Date()
	if !ok {
		// Undated posts are kept; the window only excludes what is
		// provably old.
		return true
	}
	return !date.Before(r.cutoff)
}

// nextPageURL decides where pagination goes next. A page with no post links
// at all, or a configured next-page selector matching nothing, ends the walk.
func (r *runState) nextPageURL(doc *goquery.Document, page, totalLinks int) string {
	if totalLinks == 0 {
		return ""
	}

	if sel := r.comp.NextPageSelector; sel != "" {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			return ""
		}
		if href, ok := node.Attr("href"); ok && href != "" {
			return joinURL(r.comp.BaseURL, href)
		}
		return ""
	}

	if pattern := r.comp.PaginationPattern; pattern != "" {
		next := strings.ReplaceAll(pattern, "{n}", strconv.Itoa(page+1))
		return joinURL(r.comp.BaseURL, next)
	}
	return ""
}

func (s *Stats) recordFailure(url string) {
	s.Errors++
	s.FailedURLs = append(s.FailedURLs, url)
}

// joinURL resolves href against base, tolerating absolute hrefs.
func joinURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	hu, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(hu).String()
}
