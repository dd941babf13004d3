package scrape

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/blogwatch/internal/config"
	"github.com/sells-group/blogwatch/internal/model"
)

// fetchDocument performs one rate-limited GET and parses the body. A 404 is
// returned as a status, not an error: pagination walks off the end of lists.
func (s *Scraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, int, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "scrape: limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "scrape: create request %s", pageURL)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "scrape: fetch %s", pageURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, resp.StatusCode, nil
	}
	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, eris.Errorf("scrape: %s returned status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrapf(err, "scrape: parse %s", pageURL)
	}
	return doc, resp.StatusCode, nil
}

// fetchPost fetches one post page and extracts the full record: title,
// date, content, headings, JSON-LD blocks, and meta keywords.
func (s *Scraper) fetchPost(ctx context.Context, comp config.Competitor, postURL string) (*model.Post, error) {
	doc, status, err := s.fetchDocument(ctx, postURL)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, eris.Errorf("scrape: post %s not found", postURL)
	}

	post := model.NewPost(comp.Name, extractTitle(doc, comp), postURL)
	post.PublicationDate = extractDate(doc, comp)
	post.Content = extractContent(doc, comp)
	post.SEOMetaKeywords = extractMetaKeywords(doc)
	post.Headings = extractHeadings(doc)
	post.Schemas = extractSchemas(doc)

	post.Normalize()
	if err := post.Validate(); err != nil {
		return nil, eris.Wrapf(err, "scrape: post %s", postURL)
	}
	return &post, nil
}

func extractTitle(doc *goquery.Document, comp config.Competitor) string {
	if comp.TitleSelector != "" {
		if t := strings.TrimSpace(doc.Find(comp.TitleSelector).First().Text()); t != "" {
			return t
		}
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// dateLayouts are tried in order against scraped date strings.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02/01/2006",
	"01/02/2006",
}

func extractDate(doc *goquery.Document, comp config.Competitor) string {
	var candidates []string

	if comp.DateSelector != "" {
		node := doc.Find(comp.DateSelector).First()
		if dt, ok := node.Attr("datetime"); ok {
			candidates = append(candidates, dt)
		}
		candidates = append(candidates, strings.TrimSpace(node.Text()))
	}
	if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		candidates = append(candidates, dt)
	}
	if content, ok := doc.Find(`meta[property="article:published_time"]`).First().Attr("content"); ok {
		candidates = append(candidates, content)
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if parsed, ok := parseDate(c); ok {
			return parsed.Format("2006-01-02")
		}
	}
	return model.NA
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func extractContent(doc *goquery.Document, comp config.Competitor) string {
	selectors := []string{comp.ContentSelector, "article", "main", ".post-content", ".entry-content"}
	for _, sel := range selectors {
		if sel == "" {
			continue
		}
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		// Scripts and styles inside the content block are noise.
		node.Find("script, style, nav, footer").Remove()
		if text := strings.TrimSpace(node.Text()); text != "" {
			return text
		}
	}
	return ""
}

func extractMetaKeywords(doc *goquery.Document) string {
	if content, ok := doc.Find(`meta[name="keywords"]`).First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}

func extractHeadings(doc *goquery.Document) []model.Heading {
	var headings []model.Heading
	doc.Find("h1, h2, h3, h4").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		headings = append(headings, model.Heading{
			Tag:  goquery.NodeName(sel),
			Text: text,
		})
	})
	return headings
}

// extractSchemas collects schema.org JSON-LD blocks. Unparsable blocks are
// skipped; structured data quality varies wildly across CMSes.
func extractSchemas(doc *goquery.Document) []model.Schema {
	var schemas []model.Schema
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var raw map[string]any
		if err := json.Unmarshal([]byte(sel.Text()), &raw); err != nil {
			return
		}
		schema := model.Schema{Raw: raw}
		if t, ok := raw["@type"].(string); ok {
			schema.Type = t
		}
		schemas = append(schemas, schema)
	})
	return schemas
}
