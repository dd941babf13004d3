package contentproc

import (
	"regexp"
	"strings"

	"github.com/sells-group/blogwatch/internal/model"
)

// readingWordsPerMinute is the rate used for estimated reading time.
const readingWordsPerMinute = 200

var (
	sentenceRE = regexp.MustCompile(`[.!?]+(\s|$)`)
	linkRE     = regexp.MustCompile(`https?://\S+`)
	imageRE    = regexp.MustCompile(`!\[[^\]]*\]|<img\b`)
	listItemRE = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+[.)])\s`)
)

// Measure computes content metrics for a post. Headings come from the
// scraper's structural metadata, the rest from the content text itself.
func Measure(p *model.Post) model.ContentMetrics {
	content := p.Content
	words := len(strings.Fields(content))
	minutes := 0
	if words > 0 {
		minutes = (words + readingWordsPerMinute - 1) / readingWordsPerMinute
	}
	return model.ContentMetrics{
		Words:          words,
		ReadingMinutes: minutes,
		Sentences:      len(sentenceRE.FindAllString(content, -1)),
		Headings:       len(p.Headings),
		ListItems:      len(listItemRE.FindAllString(content, -1)),
		Links:          len(linkRE.FindAllString(content, -1)),
		Images:         len(imageRE.FindAllString(content, -1)),
	}
}
