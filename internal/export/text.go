package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blogwatch/internal/model"
)

const snippetLen = 300

// snippet trims content to a readable preview length.
func snippet(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= snippetLen {
		return string(runes)
	}
	return string(runes[:snippetLen]) + "..."
}

func writeText(path, name string, posts []model.Post) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Blog Posts for %s\n", name)
	b.WriteString(strings.Repeat("=", 40) + "\n\n")

	for _, p := range posts {
		fmt.Fprintf(&b, "Title: %s\n", p.Title)
		fmt.Fprintf(&b, "Publication Date: %s\n", p.PublicationDate)
		fmt.Fprintf(&b, "URL: %s\n", p.URL)
		fmt.Fprintf(&b, "Summary: %s\n", p.Summary)
		fmt.Fprintf(&b, "Funnel Stage: %s\n", p.FunnelStage)
		fmt.Fprintf(&b, "Target Audience: %s\n", p.TargetAudience)
		fmt.Fprintf(&b, "SEO Keywords (from Meta): %s\n", p.SEOMetaKeywords)
		fmt.Fprintf(&b, "SEO Keywords (from LLM): %s\n", p.SEOKeywords)
		fmt.Fprintf(&b, "Content: %s\n", snippet(p.Content))
		b.WriteString(strings.Repeat("-", 40) + "\n\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

func writeMarkdown(path, name string, posts []model.Post) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Blog Posts for %s\n\n", name)

	for _, p := range posts {
		fmt.Fprintf(&b, "## [%s](%s)\n\n", p.Title, p.URL)
		fmt.Fprintf(&b, "- **Published:** %s\n", p.PublicationDate)
		fmt.Fprintf(&b, "- **Competitor:** %s\n", p.Competitor)
		fmt.Fprintf(&b, "- **Funnel Stage:** %s\n", p.FunnelStage)
		fmt.Fprintf(&b, "- **Target Audience:** %s\n", p.TargetAudience)
		fmt.Fprintf(&b, "- **Keywords:** %s\n\n", p.SEOKeywords)
		fmt.Fprintf(&b, "%s\n\n", p.Summary)
		if sa := p.StrategicAnalysis; sa != nil {
			fmt.Fprintf(&b, "> Angle: %s; differentiation: %s; depth: %s\n\n",
				sa.ContentAngle, sa.CompetitiveDifferentiation, sa.ContentDepth)
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}
