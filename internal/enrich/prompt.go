package enrich

import (
	"fmt"
	"strings"

	"github.com/sells-group/blogwatch/internal/model"
	"github.com/sells-group/blogwatch/pkg/anthropic"
)

const enrichmentInstruction = `You are a competitive content analyst. You will be given one blog post
from a competitor's website. Analyze it and respond with ONLY a JSON object,
no prose before or after, in exactly this shape:

{
  "summary": "2-3 sentence summary of the post",
  "seo_keywords": ["keyword", "keyword", ...],
  "funnel_stage": "TOFU|MOFU|BOFU",
  "target_audience": "who this post is written for",
  "strategic_analysis": {
    "content_angle": "the angle or hook the post takes",
    "competitive_differentiation": "how it positions against alternatives",
    "content_freshness_score": "score out of 10 with a short reason",
    "target_persona_indicators": "signals about the intended persona",
    "content_depth": "surface|moderate|deep"
  }
}

Use "N/A" for any field you genuinely cannot determine. Never invent facts
that are not supported by the post.`

// SystemBlocks builds the system prompt for enrichment calls. The
// instruction is identical across every post in a run, so it is marked
// cacheable; the competitor tier context rides in the same cached block.
func SystemBlocks(primary, dxp []string) []anthropic.SystemBlock {
	var b strings.Builder
	b.WriteString(enrichmentInstruction)
	if len(primary) > 0 || len(dxp) > 0 {
		b.WriteString("\n\nCompetitive context:")
		if len(primary) > 0 {
			b.WriteString("\nPrimary competitors: " + strings.Join(primary, ", "))
		}
		if len(dxp) > 0 {
			b.WriteString("\nDXP-tier competitors: " + strings.Join(dxp, ", "))
		}
	}
	return []anthropic.SystemBlock{{
		Text:         b.String(),
		CacheControl: &anthropic.CacheControl{TTL: "5m"},
	}}
}

// UserPrompt renders one post as the user message for an enrichment call.
func UserPrompt(p *model.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Competitor: %s\n", orNA(p.Competitor))
	fmt.Fprintf(&b, "Title: %s\n", orNA(p.Title))
	fmt.Fprintf(&b, "URL: %s\n", orNA(p.URL))
	fmt.Fprintf(&b, "Published: %s\n", orNA(p.PublicationDate))
	if p.SEOMetaKeywords != "" && p.SEOMetaKeywords != model.NA {
		fmt.Fprintf(&b, "Meta keywords: %s\n", p.SEOMetaKeywords)
	}
	if len(p.Headings) > 0 {
		b.WriteString("Headings:\n")
		for _, h := range p.Headings {
			fmt.Fprintf(&b, "  [%s] %s\n", h.Tag, h.Text)
		}
	}
	b.WriteString("\nPost content:\n")
	b.WriteString(p.Content)
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return model.NA
	}
	return s
}
