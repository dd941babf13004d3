package contentproc

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/blogwatch/internal/model"
)

// maxMergedKeywords caps the deduplicated keyword list of a merged post.
const maxMergedKeywords = 10

// MergeChunkedResults folds enriched chunk posts back into single logical
// posts. Posts not marked as chunks pass through unchanged, which makes the
// function idempotent: feeding it already-merged posts is a no-op.
func MergeChunkedResults(posts []model.Post) []model.Post {
	groups := make(map[string][]model.Post)
	var order []string
	merged := make([]model.Post, 0, len(posts))

	for _, p := range posts {
		if !p.IsChunk() {
			merged = append(merged, p)
			continue
		}
		key := p.OriginalTitle
		if key == "" {
			key = p.Title
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], p)
	}

	for _, title := range order {
		merged = append(merged, mergeGroup(title, groups[title]))
	}

	if len(groups) > 0 {
		total := 0
		for _, g := range groups {
			total += len(g)
		}
		zap.L().Info("merged chunked results",
			zap.Int("chunks", total),
			zap.Int("posts", len(groups)),
		)
	}
	return merged
}

func mergeGroup(originalTitle string, chunks []model.Post) model.Post {
	// Sort by chunk index; groups are small, insertion sort is fine.
	for i := 1; i < len(chunks); i++ {
		for j := i; j > 0 && chunks[j].ChunkIndex < chunks[j-1].ChunkIndex; j-- {
			chunks[j], chunks[j-1] = chunks[j-1], chunks[j]
		}
	}

	out := chunks[0]
	out.Title = originalTitle

	// Concatenate non-empty summaries in chunk order.
	var summaries []string
	for _, c := range chunks {
		if c.Summary != "" && c.Summary != model.NA {
			summaries = append(summaries, c.Summary)
		}
	}
	if len(summaries) > 0 {
		out.Summary = strings.Join(summaries, " ")
	}

	// Deduplicate keywords case-insensitively, preserving first-seen order.
	var keywords []string
	seen := make(map[string]bool)
	for _, c := range chunks {
		if c.SEOKeywords == "" || c.SEOKeywords == model.NA {
			continue
		}
		for _, kw := range strings.Split(c.SEOKeywords, ",") {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			lower := strings.ToLower(kw)
			if !seen[lower] {
				seen[lower] = true
				keywords = append(keywords, kw)
			}
		}
	}
	if len(keywords) > maxMergedKeywords {
		keywords = keywords[:maxMergedKeywords]
	}
	if len(keywords) > 0 {
		out.SEOKeywords = strings.Join(keywords, ", ")
	}

	// Most frequent funnel stage wins; ties break to first occurrence.
	counts := make(map[string]int)
	var stageOrder []string
	for _, c := range chunks {
		if c.FunnelStage == "" || c.FunnelStage == model.NA {
			continue
		}
		if counts[c.FunnelStage] == 0 {
			stageOrder = append(stageOrder, c.FunnelStage)
		}
		counts[c.FunnelStage]++
	}
	best := ""
	bestCount := 0
	for _, stage := range stageOrder {
		if counts[stage] > bestCount {
			best, bestCount = stage, counts[stage]
		}
	}
	if best != "" {
		out.FunnelStage = best
	}

	// First real value wins for the remaining enrichment fields.
	for _, c := range chunks {
		if out.TargetAudience == "" || out.TargetAudience == model.NA {
			if c.TargetAudience != "" && c.TargetAudience != model.NA {
				out.TargetAudience = c.TargetAudience
			}
		}
		if out.StrategicAnalysis == nil && c.StrategicAnalysis != nil {
			out.StrategicAnalysis = c.StrategicAnalysis
		}
	}

	out.Processing = &model.ProcessingInfo{
		WasChunked: true,
		ChunkCount: len(chunks),
		MergedBack: true,
	}
	out.OriginalTitle = ""
	out.ChunkIndex = 0
	out.TotalChunks = 0
	return out
}
