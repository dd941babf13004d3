package contentproc

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/blogwatch/internal/model"
)

// Conservative limits that leave room for the prompt and request overhead.
const (
	// MaxContentLength is the largest cleaned content that goes out as a
	// single request.
	MaxContentLength = 6000
	// ChunkSize is the window used when content must be split.
	ChunkSize = 5000
	// ChunkOverlap is how far consecutive chunks overlap so no sentence is
	// enriched without its surrounding context.
	ChunkOverlap = 200
)

// Continuation markers inserted at chunk boundaries. The first chunk has no
// leading marker, the last no trailing marker.
const (
	MarkerContinuedFrom = "[Continued from previous section] "
	MarkerContinuedIn   = " [Continued in next section]"
)

var sentenceBoundaryRE = regexp.MustCompile(`[.!?]\s+[A-Z]`)

// Prepare cleans every post and splits those whose content exceeds
// MaxContentLength into chunk posts. Posts without content pass through
// untouched. The result may be longer than the input.
func Prepare(posts []model.Post) []model.Post {
	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if !p.HasContent() {
			out = append(out, p)
			continue
		}

		cleaned := Clean(p.Content)
		original := p.Content

		if len(cleaned) <= MaxContentLength {
			p.Content = cleaned
			p.Processing = &model.ProcessingInfo{
				OriginalLength:  len(original),
				ProcessedLength: len(cleaned),
				Chunked:         false,
				CleaningApplied: cleaned != original,
			}
			m := Measure(&p)
			p.Processing.Metrics = &m
			out = append(out, p)
			continue
		}

		chunks := splitContent(cleaned)
		zap.L().Info("content chunked",
			zap.String("title", p.Title),
			zap.Int("length", len(cleaned)),
			zap.Int("chunks", len(chunks)),
		)
		for i, chunk := range chunks {
			cp := p
			cp.Content = chunk
			cp.OriginalTitle = p.Title
			cp.Title = fmt.Sprintf("%s (Part %d/%d)", p.Title, i+1, len(chunks))
			cp.ChunkIndex = i
			cp.TotalChunks = len(chunks)
			cp.Processing = &model.ProcessingInfo{
				OriginalLength:  len(original),
				ChunkLength:     len(chunk),
				Chunked:         true,
				ChunkNumber:     i + 1,
				TotalChunks:     len(chunks),
				CleaningApplied: true,
			}
			m := Measure(&cp)
			cp.Processing.Metrics = &m
			out = append(out, cp)
		}
	}

	if len(out) > len(posts) {
		zap.L().Info("content preprocessing expanded posts",
			zap.Int("posts", len(posts)),
			zap.Int("items", len(out)),
		)
	}
	return out
}

// splitContent slices content into overlapping windows, snapping each cut to
// the last sentence boundary found in the trailing portion of the window.
func splitContent(content string) []string {
	if len(content) <= MaxContentLength {
		return []string{content}
	}

	var chunks []string
	pos := 0
	for pos < len(content) {
		end := pos + ChunkSize
		if end > len(content) {
			end = len(content)
		}

		if end < len(content) {
			// Look for sentence endings in the last ~20% of the window,
			// peeking slightly past the end.
			searchStart := pos + ChunkSize*8/10
			if min := pos + 500; searchStart < min {
				searchStart = min
			}
			searchEnd := end + 100
			if searchEnd > len(content) {
				searchEnd = len(content)
			}
			if searchStart < searchEnd {
				area := content[searchStart:searchEnd]
				if locs := sentenceBoundaryRE.FindAllStringIndex(area, -1); len(locs) > 0 {
					last := locs[len(locs)-1]
					end = searchStart + last[0] + 1
				}
			}
		}

		body := strings.TrimSpace(content[pos:end])
		chunk := body
		if pos > 0 {
			chunk = MarkerContinuedFrom + chunk
		}
		if end < len(content) {
			chunk += MarkerContinuedIn
		}
		chunks = append(chunks, chunk)

		if end >= len(content) {
			break
		}
		next := end - ChunkOverlap
		if next <= pos {
			next = end
		}
		pos = next
	}
	return chunks
}

// StripMarkers removes continuation markers from a chunk body.
func StripMarkers(chunk string) string {
	chunk = strings.TrimPrefix(chunk, MarkerContinuedFrom)
	chunk = strings.TrimSuffix(chunk, MarkerContinuedIn)
	return chunk
}
