package batch

import (
	"encoding/json"

	"github.com/sells-group/blogwatch/internal/model"
)

// SplitPosts splits posts into chunks whose estimated serialized size stays
// under maxBytes. A post joins the current chunk unless doing so would
// exceed the budget and the chunk is non-empty; then a new chunk starts.
// No post is ever dropped: a single post larger than the budget still gets
// a chunk of its own.
func SplitPosts(posts []model.Post, maxBytes int) [][]model.Post {
	var chunks [][]model.Post
	var current []model.Post
	currentSize := 0

	for _, p := range posts {
		size := serializedSize(p)
		if currentSize+size > maxBytes && len(current) > 0 {
			chunks = append(chunks, current)
			current = []model.Post{p}
			currentSize = size
		} else {
			current = append(current, p)
			currentSize += size
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// serializedSize estimates one post's JSONL footprint including the newline.
func serializedSize(p model.Post) int {
	raw, err := json.Marshal(&p)
	if err != nil {
		return len(p.Content) + len(p.Title) + 1
	}
	return len(raw) + 1
}
