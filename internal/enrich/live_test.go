package enrich

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blogwatch/internal/config"
	"github.com/sells-group/blogwatch/internal/model"
	"github.com/sells-group/blogwatch/pkg/anthropic"
)

type fakeClient struct {
	createMessage func(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (f *fakeClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return f.createMessage(ctx, req)
}

func (f *fakeClient) CreateBatch(context.Context, anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	panic("not used in live path")
}

func (f *fakeClient) GetBatch(context.Context, string) (*anthropic.BatchResponse, error) {
	panic("not used in live path")
}

func (f *fakeClient) GetBatchResults(context.Context, string) (anthropic.BatchResultIterator, error) {
	panic("not used in live path")
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func newTestLive(client anthropic.Client) *Live {
	l := NewLive(client,
		config.AnthropicConfig{LiveModel: "claude-haiku-4-5-20251001", MaxTokens: 512},
		config.EnrichConfig{MaxAttempts: 3},
	)
	l.baseDelay = time.Millisecond
	return l
}

func livePosts() []model.Post {
	older := model.NewPost("acme", "Older Post", "https://a.example/older")
	older.PublicationDate = "2026-01-10"
	older.Content = "older post content with enough substance to enrich"

	newer := model.NewPost("acme", "Newer Post", "https://a.example/newer")
	newer.PublicationDate = "2026-02-20"
	newer.Content = "newer post content with enough substance to enrich"

	return []model.Post{older, newer}
}

func TestLive_EnrichMany_Success(t *testing.T) {
	client := &fakeClient{
		createMessage: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse(`{"summary":"S","seo_keywords":["a","b"]}`), nil
		},
	}

	out, err := newTestLive(client).EnrichMany(context.Background(), livePosts())
	require.NoError(t, err)
	require.Len(t, out, 2)

	// Sorted newest first.
	assert.Equal(t, "Newer Post", out[0].Title)
	assert.Equal(t, "Older Post", out[1].Title)

	for _, p := range out {
		assert.Equal(t, "S", p.Summary)
		assert.Equal(t, "a, b", p.SEOKeywords)
		assert.Equal(t, model.StatusCompleted, p.Status)
	}
}

func TestLive_EnrichMany_NoContentSkipsCall(t *testing.T) {
	var calls atomic.Int32
	client := &fakeClient{
		createMessage: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			calls.Add(1)
			return textResponse(`{"summary":"S"}`), nil
		},
	}

	empty := model.NewPost("acme", "Empty", "https://a.example/empty")
	out, err := newTestLive(client).EnrichMany(context.Background(), []model.Post{empty})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, model.StatusNoContent, out[0].Status)
	assert.Equal(t, model.NA, out[0].Summary)
}

func TestLive_EnrichMany_RetriesRejectedResponse(t *testing.T) {
	var calls atomic.Int32
	client := &fakeClient{
		createMessage: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			if calls.Add(1) == 1 {
				return textResponse("not json at all"), nil
			}
			return textResponse(`{"summary":"second try"}`), nil
		},
	}

	out, err := newTestLive(client).EnrichMany(context.Background(), livePosts()[:1])
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "second try", out[0].Summary)
	assert.Equal(t, model.StatusCompleted, out[0].Status)
}

func TestLive_EnrichMany_ExhaustedKeepsPostAsFailed(t *testing.T) {
	var calls atomic.Int32
	client := &fakeClient{
		createMessage: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			calls.Add(1)
			return textResponse(""), nil
		},
	}

	out, err := newTestLive(client).EnrichMany(context.Background(), livePosts()[:1])
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, model.StatusFailed, out[0].Status)
	assert.Equal(t, model.NA, out[0].Summary)
}
