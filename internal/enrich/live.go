package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/blogwatch/internal/config"
	"github.com/sells-group/blogwatch/internal/model"
	"github.com/sells-group/blogwatch/internal/resilience"
	"github.com/sells-group/blogwatch/pkg/anthropic"
)

// respClass classifies one model response before it is accepted.
type respClass int

const (
	respOK respClass = iota
	respEmpty
	respMalformedMarker
	respParseFailure
	respAllNA
)

func (c respClass) String() string {
	switch c {
	case respOK:
		return "ok"
	case respEmpty:
		return "empty"
	case respMalformedMarker:
		return "malformed_marker"
	case respParseFailure:
		return "parse_failure"
	case respAllNA:
		return "all_na"
	default:
		return "unknown"
	}
}

// malformedMarkers are substrings the provider emits in place of a real
// completion when the request itself was broken. Such responses are retried.
var malformedMarkers = []string{
	"malformed_function_call",
	"invalid_request_error",
}

// rejectedError marks a response that came back but was unusable. It is
// retryable: a fresh sample often parses.
type rejectedError struct {
	class respClass
}

func (e *rejectedError) Error() string { return "enrich: response rejected: " + e.class.String() }

// Live issues one inference call per post, concurrently, with bounded
// retries and malformed-response detection.
type Live struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	maxAttempts int
	primary     []string
	dxp         []string
	baseDelay   time.Duration
	breaker     *resilience.Breaker

	mu    sync.Mutex
	usage anthropic.TokenUsage
}

// NewLive builds the live enrichment path from configuration.
func NewLive(client anthropic.Client, ac config.AnthropicConfig, ec config.EnrichConfig) *Live {
	attempts := ec.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &Live{
		client:      client,
		model:       ac.LiveModel,
		maxTokens:   ac.MaxTokens,
		maxAttempts: attempts,
		primary:     ec.PrimaryCompetitors,
		dxp:         ec.DXPCompetitors,
		baseDelay:   time.Second,
		breaker:     resilience.NewBreaker(5, 30*time.Second),
	}
}

// EnrichMany enriches every post with content, concurrently, and returns the
// full set sorted newest first. Post-to-result association is positional, so
// completion order never affects the output. Posts are never dropped: a post
// whose calls all fail keeps its sentinels and is marked failed.
func (l *Live) EnrichMany(ctx context.Context, posts []model.Post) ([]model.Post, error) {
	out := make([]model.Post, len(posts))
	copy(out, posts)

	g, gctx := errgroup.WithContext(ctx)
	for i := range out {
		if !out[i].HasContent() {
			out[i].Status = model.StatusNoContent
			continue
		}
		g.Go(func() error {
			l.enrichOne(gctx, &out[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "enrich: live run cancelled")
	}

	l.logSummary(out)
	l.Usage().LogCost(l.model, "live_enrichment", false)
	return model.SortByDateDesc(out), nil
}

// enrichOne runs the bounded retry loop for a single post. Failures are
// absorbed into the post's status, never returned.
func (l *Live) enrichOne(ctx context.Context, p *model.Post) {
	cfg := resilience.RetryConfig{
		MaxAttempts: l.maxAttempts,
		BaseDelay:   l.baseDelay,
		Multiplier:  2.0,
		Retryable: func(err error) bool {
			var rej *rejectedError
			return errors.As(err, &rej) || resilience.IsTransient(err)
		},
		OnRetry: func(attempt int, err error) {
			zap.L().Warn("live enrichment retry",
				zap.String("title", p.Title),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		},
	}

	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Result, error) {
		return l.callOnce(ctx, p)
	})
	if err != nil {
		zap.L().Error("live enrichment exhausted",
			zap.String("title", p.Title),
			zap.String("url", p.URL),
			zap.Error(err),
		)
		p.Status = model.StatusFailed
		return
	}

	res.Apply(p)
	p.Status = model.StatusCompleted
}

// callOnce issues one inference call and classifies the response.
func (l *Live) callOnce(ctx context.Context, p *model.Post) (*Result, error) {
	if !l.breaker.Allow() {
		return nil, resilience.ErrBreakerOpen
	}

	resp, err := l.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     l.model,
		MaxTokens: l.maxTokens,
		System:    SystemBlocks(l.primary, l.dxp),
		Messages:  []anthropic.Message{{Role: "user", Content: UserPrompt(p)}},
	})
	l.breaker.Record(err)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.usage.Add(resp.Usage)
	l.mu.Unlock()

	text := resp.Text()
	if class := classify(text, p); class != respOK {
		return nil, &rejectedError{class: class}
	}
	res, err := Parse(text)
	if err != nil {
		return nil, &rejectedError{class: respParseFailure}
	}
	return res, nil
}

// classify rejects responses that are empty, carry a malformed-request
// marker, fail to parse, or answer all N/A for a post with real content.
func classify(text string, p *model.Post) respClass {
	if strings.TrimSpace(text) == "" {
		return respEmpty
	}
	lower := strings.ToLower(text)
	for _, marker := range malformedMarkers {
		if strings.Contains(lower, marker) {
			return respMalformedMarker
		}
	}
	res, err := Parse(text)
	if err != nil {
		return respParseFailure
	}
	if res.AllNA() && p.HasContent() {
		return respAllNA
	}
	return respOK
}

// Usage returns the accumulated token usage for this path.
func (l *Live) Usage() anthropic.TokenUsage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usage
}

// logSummary reports per-classification counts and a few failing titles.
// Live failures usually point at a systemic request problem, so examples
// matter more than an exhaustive list.
func (l *Live) logSummary(posts []model.Post) {
	var completed, failed, noContent int
	var failing []string
	for _, p := range posts {
		switch p.Status {
		case model.StatusCompleted:
			completed++
		case model.StatusFailed:
			failed++
			if len(failing) < 3 {
				failing = append(failing, p.Title)
			}
		case model.StatusNoContent:
			noContent++
		}
	}
	zap.L().Info("live enrichment summary",
		zap.Int("completed", completed),
		zap.Int("failed", failed),
		zap.Int("no_content", noContent),
		zap.Strings("example_failures", failing),
	)
}
