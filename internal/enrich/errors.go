package enrich

import "fmt"

// EnrichmentError reports a failed enrichment dispatch for one competitor.
// The orchestrating loop logs it and moves on to the next competitor.
type EnrichmentError struct {
	Competitor string
	Posts      int
	Model      string
	Err        error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrich: %s (%d posts, model %s): %v", e.Competitor, e.Posts, e.Model, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }
