package enrich

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blogwatch/internal/model"
)

// Result is the parsed enrichment payload from one model response.
type Result struct {
	Summary           string                   `json:"summary"`
	SEOKeywords       keywordList              `json:"seo_keywords"`
	FunnelStage       string                   `json:"funnel_stage"`
	TargetAudience    string                   `json:"target_audience"`
	StrategicAnalysis *model.StrategicAnalysis `json:"strategic_analysis"`
}

// keywordList accepts both a JSON array of strings and a single
// comma-separated string, since models produce both shapes.
type keywordList []string

func (k *keywordList) UnmarshalJSON(raw []byte) error {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		*k = list
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return eris.New("enrich: seo_keywords is neither array nor string")
	}
	if s == "" || s == model.NA {
		*k = nil
		return nil
	}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*k = append(*k, part)
		}
	}
	return nil
}

// Joined renders the keyword list the way the Post model stores it.
func (k keywordList) Joined() string {
	if len(k) == 0 {
		return model.NA
	}
	return strings.Join(k, ", ")
}

var jsonObjectRE = regexp.MustCompile(`(?s)\{.*\}`)

// Parse extracts the enrichment JSON from a model response. Responses are
// often wrapped in explanatory text; the first well-formed top-level {...}
// object wins.
func Parse(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, eris.New("enrich: empty response")
	}

	var res Result
	if err := json.Unmarshal([]byte(text), &res); err == nil {
		return normalized(&res), nil
	}

	match := jsonObjectRE.FindString(text)
	if match == "" {
		return nil, eris.New("enrich: no JSON object in response")
	}
	if err := json.Unmarshal([]byte(match), &res); err != nil {
		return nil, eris.Wrap(err, "enrich: parse extracted JSON")
	}
	return normalized(&res), nil
}

func normalized(res *Result) *Result {
	if res.Summary == "" {
		res.Summary = model.NA
	}
	if res.FunnelStage == "" {
		res.FunnelStage = model.NA
	}
	if res.TargetAudience == "" {
		res.TargetAudience = model.NA
	}
	return res
}

// AllNA reports whether every enrichment field came back as the sentinel.
func (r *Result) AllNA() bool {
	if r.Summary != model.NA && r.Summary != "" {
		return false
	}
	if len(r.SEOKeywords) > 0 {
		return false
	}
	if r.FunnelStage != model.NA && r.FunnelStage != "" {
		return false
	}
	if r.TargetAudience != model.NA && r.TargetAudience != "" {
		return false
	}
	return r.StrategicAnalysis == nil
}

// Apply writes the parsed result onto the post.
func (r *Result) Apply(p *model.Post) {
	p.Summary = r.Summary
	p.SEOKeywords = r.SEOKeywords.Joined()
	p.FunnelStage = r.FunnelStage
	p.TargetAudience = r.TargetAudience
	p.StrategicAnalysis = r.StrategicAnalysis
}
