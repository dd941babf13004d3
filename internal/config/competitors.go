package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Competitor describes one blog to scrape: where it lives, which CMS layout
// pattern it follows, and the selectors to pull posts out of it.
type Competitor struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	// Pattern is one of "single_list", "multi_category", "single_page".
	Pattern       string   `yaml:"structure_pattern"`
	CategoryPaths []string `yaml:"category_paths"`

	PostListSelector string `yaml:"post_list_selector"`
	TitleSelector    string `yaml:"title_selector"`
	DateSelector     string `yaml:"date_selector"`
	ContentSelector  string `yaml:"content_selector"`
	NextPageSelector string `yaml:"next_page_selector"`
	// PaginationPattern builds page N's URL, e.g. "page/{n}" or "?page={n}".
	PaginationPattern string `yaml:"pagination_pattern"`
}

type competitorsFile struct {
	Competitors []Competitor `yaml:"competitors"`
}

var validPatterns = map[string]bool{
	"single_list":    true,
	"multi_category": true,
	"single_page":    true,
}

// LoadCompetitors reads and validates competitor definitions. Invalid
// definitions abort startup rather than failing mid-scrape.
func LoadCompetitors(path string) ([]Competitor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read competitors file %s", path)
	}

	var f competitorsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "config: parse competitors file %s", path)
	}
	if len(f.Competitors) == 0 {
		return nil, eris.Errorf("config: no competitors defined in %s", path)
	}

	seen := make(map[string]bool, len(f.Competitors))
	for i := range f.Competitors {
		c := &f.Competitors[i]
		if c.Name == "" {
			return nil, eris.Errorf("config: competitor %d has no name", i)
		}
		if seen[c.Name] {
			return nil, eris.Errorf("config: duplicate competitor %q", c.Name)
		}
		seen[c.Name] = true
		if c.BaseURL == "" {
			return nil, eris.Errorf("config: competitor %q has no base_url", c.Name)
		}
		if !validPatterns[c.Pattern] {
			return nil, eris.Errorf("config: competitor %q has unknown structure_pattern %q", c.Name, c.Pattern)
		}
		if len(c.CategoryPaths) == 0 {
			c.CategoryPaths = []string{"/"}
		}
	}
	return f.Competitors, nil
}

// SelectCompetitors filters the full list down to one competitor by name, or
// returns the full list when name is empty. Matching is case-insensitive.
func SelectCompetitors(all []Competitor, name string) ([]Competitor, error) {
	if name == "" {
		return all, nil
	}
	for _, c := range all {
		if strings.EqualFold(c.Name, name) {
			return []Competitor{c}, nil
		}
	}
	return nil, eris.Errorf("config: competitor %q not found", name)
}
