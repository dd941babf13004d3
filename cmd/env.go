package main

import (
	"path/filepath"

	"github.com/sells-group/blogwatch/internal/batch"
	"github.com/sells-group/blogwatch/internal/config"
	"github.com/sells-group/blogwatch/internal/enrich"
	"github.com/sells-group/blogwatch/internal/estimate"
	"github.com/sells-group/blogwatch/internal/pipeline"
	"github.com/sells-group/blogwatch/internal/scrape"
	"github.com/sells-group/blogwatch/internal/store"
	anthropicpkg "github.com/sells-group/blogwatch/pkg/anthropic"
)

// appEnv holds the wired collaborators shared by the commands.
type appEnv struct {
	store    store.Store
	manager  *batch.Manager
	router   *enrich.Router
	scraper  *scrape.Scraper
	pipeline *pipeline.Pipeline
}

func newEnv() (*appEnv, error) {
	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}

	tracker, err := estimate.NewTracker(filepath.Join(cfg.Batch.WorkspaceDir, "throughput.json"))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	client := anthropicpkg.NewClient(cfg.Anthropic.Key)
	live := enrich.NewLive(client, cfg.Anthropic, cfg.Enrich)
	manager := batch.NewManager(client, st, tracker, cfg)
	router := enrich.NewRouter(live, manager, cfg.Enrich.BatchThreshold, cfg.Anthropic.BatchModel)
	scraper := scrape.New(cfg.Scrape)

	return &appEnv{
		store:    st,
		manager:  manager,
		router:   router,
		scraper:  scraper,
		pipeline: pipeline.New(st, scraper, router),
	}, nil
}

func (e *appEnv) Close() {
	_ = e.store.Close()
}

// selectTargets loads the competitor definitions and narrows them to one
// name when given, or returns all of them for an empty name.
func selectTargets(name string) ([]config.Competitor, error) {
	all, err := config.LoadCompetitors(cfg.CompetitorsFile)
	if err != nil {
		return nil, err
	}
	return config.SelectCompetitors(all, name)
}
