package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/veridexhq/veridex/internal/config"
	"github.com/veridexhq/veridex/internal/extract"
	"github.com/veridexhq/veridex/internal/fetch"
	"github.com/veridexhq/veridex/internal/gather"
	"github.com/veridexhq/veridex/internal/ingest"
	"github.com/veridexhq/veridex/internal/logger"
	"github.com/veridexhq/veridex/internal/nlp"
	"github.com/veridexhq/veridex/internal/pipeline"
	"github.com/veridexhq/veridex/internal/registry"
	"github.com/veridexhq/veridex/internal/score"
	"github.com/veridexhq/veridex/internal/store"
	"github.com/veridexhq/veridex/internal/verdict"
)

// app bundles everything a command needs to run the pipeline.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *store.Memory
	loadReg pipeline.RegistryLoader
	orch    *pipeline.Orchestrator
}

// buildApp assembles the full pipeline from the effective configuration.
// The snapshot, when configured, is loaded before anything else touches
// the store so restarts resume from the last persisted state.
func buildApp(component string) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	log := logger.New(component, cfg.Log.Level)

	st := store.NewMemory()
	if cfg.Store.SnapshotPath != "" {
		if err := st.Load(cfg.Store.SnapshotPath); err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
	}

	loadReg := func() (*registry.Registry, error) {
		return registry.LoadFile(cfg.Registry.Path)
	}
	// Fail early on a broken registry instead of on the first run.
	if _, err := loadReg(); err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	provider, err := nlp.New(cfg.NLP)
	if err != nil {
		return nil, fmt.Errorf("init nlp provider: %w", err)
	}
	if provider == nil {
		log.Info("no nlp provider configured, using heuristic extraction only")
	} else {
		log.Info("nlp provider enabled", "provider", provider.Name())
	}

	fetcher := fetch.New(cfg.Fetch)
	collector := ingest.NewCollector(fetcher, st, log)
	extractor := extract.NewExtractor(st, provider, cfg.Extract, log)

	searchers := []gather.Searcher{gather.NewCitationSearcher(st)}
	if provider != nil {
		searchers = append(searchers, gather.NewProviderSearcher(provider))
	}
	gatherer := gather.NewGatherer(st, fetcher, gather.NewMultiSearcher(searchers...), cfg.Gather, log)

	engine := verdict.NewEngine(st, cfg.Verdict, log)
	scorer := score.NewScorer(st, cfg.Score, log)

	orch := pipeline.NewOrchestrator(cfg, st, loadReg, collector, extractor, gatherer, engine, scorer, log)

	return &app{cfg: cfg, log: log, store: st, loadReg: loadReg, orch: orch}, nil
}
