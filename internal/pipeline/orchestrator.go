// Package pipeline orchestrates the full verification run: registry fan-out
// through collection, extraction, and evidence gathering, then a global
// fan-in for verdicts, scoring, and ranking. At most one run is active at
// any time, whatever the trigger.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veridexhq/veridex/internal/config"
	"github.com/veridexhq/veridex/internal/extract"
	"github.com/veridexhq/veridex/internal/gather"
	"github.com/veridexhq/veridex/internal/ingest"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/registry"
	"github.com/veridexhq/veridex/internal/score"
	"github.com/veridexhq/veridex/internal/store"
	"github.com/veridexhq/veridex/internal/verdict"
	"github.com/veridexhq/veridex/internal/worker"
)

// ErrRunInProgress is returned by a trigger while another run is active.
// The trigger is rejected, not queued.
var ErrRunInProgress = errors.New("pipeline: run already in progress")

// RegistryLoader supplies the monitored entities at the start of each run.
type RegistryLoader func() (*registry.Registry, error)

// Orchestrator owns the run state machine. All dependencies are injected;
// there is no ambient global pipeline.
type Orchestrator struct {
	cfg          *config.Config
	store        store.Store
	loadRegistry RegistryLoader
	collector    *ingest.Collector
	extractor    *extract.Extractor
	gatherer     *gather.Gatherer
	engine       *verdict.Engine
	scorer       *score.Scorer
	pool         *worker.Pool
	log          *slog.Logger

	// flight is the single-flight token: held for the whole run,
	// acquired with TryLock so concurrent triggers fail fast.
	flight sync.Mutex
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(
	cfg *config.Config,
	st store.Store,
	loadRegistry RegistryLoader,
	collector *ingest.Collector,
	extractor *extract.Extractor,
	gatherer *gather.Gatherer,
	engine *verdict.Engine,
	scorer *score.Scorer,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		store:        st,
		loadRegistry: loadRegistry,
		collector:    collector,
		extractor:    extractor,
		gatherer:     gatherer,
		engine:       engine,
		scorer:       scorer,
		pool:         worker.NewPool(cfg.Pipeline.Workers),
		log:          log,
	}
}

// TriggerAsync starts a run and returns immediately with its id, or
// ErrRunInProgress when one is active. Both the scheduler tick and the
// manual HTTP trigger come through here.
func (o *Orchestrator) TriggerAsync(ctx context.Context) (string, error) {
	if !o.flight.TryLock() {
		return "", ErrRunInProgress
	}
	runID, err := o.startRun()
	if err != nil {
		o.flight.Unlock()
		return "", err
	}
	go func() {
		defer o.flight.Unlock()
		o.execute(ctx, runID)
	}()
	return runID, nil
}

// RunOnce executes a full run synchronously, for the one-shot CLI mode.
func (o *Orchestrator) RunOnce(ctx context.Context) (string, error) {
	if !o.flight.TryLock() {
		return "", ErrRunInProgress
	}
	defer o.flight.Unlock()
	runID, err := o.startRun()
	if err != nil {
		return "", err
	}
	o.execute(ctx, runID)
	return runID, nil
}

func (o *Orchestrator) startRun() (string, error) {
	run := model.PipelineRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Status:    model.RunRunning,
	}
	if err := o.store.StartRun(run); err != nil {
		if errors.Is(err, store.ErrRunOpen) {
			return "", ErrRunInProgress
		}
		return "", fmt.Errorf("start run: %w", err)
	}
	return run.ID, nil
}

// runState accumulates stats across the fan-out tasks.
type runState struct {
	mu    sync.Mutex
	stats model.RunStats
}

func (s *runState) recordError(unitID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats.SourceErrors == nil {
		s.stats.SourceErrors = make(map[string]string)
	}
	s.stats.SourceErrors[unitID] = err.Error()
}

func (s *runState) add(items, claims, evidence int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ItemsIngested += items
	s.stats.ClaimsExtracted += claims
	s.stats.EvidenceGathered += evidence
}

// snapshot copies the stats so a worker still running past the grace period
// cannot race the run's terminal write.
func (s *runState) snapshot() model.RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	if s.stats.SourceErrors != nil {
		stats.SourceErrors = make(map[string]string, len(s.stats.SourceErrors))
		for k, v := range s.stats.SourceErrors {
			stats.SourceErrors[k] = v
		}
	}
	return stats
}

// execute drives one run to a terminal state. Individual source failures
// are recorded in stats; only systemic failures (registry or store
// unavailable) fail the whole run.
func (o *Orchestrator) execute(ctx context.Context, runID string) {
	log := o.log.With(slog.String("run", runID))
	log.Info("pipeline run starting")

	reg, err := o.loadRegistry()
	if err != nil {
		log.Error("registry unreadable, failing run", slog.Any("err", err))
		o.finish(runID, model.RunFailed, model.RunStats{}, err.Error())
		return
	}

	state := &runState{}

	// Fan out: collection, extraction, and gathering run per source with
	// bounded concurrency.
	tasks := o.buildTasks(reg, state)
	resultsCh := make(chan []worker.Result, 1)
	go func() { resultsCh <- o.pool.Run(ctx, tasks) }()

	var results []worker.Result
	cancelled := false
	select {
	case results = <-resultsCh:
		cancelled = ctx.Err() != nil
	case <-ctx.Done():
		// Give in-flight workers the grace period, then keep whatever
		// completed; committed claims and evidence are not rolled back.
		cancelled = true
		log.Warn("run cancelled, waiting for in-flight workers",
			slog.Duration("grace", o.cfg.Pipeline.CancelGrace))
		select {
		case results = <-resultsCh:
		case <-time.After(o.cfg.Pipeline.CancelGrace):
			log.Warn("grace period elapsed with workers still running")
		}
	}
	for _, res := range results {
		if res.Err != nil && !errors.Is(res.Err, context.Canceled) {
			state.recordError(res.ID, res.Err)
		}
	}

	if !cancelled {
		// Fan in: verdicts and scores need the globally consistent claim
		// set, so they run once after all per-source work completes.
		if err := o.verdictStage(state); err != nil {
			log.Error("verdict stage failed", slog.Any("err", err))
			o.finish(runID, model.RunFailed, state.stats, err.Error())
			return
		}
		if err := o.scoreStage(reg, state); err != nil {
			log.Error("score stage failed", slog.Any("err", err))
			o.finish(runID, model.RunFailed, state.stats, err.Error())
			return
		}
	}

	stats := state.snapshot()
	status := model.RunSucceeded
	if cancelled || len(stats.SourceErrors) > 0 {
		status = model.RunPartial
	}
	o.finish(runID, status, stats, "")

	if err := o.store.Save(o.cfg.Store.SnapshotPath); err != nil {
		log.Warn("state snapshot failed", slog.Any("err", err))
	}
	log.Info("pipeline run finished",
		slog.String("status", string(status)),
		slog.Int("items", stats.ItemsIngested),
		slog.Int("claims", stats.ClaimsExtracted),
		slog.Int("verdicts", stats.VerdictsUpdated),
	)
}

// buildTasks produces one fan-out task per monitored source and creator.
// Creator channels ingest like social feeds; their claims are attributed
// to the creator with the originating video id.
func (o *Orchestrator) buildTasks(reg *registry.Registry, state *runState) []worker.Task {
	var tasks []worker.Task
	for _, src := range reg.Sources() {
		src := src
		tasks = append(tasks, worker.Task{
			ID: src.ID,
			Fn: func(ctx context.Context) error {
				return o.processSource(ctx, src, extract.Attribution{SourceID: src.ID}, state)
			},
		})
	}
	for _, creator := range reg.Creators() {
		pseudo := model.Source{
			ID:   creator.ID,
			Name: creator.Name,
			Kind: model.SourceSocial,
			URL:  creator.Channel,
		}
		creatorID := creator.ID
		tasks = append(tasks, worker.Task{
			ID: creatorID,
			Fn: func(ctx context.Context) error {
				return o.processSource(ctx, pseudo, extract.Attribution{CreatorID: creatorID}, state)
			},
		})
	}
	return tasks
}

// processSource runs collect -> extract -> gather for one source. The
// returned error covers this source only.
func (o *Orchestrator) processSource(ctx context.Context, src model.Source, attr extract.Attribution, state *runState) error {
	items, err := o.collector.Collect(ctx, src)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	claimCount := 0
	for _, item := range items {
		itemAttr := attr
		if attr.CreatorID != "" {
			itemAttr.VideoID = item.ExternalID
		}
		claims, err := o.extractor.Extract(ctx, item, itemAttr)
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		claimCount += len(claims)
	}

	// Gather for every open claim of this entity, including ones parked
	// in needs_evidence by earlier runs.
	evidenceCount := 0
	var gatherErrs int
	for _, claim := range o.openClaimsFor(src.ID, attr.CreatorID != "") {
		if ctx.Err() != nil {
			break
		}
		added, err := o.gatherer.Gather(ctx, claim)
		evidenceCount += added
		if err != nil {
			gatherErrs++
			o.log.Debug("gather failed for claim",
				slog.String("claim", claim.ID), slog.Any("err", err))
		}
	}

	state.add(len(items), claimCount, evidenceCount)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	_ = gatherErrs // recorded per claim as gatherError, not a source failure
	return nil
}

func (o *Orchestrator) openClaimsFor(entityID string, creator bool) []model.Claim {
	filter := store.ClaimFilter{}
	if creator {
		filter.CreatorID = entityID
	} else {
		filter.SourceID = entityID
	}
	var open []model.Claim
	for _, claim := range o.store.Claims(filter) {
		if claim.Status.Open() {
			open = append(open, claim)
		}
	}
	return open
}

// verdictStage evaluates every open claim whose evidence meets the
// sufficiency threshold, then expires overdue creator claims.
func (o *Orchestrator) verdictStage(state *runState) error {
	for _, claim := range o.store.OpenClaims() {
		if !gather.Sufficient(o.store.EvidenceForClaim(claim.ID), o.cfg.Gather) {
			continue
		}
		updated, err := o.engine.Evaluate(claim)
		if err != nil {
			return err
		}
		if updated {
			state.stats.VerdictsUpdated++
		}
	}

	expired, err := o.engine.ExpireClaims(time.Now().UTC())
	if err != nil {
		return err
	}
	state.stats.ClaimsExpired = expired
	return nil
}

// scoreStage recomputes all credibility snapshots and the leaderboard.
func (o *Orchestrator) scoreStage(reg *registry.Registry, state *runState) error {
	now := time.Now().UTC()
	version := o.store.NextScoreVersion()

	written, err := o.scorer.ScoreSources(reg.Sources(), version, now)
	if err != nil {
		return err
	}

	creatorScores := o.scorer.ScoreCreators(reg.Creators(), version, now)
	previous := score.PreviousRanks(o.store.LatestCreatorScores())
	for _, snapshot := range score.Rank(creatorScores, previous) {
		if err := o.store.AddCreatorScore(snapshot); err != nil {
			return err
		}
		written++
	}
	state.stats.ScoresRecomputed = written
	return nil
}

func (o *Orchestrator) finish(runID string, status model.RunStatus, stats model.RunStats, errMsg string) {
	if err := o.store.FinishRun(runID, status, stats, errMsg); err != nil {
		o.log.Error("could not finish run", slog.String("run", runID), slog.Any("err", err))
	}
}
