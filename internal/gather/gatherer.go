// Package gather collects graded evidence for open claims. Evidence rows
// are append-only; a claim keeps accumulating evidence across runs until a
// verdict resolves it or it expires.
package gather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veridexhq/veridex/internal/config"
	"github.com/veridexhq/veridex/internal/fetch"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/nlp"
	"github.com/veridexhq/veridex/internal/store"
)

// sleep is injectable for backoff tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Gatherer fetches and grades evidence for claims.
type Gatherer struct {
	store    store.Store
	fetcher  *fetch.Fetcher
	searcher Searcher
	grader   *Grader
	cfg      config.GatherConfig
	log      *slog.Logger
}

// NewGatherer wires a gatherer against the shared fetcher and store.
func NewGatherer(st store.Store, fetcher *fetch.Fetcher, searcher Searcher, cfg config.GatherConfig, log *slog.Logger) *Gatherer {
	return &Gatherer{
		store:    st,
		fetcher:  fetcher,
		searcher: searcher,
		grader:   NewGrader(cfg.Authority),
		cfg:      cfg,
		log:      log,
	}
}

// Gather collects evidence for one open claim. A repeated failure records a
// gather error on the claim and returns it; other claims are unaffected.
// Returns the number of evidence rows appended.
func (g *Gatherer) Gather(ctx context.Context, claim model.Claim) (int, error) {
	if !claim.Status.Open() {
		return 0, nil
	}

	hits, err := g.searchWithRetry(ctx, claim)
	if err != nil {
		msg := fmt.Sprintf("evidence search: %v", err)
		_ = g.store.SetGatherError(claim.ID, msg)
		return 0, fmt.Errorf("claim %s: %s", claim.ID, msg)
	}

	existing := g.store.EvidenceForClaim(claim.ID)
	budget := g.cfg.MaxPerClaim - len(existing)

	added := 0
	var fetchFailures int
	for _, hit := range hits {
		if budget <= 0 {
			break
		}
		ev, err := g.materialize(ctx, claim, hit)
		if err != nil {
			fetchFailures++
			g.log.Debug("evidence fetch failed",
				slog.String("claim", claim.ID),
				slog.String("url", hit.URL),
				slog.Any("err", err))
			continue
		}
		ok, err := g.store.AddEvidence(ev)
		if err != nil {
			return added, fmt.Errorf("store evidence: %w", err)
		}
		if ok {
			added++
			budget--
		}
	}

	if added == 0 && fetchFailures > 0 && len(existing) == 0 {
		_ = g.store.SetGatherError(claim.ID, fmt.Sprintf("all %d evidence fetches failed", fetchFailures))
	} else if added > 0 && claim.GatherError != "" {
		_ = g.store.SetGatherError(claim.ID, "")
	}

	// A claim below the sufficiency threshold waits in needs_evidence for
	// the next run instead of going to the verdict engine.
	if !Sufficient(g.store.EvidenceForClaim(claim.ID), g.cfg) && claim.Status == model.StatusUnreviewed {
		if err := g.store.TransitionClaim(claim.ID, model.StatusUnreviewed, model.StatusNeedsEvidence); err != nil {
			return added, fmt.Errorf("mark needs_evidence: %w", err)
		}
	}
	return added, nil
}

// searchWithRetry retries the searcher over its configured budget with
// exponential backoff.
func (g *Gatherer) searchWithRetry(ctx context.Context, claim model.Claim) ([]nlp.EvidenceHit, error) {
	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := g.cfg.BackoffBase * time.Duration(1<<uint(attempt-1))
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}
		hits, err := g.searcher.Search(ctx, claim)
		if err == nil {
			return hits, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// materialize fetches one evidence candidate and grades it.
func (g *Gatherer) materialize(ctx context.Context, claim model.Claim, hit nlp.EvidenceHit) (model.Evidence, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	result, err := g.fetcher.Get(fetchCtx, hit.URL)
	if err != nil {
		return model.Evidence{}, err
	}

	grade, primary := g.grader.Grade(hit.URL)
	stance := hit.Stance
	if stance == "" {
		stance = classifyStance(result.Body, claim)
	}

	return model.Evidence{
		ID:         uuid.NewString(),
		ClaimID:    claim.ID,
		URL:        hit.URL,
		Title:      hit.Title,
		Grade:      grade,
		Stance:     stance,
		Primary:    primary,
		GatheredAt: result.FetchedAt,
	}, nil
}

var contradictionTerms = []string{
	"denied", "debunked", "refuted", "false claim", "no evidence",
	"dismissed", "retracted", "misleading", "did not happen",
}

// classifyStance decides how a fetched document relates to the claim when
// the searcher did not say. A document mentioning the claim's assets that
// uses contradiction language contradicts; one that mentions them without
// it supports; anything else is neutral context.
func classifyStance(body string, claim model.Claim) model.Stance {
	lower := strings.ToLower(body)

	mentions := len(claim.AssetSymbols) == 0
	for _, sym := range claim.AssetSymbols {
		if strings.Contains(lower, strings.ToLower(sym)) {
			mentions = true
			break
		}
	}
	if !mentions {
		return model.StanceNeutral
	}
	for _, term := range contradictionTerms {
		if strings.Contains(lower, term) {
			return model.StanceContradicts
		}
	}
	return model.StanceSupports
}

// Sufficient reports whether a claim's evidence set meets the documented
// sufficiency threshold: at least MinHighGrade A/B items or MinLowGrade C/D
// items.
func Sufficient(evidence []model.Evidence, cfg config.GatherConfig) bool {
	high, low := 0, 0
	for _, ev := range evidence {
		if ev.Grade.High() {
			high++
		} else {
			low++
		}
	}
	return high >= cfg.MinHighGrade || low >= cfg.MinLowGrade
}
