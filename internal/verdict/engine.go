// Package verdict aggregates a claim's evidence into probabilityTrue and
// evidenceStrength and assigns one of the four verdict labels. The label is
// a pure function of the evidence set and the configured thresholds:
// identical evidence always yields the identical verdict.
package verdict

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/veridexhq/veridex/internal/config"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/store"
)

// Engine computes verdicts and advances claim statuses.
type Engine struct {
	store store.Store
	cfg   config.VerdictConfig
	log   *slog.Logger
}

// NewEngine wires a verdict engine.
func NewEngine(st store.Store, cfg config.VerdictConfig, log *slog.Logger) *Engine {
	return &Engine{store: st, cfg: cfg, log: log}
}

// Outcome is the computed judgment before it is committed.
type Outcome struct {
	Label            model.VerdictLabel
	ProbabilityTrue  float64
	EvidenceStrength float64
	Conflict         bool // both-sides evidence; flagged for manual review
	Closing          bool // primary A-grade evidence closes the claim
}

// Compute derives the verdict outcome from an evidence set. Pure: no store
// access, no clock.
func Compute(evidence []model.Evidence, cfg config.VerdictConfig) Outcome {
	var supportW, contraW float64
	var hasGradeASupport, hasClosing bool
	for _, ev := range evidence {
		w := gradeWeight(ev.Grade, cfg)
		switch ev.Stance {
		case model.StanceSupports:
			supportW += w
			if ev.Grade == model.GradeA {
				hasGradeASupport = true
			}
		case model.StanceContradicts:
			contraW += w
		}
		if ev.Primary && ev.Grade == model.GradeA && ev.Stance != model.StanceNeutral {
			hasClosing = true
		}
	}

	signed := supportW - contraW
	coverage := supportW + contraW

	// Coverage squashes through tanh so strength saturates toward 1 as
	// weighted evidence accumulates; probability squashes the signed sum
	// through a sigmoid so contradiction pushes toward 0.
	strength := math.Tanh(cfg.StrengthScale * coverage)
	probability := 1 / (1 + math.Exp(-cfg.ProbSlope*signed))

	out := Outcome{
		ProbabilityTrue:  clamp01(probability),
		EvidenceStrength: clamp01(strength),
		Closing:          hasClosing,
	}

	supportStrength := math.Tanh(cfg.StrengthScale * supportW)
	contraStrength := math.Tanh(cfg.StrengthScale * contraW)

	switch {
	// Strong evidence on both sides satisfies both the verified and the
	// misleading strength bounds; never silently pick one side.
	case supportStrength >= cfg.VerifiedStrengthMin && contraStrength >= cfg.MisleadingStrengthMin:
		out.Label = model.VerdictPlausibleUnverified
		out.Conflict = true
	case out.EvidenceStrength < cfg.SpeculativeStrengthMax:
		out.Label = model.VerdictSpeculative
	case out.ProbabilityTrue >= cfg.VerifiedProbMin &&
		out.EvidenceStrength >= cfg.VerifiedStrengthMin &&
		hasGradeASupport:
		out.Label = model.VerdictVerified
	case out.ProbabilityTrue <= cfg.MisleadingProbMax &&
		out.EvidenceStrength >= cfg.MisleadingStrengthMin:
		out.Label = model.VerdictMisleading
	default:
		out.Label = model.VerdictPlausibleUnverified
	}
	return out
}

func gradeWeight(g model.Grade, cfg config.VerdictConfig) float64 {
	switch g {
	case model.GradeA:
		return cfg.WeightA
	case model.GradeB:
		return cfg.WeightB
	case model.GradeC:
		return cfg.WeightC
	default:
		return cfg.WeightD
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Evaluate computes and commits a verdict for one claim. The claim's own
// status transition serializes concurrent evaluation: losing the
// compare-and-set means another evaluation already committed, and this one
// becomes a no-op rather than a second verdict.
func (e *Engine) Evaluate(claim model.Claim) (bool, error) {
	if claim.Status.Terminal() {
		return false, nil
	}

	evidence := e.store.EvidenceForClaim(claim.ID)
	outcome := Compute(evidence, e.cfg)

	// Identical evidence yields the identical verdict; re-appending it
	// would only bloat history. Re-running without new evidence is a no-op.
	if current, ok := e.store.CurrentVerdict(claim.ID); ok {
		if current.Label == outcome.Label &&
			current.ProbabilityTrue == outcome.ProbabilityTrue &&
			current.EvidenceStrength == outcome.EvidenceStrength {
			return false, nil
		}
	}

	next := nextStatus(claim, outcome)
	if next == claim.Status && claim.Status == model.StatusPending {
		// Creator claim without a decisive outcome stays pending; no
		// verdict row until there is something to say.
		if outcome.Label == model.VerdictSpeculative {
			return false, nil
		}
	}

	if err := e.store.TransitionClaim(claim.ID, claim.Status, next); err != nil {
		if err == store.ErrStatusConflict {
			e.log.Debug("verdict lost status race, skipping",
				slog.String("claim", claim.ID))
			return false, nil
		}
		return false, fmt.Errorf("transition claim %s: %w", claim.ID, err)
	}

	v := model.Verdict{
		ID:               uuid.NewString(),
		ClaimID:          claim.ID,
		Label:            outcome.Label,
		ProbabilityTrue:  outcome.ProbabilityTrue,
		EvidenceStrength: outcome.EvidenceStrength,
		ComputedAt:       time.Now().UTC(),
	}
	if err := e.store.AddVerdict(v); err != nil {
		return false, fmt.Errorf("append verdict: %w", err)
	}
	if outcome.Conflict {
		if err := e.store.FlagManualReview(claim.ID); err != nil {
			return true, fmt.Errorf("flag manual review: %w", err)
		}
	}
	return true, nil
}

// nextStatus maps a computed outcome onto the claim's status machine.
func nextStatus(claim model.Claim, outcome Outcome) model.ClaimStatus {
	if claim.IsCreatorClaim() {
		switch {
		case outcome.Conflict:
			return model.StatusPartiallyTrue
		case outcome.Label == model.VerdictVerified:
			return model.StatusVerifiedTrue
		case outcome.Label == model.VerdictMisleading:
			return model.StatusVerifiedFalse
		default:
			return model.StatusPending
		}
	}

	// Source claims reach resolved only on a primary closing event, e.g.
	// a regulatory action resolving a filing claim.
	if outcome.Closing &&
		(outcome.Label == model.VerdictVerified || outcome.Label == model.VerdictMisleading) {
		return model.StatusResolved
	}
	return model.StatusReviewed
}

// ExpireClaims sweeps creator claims whose stated timeframe has passed.
// A claim that accumulated evidence but no decisive verdict becomes
// unverifiable; one that never attracted evidence expires. Returns how many
// claims were closed.
func (e *Engine) ExpireClaims(now time.Time) (int, error) {
	expired := 0
	for _, claim := range e.store.Claims(store.ClaimFilter{Status: model.StatusPending}) {
		if claim.Timeframe == nil || claim.Timeframe.After(now) {
			continue
		}
		target := model.StatusExpired
		if len(e.store.EvidenceForClaim(claim.ID)) > 0 {
			target = model.StatusUnverifiable
		}
		err := e.store.TransitionClaim(claim.ID, model.StatusPending, target)
		if err == store.ErrStatusConflict {
			continue
		}
		if err != nil {
			return expired, fmt.Errorf("expire claim %s: %w", claim.ID, err)
		}
		expired++
	}
	return expired, nil
}
