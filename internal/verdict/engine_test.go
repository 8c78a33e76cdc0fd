package verdict

import (
	"fmt"
	"testing"
	"time"

	"github.com/veridexhq/veridex/internal/config"
	"github.com/veridexhq/veridex/internal/logger"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/store"
)

func ev(grade model.Grade, stance model.Stance, primary bool) model.Evidence {
	return model.Evidence{
		ID:      "ev-" + string(grade) + "-" + string(stance),
		URL:     "https://example.com/" + string(grade),
		Grade:   grade,
		Stance:  stance,
		Primary: primary,
	}
}

func TestCompute_NoEvidence(t *testing.T) {
	cfg := config.Default().Verdict

	out := Compute(nil, cfg)

	if out.Label != model.VerdictSpeculative {
		t.Errorf("Expected speculative, got %s", out.Label)
	}
	if out.EvidenceStrength != 0 {
		t.Errorf("Expected zero strength, got %f", out.EvidenceStrength)
	}
	if out.ProbabilityTrue != 0.5 {
		t.Errorf("Expected neutral probability 0.5, got %f", out.ProbabilityTrue)
	}
}

func TestCompute_SingleGradeASupport(t *testing.T) {
	cfg := config.Default().Verdict

	out := Compute([]model.Evidence{ev(model.GradeA, model.StanceSupports, false)}, cfg)

	if out.Label != model.VerdictVerified {
		t.Errorf("Expected verified, got %s", out.Label)
	}
	if out.ProbabilityTrue < cfg.VerifiedProbMin {
		t.Errorf("Expected probability >= %f, got %f", cfg.VerifiedProbMin, out.ProbabilityTrue)
	}
	if out.EvidenceStrength < 0.59 || out.EvidenceStrength > 0.70 {
		t.Errorf("Expected strength in [0.59, 0.70], got %f", out.EvidenceStrength)
	}
}

func TestCompute_SingleGradeBSupport_NotVerified(t *testing.T) {
	cfg := config.Default().Verdict

	out := Compute([]model.Evidence{ev(model.GradeB, model.StanceSupports, false)}, cfg)

	// A lone B-grade reference never verifies a claim.
	if out.Label != model.VerdictPlausibleUnverified {
		t.Errorf("Expected plausible_unverified, got %s", out.Label)
	}
}

func TestCompute_WeakEvidenceIsSpeculative(t *testing.T) {
	cfg := config.Default().Verdict

	out := Compute([]model.Evidence{ev(model.GradeD, model.StanceSupports, false)}, cfg)

	if out.Label != model.VerdictSpeculative {
		t.Errorf("Expected speculative, got %s", out.Label)
	}
}

func TestCompute_ContradictingEvidenceIsMisleading(t *testing.T) {
	cfg := config.Default().Verdict

	evidence := []model.Evidence{
		ev(model.GradeA, model.StanceContradicts, true),
		{ID: "ev2", URL: "https://example.org/2", Grade: model.GradeA, Stance: model.StanceContradicts},
	}
	out := Compute(evidence, cfg)

	if out.Label != model.VerdictMisleading {
		t.Errorf("Expected misleading, got %s", out.Label)
	}
	if out.ProbabilityTrue > cfg.MisleadingProbMax {
		t.Errorf("Expected probability <= %f, got %f", cfg.MisleadingProbMax, out.ProbabilityTrue)
	}
	if !out.Closing {
		t.Error("Expected primary A-grade evidence to mark the outcome closing")
	}
}

func TestCompute_ConflictFlagsManualReview(t *testing.T) {
	cfg := config.Default().Verdict

	evidence := []model.Evidence{
		ev(model.GradeA, model.StanceSupports, false),
		ev(model.GradeA, model.StanceContradicts, false),
	}
	out := Compute(evidence, cfg)

	if out.Label != model.VerdictPlausibleUnverified {
		t.Errorf("Expected plausible_unverified on conflict, got %s", out.Label)
	}
	if !out.Conflict {
		t.Error("Expected conflict flag on strong both-sides evidence")
	}
}

func TestCompute_NeutralEvidenceCarriesNoWeight(t *testing.T) {
	cfg := config.Default().Verdict

	evidence := []model.Evidence{
		ev(model.GradeA, model.StanceNeutral, true),
		ev(model.GradeA, model.StanceNeutral, false),
	}
	out := Compute(evidence, cfg)

	if out.EvidenceStrength != 0 {
		t.Errorf("Expected zero strength from neutral-only evidence, got %f", out.EvidenceStrength)
	}
	if out.Closing {
		t.Error("Neutral primary evidence must not close a claim")
	}
}

func TestCompute_Deterministic(t *testing.T) {
	cfg := config.Default().Verdict
	evidence := []model.Evidence{
		ev(model.GradeA, model.StanceSupports, true),
		ev(model.GradeB, model.StanceSupports, false),
		ev(model.GradeC, model.StanceContradicts, false),
	}

	first := Compute(evidence, cfg)
	for i := 0; i < 10; i++ {
		again := Compute(evidence, cfg)
		if again != first {
			t.Fatalf("Expected identical outcome on rerun, got %+v vs %+v", again, first)
		}
	}
}

func TestCompute_BoundsHold(t *testing.T) {
	cfg := config.Default().Verdict

	grades := []model.Grade{model.GradeA, model.GradeB, model.GradeC, model.GradeD}
	stances := []model.Stance{model.StanceSupports, model.StanceContradicts, model.StanceNeutral}

	var evidence []model.Evidence
	for i := 0; i < 40; i++ {
		evidence = append(evidence, ev(grades[i%len(grades)], stances[i%len(stances)], i%7 == 0))
		out := Compute(evidence, cfg)
		if out.ProbabilityTrue < 0 || out.ProbabilityTrue > 1 {
			t.Fatalf("probabilityTrue out of [0,1]: %f", out.ProbabilityTrue)
		}
		if out.EvidenceStrength < 0 || out.EvidenceStrength > 1 {
			t.Fatalf("evidenceStrength out of [0,1]: %f", out.EvidenceStrength)
		}
	}
}

func seedClaim(t *testing.T, st store.Store, claim model.Claim) model.Claim {
	t.Helper()
	if _, err := st.AddClaim(claim); err != nil {
		t.Fatalf("Expected no error adding claim, got %v", err)
	}
	return claim
}

func testEngine(st store.Store) *Engine {
	return NewEngine(st, config.Default().Verdict, logger.New("test", "error"))
}

func TestEvaluate_SourceClaimResolvesOnClosingEvidence(t *testing.T) {
	st := store.NewMemory()
	engine := testEngine(st)

	claim := seedClaim(t, st, model.Claim{
		ID:        "c1",
		SourceID:  "src-1",
		Text:      "Exchange Omega filed a spot ETF application",
		Type:      model.ClaimFilingSubmitted,
		Status:    model.StatusUnreviewed,
		DedupeKey: "k1",
	})
	_, _ = st.AddEvidence(model.Evidence{
		ID: "e1", ClaimID: claim.ID, URL: "https://sec.gov/filing/1",
		Grade: model.GradeA, Stance: model.StanceSupports, Primary: true,
	})

	updated, err := engine.Evaluate(claim)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !updated {
		t.Fatal("Expected a verdict to be written")
	}

	got, err := st.ClaimByID(claim.ID)
	if err != nil {
		t.Fatalf("Expected claim lookup to succeed, got %v", err)
	}
	if got.Status != model.StatusResolved {
		t.Errorf("Expected resolved, got %s", got.Status)
	}
	v, ok := st.CurrentVerdict(claim.ID)
	if !ok {
		t.Fatal("Expected a current verdict")
	}
	if v.Label != model.VerdictVerified {
		t.Errorf("Expected verified, got %s", v.Label)
	}
}

func TestEvaluate_ReviewedClaimResolvesOnLateClosingEvidence(t *testing.T) {
	st := store.NewMemory()
	engine := testEngine(st)

	claim := seedClaim(t, st, model.Claim{
		ID:        "c1",
		SourceID:  "src-1",
		Text:      "Exchange Omega filed a spot ETF application",
		Type:      model.ClaimFilingSubmitted,
		Status:    model.StatusUnreviewed,
		DedupeKey: "k1",
	})
	for i := 0; i < 3; i++ {
		_, _ = st.AddEvidence(model.Evidence{
			ID: fmt.Sprintf("e%d", i), ClaimID: claim.ID,
			URL:   fmt.Sprintf("https://blog.example/%d", i),
			Grade: model.GradeD, Stance: model.StanceSupports,
		})
	}

	if _, err := engine.Evaluate(claim); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	reviewed, _ := st.ClaimByID(claim.ID)
	if reviewed.Status != model.StatusReviewed {
		t.Fatalf("Expected reviewed, got %s", reviewed.Status)
	}
	if !reviewed.Status.Open() {
		t.Fatal("Expected a reviewed claim to stay open for gathering")
	}

	// The closing filing turns up on a later run.
	_, _ = st.AddEvidence(model.Evidence{
		ID: "e-closing", ClaimID: claim.ID, URL: "https://sec.gov/filing/1",
		Grade: model.GradeA, Stance: model.StanceSupports, Primary: true,
	})

	updated, err := engine.Evaluate(reviewed)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !updated {
		t.Fatal("Expected the late evidence to produce a new verdict")
	}

	got, _ := st.ClaimByID(claim.ID)
	if got.Status != model.StatusResolved {
		t.Errorf("Expected resolved, got %s", got.Status)
	}
	history := st.VerdictHistory(claim.ID)
	if len(history) != 2 {
		t.Fatalf("Expected 2 verdicts in history, got %d", len(history))
	}
	if history[1].Label != model.VerdictVerified {
		t.Errorf("Expected verified, got %s", history[1].Label)
	}
}

func TestEvaluate_IdempotentWithoutNewEvidence(t *testing.T) {
	st := store.NewMemory()
	engine := testEngine(st)

	claim := seedClaim(t, st, model.Claim{
		ID: "c1", SourceID: "src-1", Text: "claim", Type: model.ClaimMarket,
		Status: model.StatusUnreviewed, DedupeKey: "k1",
	})
	_, _ = st.AddEvidence(model.Evidence{
		ID: "e1", ClaimID: claim.ID, URL: "https://sec.gov/x",
		Grade: model.GradeA, Stance: model.StanceSupports, Primary: true,
	})

	if _, err := engine.Evaluate(claim); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	after, _ := st.ClaimByID(claim.ID)

	updated, err := engine.Evaluate(after)
	if err != nil {
		t.Fatalf("Expected no error on rerun, got %v", err)
	}
	if updated {
		t.Error("Expected rerun without new evidence to be a no-op")
	}
	if history := st.VerdictHistory(claim.ID); len(history) != 1 {
		t.Errorf("Expected exactly 1 verdict in history, got %d", len(history))
	}
}

func TestEvaluate_CreatorClaimStatuses(t *testing.T) {
	tests := []struct {
		name     string
		evidence []model.Evidence
		want     model.ClaimStatus
	}{
		{
			name: "verified true",
			evidence: []model.Evidence{
				{ID: "e1", URL: "https://sec.gov/a", Grade: model.GradeA, Stance: model.StanceSupports, Primary: true},
			},
			want: model.StatusVerifiedTrue,
		},
		{
			name: "verified false",
			evidence: []model.Evidence{
				{ID: "e1", URL: "https://sec.gov/a", Grade: model.GradeA, Stance: model.StanceContradicts, Primary: true},
				{ID: "e2", URL: "https://example.com/b", Grade: model.GradeA, Stance: model.StanceContradicts},
			},
			want: model.StatusVerifiedFalse,
		},
		{
			name: "partially true on conflict",
			evidence: []model.Evidence{
				{ID: "e1", URL: "https://sec.gov/a", Grade: model.GradeA, Stance: model.StanceSupports},
				{ID: "e2", URL: "https://example.com/b", Grade: model.GradeA, Stance: model.StanceContradicts},
			},
			want: model.StatusPartiallyTrue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemory()
			engine := testEngine(st)
			claim := seedClaim(t, st, model.Claim{
				ID: "c1", CreatorID: "cr-1", Text: "prediction", Type: model.ClaimPricePrediction,
				Status: model.StatusPending, DedupeKey: "k1",
			})
			for _, e := range tt.evidence {
				e.ClaimID = claim.ID
				if _, err := st.AddEvidence(e); err != nil {
					t.Fatalf("Expected no error adding evidence, got %v", err)
				}
			}

			if _, err := engine.Evaluate(claim); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			got, _ := st.ClaimByID(claim.ID)
			if got.Status != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got.Status)
			}
		})
	}
}

func TestEvaluate_PendingSpeculativeStaysPending(t *testing.T) {
	st := store.NewMemory()
	engine := testEngine(st)

	claim := seedClaim(t, st, model.Claim{
		ID: "c1", CreatorID: "cr-1", Text: "prediction", Type: model.ClaimPricePrediction,
		Status: model.StatusPending, DedupeKey: "k1",
	})

	updated, err := engine.Evaluate(claim)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if updated {
		t.Error("Expected no verdict for an evidence-less pending claim")
	}
	got, _ := st.ClaimByID(claim.ID)
	if got.Status != model.StatusPending {
		t.Errorf("Expected pending, got %s", got.Status)
	}
}

func TestEvaluate_TerminalClaimUntouched(t *testing.T) {
	st := store.NewMemory()
	engine := testEngine(st)

	claim := seedClaim(t, st, model.Claim{
		ID: "c1", SourceID: "src-1", Text: "done", Type: model.ClaimMarket,
		Status: model.StatusResolved, DedupeKey: "k1",
	})

	updated, err := engine.Evaluate(claim)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if updated {
		t.Error("Expected terminal claim to be skipped")
	}
}

func TestExpireClaims(t *testing.T) {
	st := store.NewMemory()
	engine := testEngine(st)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	withEvidence := seedClaim(t, st, model.Claim{
		ID: "c1", CreatorID: "cr-1", Text: "a", Type: model.ClaimPricePrediction,
		Status: model.StatusPending, DedupeKey: "k1", Timeframe: &past,
	})
	_, _ = st.AddEvidence(model.Evidence{
		ID: "e1", ClaimID: withEvidence.ID, URL: "https://example.com/e",
		Grade: model.GradeC, Stance: model.StanceNeutral,
	})
	without := seedClaim(t, st, model.Claim{
		ID: "c2", CreatorID: "cr-1", Text: "b", Type: model.ClaimPricePrediction,
		Status: model.StatusPending, DedupeKey: "k2", Timeframe: &past,
	})
	notDue := seedClaim(t, st, model.Claim{
		ID: "c3", CreatorID: "cr-1", Text: "c", Type: model.ClaimPricePrediction,
		Status: model.StatusPending, DedupeKey: "k3", Timeframe: &future,
	})

	expired, err := engine.ExpireClaims(now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if expired != 2 {
		t.Errorf("Expected 2 claims closed, got %d", expired)
	}

	got, _ := st.ClaimByID(withEvidence.ID)
	if got.Status != model.StatusUnverifiable {
		t.Errorf("Expected unverifiable for claim with evidence, got %s", got.Status)
	}
	got, _ = st.ClaimByID(without.ID)
	if got.Status != model.StatusExpired {
		t.Errorf("Expected expired for claim without evidence, got %s", got.Status)
	}
	got, _ = st.ClaimByID(notDue.ID)
	if got.Status != model.StatusPending {
		t.Errorf("Expected future claim to stay pending, got %s", got.Status)
	}
}
