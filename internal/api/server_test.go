package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veridexhq/veridex/internal/config"
	"github.com/veridexhq/veridex/internal/logger"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/pipeline"
	"github.com/veridexhq/veridex/internal/registry"
	"github.com/veridexhq/veridex/internal/store"
)

type stubTrigger struct {
	runID string
	err   error
	calls int
}

func (s *stubTrigger) TriggerAsync(ctx context.Context) (string, error) {
	s.calls++
	return s.runID, s.err
}

const testRegistry = `
sources:
  - id: sec-press
    name: SEC Press Releases
    kind: regulator
    url: https://example.test/sec
creators:
  - id: alice
    name: Alice
    channel: https://example.test/alice
  - id: bob
    name: Bob
    channel: https://example.test/bob
  - id: carol
    name: Carol
    channel: https://example.test/carol
`

func newTestServer(t *testing.T, st store.Store, trigger Trigger) *Server {
	t.Helper()
	cfg := config.Default().Server
	loadReg := func() (*registry.Registry, error) {
		return registry.Parse([]byte(testRegistry))
	}
	return NewServer(cfg, logger.New("test", "error"), st, loadReg, trigger)
}

func doGet(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func addClaim(t *testing.T, st store.Store, c model.Claim) model.Claim {
	t.Helper()
	if c.Status == "" {
		c.Status = model.StatusUnreviewed
	}
	if c.DedupeKey == "" {
		c.DedupeKey = "dk-" + c.ID
	}
	ok, err := st.AddClaim(c)
	require.NoError(t, err)
	require.True(t, ok)
	return c
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(), &stubTrigger{})
	rec := doGet(t, srv, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	require.Equal(t, "ok", body["status"])
}

func TestClaims_ListAndFilter(t *testing.T) {
	st := store.NewMemory()
	for i := 0; i < 5; i++ {
		addClaim(t, st, model.Claim{
			ID:       fmt.Sprintf("c%d", i),
			SourceID: "sec-press",
			Text:     fmt.Sprintf("claim %d", i),
			Type:     model.ClaimRegulatoryAction,
		})
	}
	addClaim(t, st, model.Claim{
		ID:        "cc1",
		CreatorID: "alice",
		Text:      "creator claim",
		Type:      model.ClaimPricePrediction,
		Status:    model.StatusPending,
	})
	srv := newTestServer(t, st, &stubTrigger{})

	var body struct {
		Claims []ClaimView `json:"claims"`
		Count  int         `json:"count"`
	}

	rec := doGet(t, srv, "/v1/claims")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	require.Equal(t, 6, body.Count)

	rec = doGet(t, srv, "/v1/claims?creatorId=alice")
	decode(t, rec, &body)
	require.Equal(t, 1, body.Count)
	require.Equal(t, "cc1", body.Claims[0].ID)
	require.Equal(t, "pending", body.Claims[0].Status)

	rec = doGet(t, srv, "/v1/claims?sourceId=sec-press&offset=2&limit=2")
	decode(t, rec, &body)
	require.Equal(t, 2, body.Count)
	require.Equal(t, "c2", body.Claims[0].ID)
	require.Equal(t, "c3", body.Claims[1].ID)

	rec = doGet(t, srv, "/v1/claims?status=pending")
	decode(t, rec, &body)
	require.Equal(t, 1, body.Count)

	rec = doGet(t, srv, "/v1/claims?claimType=price_prediction")
	decode(t, rec, &body)
	require.Equal(t, 1, body.Count)

	// The old name still works as an alias.
	rec = doGet(t, srv, "/v1/claims?type=price_prediction")
	decode(t, rec, &body)
	require.Equal(t, 1, body.Count)
}

func TestClaims_WireFieldNames(t *testing.T) {
	st := store.NewMemory()
	deadline := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	addClaim(t, st, model.Claim{
		ID:           "c1",
		SourceID:     "sec-press",
		Text:         "BTC will reach $150k",
		Type:         model.ClaimPricePrediction,
		AssetSymbols: []string{"BTC"},
		Specificity:  7,
		Confidence:   0.9,
		Timeframe:    &deadline,
		Status:       model.StatusReviewed,
	})
	require.NoError(t, st.AddVerdict(model.Verdict{
		ID: "v1", ClaimID: "c1",
		Label:            model.VerdictPlausibleUnverified,
		ProbabilityTrue:  0.62,
		EvidenceStrength: 0.41,
		ComputedAt:       time.Now().UTC(),
	}))
	srv := newTestServer(t, st, &stubTrigger{})

	rec := doGet(t, srv, "/v1/claims/c1")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	decode(t, rec, &raw)
	for _, field := range []string{
		"id", "sourceId", "claimText", "claimType", "assetSymbols",
		"specificityScore", "extractionConfidence", "statedTimeframe",
		"status", "verdict", "evidence", "verdictHistory",
	} {
		require.Contains(t, raw, field, "missing wire field %q", field)
	}
	v := raw["verdict"].(map[string]any)
	require.Equal(t, "plausible_unverified", v["verdictLabel"])
	require.InDelta(t, 0.62, v["probabilityTrue"], 1e-9)
	require.InDelta(t, 0.41, v["evidenceStrength"], 1e-9)
}

func TestClaim_DetailAndNotFound(t *testing.T) {
	st := store.NewMemory()
	addClaim(t, st, model.Claim{
		ID:       "c1",
		SourceID: "sec-press",
		Text:     "filing dropped",
		Type:     model.ClaimFilingSubmitted,
	})
	require.NoError(t, st.AddVerdict(model.Verdict{
		ID: "v1", ClaimID: "c1", Label: model.VerdictSpeculative, ProbabilityTrue: 0.5,
	}))
	require.NoError(t, st.AddVerdict(model.Verdict{
		ID: "v2", ClaimID: "c1", Label: model.VerdictVerified, ProbabilityTrue: 0.9,
	}))
	_, err := st.AddEvidence(model.Evidence{
		ID: "e1", ClaimID: "c1", URL: "https://sec.gov/filing", Grade: model.GradeA, Stance: model.StanceSupports,
	})
	require.NoError(t, err)
	srv := newTestServer(t, st, &stubTrigger{})

	rec := doGet(t, srv, "/v1/claims/c1")
	require.Equal(t, http.StatusOK, rec.Code)

	var detail ClaimDetailView
	decode(t, rec, &detail)
	require.Len(t, detail.Evidence, 1)
	require.Equal(t, "A", detail.Evidence[0].Grade)
	require.Len(t, detail.VerdictHistory, 2)
	require.Equal(t, "verified", detail.VerdictHistory[1].VerdictLabel)
	require.NotNil(t, detail.Verdict)
	require.Equal(t, "verified", detail.Verdict.VerdictLabel)

	rec = doGet(t, srv, "/v1/claims/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSources(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.AddSourceScore(model.SourceScore{
		SourceID:         "sec-press",
		TrackRecord:      61.54,
		MethodDiscipline: 50,
		SampleSize:       3,
		Interval:         model.ConfidenceInterval{Lower: 40, Upper: 95},
		ScoreVersion:     2,
	}))
	srv := newTestServer(t, st, &stubTrigger{})

	var list struct {
		Sources []SourceView `json:"sources"`
		Count   int          `json:"count"`
	}
	rec := doGet(t, srv, "/v1/sources")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &list)
	require.Equal(t, 1, list.Count)

	rec = doGet(t, srv, "/v1/sources/sec-press")
	require.Equal(t, http.StatusOK, rec.Code)
	var src SourceView
	decode(t, rec, &src)
	require.Equal(t, "regulator", src.Kind)
	require.NotNil(t, src.Score)
	require.InDelta(t, 61.54, src.Score.TrackRecord, 1e-9)
	require.Equal(t, 2, src.Score.ScoreVersion)
	require.InDelta(t, 40, src.Score.ConfidenceInterval.Lower, 1e-9)

	rec = doGet(t, srv, "/v1/sources/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreators_UnrankedWithoutScore(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(), &stubTrigger{})

	rec := doGet(t, srv, "/v1/creators/alice")
	require.Equal(t, http.StatusOK, rec.Code)

	var c CreatorView
	decode(t, rec, &c)
	require.Equal(t, "alice", c.ID)
	require.Equal(t, "unranked", c.Tier)
	require.Nil(t, c.Score)
	require.Zero(t, c.RankOverall)
}

func TestLeaderboard_Ordering(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.AddCreatorScore(model.CreatorScore{
		CreatorID: "alice", TrackRecord: 62, SampleSize: 12,
		Tier: model.TierSilver, RankOverall: 2, RankChange: -1,
	}))
	require.NoError(t, st.AddCreatorScore(model.CreatorScore{
		CreatorID: "bob", TrackRecord: 78, SampleSize: 20,
		Tier: model.TierGold, RankOverall: 1, RankChange: 1,
	}))
	// carol has no score yet and sorts last.
	srv := newTestServer(t, st, &stubTrigger{})

	rec := doGet(t, srv, "/v1/leaderboard")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Leaderboard []CreatorView `json:"leaderboard"`
		Count       int           `json:"count"`
	}
	decode(t, rec, &body)
	require.Equal(t, 3, body.Count)
	require.Equal(t, "bob", body.Leaderboard[0].ID)
	require.Equal(t, "alice", body.Leaderboard[1].ID)
	require.Equal(t, "carol", body.Leaderboard[2].ID)
	require.Equal(t, "gold", body.Leaderboard[0].Tier)
	require.Equal(t, 1, body.Leaderboard[0].RankChange)
	require.Equal(t, "unranked", body.Leaderboard[2].Tier)
}

func TestPipelineStatus(t *testing.T) {
	st := store.NewMemory()
	srv := newTestServer(t, st, &stubTrigger{})

	rec := doGet(t, srv, "/v1/pipeline/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	decode(t, rec, &body)
	require.Nil(t, body["run"])

	require.NoError(t, st.StartRun(model.PipelineRun{
		ID: "run-1", StartedAt: time.Now().UTC(), Status: model.RunRunning,
	}))
	require.NoError(t, st.FinishRun("run-1", model.RunPartial, model.RunStats{
		ItemsIngested: 4, SourceErrors: map[string]string{"sec-press": "boom"},
	}, ""))

	rec = doGet(t, srv, "/v1/pipeline/status")
	decode(t, rec, &body)
	run := body["run"].(map[string]any)
	require.Equal(t, "run-1", run["id"])
	require.Equal(t, "partial", run["status"])
	require.NotNil(t, run["finishedAt"])
}

func TestPipelineTrigger(t *testing.T) {
	trigger := &stubTrigger{runID: "run-42"}
	srv := newTestServer(t, store.NewMemory(), trigger)

	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/trigger", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp TriggerResponse
	decode(t, rec, &resp)
	require.Equal(t, "started", resp.Result)
	require.Equal(t, "run-42", resp.RunID)
	require.Equal(t, 1, trigger.calls)

	trigger.err = pipeline.ErrRunInProgress
	req = httptest.NewRequest(http.MethodPost, "/v1/pipeline/trigger", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
	resp = TriggerResponse{}
	decode(t, rec, &resp)
	require.Equal(t, "already_running", resp.Result)
	require.Empty(t, resp.RunID)
}

func TestClaims_LimitClamped(t *testing.T) {
	st := store.NewMemory()
	for i := 0; i < 10; i++ {
		addClaim(t, st, model.Claim{
			ID:       fmt.Sprintf("c%d", i),
			SourceID: "sec-press",
			Text:     fmt.Sprintf("claim %d", i),
			Type:     model.ClaimMarket,
		})
	}
	cfg := config.Default().Server
	cfg.MaxPage = 5
	loadReg := func() (*registry.Registry, error) {
		return registry.Parse([]byte(testRegistry))
	}
	srv := NewServer(cfg, logger.New("test", "error"), st, loadReg, &stubTrigger{})

	var body struct {
		Count int `json:"count"`
	}
	rec := doGet(t, srv, "/v1/claims?limit=9999")
	decode(t, rec, &body)
	require.Equal(t, 5, body.Count)

	// A garbage limit falls back to the default page size.
	rec = doGet(t, srv, "/v1/claims?limit=bogus")
	decode(t, rec, &body)
	require.Equal(t, 10, body.Count)
}
