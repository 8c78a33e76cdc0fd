// Package api exposes the read-only query surface and the manual pipeline
// trigger over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/veridexhq/veridex/internal/config"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/pipeline"
	"github.com/veridexhq/veridex/internal/store"
)

// Trigger starts a pipeline run without blocking the caller.
type Trigger interface {
	TriggerAsync(ctx context.Context) (string, error)
}

// Server serves the HTTP API. All endpoints except the trigger are reads
// over the store; none of them block on pipeline work.
type Server struct {
	log      *slog.Logger
	store    store.Store
	loadReg  pipeline.RegistryLoader
	trigger  Trigger
	pageSize int
	maxPage  int
	http     *http.Server
}

// NewServer wires the API over the given store and trigger.
func NewServer(cfg config.ServerConfig, log *slog.Logger, st store.Store, loadReg pipeline.RegistryLoader, trigger Trigger) *Server {
	s := &Server{
		log:      log,
		store:    st,
		loadReg:  loadReg,
		trigger:  trigger,
		pageSize: cfg.PageSize,
		maxPage:  cfg.MaxPage,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/claims", s.handleClaims)
		r.Get("/claims/{id}", s.handleClaim)
		r.Get("/sources", s.handleSources)
		r.Get("/sources/{id}", s.handleSource)
		r.Get("/creators", s.handleCreators)
		r.Get("/creators/{id}", s.handleCreator)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/pipeline/status", s.handlePipelineStatus)
		r.Post("/pipeline/trigger", s.handlePipelineTrigger)
	})

	s.http = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClaims(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	claimType := q.Get("claimType")
	if claimType == "" {
		claimType = q.Get("type") // legacy alias
	}
	filter := store.ClaimFilter{
		SourceID:  q.Get("sourceId"),
		CreatorID: q.Get("creatorId"),
		Status:    model.ClaimStatus(q.Get("status")),
		Type:      model.ClaimType(claimType),
		Offset:    parseInt(q.Get("offset"), 0, 0, 1<<30),
		Limit:     parseInt(q.Get("limit"), s.pageSize, 1, s.maxPage),
	}

	claims := s.store.Claims(filter)
	views := make([]ClaimView, 0, len(claims))
	for _, c := range claims {
		views = append(views, claimView(c, s.currentVerdict(c.ID)))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claims": views,
		"count":  len(views),
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claim, err := s.store.ClaimByID(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "claim not found")
		return
	}
	if err != nil {
		s.log.Error("claim lookup failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	detail := ClaimDetailView{
		ClaimView: claimView(claim, s.currentVerdict(claim.ID)),
		Evidence:  []EvidenceView{},
	}
	for _, ev := range s.store.EvidenceForClaim(claim.ID) {
		detail.Evidence = append(detail.Evidence, EvidenceView{
			ID:         ev.ID,
			URL:        ev.URL,
			Title:      ev.Title,
			Grade:      string(ev.Grade),
			Stance:     string(ev.Stance),
			GatheredAt: ev.GatheredAt,
		})
	}
	history := s.store.VerdictHistory(claim.ID)
	detail.VerdictHistory = make([]VerdictHistoryView, 0, len(history))
	for _, v := range history {
		detail.VerdictHistory = append(detail.VerdictHistory, VerdictHistoryView{
			VerdictView: VerdictView{
				VerdictLabel:     string(v.Label),
				ProbabilityTrue:  v.ProbabilityTrue,
				EvidenceStrength: v.EvidenceStrength,
			},
			ComputedAt: v.ComputedAt,
		})
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	reg, err := s.loadReg()
	if err != nil {
		s.log.Error("registry load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registry unavailable")
		return
	}
	sources := reg.Sources()
	views := make([]SourceView, 0, len(sources))
	for _, src := range sources {
		views = append(views, s.sourceView(src))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sources": views,
		"count":   len(views),
	})
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	reg, err := s.loadReg()
	if err != nil {
		s.log.Error("registry load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registry unavailable")
		return
	}
	src, ok := reg.Source(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	writeJSON(w, http.StatusOK, s.sourceView(src))
}

func (s *Server) handleCreators(w http.ResponseWriter, r *http.Request) {
	reg, err := s.loadReg()
	if err != nil {
		s.log.Error("registry load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registry unavailable")
		return
	}
	creators := reg.Creators()
	views := make([]CreatorView, 0, len(creators))
	for _, c := range creators {
		views = append(views, s.creatorViewFor(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"creators": views,
		"count":    len(views),
	})
}

func (s *Server) handleCreator(w http.ResponseWriter, r *http.Request) {
	reg, err := s.loadReg()
	if err != nil {
		s.log.Error("registry load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registry unavailable")
		return
	}
	c, ok := reg.Creator(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "creator not found")
		return
	}
	writeJSON(w, http.StatusOK, s.creatorViewFor(c))
}

// handleLeaderboard returns creators in rank order. Scores already carry
// their rank from the last scoring pass, so this is a sort by RankOverall
// with unranked creators appended.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	reg, err := s.loadReg()
	if err != nil {
		s.log.Error("registry load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registry unavailable")
		return
	}

	type entry struct {
		view CreatorView
		rank int
	}
	entries := make([]entry, 0)
	for _, c := range reg.Creators() {
		v := s.creatorViewFor(c)
		rank := v.RankOverall
		if rank == 0 {
			rank = 1 << 30
		}
		entries = append(entries, entry{view: v, rank: rank})
	}
	// Registry order is already id-sorted; a stable sort keeps id as the
	// tie break for equal ranks.
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].rank < entries[j].rank })

	views := make([]CreatorView, 0, len(entries))
	for _, e := range entries {
		views = append(views, e.view)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"leaderboard": views,
		"count":       len(views),
	})
}

func (s *Server) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	run, ok := s.store.LatestRun()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"run": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": runView(run)})
}

func (s *Server) handlePipelineTrigger(w http.ResponseWriter, r *http.Request) {
	runID, err := s.trigger.TriggerAsync(context.WithoutCancel(r.Context()))
	if errors.Is(err, pipeline.ErrRunInProgress) {
		writeJSON(w, http.StatusConflict, TriggerResponse{Result: "already_running"})
		return
	}
	if err != nil {
		s.log.Error("pipeline trigger failed", "error", err)
		writeError(w, http.StatusInternalServerError, "trigger failed")
		return
	}
	s.log.Info("pipeline run triggered via api", "run_id", runID)
	writeJSON(w, http.StatusAccepted, TriggerResponse{Result: "started", RunID: runID})
}

func (s *Server) currentVerdict(claimID string) *model.Verdict {
	v, ok := s.store.CurrentVerdict(claimID)
	if !ok {
		return nil
	}
	return &v
}

func (s *Server) sourceView(src model.Source) SourceView {
	view := SourceView{
		ID:   src.ID,
		Name: src.Name,
		Kind: string(src.Kind),
		URL:  src.URL,
	}
	if score, ok := s.store.LatestSourceScore(src.ID); ok {
		view.Score = scoreView(score.TrackRecord, score.MethodDiscipline, score.SampleSize, score.Interval, score.ScoreVersion, score.ComputedAt)
	}
	return view
}

func (s *Server) creatorViewFor(c model.Creator) CreatorView {
	if score, ok := s.store.LatestCreatorScore(c.ID); ok {
		return creatorView(c, &score)
	}
	return creatorView(c, nil)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseInt(s string, def, min, max int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
