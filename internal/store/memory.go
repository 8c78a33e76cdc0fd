package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/veridexhq/veridex/internal/model"
)

// Memory is the in-process Store implementation. All collections are
// guarded by a single RWMutex; per-entity writes are cheap and the pipeline
// stages never contend on the same entity type.
type Memory struct {
	mu sync.RWMutex

	rawItems   map[string]model.RawItem // id -> item
	rawKeys    map[string]string        // sourceID|dedupeKey -> item id
	watermarks map[string]time.Time     // sourceID -> last successful fetch

	claims     map[string]model.Claim // id -> claim
	claimKeys  map[string]string      // dedupeKey -> claim id
	claimOrder []string               // insertion order for deterministic listing

	evidence     map[string][]model.Evidence // claimID -> rows, append-only
	evidenceSeen map[string]bool             // claimID|url -> already recorded

	verdicts map[string][]model.Verdict // claimID -> history, last = current

	scoreVersion  int
	sourceScores  map[string][]model.SourceScore  // sourceID -> snapshots
	creatorScores map[string][]model.CreatorScore // creatorID -> snapshots

	runs     map[string]model.PipelineRun
	runOrder []string
	openRun  string // id of the run with an open interval, "" if none
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rawItems:      make(map[string]model.RawItem),
		rawKeys:       make(map[string]string),
		watermarks:    make(map[string]time.Time),
		claims:        make(map[string]model.Claim),
		claimKeys:     make(map[string]string),
		evidence:      make(map[string][]model.Evidence),
		evidenceSeen:  make(map[string]bool),
		verdicts:      make(map[string][]model.Verdict),
		sourceScores:  make(map[string][]model.SourceScore),
		creatorScores: make(map[string][]model.CreatorScore),
		runs:          make(map[string]model.PipelineRun),
	}
}

func rawKey(sourceID, dedupeKey string) string {
	return sourceID + "|" + dedupeKey
}

// AddRawItem stores an item unless the source already emitted it. Returns
// whether the item was added.
func (m *Memory) AddRawItem(item model.RawItem) (bool, error) {
	if item.ID == "" || item.SourceID == "" {
		return false, fmt.Errorf("raw item needs id and source id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := rawKey(item.SourceID, item.DedupeKey())
	if _, dup := m.rawKeys[key]; dup {
		return false, nil
	}
	m.rawItems[item.ID] = item
	m.rawKeys[key] = item.ID
	return true, nil
}

// RawItemByID fetches a stored raw item.
func (m *Memory) RawItemByID(id string) (model.RawItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.rawItems[id]
	if !ok {
		return model.RawItem{}, ErrNotFound
	}
	return item, nil
}

// HasRawItem reports whether the source already emitted an item with the
// given dedupe key.
func (m *Memory) HasRawItem(sourceID, dedupeKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rawKeys[rawKey(sourceID, dedupeKey)]
	return ok
}

// Watermark returns the last successful fetch time for a source.
func (m *Memory) Watermark(sourceID string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.watermarks[sourceID]
	return t, ok
}

// SetWatermark advances the fetch watermark for a source. Watermarks never
// move backwards.
func (m *Memory) SetWatermark(sourceID string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.watermarks[sourceID]; ok && t.Before(prev) {
		return nil
	}
	m.watermarks[sourceID] = t
	return nil
}

// AddClaim stores a claim unless its dedupe key already exists. Returns
// whether the claim was added.
func (m *Memory) AddClaim(claim model.Claim) (bool, error) {
	if claim.ID == "" || claim.DedupeKey == "" {
		return false, fmt.Errorf("claim needs id and dedupe key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.claimKeys[claim.DedupeKey]; dup {
		return false, nil
	}
	m.claims[claim.ID] = claim
	m.claimKeys[claim.DedupeKey] = claim.ID
	m.claimOrder = append(m.claimOrder, claim.ID)
	return true, nil
}

// ClaimByID fetches a single claim.
func (m *Memory) ClaimByID(id string) (model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.claims[id]
	if !ok {
		return model.Claim{}, ErrNotFound
	}
	return c, nil
}

// Claims lists claims matching the filter in insertion order.
func (m *Memory) Claims(filter ClaimFilter) []model.Claim {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Claim
	skipped := 0
	for _, id := range m.claimOrder {
		c := m.claims[id]
		if filter.SourceID != "" && c.SourceID != filter.SourceID {
			continue
		}
		if filter.CreatorID != "" && c.CreatorID != filter.CreatorID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, c)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// OpenClaims lists claims still eligible for evidence gathering.
func (m *Memory) OpenClaims() []model.Claim {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Claim
	for _, id := range m.claimOrder {
		if c := m.claims[id]; c.Status.Open() {
			out = append(out, c)
		}
	}
	return out
}

// TransitionClaim moves a claim from one status to another via
// compare-and-set. A transition whose precondition no longer holds returns
// ErrStatusConflict so a concurrent second resolution becomes a no-op.
func (m *Memory) TransitionClaim(id string, from, to model.ClaimStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return ErrNotFound
	}
	if c.Status != from {
		return ErrStatusConflict
	}
	c.Status = to
	m.claims[id] = c
	return nil
}

// SetGatherError records a gathering failure on the claim without touching
// its status.
func (m *Memory) SetGatherError(id, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return ErrNotFound
	}
	c.GatherError = msg
	m.claims[id] = c
	return nil
}

// FlagManualReview marks a claim for operator attention.
func (m *Memory) FlagManualReview(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return ErrNotFound
	}
	c.ManualReview = true
	m.claims[id] = c
	return nil
}

// AddEvidence appends an evidence row unless the claim already has one for
// the same URL. Returns whether the row was added.
func (m *Memory) AddEvidence(ev model.Evidence) (bool, error) {
	if ev.ID == "" || ev.ClaimID == "" {
		return false, fmt.Errorf("evidence needs id and claim id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := ev.ClaimID + "|" + ev.URL
	if m.evidenceSeen[seen] {
		return false, nil
	}
	m.evidence[ev.ClaimID] = append(m.evidence[ev.ClaimID], ev)
	m.evidenceSeen[seen] = true
	return true, nil
}

// EvidenceForClaim returns the claim's evidence in gathering order.
func (m *Memory) EvidenceForClaim(claimID string) []model.Evidence {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.evidence[claimID]
	out := make([]model.Evidence, len(rows))
	copy(out, rows)
	return out
}

// AddVerdict appends a verdict to the claim's history. The latest entry is
// the current verdict.
func (m *Memory) AddVerdict(v model.Verdict) error {
	if v.ID == "" || v.ClaimID == "" {
		return fmt.Errorf("verdict needs id and claim id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts[v.ClaimID] = append(m.verdicts[v.ClaimID], v)
	return nil
}

// CurrentVerdict returns the latest verdict for a claim.
func (m *Memory) CurrentVerdict(claimID string) (model.Verdict, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hist := m.verdicts[claimID]
	if len(hist) == 0 {
		return model.Verdict{}, false
	}
	return hist[len(hist)-1], true
}

// VerdictHistory returns every verdict ever computed for a claim, oldest
// first.
func (m *Memory) VerdictHistory(claimID string) []model.Verdict {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hist := m.verdicts[claimID]
	out := make([]model.Verdict, len(hist))
	copy(out, hist)
	return out
}

// NextScoreVersion hands out a monotonically increasing snapshot version.
func (m *Memory) NextScoreVersion() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scoreVersion++
	return m.scoreVersion
}

// AddSourceScore appends a score snapshot for a source.
func (m *Memory) AddSourceScore(s model.SourceScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sourceScores[s.SourceID] = append(m.sourceScores[s.SourceID], s)
	return nil
}

// LatestSourceScore returns the active score for a source.
func (m *Memory) LatestSourceScore(sourceID string) (model.SourceScore, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hist := m.sourceScores[sourceID]
	if len(hist) == 0 {
		return model.SourceScore{}, false
	}
	return hist[len(hist)-1], true
}

// SourceScoreHistory returns all snapshots for a source, oldest first.
func (m *Memory) SourceScoreHistory(sourceID string) []model.SourceScore {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hist := m.sourceScores[sourceID]
	out := make([]model.SourceScore, len(hist))
	copy(out, hist)
	return out
}

// AddCreatorScore appends a score snapshot for a creator.
func (m *Memory) AddCreatorScore(c model.CreatorScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creatorScores[c.CreatorID] = append(m.creatorScores[c.CreatorID], c)
	return nil
}

// LatestCreatorScore returns the active score for a creator.
func (m *Memory) LatestCreatorScore(creatorID string) (model.CreatorScore, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hist := m.creatorScores[creatorID]
	if len(hist) == 0 {
		return model.CreatorScore{}, false
	}
	return hist[len(hist)-1], true
}

// LatestCreatorScores returns the active score of every creator, sorted by
// creator id for determinism.
func (m *Memory) LatestCreatorScores() []model.CreatorScore {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.CreatorScore, 0, len(m.creatorScores))
	for _, hist := range m.creatorScores {
		if len(hist) > 0 {
			out = append(out, hist[len(hist)-1])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatorID < out[j].CreatorID })
	return out
}

// StartRun records a new run. Only one run may have an open interval.
func (m *Memory) StartRun(run model.PipelineRun) error {
	if run.ID == "" {
		return fmt.Errorf("run needs an id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openRun != "" {
		return ErrRunOpen
	}
	run.Status = model.RunRunning
	run.FinishedAt = nil
	m.runs[run.ID] = run
	m.runOrder = append(m.runOrder, run.ID)
	m.openRun = run.ID
	return nil
}

// FinishRun writes a run's terminal state exactly once.
func (m *Memory) FinishRun(id string, status model.RunStatus, stats model.RunStats, errMsg string) error {
	if status == model.RunRunning {
		return fmt.Errorf("finish requires a terminal status")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	if run.FinishedAt != nil {
		return ErrRunFinished
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = status
	run.Stats = stats
	run.Error = errMsg
	m.runs[id] = run
	if m.openRun == id {
		m.openRun = ""
	}
	return nil
}

// LatestRun returns the most recently started run.
func (m *Memory) LatestRun() (model.PipelineRun, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.runOrder) == 0 {
		return model.PipelineRun{}, false
	}
	return m.runs[m.runOrder[len(m.runOrder)-1]], true
}
