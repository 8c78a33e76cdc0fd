package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/veridexhq/veridex/internal/model"
)

// snapshot is the on-disk shape of the full store state. Written after run
// completion so scores, ranks, and history survive a restart.
type snapshot struct {
	SavedAt       time.Time                       `json:"saved_at"`
	RawItems      []model.RawItem                 `json:"raw_items"`
	Watermarks    map[string]time.Time            `json:"watermarks"`
	Claims        []model.Claim                   `json:"claims"`
	ClaimOrder    []string                        `json:"claim_order"`
	Evidence      map[string][]model.Evidence     `json:"evidence"`
	Verdicts      map[string][]model.Verdict      `json:"verdicts"`
	ScoreVersion  int                             `json:"score_version"`
	SourceScores  map[string][]model.SourceScore  `json:"source_scores"`
	CreatorScores map[string][]model.CreatorScore `json:"creator_scores"`
	Runs          []model.PipelineRun             `json:"runs"`
	RunOrder      []string                        `json:"run_order"`
}

// Save writes the full store state to path atomically (write temp, rename).
func (m *Memory) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	snap := snapshot{
		SavedAt:       time.Now().UTC(),
		Watermarks:    m.watermarks,
		ClaimOrder:    m.claimOrder,
		Evidence:      m.evidence,
		Verdicts:      m.verdicts,
		ScoreVersion:  m.scoreVersion,
		SourceScores:  m.sourceScores,
		CreatorScores: m.creatorScores,
		RunOrder:      m.runOrder,
	}
	for _, item := range m.rawItems {
		snap.RawItems = append(snap.RawItems, item)
	}
	for _, id := range m.claimOrder {
		snap.Claims = append(snap.Claims, m.claims[id])
	}
	for _, id := range m.runOrder {
		snap.Runs = append(snap.Runs, m.runs[id])
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load replaces the store state with a previously saved snapshot. A missing
// file is not an error: the store simply starts empty.
func (m *Memory) Load(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.rawItems = make(map[string]model.RawItem, len(snap.RawItems))
	m.rawKeys = make(map[string]string, len(snap.RawItems))
	for _, item := range snap.RawItems {
		m.rawItems[item.ID] = item
		m.rawKeys[rawKey(item.SourceID, item.DedupeKey())] = item.ID
	}
	m.watermarks = snap.Watermarks
	if m.watermarks == nil {
		m.watermarks = make(map[string]time.Time)
	}

	m.claims = make(map[string]model.Claim, len(snap.Claims))
	m.claimKeys = make(map[string]string, len(snap.Claims))
	for _, c := range snap.Claims {
		m.claims[c.ID] = c
		m.claimKeys[c.DedupeKey] = c.ID
	}
	m.claimOrder = snap.ClaimOrder

	m.evidence = snap.Evidence
	if m.evidence == nil {
		m.evidence = make(map[string][]model.Evidence)
	}
	m.evidenceSeen = make(map[string]bool)
	for claimID, rows := range m.evidence {
		for _, ev := range rows {
			m.evidenceSeen[claimID+"|"+ev.URL] = true
		}
	}

	m.verdicts = snap.Verdicts
	if m.verdicts == nil {
		m.verdicts = make(map[string][]model.Verdict)
	}

	m.scoreVersion = snap.ScoreVersion
	m.sourceScores = snap.SourceScores
	if m.sourceScores == nil {
		m.sourceScores = make(map[string][]model.SourceScore)
	}
	m.creatorScores = snap.CreatorScores
	if m.creatorScores == nil {
		m.creatorScores = make(map[string][]model.CreatorScore)
	}

	m.runs = make(map[string]model.PipelineRun, len(snap.Runs))
	m.openRun = ""
	for _, run := range snap.Runs {
		// A run that was open when the process died can never finish now;
		// mark it partial so the trigger guard does not treat it as live.
		if run.FinishedAt == nil {
			now := time.Now().UTC()
			run.FinishedAt = &now
			run.Status = model.RunPartial
			run.Error = "interrupted by restart"
		}
		m.runs[run.ID] = run
	}
	m.runOrder = snap.RunOrder
	return nil
}
