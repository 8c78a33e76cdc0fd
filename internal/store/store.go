// Package store holds all pipeline state. Each stage owns writes to its own
// entity type only: the collector writes raw items, the extractor claims,
// the gatherer evidence, the verdict engine verdicts and claim statuses,
// the scorers score snapshots, and the orchestrator runs. That separation
// is what keeps partial failures isolated.
package store

import (
	"errors"
	"time"

	"github.com/veridexhq/veridex/internal/model"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrStatusConflict is returned when a claim status transition loses a
	// compare-and-set race. The caller must treat this as a no-op, never
	// overwrite: last-writer-wins on verdicts is disallowed.
	ErrStatusConflict = errors.New("store: claim status conflict")

	// ErrRunOpen is returned when a run is started while another run's
	// interval is still open.
	ErrRunOpen = errors.New("store: a pipeline run is already open")

	// ErrRunFinished is returned when a terminal run state would be
	// written twice.
	ErrRunFinished = errors.New("store: run already finished")
)

// ClaimFilter narrows Claims queries for the read side.
type ClaimFilter struct {
	SourceID  string
	CreatorID string
	Status    model.ClaimStatus
	Type      model.ClaimType
	Offset    int
	Limit     int
}

// Store is the persistence contract the pipeline runs against.
type Store interface {
	// Raw items (collector-owned).
	AddRawItem(item model.RawItem) (bool, error)
	RawItemByID(id string) (model.RawItem, error)
	HasRawItem(sourceID, dedupeKey string) bool
	Watermark(sourceID string) (time.Time, bool)
	SetWatermark(sourceID string, t time.Time) error

	// Claims (extractor-owned writes; verdict engine owns status).
	AddClaim(claim model.Claim) (bool, error)
	ClaimByID(id string) (model.Claim, error)
	Claims(filter ClaimFilter) []model.Claim
	OpenClaims() []model.Claim
	TransitionClaim(id string, from, to model.ClaimStatus) error
	SetGatherError(id, msg string) error
	FlagManualReview(id string) error

	// Evidence (gatherer-owned, append-only).
	AddEvidence(ev model.Evidence) (bool, error)
	EvidenceForClaim(claimID string) []model.Evidence

	// Verdicts (verdict-engine-owned, append-only history).
	AddVerdict(v model.Verdict) error
	CurrentVerdict(claimID string) (model.Verdict, bool)
	VerdictHistory(claimID string) []model.Verdict

	// Score snapshots (scorer-owned, append-only).
	NextScoreVersion() int
	AddSourceScore(s model.SourceScore) error
	LatestSourceScore(sourceID string) (model.SourceScore, bool)
	SourceScoreHistory(sourceID string) []model.SourceScore
	AddCreatorScore(c model.CreatorScore) error
	LatestCreatorScore(creatorID string) (model.CreatorScore, bool)
	LatestCreatorScores() []model.CreatorScore

	// Runs (orchestrator-owned).
	StartRun(run model.PipelineRun) error
	FinishRun(id string, status model.RunStatus, stats model.RunStats, errMsg string) error
	LatestRun() (model.PipelineRun, bool)

	// Snapshot persistence.
	Save(path string) error
	Load(path string) error
}
