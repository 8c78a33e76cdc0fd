package model

import "time"

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunPartial   RunStatus = "partial"
)

// RunStats aggregates what a run accomplished. SourceErrors maps source id
// to the error that stopped work for that source; individual source errors
// never fail the run.
type RunStats struct {
	ItemsIngested    int               `json:"items_ingested"`
	ClaimsExtracted  int               `json:"claims_extracted"`
	EvidenceGathered int               `json:"evidence_gathered"`
	VerdictsUpdated  int               `json:"verdicts_updated"`
	ClaimsExpired    int               `json:"claims_expired"`
	ScoresRecomputed int               `json:"scores_recomputed"`
	SourceErrors     map[string]string `json:"source_errors,omitempty"`
}

// PipelineRun records one pipeline execution. The terminal state is written
// once; two runs never have overlapping open intervals.
type PipelineRun struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	Stats      RunStats   `json:"stats"`
	Error      string     `json:"error,omitempty"` // systemic failure cause
}
