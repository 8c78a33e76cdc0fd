package model

import "time"

// VerdictLabel is the 4-tier judgment assigned to a claim.
type VerdictLabel string

const (
	VerdictVerified            VerdictLabel = "verified"
	VerdictPlausibleUnverified VerdictLabel = "plausible_unverified"
	VerdictSpeculative         VerdictLabel = "speculative"
	VerdictMisleading          VerdictLabel = "misleading"
)

// Verdict is one computed judgment on a claim. A claim has one current
// verdict; prior verdicts are kept as a queryable history, never overwritten.
type Verdict struct {
	ID               string       `json:"id"`
	ClaimID          string       `json:"claim_id"`
	Label            VerdictLabel `json:"verdict_label"`
	ProbabilityTrue  float64      `json:"probability_true"`  // 0-1
	EvidenceStrength float64      `json:"evidence_strength"` // 0-1
	ComputedAt       time.Time    `json:"computed_at"`
}
