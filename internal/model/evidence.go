package model

import "time"

// Grade is the ordinal reliability of an evidence source, A (strongest)
// through D (weakest).
type Grade string

const (
	GradeA Grade = "A" // primary: regulators, filings, official announcements
	GradeB Grade = "B" // major outlets with editorial standards
	GradeC Grade = "C" // aggregators, smaller outlets
	GradeD Grade = "D" // blogs, forums, social posts
)

// High reports whether the grade counts toward the high-reliability side of
// the evidence-sufficiency threshold.
func (g Grade) High() bool {
	return g == GradeA || g == GradeB
}

// Stance is the direction an evidence record points relative to its claim.
type Stance string

const (
	StanceSupports    Stance = "supports"
	StanceContradicts Stance = "contradicts"
	StanceNeutral     Stance = "neutral"
)

// Sign returns +1 for supporting, -1 for contradicting, 0 for neutral.
func (s Stance) Sign() float64 {
	switch s {
	case StanceSupports:
		return 1
	case StanceContradicts:
		return -1
	default:
		return 0
	}
}

// Evidence is a graded external reference for a claim. Rows are append-only;
// a claim accumulates evidence across runs until resolved or expired.
type Evidence struct {
	ID         string    `json:"id"`
	ClaimID    string    `json:"claim_id"`
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	Grade      Grade     `json:"grade"`
	Stance     Stance    `json:"stance"`
	Primary    bool      `json:"primary,omitempty"` // regulatory/official closing source
	GatheredAt time.Time `json:"gathered_at"`
}
