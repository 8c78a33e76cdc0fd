package model

import "time"

// SourceKind identifies how a monitored source publishes.
type SourceKind string

const (
	SourcePublisher SourceKind = "publisher" // news site, HTML pages
	SourceRegulator SourceKind = "regulator" // official feed, JSON entries
	SourceSocial    SourceKind = "social"    // social handle, JSON posts
)

// Source is a monitored publisher, regulator, or social handle.
type Source struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Kind   SourceKind `json:"kind"`
	URL    string     `json:"url"`
	Handle string     `json:"handle,omitempty"`
	Weight float64    `json:"weight,omitempty"`
}

// ConfidenceInterval bounds a track record estimate.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Width returns the interval width.
func (ci ConfidenceInterval) Width() float64 {
	return ci.Upper - ci.Lower
}

// SourceScore is a versioned credibility snapshot for a source. Scores are
// recomputed each run as a new snapshot, never mutated in place, so score
// history and rank movement stay derivable.
type SourceScore struct {
	SourceID         string             `json:"source_id"`
	TrackRecord      float64            `json:"track_record"`      // 0-100, shrunk toward 50
	MethodDiscipline float64            `json:"method_discipline"` // 0-100, outcome-independent
	SampleSize       int                `json:"sample_size"`
	Interval         ConfidenceInterval `json:"confidence_interval"`
	ScoreVersion     int                `json:"score_version"`
	ComputedAt       time.Time          `json:"computed_at"`
}
