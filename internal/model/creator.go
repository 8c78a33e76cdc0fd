package model

import "time"

// Tier is a creator's coarse trust bucket.
type Tier string

const (
	TierDiamond  Tier = "diamond"
	TierGold     Tier = "gold"
	TierSilver   Tier = "silver"
	TierBronze   Tier = "bronze"
	TierUnranked Tier = "unranked"
)

// Creator is an independent video channel whose predictions are tracked.
type Creator struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Channel string `json:"channel"`
	Handle  string `json:"handle,omitempty"`
}

// CategoryAccuracy holds the six per-category accuracy sub-scores (0-100).
// A category with no resolved claims reports the neutral prior.
type CategoryAccuracy struct {
	Price       float64 `json:"price_accuracy"`
	Timeline    float64 `json:"timeline_accuracy"`
	Regulatory  float64 `json:"regulatory_accuracy"`
	Partnership float64 `json:"partnership_accuracy"`
	Technology  float64 `json:"technology_accuracy"`
	Market      float64 `json:"market_accuracy"`
}

// CreatorScore is a versioned accuracy snapshot for a creator, the creator
// analogue of SourceScore plus category accuracy, tier, and leaderboard rank.
type CreatorScore struct {
	CreatorID        string             `json:"creator_id"`
	TrackRecord      float64            `json:"track_record"`
	MethodDiscipline float64            `json:"method_discipline"`
	SampleSize       int                `json:"sample_size"`
	Interval         ConfidenceInterval `json:"confidence_interval"`
	Categories       CategoryAccuracy   `json:"categories"`
	Tier             Tier               `json:"tier"`
	RankOverall      int                `json:"rank_overall"`
	RankChange       int                `json:"rank_change"` // previousRank - newRank, positive = moved up
	ScoreVersion     int                `json:"score_version"`
	ComputedAt       time.Time          `json:"computed_at"`
}
