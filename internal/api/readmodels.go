package api

import (
	"time"

	"github.com/veridexhq/veridex/internal/model"
)

// The read models below are the wire contract consumed by the presentation
// layer. Field names are part of that contract; do not rename them.

// VerdictView is the verdict block embedded in claim responses.
type VerdictView struct {
	VerdictLabel     string  `json:"verdictLabel"`
	ProbabilityTrue  float64 `json:"probabilityTrue"`
	EvidenceStrength float64 `json:"evidenceStrength"`
}

// ClaimView is a claim as the web layer sees it.
type ClaimView struct {
	ID           string       `json:"id"`
	SourceID     string       `json:"sourceId,omitempty"`
	CreatorID    string       `json:"creatorId,omitempty"`
	VideoID      string       `json:"videoId,omitempty"`
	ClaimText    string       `json:"claimText"`
	ClaimType    string       `json:"claimType"`
	AssetSymbols []string     `json:"assetSymbols,omitempty"`
	Specificity  int          `json:"specificityScore"`
	Confidence   float64      `json:"extractionConfidence"`
	Timeframe    *time.Time   `json:"statedTimeframe,omitempty"`
	Status       string       `json:"status"`
	ManualReview bool         `json:"manualReview,omitempty"`
	GatherError  string       `json:"gatherError,omitempty"`
	Verdict      *VerdictView `json:"verdict,omitempty"`
}

// EvidenceView is one graded evidence row.
type EvidenceView struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	Grade      string    `json:"grade"`
	Stance     string    `json:"stance"`
	GatheredAt time.Time `json:"gatheredAt"`
}

// VerdictHistoryView is one entry in a claim's verdict history.
type VerdictHistoryView struct {
	VerdictView
	ComputedAt time.Time `json:"computedAt"`
}

// ClaimDetailView is the single-claim response with full history.
type ClaimDetailView struct {
	ClaimView
	Evidence       []EvidenceView       `json:"evidence"`
	VerdictHistory []VerdictHistoryView `json:"verdictHistory"`
}

// ScoreView is the credibility block embedded in source responses.
type ScoreView struct {
	TrackRecord        float64      `json:"trackRecord"`
	MethodDiscipline   float64      `json:"methodDiscipline"`
	SampleSize         int          `json:"sampleSize"`
	ConfidenceInterval IntervalView `json:"confidenceInterval"`
	ScoreVersion       int          `json:"scoreVersion"`
	ComputedAt         time.Time    `json:"computedAt"`
}

// IntervalView bounds a track record estimate.
type IntervalView struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// SourceView is a monitored source plus its active score.
type SourceView struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Kind  string     `json:"kind"`
	URL   string     `json:"url"`
	Score *ScoreView `json:"score,omitempty"`
}

// CreatorView is a creator plus its active accuracy snapshot, including the
// six per-category accuracy fields, tier, and leaderboard position.
type CreatorView struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Channel             string     `json:"channel"`
	Score               *ScoreView `json:"score,omitempty"`
	PriceAccuracy       float64    `json:"priceAccuracy"`
	TimelineAccuracy    float64    `json:"timelineAccuracy"`
	RegulatoryAccuracy  float64    `json:"regulatoryAccuracy"`
	PartnershipAccuracy float64    `json:"partnershipAccuracy"`
	TechnologyAccuracy  float64    `json:"technologyAccuracy"`
	MarketAccuracy      float64    `json:"marketAccuracy"`
	Tier                string     `json:"tier"`
	RankOverall         int        `json:"rankOverall"`
	RankChange          int        `json:"rankChange"`
}

// RunView is the pipeline status response.
type RunView struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
	Status     string         `json:"status"`
	Stats      model.RunStats `json:"stats"`
	Error      string         `json:"error,omitempty"`
}

// TriggerResponse is returned by the manual trigger endpoint.
type TriggerResponse struct {
	Result string `json:"result"` // "started" or "already_running"
	RunID  string `json:"runId,omitempty"`
}

func claimView(c model.Claim, v *model.Verdict) ClaimView {
	view := ClaimView{
		ID:           c.ID,
		SourceID:     c.SourceID,
		CreatorID:    c.CreatorID,
		VideoID:      c.VideoID,
		ClaimText:    c.Text,
		ClaimType:    string(c.Type),
		AssetSymbols: c.AssetSymbols,
		Specificity:  c.Specificity,
		Confidence:   c.Confidence,
		Timeframe:    c.Timeframe,
		Status:       string(c.Status),
		ManualReview: c.ManualReview,
		GatherError:  c.GatherError,
	}
	if v != nil {
		view.Verdict = &VerdictView{
			VerdictLabel:     string(v.Label),
			ProbabilityTrue:  v.ProbabilityTrue,
			EvidenceStrength: v.EvidenceStrength,
		}
	}
	return view
}

func scoreView(trackRecord, discipline float64, n int, ci model.ConfidenceInterval, version int, at time.Time) *ScoreView {
	return &ScoreView{
		TrackRecord:      trackRecord,
		MethodDiscipline: discipline,
		SampleSize:       n,
		ConfidenceInterval: IntervalView{
			Lower: ci.Lower,
			Upper: ci.Upper,
		},
		ScoreVersion: version,
		ComputedAt:   at,
	}
}

func creatorView(c model.Creator, s *model.CreatorScore) CreatorView {
	view := CreatorView{
		ID:      c.ID,
		Name:    c.Name,
		Channel: c.Channel,
		Tier:    string(model.TierUnranked),
	}
	if s != nil {
		view.Score = scoreView(s.TrackRecord, s.MethodDiscipline, s.SampleSize, s.Interval, s.ScoreVersion, s.ComputedAt)
		view.PriceAccuracy = s.Categories.Price
		view.TimelineAccuracy = s.Categories.Timeline
		view.RegulatoryAccuracy = s.Categories.Regulatory
		view.PartnershipAccuracy = s.Categories.Partnership
		view.TechnologyAccuracy = s.Categories.Technology
		view.MarketAccuracy = s.Categories.Market
		view.Tier = string(s.Tier)
		view.RankOverall = s.RankOverall
		view.RankChange = s.RankChange
	}
	return view
}

func runView(r model.PipelineRun) RunView {
	return RunView{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Status:     string(r.Status),
		Stats:      r.Stats,
		Error:      r.Error,
	}
}
