// Package score recomputes source credibility and creator accuracy from
// historical claim outcomes. Scores are append-only snapshots: each run
// writes a new row per entity so history and rank movement stay queryable.
package score

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/veridexhq/veridex/internal/config"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/store"
)

// Scorer recomputes credibility snapshots.
type Scorer struct {
	store store.Store
	cfg   config.ScoreConfig
	log   *slog.Logger
}

// NewScorer wires a scorer.
func NewScorer(st store.Store, cfg config.ScoreConfig, log *slog.Logger) *Scorer {
	return &Scorer{store: st, cfg: cfg, log: log}
}

// outcomeCredit returns (credit, counted) for one claim: whether the claim
// participates in the accuracy sample and how much of a success it was.
func outcomeCredit(claim model.Claim, current model.Verdict, hasVerdict bool) (float64, bool) {
	if claim.IsCreatorClaim() {
		switch claim.Status {
		case model.StatusVerifiedTrue:
			return 1, true
		case model.StatusPartiallyTrue:
			return 0.5, true
		case model.StatusVerifiedFalse:
			return 0, true
		default:
			// pending, unverifiable, and expired claims carry no signal
			// about accuracy either way.
			return 0, false
		}
	}

	if claim.Status != model.StatusResolved || !hasVerdict {
		return 0, false
	}
	switch current.Label {
	case model.VerdictVerified:
		return 1, true
	case model.VerdictMisleading:
		return 0, true
	default:
		return 0, false
	}
}

// accuracy aggregates credit over a claim set, returning the raw accuracy
// (0-100) and the sample size.
func (s *Scorer) accuracy(claims []model.Claim) (float64, int) {
	var credit float64
	n := 0
	for _, claim := range claims {
		current, ok := s.store.CurrentVerdict(claim.ID)
		c, counted := outcomeCredit(claim, current, ok)
		if counted {
			credit += c
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return credit / float64(n) * 100, n
}

// discipline scores method discipline 0-100 from claim metadata alone:
// hedging on uncertain claims, citing references, and issuing corrections
// all indicate sound practice. Outcomes never enter this number.
func (s *Scorer) discipline(claims []model.Claim) float64 {
	if len(claims) == 0 {
		return s.cfg.NeutralPrior
	}
	var hedgedCount, cited, corrections int
	for _, claim := range claims {
		if claim.Hedged {
			hedgedCount++
		}
		if len(s.store.EvidenceForClaim(claim.ID)) > 0 {
			cited++
		}
		if claim.SupersedesID != "" {
			corrections++
		}
	}
	total := float64(len(claims))
	score := 35 +
		30*float64(cited)/total +
		20*float64(hedgedCount)/total +
		15*float64(corrections)/total
	if score > 100 {
		score = 100
	}
	return score
}

// ScoreSources writes a fresh credibility snapshot for every source.
func (s *Scorer) ScoreSources(sources []model.Source, version int, now time.Time) (int, error) {
	written := 0
	for _, src := range sources {
		claims := s.store.Claims(store.ClaimFilter{SourceID: src.ID})
		raw, n := s.accuracy(claims)

		snapshot := model.SourceScore{
			SourceID:         src.ID,
			TrackRecord:      shrink(raw, n, s.cfg.ShrinkageK, s.cfg.NeutralPrior),
			MethodDiscipline: s.discipline(claims),
			SampleSize:       n,
			Interval:         wilson(raw/100, n, s.cfg.WilsonZ),
			ScoreVersion:     version,
			ComputedAt:       now,
		}
		if err := s.store.AddSourceScore(snapshot); err != nil {
			return written, fmt.Errorf("store source score %s: %w", src.ID, err)
		}
		written++
	}
	return written, nil
}

// ScoreCreators computes fresh accuracy snapshots for every creator. Ranks
// are left zero; the leaderboard ranker assigns them before the snapshots
// are stored.
func (s *Scorer) ScoreCreators(creators []model.Creator, version int, now time.Time) []model.CreatorScore {
	out := make([]model.CreatorScore, 0, len(creators))
	for _, creator := range creators {
		claims := s.store.Claims(store.ClaimFilter{CreatorID: creator.ID})
		raw, n := s.accuracy(claims)

		snapshot := model.CreatorScore{
			CreatorID:        creator.ID,
			TrackRecord:      shrink(raw, n, s.cfg.ShrinkageK, s.cfg.NeutralPrior),
			MethodDiscipline: s.discipline(claims),
			SampleSize:       n,
			Interval:         wilson(raw/100, n, s.cfg.WilsonZ),
			Categories:       s.categories(claims),
			ScoreVersion:     version,
			ComputedAt:       now,
		}
		snapshot.Tier = s.tier(snapshot.TrackRecord, snapshot.SampleSize)
		out = append(out, snapshot)
	}
	return out
}

// categories buckets claims into the six accuracy categories. Timeline
// accuracy covers claims that stated a timeframe, whatever their type.
func (s *Scorer) categories(claims []model.Claim) model.CategoryAccuracy {
	buckets := make(map[model.Category][]model.Claim)
	for _, claim := range claims {
		if claim.Timeframe != nil {
			buckets[model.CategoryTimeline] = append(buckets[model.CategoryTimeline], claim)
		}
		cat := claim.Type.Category()
		if cat != model.CategoryTimeline {
			buckets[cat] = append(buckets[cat], claim)
		}
	}

	acc := func(cat model.Category) float64 {
		raw, n := s.accuracy(buckets[cat])
		return shrink(raw, n, s.cfg.ShrinkageK, s.cfg.NeutralPrior)
	}
	return model.CategoryAccuracy{
		Price:       acc(model.CategoryPrice),
		Timeline:    acc(model.CategoryTimeline),
		Regulatory:  acc(model.CategoryRegulatory),
		Partnership: acc(model.CategoryPartnership),
		Technology:  acc(model.CategoryTechnology),
		Market:      acc(model.CategoryMarket),
	}
}

// tier assigns the coarse trust bucket by the fixed cutoffs.
func (s *Scorer) tier(trackRecord float64, sampleSize int) model.Tier {
	switch {
	case trackRecord >= s.cfg.DiamondMin && sampleSize >= s.cfg.DiamondSample:
		return model.TierDiamond
	case trackRecord >= s.cfg.GoldMin:
		return model.TierGold
	case trackRecord >= s.cfg.SilverMin:
		return model.TierSilver
	case trackRecord >= s.cfg.BronzeMin:
		return model.TierBronze
	default:
		return model.TierUnranked
	}
}
