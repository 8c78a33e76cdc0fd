package score

import (
	"sort"

	"github.com/veridexhq/veridex/internal/model"
)

// Rank orders creator snapshots into the leaderboard and fills in
// rankOverall and rankChange. Ordering is total and deterministic:
// trackRecord descending, sampleSize descending, then creator id, so
// entities with tied scores never swap positions between runs unless an
// underlying score changed.
func Rank(scores []model.CreatorScore, previousRanks map[string]int) []model.CreatorScore {
	ranked := make([]model.CreatorScore, len(scores))
	copy(ranked, scores)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.TrackRecord != b.TrackRecord {
			return a.TrackRecord > b.TrackRecord
		}
		if a.SampleSize != b.SampleSize {
			return a.SampleSize > b.SampleSize
		}
		return a.CreatorID < b.CreatorID
	})

	for i := range ranked {
		rank := i + 1
		ranked[i].RankOverall = rank
		if prev, ok := previousRanks[ranked[i].CreatorID]; ok {
			// Positive means the creator moved up the board.
			ranked[i].RankChange = prev - rank
		}
	}
	return ranked
}

// PreviousRanks extracts the rank each creator held in its latest stored
// snapshot.
func PreviousRanks(latest []model.CreatorScore) map[string]int {
	ranks := make(map[string]int, len(latest))
	for _, s := range latest {
		if s.RankOverall > 0 {
			ranks[s.CreatorID] = s.RankOverall
		}
	}
	return ranks
}
