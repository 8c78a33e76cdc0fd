package score

import (
	"math"

	"github.com/veridexhq/veridex/internal/model"
)

// wilson computes the Wilson score interval for accuracy p over n trials at
// the confidence the z value encodes (1.6449 = 90%). Bounds are returned on
// the 0-100 track-record scale. Width shrinks monotonically as n grows for
// fixed p. Zero trials yields the maximally uninformative interval.
func wilson(p float64, n int, z float64) model.ConfidenceInterval {
	if n <= 0 {
		return model.ConfidenceInterval{Lower: 0, Upper: 100}
	}
	nf := float64(n)
	z2 := z * z

	denom := 1 + z2/nf
	center := (p + z2/(2*nf)) / denom
	half := z * math.Sqrt(p*(1-p)/nf+z2/(4*nf*nf)) / denom

	lower := (center - half) * 100
	upper := (center + half) * 100
	if lower < 0 {
		lower = 0
	}
	if upper > 100 {
		upper = 100
	}
	return model.ConfidenceInterval{Lower: lower, Upper: upper}
}

// shrink pulls a raw accuracy (0-100) toward the neutral prior with a
// pseudo-count of k, so small samples cannot produce extreme scores.
func shrink(raw float64, n, k int, prior float64) float64 {
	if n == 0 && k == 0 {
		return prior
	}
	return (raw*float64(n) + prior*float64(k)) / float64(n+k)
}
