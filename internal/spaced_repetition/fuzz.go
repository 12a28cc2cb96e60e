package spaced_repetition

import (
	"math"
	"math/rand"
)

// applyFuzz randomizes an interval so that cards rated on the same day do not
// all become due together. Intervals under 3 days are returned unchanged,
// 3-7 days move by exactly one day, longer ones by up to 20%.
func applyFuzz(interval int, rng *rand.Rand) int {
	if interval < 3 || rng == nil {
		return interval
	}

	if interval <= 7 {
		if rng.Intn(2) == 0 {
			return interval - 1
		}
		return interval + 1
	}

	fuzzRange := float64(interval) * 0.2
	fuzz := (rng.Float64()*2 - 1) * fuzzRange
	return int(math.Round(float64(interval) + fuzz))
}
