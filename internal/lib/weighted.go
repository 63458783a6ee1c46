package lib

import "math/rand"

// Weighted is anything exposing a non-negative selection weight; the
// scenario-selection invariant is generic over it so tests can feed in
// plain structs without importing the config package.
type Weighted interface {
	SelectionWeight() float64
}

// Choose implements the scenario-selection invariant: a weighted random
// choice normalized to 1; when exactly one candidate exists, selection is
// deterministic.
func Choose[T Weighted](rng *rand.Rand, candidates []T) T {
	var zero T
	if len(candidates) == 0 {
		return zero
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	var total float64
	for _, c := range candidates {
		w := c.SelectionWeight()
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		// No positive weights: fall back to uniform choice rather than
		// always picking the first candidate.
		return candidates[rng.Intn(len(candidates))]
	}

	r := rng.Float64() * total
	var cumulative float64
	for _, c := range candidates {
		w := c.SelectionWeight()
		if w <= 0 {
			continue
		}
		cumulative += w
		if r < cumulative {
			return c
		}
	}
	return candidates[len(candidates)-1]
}
