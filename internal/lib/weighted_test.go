package lib

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

type weightedItem struct {
	name   string
	weight float64
}

func (w weightedItem) SelectionWeight() float64 { return w.weight }

func TestChooseSingleCandidateIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	only := weightedItem{name: "a", weight: 3}
	for i := 0; i < 10; i++ {
		assert.Equal(t, only, Choose(rng, []weightedItem{only}))
	}
}

func TestChooseEmptyReturnsZeroValue(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, weightedItem{}, Choose(rng, nil))
}

// TestChooseRespectsWeightProportions verifies the scenario-selection
// invariant: over many draws, observed frequency tracks the configured
// weight proportion.
func TestChooseRespectsWeightProportions(t *testing.T) {
	candidates := []weightedItem{
		{name: "heavy", weight: 9},
		{name: "light", weight: 1},
	}
	rng := rand.New(rand.NewSource(7))
	counts := map[string]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		counts[Choose(rng, candidates).name]++
	}
	heavyFraction := float64(counts["heavy"]) / float64(n)
	assert.InDelta(t, 0.9, heavyFraction, 0.02)
}

func TestChooseFallsBackToUniformWhenAllWeightsNonPositive(t *testing.T) {
	candidates := []weightedItem{{name: "a", weight: 0}, {name: "b", weight: 0}}
	rng := rand.New(rand.NewSource(3))
	counts := map[string]int{}
	const n = 2000
	for i := 0; i < n; i++ {
		counts[Choose(rng, candidates).name]++
	}
	assert.Greater(t, counts["a"], 0)
	assert.Greater(t, counts["b"], 0)
}
