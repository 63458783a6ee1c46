package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadvane/corrida/internal/config"
)

func basicTest(vus int) config.Test {
	return config.Test{
		Name: "t",
		Load: config.Load{Phases: []config.Phase{
			{Pattern: config.PatternBasic, VirtualUsers: vus},
		}},
	}
}

func TestSplitSharesSumsToTotal(t *testing.T) {
	cases := []struct {
		total   int
		weights []float64
	}{
		{100, []float64{1, 1}},
		{100, []float64{1, 2, 3}},
		{7, []float64{1, 1, 1}},
		{0, []float64{1, 1}},
		{5, []float64{0, 0}},
		{1000, []float64{1, 1, 1, 1, 1, 1, 1}},
	}
	for _, c := range cases {
		shares := splitShares(c.total, c.weights)
		var sum int
		for _, s := range shares {
			sum += s
			assert.GreaterOrEqual(t, s, 0)
		}
		assert.Equal(t, c.total, sum)
	}
}

// TestDistributeEvenSplitsWithRemainderToFirstWorkers verifies the
// distributed-aggregate property: worker shares sum to the total.
func TestDistributeEvenSplitsWithRemainderToFirstWorkers(t *testing.T) {
	test := basicTest(100)
	workers := []config.WorkerDescriptor{{Host: "a"}, {Host: "b"}}

	assignments, err := Distribute(test, workers, StrategyEven)
	require.NoError(t, err)
	require.Len(t, assignments, 2)

	total := 0
	for _, a := range assignments {
		total += a.Config.Load.Phases[0].VirtualUsers
	}
	assert.Equal(t, 100, total)
	// 100 VUs split evenly across 2 workers: 50/50, no remainder.
	assert.Equal(t, 50, assignments[0].Config.Load.Phases[0].VirtualUsers)
	assert.Equal(t, 50, assignments[1].Config.Load.Phases[0].VirtualUsers)
}

func TestDistributeCapacityBasedWeightsByCapacity(t *testing.T) {
	test := basicTest(100)
	workers := []config.WorkerDescriptor{
		{Host: "a", Capacity: 1},
		{Host: "b", Capacity: 3},
	}

	assignments, err := Distribute(test, workers, StrategyCapacityBased)
	require.NoError(t, err)

	total := 0
	for _, a := range assignments {
		total += a.Config.Load.Phases[0].VirtualUsers
	}
	assert.Equal(t, 100, total)
	assert.Equal(t, 25, assignments[0].Config.Load.Phases[0].VirtualUsers)
	assert.Equal(t, 75, assignments[1].Config.Load.Phases[0].VirtualUsers)
}

func TestDistributeDefaultsToCapacityBased(t *testing.T) {
	test := basicTest(100)
	workers := []config.WorkerDescriptor{{Host: "a", Capacity: 2}, {Host: "b", Capacity: 2}}

	a1, err := Distribute(test, workers, "")
	require.NoError(t, err)
	a2, err := Distribute(test, workers, StrategyCapacityBased)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
}

func TestDistributeGeographicAnnotatesRegion(t *testing.T) {
	test := basicTest(50)
	workers := []config.WorkerDescriptor{
		{Host: "a", Region: "us-east"},
		{Host: "b", Region: ""},
	}

	assignments, err := Distribute(test, workers, StrategyGeographic)
	require.NoError(t, err)
	assert.Equal(t, "us-east", assignments[0].Region)
	assert.Equal(t, "default", assignments[1].Region)
}

func TestDistributeUnknownStrategyErrors(t *testing.T) {
	test := basicTest(10)
	workers := []config.WorkerDescriptor{{Host: "a"}}
	_, err := Distribute(test, workers, "bogus")
	assert.Error(t, err)
}

func TestDistributeNoWorkersErrors(t *testing.T) {
	_, err := Distribute(basicTest(10), nil, StrategyEven)
	assert.Error(t, err)
}

func TestDistributeSteppingSumsPerStage(t *testing.T) {
	test := config.Test{
		Name: "t",
		Load: config.Load{Phases: []config.Phase{
			{Pattern: config.PatternStepping, Steps: []config.Stage{
				{Users: 10}, {Users: 20}, {Users: 5},
			}},
		}},
	}
	workers := []config.WorkerDescriptor{{Host: "a", Capacity: 1}, {Host: "b", Capacity: 1}}

	assignments, err := Distribute(test, workers, StrategyCapacityBased)
	require.NoError(t, err)

	for si, want := range []int{10, 20, 5} {
		sum := 0
		for _, a := range assignments {
			sum += a.Config.Load.Phases[0].Steps[si].Users
		}
		assert.Equal(t, want, sum)
	}
}

func TestDistributeArrivalsDividesRateAcrossWorkers(t *testing.T) {
	test := config.Test{
		Name: "t",
		Load: config.Load{Phases: []config.Phase{
			{Pattern: config.PatternArrivals, Rate: 100, MaxVUs: 50},
		}},
	}
	workers := []config.WorkerDescriptor{{Host: "a"}, {Host: "b"}}

	assignments, err := Distribute(test, workers, StrategyEven)
	require.NoError(t, err)
	for _, a := range assignments {
		assert.InDelta(t, 50, a.Config.Load.Phases[0].Rate, 1e-9)
		assert.Equal(t, 25, a.Config.Load.Phases[0].MaxVUs)
	}
}
