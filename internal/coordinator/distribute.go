package coordinator

import (
	"fmt"

	"github.com/loadvane/corrida/internal/config"
)

// Strategy is a load-distribution strategy name.
type Strategy string

const (
	StrategyEven          Strategy = "even"
	StrategyCapacityBased Strategy = "capacity_based"
	StrategyRoundRobin    Strategy = "round_robin"
	StrategyGeographic    Strategy = "geographic"
)

// Assignment is one worker's sub-config plus the region it was assigned
// under (empty for non-geographic strategies).
type Assignment struct {
	Worker config.WorkerDescriptor
	Config config.Test
	Region string
}

// Distribute turns one test configuration into N worker-local
// sub-configurations. Each worker receives a sub-config with its share of
// VUs and any ramp-up scaled to preserve the aggregate ramp profile.
func Distribute(test config.Test, workers []config.WorkerDescriptor, strategy Strategy) ([]Assignment, error) {
	if len(workers) == 0 {
		return nil, fmt.Errorf("distribute: no workers")
	}
	switch strategy {
	case "", StrategyCapacityBased:
		return distributeCapacityBased(test, workers)
	case StrategyEven:
		return distributeEven(test, workers)
	case StrategyRoundRobin:
		return distributeRoundRobin(test, workers)
	case StrategyGeographic:
		return distributeGeographic(test, workers)
	default:
		return nil, fmt.Errorf("distribute: unknown strategy %q", strategy)
	}
}

// splitShares divides total into len(weights) integer shares proportional
// to weights, with every fractional remainder resolved by largest-
// remainder apportionment so the shares always sum to total exactly.
func splitShares(total int, weights []float64) []int {
	n := len(weights)
	shares := make([]int, n)
	if n == 0 || total <= 0 {
		return shares
	}
	var weightSum float64
	for _, w := range weights {
		weightSum += w
	}
	if weightSum <= 0 {
		return distributeRemainder(make([]int, n), total)
	}

	type remainder struct {
		idx  int
		frac float64
	}
	remainders := make([]remainder, n)
	assigned := 0
	for i, w := range weights {
		exact := float64(total) * w / weightSum
		whole := int(exact)
		shares[i] = whole
		remainders[i] = remainder{idx: i, frac: exact - float64(whole)}
		assigned += whole
	}
	left := total - assigned
	for left > 0 {
		best := 0
		for i := 1; i < len(remainders); i++ {
			if remainders[i].frac > remainders[best].frac {
				best = i
			}
		}
		shares[remainders[best].idx]++
		remainders[best].frac = -1 // consumed
		left--
	}
	return shares
}

// distributeRemainder splits total evenly across n shares, handing any
// remainder to the first workers.
func distributeRemainder(shares []int, total int) []int {
	n := len(shares)
	if n == 0 {
		return shares
	}
	base := total / n
	rem := total % n
	for i := range shares {
		shares[i] = base
		if i < rem {
			shares[i]++
		}
	}
	return shares
}

func distributeEven(test config.Test, workers []config.WorkerDescriptor) ([]Assignment, error) {
	return distributeByShares(test, workers, func(phase config.Phase) []int {
		return distributeRemainder(make([]int, len(workers)), phase.VirtualUsers)
	})
}

func distributeCapacityBased(test config.Test, workers []config.WorkerDescriptor) ([]Assignment, error) {
	weights := make([]float64, len(workers))
	for i, w := range workers {
		if w.Capacity <= 0 {
			weights[i] = 1
		} else {
			weights[i] = float64(w.Capacity)
		}
	}
	return distributeByShares(test, workers, func(phase config.Phase) []int {
		return splitShares(phase.VirtualUsers, weights)
	})
}

// distributeByShares builds one Assignment per worker, scaling every
// basic-pattern phase's VirtualUsers (and every stepping stage's Users) by
// the given per-phase share function while leaving the ramp-up duration
// untouched — the ramp happens over the same wall-clock window on every
// worker, which is what "preserve the aggregate ramp profile" means for a
// duration-shaped ramp.
func distributeByShares(test config.Test, workers []config.WorkerDescriptor, shareFn func(config.Phase) []int) ([]Assignment, error) {
	n := len(workers)
	assignments := make([]Assignment, n)
	for i, w := range workers {
		sub := test
		sub.Workers = nil
		phases := make([]config.Phase, len(test.Load.Phases))
		copy(phases, test.Load.Phases)
		for pi, phase := range test.Load.Phases {
			if phase.Pattern == config.PatternStepping {
				steps := make([]config.Stage, len(phase.Steps))
				copy(steps, phase.Steps)
				for si, stage := range phase.Steps {
					shares := shareFn(config.Phase{Pattern: config.PatternBasic, VirtualUsers: stage.Users})
					steps[si].Users = shares[i]
				}
				phase.Steps = steps
			} else if phase.Pattern == config.PatternArrivals {
				phase.Rate = phase.Rate / float64(n)
				if phase.MaxVUs > 0 {
					phase.MaxVUs = (phase.MaxVUs + n - 1) / n
				}
			} else {
				shares := shareFn(phase)
				phase.VirtualUsers = shares[i]
			}
			phases[pi] = phase
		}
		sub.Load = config.Load{Phases: phases}
		assignments[i] = Assignment{Worker: w, Config: sub}
	}
	return assignments, nil
}

// distributeRoundRobin rotates stepping-phase stage assignment across
// workers in round-robin order: worker i gets every stage whose index mod
// n equals i at full strength, and zero elsewhere. For basic/arrivals
// phases it falls back to even split, since "rotates step assignment" is
// meaningful only for the stepping pattern's discrete stage list.
func distributeRoundRobin(test config.Test, workers []config.WorkerDescriptor) ([]Assignment, error) {
	n := len(workers)
	assignments := make([]Assignment, n)
	for i, w := range workers {
		sub := test
		sub.Workers = nil
		phases := make([]config.Phase, len(test.Load.Phases))
		copy(phases, test.Load.Phases)
		for pi, phase := range test.Load.Phases {
			switch phase.Pattern {
			case config.PatternStepping:
				steps := make([]config.Stage, len(phase.Steps))
				for si, stage := range phase.Steps {
					if si%n == i {
						steps[si] = stage
					} else {
						steps[si] = config.Stage{Duration: stage.Duration, RampUp: stage.RampUp}
					}
				}
				phase.Steps = steps
			case config.PatternArrivals:
				phase.Rate = phase.Rate / float64(n)
				if phase.MaxVUs > 0 {
					phase.MaxVUs = (phase.MaxVUs + n - 1) / n
				}
			default:
				shares := distributeRemainder(make([]int, n), phase.VirtualUsers)
				phase.VirtualUsers = shares[i]
			}
			phases[pi] = phase
		}
		sub.Load = config.Load{Phases: phases}
		assignments[i] = Assignment{Worker: w, Config: sub}
	}
	return assignments, nil
}

// distributeGeographic splits VUs across all workers by capacity weight,
// exactly as capacity_based does, and tags each Assignment with its
// worker's Region ("default" when empty). Workers are not grouped by
// region, and no inter-region balance is recorded on the Assignment.
func distributeGeographic(test config.Test, workers []config.WorkerDescriptor) ([]Assignment, error) {
	assignments, err := distributeCapacityBased(test, workers)
	if err != nil {
		return nil, err
	}
	for i := range assignments {
		region := workers[i].Region
		if region == "" {
			region = "default"
		}
		assignments[i].Region = region
	}
	return assignments, nil
}
