package config

import (
	"fmt"

	"github.com/loadvane/corrida/internal/errext"
)

// Validate runs the pre-flight checks the scheduler relies on having
// already passed. It aggregates every problem it finds into a single
// errext.Exception of kind config_invalid rather than failing on the first
// one, so a `run --dry-run` invocation can report everything wrong with a
// config at once.
func Validate(t *Test) error {
	var problems []string

	if len(t.Scenarios) == 0 {
		problems = append(problems, "at least one scenario is required")
	}

	var weightSum float64
	names := map[string]bool{}
	for i, s := range t.Scenarios {
		if s.Name == "" {
			problems = append(problems, fmt.Sprintf("scenarios[%d]: name is required", i))
		} else if names[s.Name] {
			problems = append(problems, fmt.Sprintf("scenarios[%d]: duplicate scenario name %q", i, s.Name))
		}
		names[s.Name] = true
		if s.Weight < 0 {
			problems = append(problems, fmt.Sprintf("scenario %q: weight must be >= 0", s.Name))
		}
		weightSum += s.Weight
		if len(s.Steps) == 0 {
			problems = append(problems, fmt.Sprintf("scenario %q: at least one step is required", s.Name))
		}
		for j, step := range s.Steps {
			if err := validateStep(s.Name, j, step); err != nil {
				problems = append(problems, err.Error())
			}
		}
		if s.CSV != nil {
			switch s.CSV.Mode {
			case "unique", "next", "random":
			default:
				problems = append(problems, fmt.Sprintf("scenario %q: csv.mode must be one of unique|next|random", s.Name))
			}
			switch s.CSV.Exhaustion {
			case "cycle", "stop-vu":
			default:
				problems = append(problems, fmt.Sprintf("scenario %q: csv.exhaustion must be cycle|stop-vu", s.Name))
			}
		}
	}
	if len(t.Scenarios) > 0 && weightSum <= 0 {
		problems = append(problems, "scenario weights must sum to a positive value")
	}

	if len(t.Load.Phases) == 0 {
		problems = append(problems, "at least one load phase is required")
	}
	for i, p := range t.Load.Phases {
		switch p.Pattern {
		case PatternBasic:
			if p.VirtualUsers < 0 {
				problems = append(problems, fmt.Sprintf("load.phases[%d]: virtual_users must be >= 0", i))
			}
		case PatternStepping:
			if len(p.Steps) == 0 {
				problems = append(problems, fmt.Sprintf("load.phases[%d]: stepping pattern requires at least one step tuple", i))
			}
		case PatternArrivals:
			if p.Rate <= 0 {
				problems = append(problems, fmt.Sprintf("load.phases[%d]: arrivals pattern requires rate > 0", i))
			}
		default:
			problems = append(problems, fmt.Sprintf("load.phases[%d]: pattern must be basic|stepping|arrivals, got %q", i, p.Pattern))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	msg := fmt.Sprintf("%d configuration problem(s): %v", len(problems), problems)
	return errext.New(errext.KindConfigInvalid, msg)
}

func validateStep(scenario string, idx int, step Step) error {
	count := 0
	if step.REST != nil {
		count++
	}
	if step.SOAP != nil {
		count++
	}
	if step.Web != nil {
		count++
	}
	if step.Wait != nil {
		count++
	}
	if step.Custom != nil {
		count++
	}
	if step.Script != nil {
		count++
	}
	if count != 1 {
		return fmt.Errorf("scenario %q step[%d]: exactly one of rest|soap|web|wait|custom|script must be set, found %d", scenario, idx, count)
	}
	if step.Retry != nil && step.Retry.Backoff != "" &&
		step.Retry.Backoff != "linear" && step.Retry.Backoff != "exponential" {
		return fmt.Errorf("scenario %q step[%d]: retry.backoff must be linear|exponential", scenario, idx)
	}
	return nil
}
