// Package checks implements the step-level assertions run against a
// protocol adapter's result.
package checks

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/extract"
)

// Subject bundles everything a check's target expression can reference.
type Subject struct {
	StatusCode   int
	ResponseTime float64 // ms
	Response     extract.Response
}

// Evaluate runs every check in declaration order, recording every failure
// rather than stopping at the first one. It returns the failure
// descriptions in order; an empty slice means every check passed.
func Evaluate(checks []config.Check, subj Subject) []string {
	var failures []string
	for _, c := range checks {
		if err := evaluateOne(c, subj); err != nil {
			name := c.Name
			if name == "" {
				name = c.Target
			}
			failures = append(failures, fmt.Sprintf("%s: %s", name, err.Error()))
		}
	}
	return failures
}

func evaluateOne(c config.Check, subj Subject) error {
	actual, exists, err := resolveTarget(c.Target, subj)
	if err != nil {
		return err
	}

	switch c.Operator {
	case "exists":
		if !exists {
			return fmt.Errorf("target %q does not exist", c.Target)
		}
		return nil
	case "equals":
		if !exists {
			return fmt.Errorf("target %q does not exist", c.Target)
		}
		if fmt.Sprintf("%v", actual) != fmt.Sprintf("%v", c.Value) {
			return fmt.Errorf("expected %v, got %v", c.Value, actual)
		}
		return nil
	case "contains":
		if !exists {
			return fmt.Errorf("target %q does not exist", c.Target)
		}
		haystack := fmt.Sprintf("%v", actual)
		needle := fmt.Sprintf("%v", c.Value)
		if !strings.Contains(haystack, needle) {
			return fmt.Errorf("expected %q to contain %q", haystack, needle)
		}
		return nil
	case "lt", "lte", "gt", "gte":
		if !exists {
			return fmt.Errorf("target %q does not exist", c.Target)
		}
		af, aerr := toFloat(actual)
		vf, verr := toFloat(c.Value)
		if aerr != nil || verr != nil {
			return fmt.Errorf("numeric comparison requires numeric values, got %v and %v", actual, c.Value)
		}
		ok := false
		switch c.Operator {
		case "lt":
			ok = af < vf
		case "lte":
			ok = af <= vf
		case "gt":
			ok = af > vf
		case "gte":
			ok = af >= vf
		}
		if !ok {
			return fmt.Errorf("expected %v %s %v", af, c.Operator, vf)
		}
		return nil
	default:
		return fmt.Errorf("unknown check operator %q", c.Operator)
	}
}

// resolveTarget reads the named subject — "status", "response_time",
// "json:<path>", "text", "selector:<css>" — returning (value, exists, err).
func resolveTarget(target string, subj Subject) (interface{}, bool, error) {
	switch {
	case target == "status":
		return subj.StatusCode, true, nil
	case target == "response_time":
		return subj.ResponseTime, true, nil
	case target == "text":
		return subj.Response.Body, subj.Response.Body != "", nil
	case strings.HasPrefix(target, "json:"):
		path := strings.TrimPrefix(target, "json:")
		r := gjson.Get(subj.Response.Body, path)
		return r.Value(), r.Exists(), nil
	case strings.HasPrefix(target, "selector:"):
		sel := strings.TrimPrefix(target, "selector:")
		if subj.Response.HTML == nil {
			return nil, false, fmt.Errorf("selector checks require an HTML document")
		}
		found := subj.Response.HTML.Find(sel)
		if found.Length() == 0 {
			return nil, false, nil
		}
		return strings.TrimSpace(found.First().Text()), true, nil
	case strings.HasPrefix(target, "header:"):
		name := strings.TrimPrefix(target, "header:")
		for k, v := range subj.Response.Headers {
			if strings.EqualFold(k, name) {
				return v, true, nil
			}
		}
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("unknown check target %q", target)
	}
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, fmt.Errorf("cannot coerce %T to a number", v)
	}
}
