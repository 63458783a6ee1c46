package lib

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// ThinkTime is a parsed per-step or global think-time value: <n>, <n>-<m>,
// <n>s, <n>ms — an absolute delay or a uniform-random range.
type ThinkTime struct {
	Min time.Duration
	Max time.Duration
}

// ParseThinkTime parses one of the four literal forms. A bare number is
// seconds, matching the duration-literal convention used elsewhere in the
// config: <n>, <n>s, <n>ms, <n>m.
func ParseThinkTime(spec string) (ThinkTime, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return ThinkTime{}, nil
	}
	if lo, hi, ok := strings.Cut(spec, "-"); ok {
		minD, err := parseOneDuration(lo)
		if err != nil {
			return ThinkTime{}, err
		}
		maxD, err := parseOneDuration(hi)
		if err != nil {
			return ThinkTime{}, err
		}
		if maxD < minD {
			minD, maxD = maxD, minD
		}
		return ThinkTime{Min: minD, Max: maxD}, nil
	}
	d, err := parseOneDuration(spec)
	if err != nil {
		return ThinkTime{}, err
	}
	return ThinkTime{Min: d, Max: d}, nil
}

func parseOneDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid think-time %q: %w", s, err)
	}
	return d, nil
}

// Sample draws a delay from the range, uniformly at random when Min != Max.
func (t ThinkTime) Sample(rng *rand.Rand) time.Duration {
	if t.Max <= t.Min {
		return t.Min
	}
	span := t.Max - t.Min
	return t.Min + time.Duration(rng.Int63n(int64(span)+1))
}

// IsZero reports whether this think-time spec is a no-op.
func (t ThinkTime) IsZero() bool {
	return t.Min == 0 && t.Max == 0
}
