package ui

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressBarStringRendersFilledAndRemainingWidth(t *testing.T) {
	b := ProgressBar{
		Width:    10,
		Progress: 0.5,
		Left:     func() string { return "vus=5" },
		Right:    func() string { return "rps=10.0" },
	}
	assert.Equal(t, "vus=5 [=====     ] rps=10.0", b.String())
}

func TestProgressBarStringDefaultsWidthWhenUnset(t *testing.T) {
	b := ProgressBar{Progress: 0}
	s := b.String()
	assert.Contains(t, s, "[")
	assert.Len(t, s, len(" [] ")+40)
}

func TestProgressBarStringClampsOutOfRangeProgress(t *testing.T) {
	over := ProgressBar{Width: 10, Progress: 1.5}
	assert.Equal(t, " [          ] ", over.String())

	negative := ProgressBar{Width: 10, Progress: -1}
	assert.Equal(t, " [          ] ", negative.String())
}

func TestProgressBarStringTreatsNaNAsZero(t *testing.T) {
	nan := ProgressBar{Width: 10, Progress: nanValue()}
	assert.Equal(t, " [          ] ", nan.String())
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestProgressBarStringFullProgressFillsEntireBar(t *testing.T) {
	full := ProgressBar{Width: 4, Progress: 1}
	assert.Equal(t, " [====] ", full.String())
}

func TestAtomicFractionDividesCurrentByTotal(t *testing.T) {
	var current, total uint64
	atomic.StoreUint64(&current, 25)
	atomic.StoreUint64(&total, 100)
	assert.InDelta(t, 0.25, AtomicFraction(&current, &total), 0.0001)
}

func TestAtomicFractionZeroTotalIsZero(t *testing.T) {
	var current, total uint64
	atomic.StoreUint64(&current, 5)
	assert.Equal(t, float64(0), AtomicFraction(&current, &total))
}
