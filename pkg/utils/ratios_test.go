package utils

import (
	"math"
	"testing"
)

func TestSharpe(t *testing.T) {
	got, ok := Sharpe([]float64{0.01, 0.02, 0.03}, 0)
	if !ok {
		t.Fatal("Sharpe should be defined")
	}
	if math.Abs(got-2.0) > 1e-6 {
		t.Errorf("Sharpe = %v, want 2", got)
	}

	for _, returns := range [][]float64{nil, {0.05}, {0.01, 0.01}} {
		if _, ok := Sharpe(returns, 0); ok {
			t.Errorf("Sharpe(%v) should be undefined", returns)
		}
	}
}

func TestSortino(t *testing.T) {
	got, ok := Sortino([]float64{0.03, -0.01}, 0)
	if !ok {
		t.Fatal("Sortino should be defined")
	}
	if math.Abs(got-math.Sqrt2) > 1e-6 {
		t.Errorf("Sortino = %v, want %v", got, math.Sqrt2)
	}

	if _, ok := Sortino([]float64{0.01, 0.02}, 0); ok {
		t.Error("Sortino without losing returns should be undefined")
	}
	if _, ok := Sortino(nil, 0); ok {
		t.Error("Sortino of no returns should be undefined")
	}
}
