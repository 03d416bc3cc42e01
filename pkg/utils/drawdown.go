package utils

import "math"

// Drawdown locates the deepest drop of an equity series below its running peak.
type Drawdown struct {
	Ratio         float64 // min(series / cummax(series)) - 1, always <= 0
	PeakIndex     int     // running peak in force at the bottom
	BottomIndex   int
	RecoveryIndex int // first index after the bottom back at the peak, -1 if none
}

// MaxDrawdownRatio returns min(series / cummax(series)) - 1. Empty, single
// point and non-decreasing series return 0.
func MaxDrawdownRatio(series []float64) float64 {
	return MaxDrawdown(series).Ratio
}

// MaxDrawdown is MaxDrawdownRatio with the peak, bottom and recovery indices.
// NaN and non-positive points never become a peak.
func MaxDrawdown(series []float64) Drawdown {
	dd := Drawdown{RecoveryIndex: -1}

	peakIdx := -1
	peak := 0.0
	for i, v := range series {
		if math.IsNaN(v) {
			continue
		}
		if peakIdx < 0 || v > peak {
			if v > 0 {
				peakIdx, peak = i, v
			}
			continue
		}
		ratio := v/peak - 1
		if ratio < dd.Ratio {
			dd.Ratio = ratio
			dd.PeakIndex = peakIdx
			dd.BottomIndex = i
		}
	}

	if dd.Ratio == 0 {
		return dd
	}

	target := series[dd.PeakIndex]
	for i := dd.BottomIndex + 1; i < len(series); i++ {
		if series[i] >= target {
			dd.RecoveryIndex = i
			break
		}
	}
	return dd
}

// DrawdownSpan is the longest stretch between a running peak and the point
// where the series gets back to it.
type DrawdownSpan struct {
	Length int // in series steps
	Start  int // index of the peak
	End    int // index of the recovery, or the last index when unresolved

	// IsOngoing is set when the longest span is still unresolved at the end
	// of the series.
	IsOngoing bool
	// Unresolved is set when the series ends below its running peak.
	Unresolved bool
}

// LongestDrawdown scans peak/recovery transitions and returns the longest
// span. Empty and single point series return a zero span.
func LongestDrawdown(series []float64) DrawdownSpan {
	var best DrawdownSpan
	if len(series) < 2 {
		return best
	}

	peakIdx := 0
	peak := series[0]
	inDrawdown := false

	for i := 1; i < len(series); i++ {
		v := series[i]
		if math.IsNaN(v) {
			continue
		}
		if v >= peak {
			if inDrawdown && i-peakIdx > best.Length {
				best = DrawdownSpan{Length: i - peakIdx, Start: peakIdx, End: i}
			}
			peakIdx, peak, inDrawdown = i, v, false
			continue
		}
		inDrawdown = true
	}

	if inDrawdown {
		last := len(series) - 1
		best.Unresolved = true
		if last-peakIdx >= best.Length {
			best.Length = last - peakIdx
			best.Start = peakIdx
			best.End = last
			best.IsOngoing = true
		}
	}
	return best
}
