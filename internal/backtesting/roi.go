package backtesting

import (
	"fmt"
	"math"
	"sort"
)

type roiStep struct {
	minutes int
	percent float64
}

// ROITable maps minimum hold minutes to the profit percent required to take
// profit. An empty table never fires.
type ROITable struct {
	steps []roiStep
}

// NewROITable builds a table from minutes -> percent. Keys must be
// non-negative, and the required profit may not grow with hold time.
func NewROITable(m map[int]float64) (ROITable, error) {
	steps := make([]roiStep, 0, len(m))
	for minutes, pct := range m {
		if minutes < 0 {
			return ROITable{}, fmt.Errorf("negative hold time %d: %w", minutes, ErrMalformedROI)
		}
		if math.IsNaN(pct) || math.IsInf(pct, 0) {
			return ROITable{}, fmt.Errorf("invalid percent at %d minutes: %w", minutes, ErrMalformedROI)
		}
		steps = append(steps, roiStep{minutes: minutes, percent: pct})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].minutes < steps[j].minutes })

	for i := 1; i < len(steps); i++ {
		if steps[i].percent > steps[i-1].percent {
			return ROITable{}, fmt.Errorf("%v%% at %d minutes exceeds %v%% at %d minutes: %w",
				steps[i].percent, steps[i].minutes, steps[i-1].percent, steps[i-1].minutes, ErrMalformedROI)
		}
	}
	return ROITable{steps: steps}, nil
}

// MustROITable is like NewROITable but panics on error.
func MustROITable(m map[int]float64) ROITable {
	t, err := NewROITable(m)
	if err != nil {
		panic(err)
	}
	return t
}

// Required returns the percent of the largest key not above holdMinutes.
func (t ROITable) Required(holdMinutes float64) (float64, bool) {
	pct, ok := 0.0, false
	for _, s := range t.steps {
		if float64(s.minutes) > holdMinutes {
			break
		}
		pct, ok = s.percent, true
	}
	return pct, ok
}

// IsEmpty reports whether ROI exits are disabled.
func (t ROITable) IsEmpty() bool {
	return len(t.steps) == 0
}

// Map returns the table as minutes -> percent.
func (t ROITable) Map() map[int]float64 {
	out := make(map[int]float64, len(t.steps))
	for _, s := range t.steps {
		out[s.minutes] = s.percent
	}
	return out
}
