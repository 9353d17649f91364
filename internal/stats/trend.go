package stats

import "time"

// TrendDirection classifies sustained movement.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendFlat      TrendDirection = "flat"
)

// TrendShape classifies how the rate of change itself is changing,
// from the first difference of the first difference.
type TrendShape string

const (
	ShapeAccelerating TrendShape = "accelerating"
	ShapeDecelerating TrendShape = "decelerating"
	ShapeSteady       TrendShape = "steady"
)

// Trend summarizes consecutive-direction movement at the end of a series.
type Trend struct {
	Direction TrendDirection
	// Consecutive is the run length of same-direction periods ending at
	// the latest value. A 3-month decline has Consecutive == 3.
	Consecutive int
	// TotalChangePct is the percent change across the run.
	TotalChangePct float64
	Shape          TrendShape
}

// shapeTolerance ignores second-difference noise below this fraction of
// the mean absolute first difference.
const shapeTolerance = 0.15

// ComputeTrend counts consecutive same-direction periods at the tail of
// the series and classifies acceleration. Requires MinDataPoints values.
func ComputeTrend(values []float64) (Trend, error) {
	if len(values) < MinDataPoints {
		return Trend{}, ErrInsufficientData
	}

	diffs := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		diffs[i-1] = values[i] - values[i-1]
	}

	last := diffs[len(diffs)-1]
	t := Trend{Direction: TrendFlat, Shape: ShapeSteady}
	if last == 0 {
		return t, nil
	}
	if last > 0 {
		t.Direction = TrendImproving
	} else {
		t.Direction = TrendDeclining
	}

	// Run length of same-sign first differences from the tail.
	for i := len(diffs) - 1; i >= 0; i-- {
		if (diffs[i] > 0) != (last > 0) || diffs[i] == 0 {
			break
		}
		t.Consecutive++
	}

	start := values[len(values)-1-t.Consecutive]
	if start != 0 {
		t.TotalChangePct = (values[len(values)-1] - start) / start * 100
	}

	if t.Consecutive >= 2 {
		t.Shape = classifyShape(diffs[len(diffs)-t.Consecutive:])
	}
	return t, nil
}

// classifyShape looks at the second difference over the run. Movement
// whose steps are growing in magnitude is accelerating; shrinking steps
// are decelerating.
func classifyShape(runDiffs []float64) TrendShape {
	var meanAbs float64
	for _, d := range runDiffs {
		if d < 0 {
			meanAbs -= d
		} else {
			meanAbs += d
		}
	}
	meanAbs /= float64(len(runDiffs))
	if meanAbs == 0 {
		return ShapeSteady
	}

	var second float64
	for i := 1; i < len(runDiffs); i++ {
		a, b := runDiffs[i-1], runDiffs[i]
		if a < 0 {
			a = -a
		}
		if b < 0 {
			b = -b
		}
		second += b - a
	}
	second /= float64(len(runDiffs) - 1)

	switch {
	case second > shapeTolerance*meanAbs:
		return ShapeAccelerating
	case second < -shapeTolerance*meanAbs:
		return ShapeDecelerating
	default:
		return ShapeSteady
	}
}

// SeasonalComparison relates the current period to the same period a
// season ago (same month last year, or same weekday last week).
type SeasonalComparison struct {
	Current   float64
	Reference float64
	ChangePct float64
}

// CompareSamePeriodLastYear finds the value dated one year before the
// final period. Returns ErrInsufficientData when history does not reach
// back that far; seasonality is then skipped, never approximated.
func CompareSamePeriodLastYear(periods []time.Time, values []float64) (SeasonalComparison, error) {
	if len(values) == 0 || len(periods) != len(values) {
		return SeasonalComparison{}, ErrInsufficientData
	}
	curPeriod := periods[len(periods)-1]
	cur := values[len(values)-1]
	want := curPeriod.AddDate(-1, 0, 0)

	for i, p := range periods {
		if p.Year() == want.Year() && p.Month() == want.Month() && sameDayOrMonthly(p, want) {
			if values[i] == 0 {
				return SeasonalComparison{}, ErrInsufficientData
			}
			return SeasonalComparison{
				Current:   cur,
				Reference: values[i],
				ChangePct: (cur - values[i]) / values[i] * 100,
			}, nil
		}
	}
	return SeasonalComparison{}, ErrInsufficientData
}

// sameDayOrMonthly treats first-of-month rows as monthly aggregates and
// matches them on month alone.
func sameDayOrMonthly(p, want time.Time) bool {
	if p.Day() == 1 && want.Day() <= 28 {
		return true
	}
	return p.Day() == want.Day()
}

// CompareSameWeekday averages prior values falling on the same weekday as
// the final period. Requires at least minSamples prior weekday values.
func CompareSameWeekday(periods []time.Time, values []float64, minSamples int) (SeasonalComparison, error) {
	if len(values) == 0 || len(periods) != len(values) {
		return SeasonalComparison{}, ErrInsufficientData
	}
	if minSamples < 1 {
		minSamples = 1
	}

	n := len(values) - 1
	weekday := periods[n].Weekday()
	var sum float64
	var count int
	for i := 0; i < n; i++ {
		if periods[i].Weekday() == weekday {
			sum += values[i]
			count++
		}
	}
	if count < minSamples || sum == 0 {
		return SeasonalComparison{}, ErrInsufficientData
	}

	ref := sum / float64(count)
	return SeasonalComparison{
		Current:   values[n],
		Reference: ref,
		ChangePct: (values[n] - ref) / ref * 100,
	}, nil
}
