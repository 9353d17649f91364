package stats

import (
	"math"
	"sort"
)

// Bounds keeping causation analysis latency predictable per entity.
const (
	// MaxLag caps how many periods a driver may lead the target.
	MaxLag = 3
	// MaxDriverCandidates caps how many candidate series are analyzed.
	MaxDriverCandidates = 10
	// minOverlap is the minimum paired observations for a correlation.
	minOverlap = 4
)

// Driver is an associated driver candidate for a target KPI: the driver
// series shifted by Lag periods correlates with the target at Strength.
// This is correlation, never asserted as causal fact.
type Driver struct {
	Name     string
	Lag      int
	Strength float64 // Pearson r at the best lag, signed
}

// AbsStrength returns |r| for ranking.
func (d Driver) AbsStrength() float64 { return math.Abs(d.Strength) }

// RankDrivers evaluates each candidate series against the target at lags
// 0..maxLag and returns candidates ranked by |correlation| at their best
// lag, strongest first. Candidates beyond MaxDriverCandidates are
// ignored; candidates with too little overlap are skipped.
func RankDrivers(target []float64, candidates map[string][]float64, maxLag int) []Driver {
	if maxLag <= 0 || maxLag > MaxLag {
		maxLag = MaxLag
	}

	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > MaxDriverCandidates {
		names = names[:MaxDriverCandidates]
	}

	var out []Driver
	for _, name := range names {
		d, ok := bestLag(target, candidates[name], maxLag)
		if !ok {
			continue
		}
		d.Name = name
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AbsStrength() != out[j].AbsStrength() {
			return out[i].AbsStrength() > out[j].AbsStrength()
		}
		// Deterministic order for equal strength: smaller lag, then name.
		if out[i].Lag != out[j].Lag {
			return out[i].Lag < out[j].Lag
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// bestLag finds the lag in [0, maxLag] with the highest |r|.
func bestLag(target, driver []float64, maxLag int) (Driver, bool) {
	best := Driver{}
	found := false
	for lag := 0; lag <= maxLag; lag++ {
		r, ok := LaggedCorrelation(target, driver, lag)
		if !ok {
			continue
		}
		if !found || math.Abs(r) > math.Abs(best.Strength) {
			best = Driver{Lag: lag, Strength: r}
			found = true
		}
	}
	return best, found
}

// LaggedCorrelation computes the Pearson correlation between target[t]
// and driver[t-lag]: how well the driver's past predicts the target's
// present. ok is false when the overlap is shorter than minOverlap or
// either side has zero variance.
func LaggedCorrelation(target, driver []float64, lag int) (float64, bool) {
	if lag < 0 {
		return 0, false
	}
	n := len(target)
	if len(driver) < len(target) {
		n = len(driver)
	}
	n -= lag
	if n < minOverlap {
		return 0, false
	}

	// Align: target tail of length n against driver shifted back by lag.
	t := target[len(target)-n:]
	d := driver[len(driver)-n-lag : len(driver)-lag]

	return pearson(t, d)
}

func pearson(x, y []float64) (float64, bool) {
	n := float64(len(x))
	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range x {
		dx, dy := x[i]-meanX, y[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}
