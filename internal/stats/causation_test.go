package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaggedCorrelation_PerfectLag(t *testing.T) {
	driver := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	// Target follows the driver exactly one period later.
	target := []float64{0, 1, 2, 3, 4, 5, 6, 7}

	r, ok := LaggedCorrelation(target, driver, 1)
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-9)
}

func TestLaggedCorrelation_Guards(t *testing.T) {
	_, ok := LaggedCorrelation([]float64{1, 2}, []float64{1, 2}, 0)
	assert.False(t, ok, "overlap below minimum")

	_, ok = LaggedCorrelation([]float64{1, 2, 3, 4, 5}, []float64{2, 2, 2, 2, 2}, 0)
	assert.False(t, ok, "zero variance driver")

	_, ok = LaggedCorrelation([]float64{1, 2, 3, 4}, []float64{1, 2, 3, 4}, -1)
	assert.False(t, ok, "negative lag")
}

// Monthly email CTR leads conversion rate by one month. Causation
// analysis must surface CTR as a lag-1 driver candidate ranked above a
// weaker lag-0 candidate.
func TestRankDrivers_LeadingDriverRankedFirst(t *testing.T) {
	// 12 months of conversion rate tracking last month's CTR with mild
	// independent noise.
	ctr := []float64{2.0, 2.4, 2.1, 2.9, 3.3, 2.6, 3.8, 3.1, 4.0, 3.4, 4.4, 3.9}
	conversion := make([]float64, len(ctr))
	noise := []float64{0.1, -0.2, 0.15, -0.1, 0.2, -0.15, 0.1, -0.05, 0.12, -0.18, 0.08, -0.1}
	conversion[0] = 1.0
	for i := 1; i < len(conversion); i++ {
		conversion[i] = 0.8*ctr[i-1] + noise[i]
	}

	// A weakly related coincident candidate.
	adSpend := []float64{5, 9, 4, 8, 6, 10, 5, 9, 6, 11, 5, 10}

	drivers := RankDrivers(conversion, map[string][]float64{
		"email_ctr": ctr,
		"ad_spend":  adSpend,
	}, MaxLag)

	require.NotEmpty(t, drivers)
	assert.Equal(t, "email_ctr", drivers[0].Name)
	assert.Equal(t, 1, drivers[0].Lag)
	assert.Greater(t, drivers[0].AbsStrength(), 0.8)

	for _, d := range drivers[1:] {
		assert.LessOrEqual(t, d.AbsStrength(), drivers[0].AbsStrength())
	}
}

func TestRankDrivers_Deterministic(t *testing.T) {
	target := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	candidates := map[string][]float64{
		"a": {1, 2, 3, 4, 5, 6, 7, 8},
		"b": {1, 2, 3, 4, 5, 6, 7, 8},
	}

	first := RankDrivers(target, candidates, 2)
	for i := 0; i < 5; i++ {
		again := RankDrivers(target, candidates, 2)
		assert.Equal(t, first, again)
	}
	// Equal strength ties break by lag then name.
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].Name)
	assert.Equal(t, "b", first[1].Name)
}

func TestRankDrivers_CandidateCap(t *testing.T) {
	target := []float64{1, 2, 3, 4, 5, 6}
	candidates := make(map[string][]float64)
	for i := 0; i < 2*MaxDriverCandidates; i++ {
		candidates[string(rune('a'+i))] = []float64{1, 2, 3, 4, 5, 6}
	}

	drivers := RankDrivers(target, candidates, 1)
	assert.LessOrEqual(t, len(drivers), MaxDriverCandidates)
}
