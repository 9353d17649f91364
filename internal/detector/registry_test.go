package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/opportunity-engine/internal/domain"
)

func TestRegistry_StatusComputedStatically(t *testing.T) {
	r := NewRegistry()

	for _, info := range r.List() {
		d, ok := r.Get(info.ID)
		require.True(t, ok)
		if d.Run != nil {
			assert.Equal(t, domain.DetectorActive, info.Status, info.ID)
		} else {
			assert.Equal(t, domain.DetectorPlanned, info.Status, info.ID)
		}
		assert.NotEmpty(t, info.RequiredMetrics, info.ID)
		assert.True(t, domain.ValidCategory(info.Category), info.ID)
		assert.True(t, domain.ValidLayer(info.CadenceLayer), info.ID)
	}
}

func TestRegistry_PlannedDetectorsExcludedFromActive(t *testing.T) {
	r := NewRegistry()

	for _, layer := range domain.AllLayers() {
		for _, d := range r.Active(layer) {
			assert.NotNil(t, d.Run, d.ID)
			assert.Equal(t, layer, d.Layer)
		}
	}

	// The declared-only detectors stay listed but never run.
	info := r.List()
	var planned int
	for _, d := range info {
		if d.Status == domain.DetectorPlanned {
			planned++
		}
	}
	assert.Equal(t, 2, planned)
}

func TestRegistry_RequiredMetricsUnion(t *testing.T) {
	r := NewRegistry()

	names := r.RequiredMetrics(domain.LayerFast)
	assert.Contains(t, names, domain.MetricRevenue)
	assert.Contains(t, names, domain.MetricSessions)
	assert.Contains(t, names, domain.MetricConversionRate)
	assert.Contains(t, names, domain.MetricAdSpend)

	seen := make(map[string]bool)
	for _, n := range names {
		assert.False(t, seen[n], "duplicate metric %s", n)
		seen[n] = true
	}
}

func TestCategoryLabel_SingleTable(t *testing.T) {
	for _, c := range domain.AllCategories() {
		assert.NotEqual(t, string(c), CategoryLabel(c), "category %s has no label", c)
	}
	// Unknown categories fall back to the raw value.
	assert.Equal(t, "mystery", CategoryLabel(domain.Category("mystery")))
}
