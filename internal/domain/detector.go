package domain

// Category groups detectors and opportunities by marketing channel.
type Category string

const (
	CategoryRevenue     Category = "revenue"
	CategoryTraffic     Category = "traffic"
	CategoryPages       Category = "pages"
	CategorySEO         Category = "seo"
	CategoryEmail       Category = "email"
	CategoryAdvertising Category = "advertising"
	CategoryContent     Category = "content"
)

// AllCategories lists every detector category in presentation order.
func AllCategories() []Category {
	return []Category{
		CategoryRevenue, CategoryTraffic, CategoryPages, CategorySEO,
		CategoryEmail, CategoryAdvertising, CategoryContent,
	}
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// CadenceLayer is the run frequency tier of a detector.
type CadenceLayer string

const (
	LayerFast      CadenceLayer = "fast"      // daily, single-period deviations
	LayerTrend     CadenceLayer = "trend"     // weekly, multi-period patterns
	LayerStrategic CadenceLayer = "strategic" // monthly, structural findings
)

// AllLayers lists every cadence layer from fastest to slowest.
func AllLayers() []CadenceLayer {
	return []CadenceLayer{LayerFast, LayerTrend, LayerStrategic}
}

// ValidLayer reports whether l is a known cadence layer.
func ValidLayer(l CadenceLayer) bool {
	switch l {
	case LayerFast, LayerTrend, LayerStrategic:
		return true
	}
	return false
}

// Granularity returns the metric granularity a cadence layer evaluates.
func (l CadenceLayer) Granularity() Granularity {
	switch l {
	case LayerTrend:
		return GranularityWeekly
	case LayerStrategic:
		return GranularityMonthly
	default:
		return GranularityDaily
	}
}

// DetectorStatus is computed statically from the registry, never by
// executing a detector.
type DetectorStatus string

const (
	DetectorActive  DetectorStatus = "active"
	DetectorPlanned DetectorStatus = "planned"
)

// DetectorInfo is the externally visible descriptor of a registered
// detector.
type DetectorInfo struct {
	ID              string         `json:"id"`
	Category        Category       `json:"category"`
	CategoryLabel   string         `json:"category_label"`
	CadenceLayer    CadenceLayer   `json:"cadence_layer"`
	RequiredMetrics []string       `json:"required_metrics"`
	Status          DetectorStatus `json:"status"`
	Description     string         `json:"description,omitempty"`
}
