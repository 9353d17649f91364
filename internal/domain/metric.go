package domain

import "time"

// Granularity is the aggregation period of a metric point.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// ValidGranularity reports whether g is a known granularity.
func ValidGranularity(g Granularity) bool {
	switch g {
	case GranularityDaily, GranularityWeekly, GranularityMonthly:
		return true
	}
	return false
}

// Common metric names used by the detector catalog. Ingestion may write
// additional metrics; detectors only declare the ones they require.
const (
	MetricRevenue        = "revenue"
	MetricOrders         = "orders"
	MetricSessions       = "sessions"
	MetricPageviews      = "pageviews"
	MetricConversionRate = "conversion_rate"
	MetricBounceRate     = "bounce_rate"
	MetricAvgPosition    = "avg_position"
	MetricImpressions    = "impressions"
	MetricClicks         = "clicks"
	MetricCTR            = "ctr"
	MetricEmailOpens     = "email_opens"
	MetricEmailClicks    = "email_clicks"
	MetricEmailCTR       = "email_ctr"
	MetricAdSpend        = "ad_spend"
	MetricAdRevenue      = "ad_revenue"
	MetricROAS           = "roas"
	MetricPublishedAge   = "published_age_days"
)

// MetricPoint is one period's worth of aggregated metrics for a canonical
// entity. Points for closed periods are immutable; only the still-open
// current period may be rewritten by ingestion. There is at most one point
// per (organization, entity, period, granularity).
type MetricPoint struct {
	OrganizationID string             `json:"organization_id"`
	EntityID       string             `json:"canonical_entity_id"`
	EntityType     EntityType         `json:"entity_type"`
	PeriodDate     time.Time          `json:"period_date"`
	Granularity    Granularity        `json:"granularity"`
	Metrics        map[string]float64 `json:"metrics"`
}

// Value returns the named metric and whether it is populated. Absent
// metrics are "no data", never zero.
func (p MetricPoint) Value(name string) (float64, bool) {
	v, ok := p.Metrics[name]
	return v, ok
}
