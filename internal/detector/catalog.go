package detector

import "github.com/ignite/opportunity-engine/internal/domain"

// catalog is the compiled detector list. Adding a detector means adding
// an entry here; there is no runtime discovery.
func catalog() []Detector {
	return []Detector{
		// --- fast layer: daily, sudden single-period deviations ---
		{
			ID:              "revenue_drop",
			Category:        domain.CategoryRevenue,
			Layer:           domain.LayerFast,
			RequiredMetrics: []string{domain.MetricRevenue},
			Description:     "Daily revenue fell sharply below its trailing baseline.",
			Title:           "Revenue dropped sharply",
			Action:          "Check checkout funnel, payment provider status, and recent site changes.",
			Run:             detectRevenueDrop,
		},
		{
			ID:              "revenue_spike",
			Category:        domain.CategoryRevenue,
			Layer:           domain.LayerFast,
			RequiredMetrics: []string{domain.MetricRevenue},
			Description:     "Daily revenue spiked above its trailing baseline.",
			Title:           "Revenue spiked",
			Action:          "Identify the driving channel or product and consider scaling it.",
			Run:             detectRevenueSpike,
		},
		{
			ID:              "traffic_drop",
			Category:        domain.CategoryTraffic,
			Layer:           domain.LayerFast,
			RequiredMetrics: []string{domain.MetricSessions},
			Description:     "Daily sessions fell sharply below their trailing baseline.",
			Title:           "Traffic dropped sharply",
			Action:          "Check tracking tags, search indexing, and campaign status.",
			Run:             detectTrafficDrop,
		},
		{
			ID:              "traffic_spike",
			Category:        domain.CategoryTraffic,
			Layer:           domain.LayerFast,
			RequiredMetrics: []string{domain.MetricSessions},
			Description:     "Daily sessions spiked above their trailing baseline.",
			Title:           "Traffic spiked",
			Action:          "Find the referral source and capture the momentum while it lasts.",
			Run:             detectTrafficSpike,
		},
		{
			ID:              "conversion_rate_drop",
			Category:        domain.CategoryRevenue,
			Layer:           domain.LayerFast,
			RequiredMetrics: []string{domain.MetricConversionRate},
			Description:     "Daily conversion rate fell below its trailing baseline.",
			Title:           "Conversion rate dropped",
			Action:          "Review recent page changes, pricing, and form errors.",
			Run:             detectConversionDrop,
		},
		{
			ID:              "ad_spend_spike",
			Category:        domain.CategoryAdvertising,
			Layer:           domain.LayerFast,
			RequiredMetrics: []string{domain.MetricAdSpend},
			Description:     "Daily ad spend spiked above its trailing baseline.",
			Title:           "Ad spend spiked",
			Action:          "Verify bid changes and budget caps before the overspend compounds.",
			Run:             detectAdSpendSpike,
		},

		// --- trend layer: weekly, multi-period patterns ---
		{
			ID:              "traffic_decline_trend",
			Category:        domain.CategoryTraffic,
			Layer:           domain.LayerTrend,
			RequiredMetrics: []string{domain.MetricSessions},
			Description:     "Sessions have declined for several consecutive weeks.",
			Title:           "Sustained traffic decline",
			Action:          "Audit top landing pages and acquisition channels for the decline source.",
			Run:             detectTrafficDeclineTrend,
		},
		{
			ID:              "page_decay",
			Category:        domain.CategoryPages,
			Layer:           domain.LayerTrend,
			RequiredMetrics: []string{domain.MetricPageviews},
			Description:     "A page's views have declined for several consecutive weeks.",
			Title:           "Page losing traffic",
			Action:          "Refresh the content and re-check internal links to the page.",
			Run:             detectPageDecay,
		},
		{
			ID:              "keyword_slippage",
			Category:        domain.CategorySEO,
			Layer:           domain.LayerTrend,
			RequiredMetrics: []string{domain.MetricAvgPosition},
			Description:     "A keyword's average position has worsened for consecutive weeks.",
			Title:           "Keyword ranking slipping",
			Action:          "Review competing content and refresh the target page.",
			Run:             detectKeywordSlippage,
		},
		{
			ID:              "email_engagement_decline",
			Category:        domain.CategoryEmail,
			Layer:           domain.LayerTrend,
			RequiredMetrics: []string{domain.MetricEmailCTR},
			Description:     "Email click-through rate has declined for consecutive weeks.",
			Title:           "Email engagement declining",
			Action:          "Test subject lines and prune unengaged segments.",
			Run:             detectEmailEngagementDecline,
		},
		{
			ID:              "ad_roas_decline",
			Category:        domain.CategoryAdvertising,
			Layer:           domain.LayerTrend,
			RequiredMetrics: []string{domain.MetricROAS},
			Description:     "Return on ad spend has declined for consecutive weeks.",
			Title:           "Ad efficiency declining",
			Action:          "Rotate creatives and tighten audience targeting.",
			Run:             detectROASDecline,
		},
		{
			ID:              "content_staleness",
			Category:        domain.CategoryContent,
			Layer:           domain.LayerTrend,
			RequiredMetrics: []string{domain.MetricPageviews, domain.MetricPublishedAge},
			Description:     "Old content is losing traffic week over week.",
			Title:           "Stale content losing traffic",
			Action:          "Schedule a content refresh; aged pages respond well to updates.",
			Run:             detectContentStaleness,
		},

		// --- strategic layer: monthly, structural findings ---
		{
			ID:              "seasonal_revenue_gap",
			Category:        domain.CategoryRevenue,
			Layer:           domain.LayerStrategic,
			RequiredMetrics: []string{domain.MetricRevenue},
			Description:     "Monthly revenue trails the same month last year.",
			Title:           "Revenue behind last year",
			Action:          "Compare channel mix against the same month last year.",
			Run:             detectSeasonalRevenueGap,
		},
		{
			ID:              "channel_mix_gap",
			Category:        domain.CategoryRevenue,
			Layer:           domain.LayerStrategic,
			RequiredMetrics: []string{domain.MetricConversionRate, domain.MetricEmailCTR},
			Description:     "Conversion decline is associated with a leading channel metric.",
			Title:           "Conversion tied to channel slump",
			Action:          "Prioritize the associated channel; its movement leads conversion.",
			Run:             detectChannelMixGap,
		},
		{
			ID:              "forecast_shortfall",
			Category:        domain.CategoryRevenue,
			Layer:           domain.LayerStrategic,
			RequiredMetrics: []string{domain.MetricRevenue},
			Description:     "Projected revenue for coming months falls below the trailing baseline.",
			Title:           "Revenue trending toward shortfall",
			Action:          "Plan campaigns now; the current trajectory undershoots baseline.",
			Run:             detectForecastShortfall,
		},

		// --- declared, not yet implemented ---
		{
			ID:              "social_engagement_drop",
			Category:        domain.CategoryContent,
			Layer:           domain.LayerTrend,
			RequiredMetrics: []string{"social_engagements"},
			Description:     "Social engagement decline detection (planned).",
		},
		{
			ID:              "email_churn_risk",
			Category:        domain.CategoryEmail,
			Layer:           domain.LayerStrategic,
			RequiredMetrics: []string{domain.MetricEmailOpens, "unsubscribes"},
			Description:     "Subscriber churn-risk detection (planned).",
		},
	}
}
