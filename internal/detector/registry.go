// Package detector holds the static detector registry and the runner
// that executes detectors against metric snapshots. Detectors are
// compiled descriptors bound to pure functions at build time; status and
// eligibility are computable without executing or parsing anything.
package detector

import (
	"sort"

	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/metrics"
)

// RunFunc evaluates one entity's immutable metric snapshot and returns
// zero or more raw findings. Implementations must be pure: no I/O, no
// shared state, deterministic for identical snapshots.
type RunFunc func(snap metrics.EntitySnapshot, t Thresholds) []domain.Finding

// Detector is one registered detector. A nil Run means the detector is
// declared but not yet implemented (status "planned").
type Detector struct {
	ID              string
	Category        domain.Category
	Layer           domain.CadenceLayer
	RequiredMetrics []string
	Description     string
	// Title and Action feed opportunity presentation in scoring.
	Title  string
	Action string
	Run    RunFunc
}

// Status derives active/planned from whether the function is bound.
func (d Detector) Status() domain.DetectorStatus {
	if d.Run != nil {
		return domain.DetectorActive
	}
	return domain.DetectorPlanned
}

// Info returns the externally visible descriptor.
func (d Detector) Info() domain.DetectorInfo {
	return domain.DetectorInfo{
		ID:              d.ID,
		Category:        d.Category,
		CategoryLabel:   CategoryLabel(d.Category),
		CadenceLayer:    d.Layer,
		RequiredMetrics: d.RequiredMetrics,
		Status:          d.Status(),
		Description:     d.Description,
	}
}

// categoryLabels is the single authoritative category -> label table.
// Consumers read it through CategoryLabel; nothing duplicates it.
var categoryLabels = map[domain.Category]string{
	domain.CategoryRevenue:     "Revenue & Conversion",
	domain.CategoryTraffic:     "Traffic & Sessions",
	domain.CategoryPages:       "Page Performance",
	domain.CategorySEO:         "Search Visibility",
	domain.CategoryEmail:       "Email Engagement",
	domain.CategoryAdvertising: "Paid Advertising",
	domain.CategoryContent:     "Content Health",
}

// CategoryLabel returns the human label for a category.
func CategoryLabel(c domain.Category) string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// Registry is the immutable catalog of detectors.
type Registry struct {
	detectors []Detector
	byID      map[string]Detector
}

// NewRegistry builds the full catalog.
func NewRegistry() *Registry {
	r := &Registry{byID: make(map[string]Detector)}
	for _, d := range catalog() {
		r.detectors = append(r.detectors, d)
		r.byID[d.ID] = d
	}
	sort.Slice(r.detectors, func(i, j int) bool { return r.detectors[i].ID < r.detectors[j].ID })
	return r
}

// List returns descriptors for every registered detector, sorted by id.
func (r *Registry) List() []domain.DetectorInfo {
	out := make([]domain.DetectorInfo, 0, len(r.detectors))
	for _, d := range r.detectors {
		out = append(out, d.Info())
	}
	return out
}

// Get returns a detector by id.
func (r *Registry) Get(id string) (Detector, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Active returns the active detectors for a cadence layer, sorted by id.
func (r *Registry) Active(layer domain.CadenceLayer) []Detector {
	var out []Detector
	for _, d := range r.detectors {
		if d.Layer == layer && d.Status() == domain.DetectorActive {
			out = append(out, d)
		}
	}
	return out
}

// RequiredMetrics returns the union of required metrics for the active
// detectors of a layer, so the runner can issue one metric query.
func (r *Registry) RequiredMetrics(layer domain.CadenceLayer) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range r.Active(layer) {
		for _, m := range d.RequiredMetrics {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out
}
