// Package domain contains the core types shared across the opportunity
// engine: canonical entities, source mappings, metric points, detector
// descriptors, raw findings, and opportunities.
//
// These types carry no behavior beyond validation and key construction.
// Each subsystem (entity resolution, metrics, detection, scoring,
// lifecycle) owns its own logic and depends on this package, never the
// other way around.
package domain
