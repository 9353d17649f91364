package entity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/opportunity-engine/internal/domain"
)

// metadata key under which sources report the object's URL.
const metaURL = "url"

// metadata key the resolver writes the normalized path to, so heuristic
// matching never re-parses raw URLs from other sources.
const metaNormalizedPath = "normalized_path"

// Resolver maps provider-specific identifiers to canonical entities.
// Resolution is deterministic: the same inputs against the same store
// state always yield the same canonical entity id.
type Resolver struct {
	store MappingStore
}

// NewResolver creates a resolver over the given mapping store.
func NewResolver(store MappingStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the canonical entity id for a source identifier.
//
// Order of precedence: an existing exact mapping wins; otherwise a
// heuristic match on normalized URL path equality attaches the source to
// an existing entity; otherwise a new canonical entity is created.
// Ambiguous heuristic matches are broken deterministically: the longest
// exact path match beats any segment-prefix match, and remaining ties go
// to the lexicographically smallest canonical entity id.
func (r *Resolver) Resolve(ctx context.Context, orgID, sourceSystem, sourceEntityID string, entityType domain.EntityType, metadata map[string]string) (string, error) {
	if orgID == "" || sourceSystem == "" || sourceEntityID == "" {
		return "", fmt.Errorf("entity: resolve requires org, source system, and source id")
	}
	if !domain.ValidEntityType(entityType) {
		return "", fmt.Errorf("entity: unknown entity type %q", entityType)
	}

	if m, err := r.store.GetMapping(ctx, orgID, sourceSystem, sourceEntityID); err == nil {
		return m.CanonicalEntityID, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("lookup mapping: %w", err)
	}

	normPath := normalizedPathFor(sourceEntityID, metadata)

	var entityID string
	if normPath != "" {
		matched, err := r.heuristicMatch(ctx, orgID, entityType, normPath)
		if err != nil {
			return "", err
		}
		entityID = matched
	}

	if entityID == "" {
		entityID = uuid.New().String()
		if err := r.store.CreateEntity(ctx, domain.CanonicalEntity{
			ID:             entityID,
			Type:           entityType,
			OrganizationID: orgID,
			CreatedAt:      time.Now().UTC(),
		}); err != nil {
			return "", fmt.Errorf("create entity: %w", err)
		}
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	if normPath != "" {
		meta[metaNormalizedPath] = normPath
	}

	err := r.store.CreateMapping(ctx, domain.SourceMapping{
		CanonicalEntityID: entityID,
		OrganizationID:    orgID,
		SourceSystem:      sourceSystem,
		SourceEntityID:    sourceEntityID,
		SourceMetadata:    meta,
	})
	if errors.Is(err, ErrMappingExists) {
		// A concurrent resolve won the insert; converge on its entity.
		m, getErr := r.store.GetMapping(ctx, orgID, sourceSystem, sourceEntityID)
		if getErr != nil {
			return "", fmt.Errorf("reload mapping after conflict: %w", getErr)
		}
		return m.CanonicalEntityID, nil
	}
	if err != nil {
		return "", fmt.Errorf("create mapping: %w", err)
	}
	return entityID, nil
}

// heuristicMatch finds an existing canonical entity whose known paths
// match normPath. Returns "" when nothing plausible exists.
func (r *Resolver) heuristicMatch(ctx context.Context, orgID string, entityType domain.EntityType, normPath string) (string, error) {
	mappings, err := r.store.ListMappings(ctx, orgID, entityType)
	if err != nil {
		return "", fmt.Errorf("list mappings: %w", err)
	}

	type candidate struct {
		entityID string
		exact    bool
		segments int // matched leading segments for prefix candidates
	}

	var cands []candidate
	for _, m := range mappings {
		candPath := m.SourceMetadata[metaNormalizedPath]
		if candPath == "" {
			continue
		}
		if candPath == normPath {
			cands = append(cands, candidate{entityID: m.CanonicalEntityID, exact: true})
			continue
		}
		if n := sharedSegmentPrefix(candPath, normPath); n > 0 {
			cands = append(cands, candidate{entityID: m.CanonicalEntityID, segments: n})
		}
	}
	if len(cands) == 0 {
		return "", nil
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].exact != cands[j].exact {
			return cands[i].exact
		}
		if cands[i].segments != cands[j].segments {
			return cands[i].segments > cands[j].segments
		}
		return cands[i].entityID < cands[j].entityID
	})

	best := cands[0]
	// A prefix match alone never merges: /blog must not swallow
	// /blog/launch-post. Prefix candidates only lose tie-breaks against
	// an exact match, which is what makes ambiguity deterministic.
	if !best.exact {
		return "", nil
	}
	return best.entityID, nil
}

// normalizedPathFor derives the comparable path for a source identifier:
// the url metadata when present, otherwise the identifier itself when it
// looks like a URL or path.
func normalizedPathFor(sourceEntityID string, metadata map[string]string) string {
	if raw := metadata[metaURL]; raw != "" {
		return NormalizePath(raw)
	}
	if strings.Contains(sourceEntityID, "/") {
		return NormalizePath(sourceEntityID)
	}
	return ""
}

// NormalizePath strips scheme, host, query, fragment, and trailing slash
// from a URL and lower-cases the path segments, so the same page seen by
// different providers compares equal.
func NormalizePath(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	path := trimmed
	if u, err := url.Parse(trimmed); err == nil && u.Path != "" {
		path = u.Path
		if u.Scheme == "" && u.Host == "" && !strings.HasPrefix(path, "/") {
			// "example.com/pricing" has no scheme, so the host parses
			// into the path. Re-parse as a network-path reference to
			// split the host off; a dotted first segment is the tell.
			if hu, err := url.Parse("//" + trimmed); err == nil && strings.Contains(hu.Host, ".") {
				path = hu.Path
			}
		}
	} else if i := strings.Index(trimmed, "?"); i >= 0 {
		path = trimmed[:i]
	}

	path = strings.ToLower(path)
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// sharedSegmentPrefix counts leading path segments common to both paths.
// Returns 0 unless at least one full segment matches.
func sharedSegmentPrefix(a, b string) int {
	as := splitSegments(a)
	bs := splitSegments(b)
	n := 0
	for n < len(as) && n < len(bs) && as[n] == bs[n] {
		n++
	}
	return n
}

func splitSegments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
