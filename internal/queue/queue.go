// Package queue resolves CLI layer/entity arguments against the catalog's
// entity universe into an ordered, deduplicated, blacklist-filtered
// processing queue.
package queue

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Satmapwise/parcels-processing-sub001/internal/catalog"
	"github.com/Satmapwise/parcels-processing-sub001/internal/normalize"
)

// UniverseFetcher is the subset of catalog.Gateway the Queue Builder needs.
// Defined here, not in the catalog package, so queue stays independently
// testable with a fake that never touches a database.
type UniverseFetcher interface {
	FetchUniverse(ctx context.Context, layer string) ([]catalog.EntityRef, error)
}

// blacklist holds entities that must never appear in a processing queue,
// regardless of how they are matched by a pattern.
var blacklist = map[string]bool{
	"hillsborough_temple_terrace": true,
}

// ConfigError indicates a literal CLI pattern that cannot be resolved
// against the universe: unknown layer/entity configuration, fatal to the
// run per spec.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "queue: " + e.Reason }

// Build resolves patterns against the layer's catalog universe into an
// ordered, deduplicated, blacklist-filtered entity queue. An empty pattern
// list queues the entire (sorted) universe.
func Build(ctx context.Context, fetcher UniverseFetcher, layer string, patterns []string, log func(string)) ([]string, error) {
	universe, err := fetcher.FetchUniverse(ctx, layer)
	if err != nil {
		return nil, fmt.Errorf("queue: fetch universe: %w", err)
	}

	if len(universe) == 0 && len(patterns) == 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("no entities found in catalog for layer %q and no entities supplied", layer)}
	}

	universeEntities := make([]string, 0, len(universe))
	for _, e := range universe {
		universeEntities = append(universeEntities, normalize.JoinEntity(e.County, e.City))
	}

	var selected []string
	if len(patterns) == 0 {
		selected = universeEntities
	} else {
		for _, pattern := range patterns {
			matched, err := resolvePattern(pattern, universeEntities)
			if err != nil {
				return nil, err
			}
			if len(matched) == 0 {
				if log != nil {
					log(fmt.Sprintf("pattern %q matched zero entities; dropped", pattern))
				}
				continue
			}
			selected = append(selected, matched...)
		}
	}

	deduped := dedup(selected)
	return removeBlacklisted(deduped, log), nil
}

// resolvePattern expands a single CLI argument against the universe. Glob
// patterns (containing * or ?) expand via filepath.Match, preserving
// universe order. A literal is accepted only if it is exactly a universe
// entity or a bare known county (in which case it expands to every
// universe entity under that county); anything else is a fatal ConfigError.
func resolvePattern(pattern string, universe []string) ([]string, error) {
	if containsGlobMeta(pattern) {
		var out []string
		for _, entity := range universe {
			ok, err := filepath.Match(pattern, entity)
			if err != nil {
				return nil, &ConfigError{Reason: fmt.Sprintf("invalid glob pattern %q: %v", pattern, err)}
			}
			if ok {
				out = append(out, entity)
			}
		}
		return out, nil
	}

	for _, entity := range universe {
		if entity == pattern {
			return []string{entity}, nil
		}
	}

	if isKnownCounty(pattern) {
		var out []string
		for _, entity := range universe {
			county, _, ok := normalize.SplitEntity(entity)
			if ok && county == pattern {
				out = append(out, entity)
			}
		}
		return out, nil
	}

	return nil, &ConfigError{Reason: fmt.Sprintf("entity pattern %q is not in the catalog universe and is not a known county", pattern)}
}

func isKnownCounty(candidate string) bool {
	for _, c := range normalize.Counties {
		if c == candidate {
			return true
		}
	}
	return false
}

func containsGlobMeta(pattern string) bool {
	for _, r := range pattern {
		if r == '*' || r == '?' {
			return true
		}
	}
	return false
}

func dedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func removeBlacklisted(in []string, log func(string)) []string {
	out := make([]string, 0, len(in))
	var removed []string
	for _, v := range in {
		if blacklist[v] {
			removed = append(removed, v)
			continue
		}
		out = append(out, v)
	}
	if len(removed) > 0 && log != nil {
		log(fmt.Sprintf("removed blacklisted entities: %v", removed))
	}
	return out
}
