package analysis

import (
	"sort"
	"strings"

	"github.com/gitprofile/analyzer/internal/types"
)

// NormalizeRepositories merges raw repositories collected from multiple
// sources into a canonical deduplicated list. Source precedence is pinned
// before top-starred before recent, regardless of argument order, and the
// first occurrence of a name at the highest-precedence source wins.
func NormalizeRepositories(sources ...[]types.RawRepository) []types.Repository {
	var flat []types.RawRepository
	for _, s := range sources {
		flat = append(flat, s...)
	}

	// Stable sort keeps within-source ordering intact while ranking
	// sources by precedence.
	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].Source < flat[j].Source
	})

	seen := make(map[string]struct{}, len(flat))
	out := make([]types.Repository, 0, len(flat))
	for _, raw := range flat {
		if raw.Name == "" {
			continue
		}
		if _, ok := seen[raw.Name]; ok {
			continue
		}
		seen[raw.Name] = struct{}{}
		out = append(out, normalizeOne(raw))
	}
	return out
}

func normalizeOne(raw types.RawRepository) types.Repository {
	repo := types.Repository{
		ID:        raw.ID,
		Name:      raw.Name,
		URL:       raw.URL,
		Stars:     raw.Stars,
		Forks:     raw.Forks,
		UpdatedAt: raw.UpdatedAt,
		Source:    raw.Source,
	}
	if raw.Description != nil {
		repo.Description = strings.TrimSpace(*raw.Description)
	}
	if raw.Language != nil {
		repo.Language = *raw.Language
	}
	if repo.Stars < 0 {
		repo.Stars = 0
	}
	if repo.Forks < 0 {
		repo.Forks = 0
	}
	repo.Topics = normalizeTopics(raw.Topics)
	return repo
}

func normalizeTopics(topics []string) []string {
	if len(topics) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
