package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitprofile/analyzer/internal/types"
)

func strPtr(s string) *string { return &s }

func rawRepo(name string, source types.RepoSource, mutate func(*types.RawRepository)) types.RawRepository {
	r := types.RawRepository{
		ID:        "raw-" + name,
		Name:      name,
		URL:       "https://github.com/tester/" + name,
		UpdatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Source:    source,
	}
	if mutate != nil {
		mutate(&r)
	}
	return r
}

func TestNormalizeRepositoriesDedupPrecedence(t *testing.T) {
	pinned := []types.RawRepository{
		rawRepo("shared", types.SourcePinned, func(r *types.RawRepository) { r.Stars = 10 }),
	}
	topStarred := []types.RawRepository{
		rawRepo("shared", types.SourceTopStarred, func(r *types.RawRepository) { r.Stars = 999 }),
		rawRepo("starred-only", types.SourceTopStarred, nil),
	}
	recent := []types.RawRepository{
		rawRepo("shared", types.SourceRecent, func(r *types.RawRepository) { r.Stars = 1 }),
		rawRepo("recent-only", types.SourceRecent, nil),
	}

	out := NormalizeRepositories(pinned, topStarred, recent)
	require.Len(t, out, 3)

	byName := make(map[string]types.Repository)
	for _, r := range out {
		byName[r.Name] = r
	}
	// The pinned record wins over later sources.
	assert.Equal(t, 10, byName["shared"].Stars)
	assert.Equal(t, types.SourcePinned, byName["shared"].Source)
}

func TestNormalizeRepositoriesOrderIndependent(t *testing.T) {
	pinned := []types.RawRepository{
		rawRepo("shared", types.SourcePinned, func(r *types.RawRepository) { r.Stars = 10 }),
	}
	recent := []types.RawRepository{
		rawRepo("shared", types.SourceRecent, func(r *types.RawRepository) { r.Stars = 1 }),
	}

	// Passing recent first must not change the winner.
	out := NormalizeRepositories(recent, pinned)
	require.Len(t, out, 1)
	assert.Equal(t, 10, out[0].Stars)
}

func TestNormalizeRepositoriesDefaults(t *testing.T) {
	raw := []types.RawRepository{
		rawRepo("sparse", types.SourceRecent, func(r *types.RawRepository) {
			r.Description = nil
			r.Language = nil
			r.Stars = -3
			r.Forks = -1
		}),
	}

	out := NormalizeRepositories(raw)
	require.Len(t, out, 1)
	assert.Equal(t, "", out[0].Description)
	assert.Equal(t, "", out[0].Language)
	assert.Equal(t, 0, out[0].Stars)
	assert.Equal(t, 0, out[0].Forks)
	assert.Nil(t, out[0].Topics)
}

func TestNormalizeRepositoriesTopics(t *testing.T) {
	raw := []types.RawRepository{
		rawRepo("topical", types.SourcePinned, func(r *types.RawRepository) {
			r.Topics = []string{"Go", "cli", " go ", "", "CLI", "api"}
		}),
	}

	out := NormalizeRepositories(raw)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"api", "cli", "go"}, out[0].Topics)
}

func TestNormalizeRepositoriesTrimsDescription(t *testing.T) {
	raw := []types.RawRepository{
		rawRepo("described", types.SourcePinned, func(r *types.RawRepository) {
			r.Description = strPtr("  a tool  ")
		}),
	}

	out := NormalizeRepositories(raw)
	require.Len(t, out, 1)
	assert.Equal(t, "a tool", out[0].Description)
}

func TestNormalizeRepositoriesSkipsUnnamed(t *testing.T) {
	raw := []types.RawRepository{
		rawRepo("", types.SourcePinned, nil),
		rawRepo("named", types.SourceRecent, nil),
	}

	out := NormalizeRepositories(raw)
	require.Len(t, out, 1)
	assert.Equal(t, "named", out[0].Name)
}

func TestNormalizeRepositoriesIdempotent(t *testing.T) {
	raw := []types.RawRepository{
		rawRepo("a", types.SourcePinned, func(r *types.RawRepository) { r.Topics = []string{"x", "y"} }),
		rawRepo("b", types.SourceRecent, nil),
	}

	first := NormalizeRepositories(raw)
	second := NormalizeRepositories(raw)
	assert.Equal(t, first, second)
}
