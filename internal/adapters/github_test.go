package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitprofile/analyzer/internal/types"
)

func graphqlRepoJSON(name string, stars int, updatedAt time.Time) string {
	return fmt.Sprintf(`{
		"id": "id-%s",
		"name": "%s",
		"description": "a %s repo",
		"url": "https://github.com/octocat/%s",
		"stargazerCount": %d,
		"primaryLanguage": {"name": "Go"},
		"updatedAt": "%s",
		"repositoryTopics": {"nodes": [{"topic": {"name": "tooling"}}]},
		"forks": {"totalCount": 2}
	}`, name, name, name, name, stars, updatedAt.Format(time.RFC3339))
}

func newTestAdapter(t *testing.T, handler http.Handler) *GitHubAdapter {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter := NewGitHubAdapter("test-token")
	adapter.SetBaseURLs(server.URL, server.URL+"/graphql")
	t.Cleanup(func() { _ = adapter.Close() })

	return adapter
}

func TestFetchProfile(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/octocat", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"login": "octocat",
			"name": "The Octocat",
			"avatar_url": "https://avatars.example/octocat",
			"bio": "Professional cephalopod and mascot.",
			"public_repos": 8,
			"followers": 4000,
			"following": 9,
			"created_at": "2011-01-25T18:44:36Z"
		}`)
	}))

	profile, err := adapter.FetchProfile(context.Background(), "octocat")
	require.NoError(t, err)
	assert.Equal(t, "octocat", profile.Username)
	assert.Equal(t, "The Octocat", profile.Name)
	assert.Equal(t, 4000, profile.Followers)
	assert.Equal(t, 2011, profile.CreatedAt.Year())
}

func TestFetchProfileNotFound(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := adapter.FetchProfile(context.Background(), "no-such-user")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFetchPinnedRepositories(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graphql", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var payload struct {
			Query     string            `json:"query"`
			Variables map[string]string `json:"variables"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "octocat", payload.Variables["login"])
		assert.Contains(t, payload.Query, "pinnedItems")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data": {"user": {"pinnedItems": {"edges": [
			{"node": %s},
			{"node": %s}
		]}}}}`, graphqlRepoJSON("alpha", 12, now), graphqlRepoJSON("beta", 3, now))
	}))

	repos, err := adapter.FetchPinnedRepositories(context.Background(), "octocat")
	require.NoError(t, err)
	require.Len(t, repos, 2)

	assert.Equal(t, "alpha", repos[0].Name)
	assert.Equal(t, 12, repos[0].Stars)
	require.NotNil(t, repos[0].Language)
	assert.Equal(t, "Go", *repos[0].Language)
	assert.Equal(t, []string{"tooling"}, repos[0].Topics)
	assert.Equal(t, types.SourcePinned, repos[0].Source)
	assert.Equal(t, 2, repos[0].Forks)
}

func TestFetchRecentRepositoriesFiltersOldUpdates(t *testing.T) {
	now := time.Now().UTC()

	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data": {"user": {"repositories": {"edges": [
			{"node": %s},
			{"node": %s}
		]}}}}`,
			graphqlRepoJSON("fresh", 1, now.Add(-30*24*time.Hour)),
			graphqlRepoJSON("stale", 1, now.Add(-2*365*24*time.Hour)))
	}))

	repos, err := adapter.FetchRecentRepositories(context.Background(), "octocat")
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "fresh", repos[0].Name)
	assert.Equal(t, types.SourceRecent, repos[0].Source)
}

func TestFetchRepositoriesGraphQLErrors(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"errors": [{"message": "rate limited"}]}`)
	}))

	_, err := adapter.FetchTopStarredRepositories(context.Background(), "octocat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestFetchRepositoriesUnknownUser(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": {"user": null}}`)
	}))

	repos, err := adapter.FetchPinnedRepositories(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestFetchAllSourcesDegradesPerSource(t *testing.T) {
	now := time.Now().UTC()

	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Query string `json:"query"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(payload.Query, "pinnedItems"):
			fmt.Fprintf(w, `{"data": {"user": {"pinnedItems": {"edges": [{"node": %s}]}}}}`,
				graphqlRepoJSON("pinned", 5, now))
		case strings.Contains(payload.Query, "STARGAZERS"):
			// One flaky source must not sink the analysis.
			w.WriteHeader(http.StatusInternalServerError)
		default:
			fmt.Fprintf(w, `{"data": {"user": {"repositories": {"edges": [{"node": %s}]}}}}`,
				graphqlRepoJSON("recent", 1, now))
		}
	}))

	sources, err := adapter.FetchAllSources(context.Background(), "octocat")
	require.NoError(t, err)
	require.NotNil(t, sources)

	assert.Len(t, sources.Pinned, 1)
	assert.Empty(t, sources.TopStarred)
	assert.Len(t, sources.Recent, 1)
}
