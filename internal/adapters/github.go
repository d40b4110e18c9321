package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gitprofile/analyzer/internal/monitoring"
	"github.com/gitprofile/analyzer/internal/resilience"
	"github.com/gitprofile/analyzer/internal/types"
)

const (
	pinnedLimit     = 6
	topStarredLimit = 7
	recentLimit     = 20
)

// recentMaxAge is how far back a repository update may be for the repository
// to count as recent.
const recentMaxAge = 365 * 24 * time.Hour

const repositoryFields = `
	id
	name
	description
	url
	stargazerCount
	primaryLanguage {
		name
	}
	updatedAt
	repositoryTopics(first: 5) {
		nodes {
			topic {
				name
			}
		}
	}
	forks {
		totalCount
	}`

// GitHubAdapter fetches profile and repository data from the GitHub REST and
// GraphQL APIs.
type GitHubAdapter struct {
	token      string
	apiURL     string
	graphqlURL string
	pool       *resilience.ConnectionPool
	logger     *monitoring.Logger
}

// NewGitHubAdapter creates a new GitHub adapter with connection pooling
func NewGitHubAdapter(token string) *GitHubAdapter {
	cb := resilience.GetCircuitBreaker("github", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 3,
	})

	pool := resilience.NewConnectionPool(10, 20, 30*time.Second, cb)

	return &GitHubAdapter{
		token:      token,
		apiURL:     "https://api.github.com",
		graphqlURL: "https://api.github.com/graphql",
		pool:       pool,
		logger:     monitoring.NewLogger(),
	}
}

// SetBaseURLs overrides the API endpoints, used by tests.
func (g *GitHubAdapter) SetBaseURLs(apiURL, graphqlURL string) {
	g.apiURL = apiURL
	g.graphqlURL = graphqlURL
}

type restUser struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	Bio         string `json:"bio"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	CreatedAt   string `json:"created_at"`
}

// FetchProfile fetches a user's profile via the REST API.
func (g *GitHubAdapter) FetchProfile(ctx context.Context, username string) (*types.Profile, error) {
	url := fmt.Sprintf("%s/users/%s", g.apiURL, username)

	resp, err := g.makeRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("github API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var user restUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339, user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile created_at: %w", err)
	}

	return &types.Profile{
		Username:    user.Login,
		Name:        user.Name,
		AvatarURL:   user.AvatarURL,
		Bio:         user.Bio,
		PublicRepos: user.PublicRepos,
		Followers:   user.Followers,
		Following:   user.Following,
		CreatedAt:   createdAt,
	}, nil
}

// ErrUserNotFound is returned when GitHub reports no such user.
var ErrUserNotFound = fmt.Errorf("github user not found")

type graphqlRepoNode struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     *string `json:"description"`
	URL             string  `json:"url"`
	StargazerCount  int     `json:"stargazerCount"`
	PrimaryLanguage *struct {
		Name string `json:"name"`
	} `json:"primaryLanguage"`
	UpdatedAt        string `json:"updatedAt"`
	RepositoryTopics struct {
		Nodes []struct {
			Topic struct {
				Name string `json:"name"`
			} `json:"topic"`
		} `json:"nodes"`
	} `json:"repositoryTopics"`
	Forks struct {
		TotalCount int `json:"totalCount"`
	} `json:"forks"`
}

type graphqlEdges struct {
	Edges []struct {
		Node graphqlRepoNode `json:"node"`
	} `json:"edges"`
}

type graphqlResponse struct {
	Data struct {
		User *struct {
			PinnedItems  *graphqlEdges `json:"pinnedItems"`
			Repositories *graphqlEdges `json:"repositories"`
		} `json:"user"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchPinnedRepositories fetches up to six pinned repositories.
func (g *GitHubAdapter) FetchPinnedRepositories(ctx context.Context, username string) ([]types.RawRepository, error) {
	query := fmt.Sprintf(`query($login: String!) {
		user(login: $login) {
			pinnedItems(first: %d, types: REPOSITORY) {
				edges {
					node {
						... on Repository {%s
						}
					}
				}
			}
		}
	}`, pinnedLimit, repositoryFields)

	result, err := g.runGraphQL(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pinned repositories: %w", err)
	}
	if result.Data.User == nil || result.Data.User.PinnedItems == nil {
		return nil, nil
	}

	return convertEdges(result.Data.User.PinnedItems, types.SourcePinned), nil
}

// FetchTopStarredRepositories fetches up to seven public repositories ordered
// by stargazer count.
func (g *GitHubAdapter) FetchTopStarredRepositories(ctx context.Context, username string) ([]types.RawRepository, error) {
	q := fmt.Sprintf(`query($login: String!) {
		user(login: $login) {
			repositories(first: %d, orderBy: {field: STARGAZERS, direction: DESC}, privacy: PUBLIC) {
				edges {
					node {%s
					}
				}
			}
		}
	}`, topStarredLimit, repositoryFields)

	result, err := g.runGraphQL(ctx, q, username)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top starred repositories: %w", err)
	}
	if result.Data.User == nil || result.Data.User.Repositories == nil {
		return nil, nil
	}

	return convertEdges(result.Data.User.Repositories, types.SourceTopStarred), nil
}

// FetchRecentRepositories fetches up to twenty public repositories ordered by
// update time, keeping only those updated within the last year.
func (g *GitHubAdapter) FetchRecentRepositories(ctx context.Context, username string) ([]types.RawRepository, error) {
	q := fmt.Sprintf(`query($login: String!) {
		user(login: $login) {
			repositories(first: %d, orderBy: {field: UPDATED_AT, direction: DESC}, privacy: PUBLIC) {
				edges {
					node {%s
					}
				}
			}
		}
	}`, recentLimit, repositoryFields)

	result, err := g.runGraphQL(ctx, q, username)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent repositories: %w", err)
	}
	if result.Data.User == nil || result.Data.User.Repositories == nil {
		return nil, nil
	}

	all := convertEdges(result.Data.User.Repositories, types.SourceRecent)
	cutoff := time.Now().Add(-recentMaxAge)

	recent := make([]types.RawRepository, 0, len(all))
	for _, repo := range all {
		if repo.UpdatedAt.After(cutoff) {
			recent = append(recent, repo)
		}
	}
	return recent, nil
}

// RepositorySources bundles the raw repositories from all three fetch sources.
type RepositorySources struct {
	Pinned     []types.RawRepository
	TopStarred []types.RawRepository
	Recent     []types.RawRepository
}

// FetchAllSources fetches the three repository sources concurrently. A failed
// source degrades to an empty list so one flaky query does not sink the whole
// analysis.
func (g *GitHubAdapter) FetchAllSources(ctx context.Context, username string) (*RepositorySources, error) {
	sources := &RepositorySources{}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		repos, err := g.FetchPinnedRepositories(egCtx, username)
		if err != nil {
			slog.Warn("Pinned repositories fetch failed", "username", username, "error", err)
			return nil
		}
		sources.Pinned = repos
		return nil
	})

	eg.Go(func() error {
		repos, err := g.FetchTopStarredRepositories(egCtx, username)
		if err != nil {
			slog.Warn("Top starred repositories fetch failed", "username", username, "error", err)
			return nil
		}
		sources.TopStarred = repos
		return nil
	})

	eg.Go(func() error {
		repos, err := g.FetchRecentRepositories(egCtx, username)
		if err != nil {
			slog.Warn("Recent repositories fetch failed", "username", username, "error", err)
			return nil
		}
		sources.Recent = repos
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return sources, nil
}

func (g *GitHubAdapter) runGraphQL(ctx context.Context, query, username string) (*graphqlResponse, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"query": query,
		"variables": map[string]string{
			"login": username,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	headers := map[string]string{
		"Content-Type": "application/json",
	}
	resp, err := g.makeRequestWithHeaders(ctx, http.MethodPost, g.graphqlURL, headers, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("github graphql error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode graphql response: %w", err)
	}

	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("github graphql error: %s", result.Errors[0].Message)
	}

	return &result, nil
}

func convertEdges(edges *graphqlEdges, source types.RepoSource) []types.RawRepository {
	repos := make([]types.RawRepository, 0, len(edges.Edges))
	for _, edge := range edges.Edges {
		node := edge.Node
		if node.Name == "" {
			continue
		}

		raw := types.RawRepository{
			ID:          node.ID,
			Name:        node.Name,
			Description: node.Description,
			URL:         node.URL,
			Stars:       node.StargazerCount,
			Forks:       node.Forks.TotalCount,
			Source:      source,
		}
		if node.PrimaryLanguage != nil {
			lang := node.PrimaryLanguage.Name
			raw.Language = &lang
		}
		for _, t := range node.RepositoryTopics.Nodes {
			raw.Topics = append(raw.Topics, t.Topic.Name)
		}
		if ts, err := time.Parse(time.RFC3339, node.UpdatedAt); err == nil {
			raw.UpdatedAt = ts
		}

		repos = append(repos, raw)
	}
	return repos
}

// makeRequest makes an HTTP request to GitHub API using the connection pool
func (g *GitHubAdapter) makeRequest(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	return g.makeRequestWithHeaders(ctx, method, url, nil, body)
}

func (g *GitHubAdapter) makeRequestWithHeaders(ctx context.Context, method, url string, extra map[string]string, body []byte) (*http.Response, error) {
	headers := map[string]string{
		"Accept":     "application/vnd.github.v3+json",
		"User-Agent": "profile-analyzer/1.0",
	}
	if g.token != "" {
		headers["Authorization"] = "Bearer " + g.token
	}
	for key, value := range extra {
		headers[key] = value
	}

	start := time.Now()
	resp, err := g.pool.DoRequest(ctx, method, url, headers, body)
	duration := time.Since(start)

	if err != nil {
		g.logger.ExternalAPILogger("github", method, url, 0, duration, false)
		return nil, err
	}

	g.logger.ExternalAPILogger("github", method, url, resp.StatusCode, duration, resp.StatusCode < http.StatusBadRequest)
	return resp, nil
}

// GetPoolStats returns connection pool statistics
func (g *GitHubAdapter) GetPoolStats() map[string]interface{} {
	return g.pool.GetStats()
}

// Close closes the connection pool
func (g *GitHubAdapter) Close() error {
	return g.pool.Close()
}
