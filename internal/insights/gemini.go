package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gitprofile/analyzer/internal/analysis"
	"github.com/gitprofile/analyzer/internal/monitoring"
	"github.com/gitprofile/analyzer/internal/resilience"
	"github.com/gitprofile/analyzer/internal/types"
)

const defaultGeminiModel = "gemini-1.5-flash"

// jsonBlock extracts the outermost JSON object from a model response that
// may wrap it in prose or code fences.
var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

// GeminiClient calls the Google Generative Language API.
type GeminiClient struct {
	apiKey  string
	baseURL string
	model   string
	pool    *resilience.ConnectionPool
	logger  *monitoring.Logger
}

// NewGeminiClient creates a Gemini client with connection pooling
func NewGeminiClient(apiKey string) *GeminiClient {
	cb := resilience.GetCircuitBreaker("gemini", resilience.CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 2,
	})

	pool := resilience.NewConnectionPool(5, 10, 30*time.Second, cb)

	// Generation calls are slow and rate-limited upstream
	resilience.RegisterServicePolicy("gemini", resilience.SlowRetryPolicy)

	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: "https://generativelanguage.googleapis.com",
		model:   defaultGeminiModel,
		pool:    pool,
		logger:  monitoring.NewLogger(),
	}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *GeminiClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateInsight asks the model for profile recommendations and parses the
// JSON payload out of the response text.
func (c *GeminiClient) GenerateInsight(ctx context.Context, profile types.Profile, repos []types.Repository, score *analysis.ProfileScore) (*AIInsight, error) {
	prompt := buildPrompt(profile, repos, score)

	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	// The API key travels in the query string, log the bare endpoint only
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	url := endpoint + "?key=" + c.apiKey
	headers := map[string]string{
		"Content-Type": "application/json",
	}

	var insight *AIInsight
	err = resilience.ExecuteWithRetry(ctx, "gemini", func() error {
		start := time.Now()
		resp, err := c.pool.DoRequest(ctx, http.MethodPost, url, headers, payload)
		if err != nil {
			c.logger.ExternalAPILogger("gemini", http.MethodPost, endpoint, 0, time.Since(start), false)
			return err
		}
		defer resp.Body.Close()

		c.logger.ExternalAPILogger("gemini", http.MethodPost, endpoint, resp.StatusCode, time.Since(start), resp.StatusCode == http.StatusOK)

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return resilience.NewHTTPError(resp.StatusCode,
				fmt.Sprintf("gemini API error: status %d, body: %s", resp.StatusCode, string(body)))
		}

		var result geminiResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("failed to decode gemini response: %w", err)
		}

		insight, err = parseInsight(result)
		return err
	})
	if err != nil {
		return nil, err
	}

	return insight, nil
}

func parseInsight(result geminiResponse) (*AIInsight, error) {
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini response contained no candidates")
	}

	text := result.Candidates[0].Content.Parts[0].Text

	match := jsonBlock.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("could not extract JSON from gemini response")
	}

	var insight AIInsight
	if err := json.Unmarshal([]byte(match), &insight); err != nil {
		return nil, fmt.Errorf("failed to parse gemini insight: %w", err)
	}
	if insight.Summary == "" {
		return nil, fmt.Errorf("gemini insight missing summary")
	}

	return &insight, nil
}

func buildPrompt(profile types.Profile, repos []types.Repository, score *analysis.ProfileScore) string {
	var repoSummary strings.Builder
	for i, r := range repos {
		if i >= 10 {
			break
		}
		lang := r.Language
		if lang == "" {
			lang = "No language"
		}
		desc := r.Description
		if desc == "" {
			desc = "No description"
		}
		fmt.Fprintf(&repoSummary, "- %s: %d stars, %s, %s\n", r.Name, r.Stars, lang, desc)
	}

	var scoreSummary strings.Builder
	for _, key := range analysis.DimensionKeys {
		dim := score.Dimensions[key]
		fmt.Fprintf(&scoreSummary, "- %s: %.0f/100 (%s)\n", dim.Name, dim.Score, dim.Details)
	}

	name := profile.Name
	if name == "" {
		name = "Not provided"
	}
	bio := profile.Bio
	if bio == "" {
		bio = "Not provided"
	}

	return fmt.Sprintf(`You are a GitHub profile analyzer and career mentor for developers. Analyze this GitHub profile and provide actionable recommendations.

GitHub Profile:
- Username: %s
- Name: %s
- Bio: %s
- Followers: %d
- Following: %d
- Total Public Repositories: %d

Top Repositories:
%s
Profile Score Analysis:
%s
Please provide:
1. A brief summary of the developer's GitHub presence
2. 3-5 specific, actionable recommendations to improve their GitHub profile
3. Key strengths based on the analysis
4. Areas for improvement

Format your response as JSON with this structure:
{
  "summary": "Brief overview",
  "strengths": ["strength1", "strength2"],
  "improvements": ["area1", "area2"],
  "recommendations": [
    {
      "category": "category name",
      "title": "recommendation title",
      "description": "detailed description",
      "priority": "high|medium|low",
      "actionItems": ["action1", "action2"],
      "estimatedImpact": "how this will help"
    }
  ]
}`,
		profile.Username, name, bio, profile.Followers, profile.Following, len(repos),
		repoSummary.String(), scoreSummary.String())
}

// GetPoolStats returns connection pool statistics
func (c *GeminiClient) GetPoolStats() map[string]interface{} {
	return c.pool.GetStats()
}

// Close closes the connection pool
func (c *GeminiClient) Close() error {
	return c.pool.Close()
}
