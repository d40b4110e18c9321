package insights

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gitprofile/analyzer/internal/analysis"
	"github.com/gitprofile/analyzer/internal/types"
)

// Generator produces an insight from analysis output.
type Generator interface {
	GenerateInsight(ctx context.Context, profile types.Profile, repos []types.Repository, score *analysis.ProfileScore) (*AIInsight, error)
}

// Service produces recommendations, preferring the AI generator and falling
// back to deterministic recommendations when it is unavailable or fails.
type Service struct {
	generator Generator
}

// NewService creates an insight service. The generator may be nil, in which
// case every request uses the deterministic fallback.
func NewService(generator Generator) *Service {
	return &Service{generator: generator}
}

// Generate returns an insight for the analysis along with the producer name,
// "gemini" or "fallback". It never fails; the fallback depends only on data
// guaranteed to be present in the score.
func (s *Service) Generate(ctx context.Context, profile types.Profile, repos []types.Repository, score *analysis.ProfileScore) (*AIInsight, string) {
	if s.generator != nil {
		insight, err := s.generator.GenerateInsight(ctx, profile, repos, score)
		if err == nil {
			return insight, "gemini"
		}
		slog.Warn("AI insight generation failed, using fallback",
			"username", profile.Username, "error", err)
	}

	return Fallback(profile, repos, score), "fallback"
}

// Fallback builds deterministic recommendations from the computed score. It
// reads only the fixed dimension set, so it works for any analysis result.
func Fallback(profile types.Profile, repos []types.Repository, score *analysis.ProfileScore) *AIInsight {
	impact := score.Dimensions[analysis.DimProjectImpact]

	return &AIInsight{
		Summary: fmt.Sprintf("%s has %d public repositories with a total score of %d/100.",
			profile.Username, len(repos), score.Overall),
		Recommendations: []AIRecommendation{
			{
				Category:    "Documentation",
				Title:       "Improve Repository Documentation",
				Description: "Add comprehensive README files to all repositories",
				Priority:    "high",
				ActionItems: []string{
					"Add README.md to repositories without documentation",
					"Include setup instructions and usage examples",
					"Add badges for build status and version",
				},
				EstimatedImpact: "Significantly improve repository quality score and usability",
			},
			{
				Category:    "Code Quality",
				Title:       "Add Project Organization",
				Description: "Use topics and consistent folder structure",
				Priority:    "high",
				ActionItems: []string{
					"Add relevant topics to repositories",
					"Standardize folder structure across projects",
					"Add contributing guidelines",
				},
				EstimatedImpact: "Better project visibility and contributor engagement",
			},
		},
		Strengths: []string{
			fmt.Sprintf("%d public repositories showing active development", len(repos)),
			fmt.Sprintf("%.0f/100 project impact score", impact.Score),
		},
		Improvements: []string{
			"Improve documentation on existing projects",
			"Increase frequency of repository updates",
		},
	}
}
