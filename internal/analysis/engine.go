package analysis

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/gitprofile/analyzer/internal/types"
)

// HistoryStore is the persistence surface the engine needs. It is injected
// so the engine stays testable without a database.
type HistoryStore interface {
	AppendScore(ctx context.Context, userID string, score *ProfileScore) error
	MostRecentOverall(ctx context.Context, userID string) (float64, bool, error)
}

// Engine computes profile scores and records them against prior history.
type Engine struct {
	history HistoryStore
	now     func() time.Time
}

func NewEngine(history HistoryStore) *Engine {
	return &Engine{
		history: history,
		now:     time.Now,
	}
}

// ComputeScore runs all dimension scorers over the normalized repository set
// and the profile, producing an overall 0-100 score. The improvement delta is
// computed against the most recent recorded score for the user and is nil on
// the first analysis. History failures are logged and never fail the
// analysis itself.
func (e *Engine) ComputeScore(ctx context.Context, userID string, repos []types.Repository, profile types.Profile) *ProfileScore {
	now := e.now()

	ageYears := now.Sub(profile.CreatedAt).Hours() / 24 / 365.25
	if ageYears < 0 {
		ageYears = 0
	}

	dims := map[string]ScoreDimension{
		DimRepositoryQuality:    ScoreRepositoryQuality(repos),
		DimDocumentation:        ScoreDocumentation(repos),
		DimContributionActivity: ScoreContributionActivity(profile.Followers, profile.Following, ageYears),
		DimCodeQuality:          ScoreCodeQuality(repos, now),
		DimProjectImpact:        ScoreProjectImpact(repos),
		DimEngineeringPractices: ScoreEngineeringPractices(repos),
		DimTechDiversity:        ScoreTechDiversity(repos),
		DimCollaboration:        ScoreCollaboration(profile.Following, repos),
		DimProfilePresentation:  ScoreProfilePresentation(profile.Name, profile.Bio),
	}

	var weighted float64
	for key, dim := range dims {
		weighted += dim.Score * Weight(key)
	}
	overall := int(clip(math.Round(weighted), 0, 100))

	score := &ProfileScore{
		Overall:        overall,
		Dimensions:     dims,
		LastAnalyzedAt: now,
		AnalysisID:     "analysis_" + uuid.New().String(),
	}

	if e.history != nil {
		prior, found, err := e.history.MostRecentOverall(ctx, userID)
		if err != nil {
			slog.Warn("failed to load prior score", "user_id", userID, "error", err)
		} else if found {
			delta := float64(overall) - prior
			score.Improvement = &delta
		}

		if err := e.history.AppendScore(ctx, userID, score); err != nil {
			slog.Warn("failed to record score history", "user_id", userID, "error", err)
		}
	}

	return score
}
