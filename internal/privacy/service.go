package privacy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gitprofile/analyzer/internal/database"
)

// PrivacyService handles user data deletion and retention policies
type PrivacyService struct {
	db            *database.DB
	retentionDays int
	cacheTTL      time.Duration
}

// NewService creates a privacy service enforcing the given retention period.
// The cache TTL is only reported, the response cache expires entries itself.
func NewService(db *database.DB, retentionDays int, cacheTTL time.Duration) *PrivacyService {
	return &PrivacyService{
		db:            db,
		retentionDays: retentionDays,
		cacheTTL:      cacheTTL,
	}
}

// DeleteUserData removes all stored data for a GitHub username
func (ps *PrivacyService) DeleteUserData(ctx context.Context, username string) error {
	username = strings.ToLower(username)
	slog.Info("Initiating data deletion", "username", username)

	scoreResult, err := ps.db.ExecContext(ctx, "DELETE FROM score_history WHERE user_id = ?", username)
	if err != nil {
		return fmt.Errorf("failed to delete score history: %w", err)
	}
	scoreRows, _ := scoreResult.RowsAffected()

	repoResult, err := ps.db.ExecContext(ctx, "DELETE FROM repositories WHERE user_id = ?", username)
	if err != nil {
		return fmt.Errorf("failed to delete repositories: %w", err)
	}
	repoRows, _ := repoResult.RowsAffected()

	recResult, err := ps.db.ExecContext(ctx, "DELETE FROM ai_recommendations WHERE user_id = ?", username)
	if err != nil {
		return fmt.Errorf("failed to delete recommendations: %w", err)
	}
	recRows, _ := recResult.RowsAffected()

	slog.Info("Data deletion completed",
		"username", username,
		"scores_deleted", scoreRows,
		"repositories_deleted", repoRows,
		"recommendations_deleted", recRows,
	)

	return nil
}

// RunDataCleanup deletes records older than the retention period
func (ps *PrivacyService) RunDataCleanup(ctx context.Context) error {
	cutoffDate := time.Now().AddDate(0, 0, -ps.retentionDays)

	scoreResult, err := ps.db.ExecContext(ctx, "DELETE FROM score_history WHERE created_at < ?", cutoffDate)
	if err != nil {
		return fmt.Errorf("failed to delete old scores: %w", err)
	}
	scoreRows, _ := scoreResult.RowsAffected()

	recResult, err := ps.db.ExecContext(ctx, "DELETE FROM ai_recommendations WHERE created_at < ?", cutoffDate)
	if err != nil {
		return fmt.Errorf("failed to delete old recommendations: %w", err)
	}
	recRows, _ := recResult.RowsAffected()

	// Repository snapshots for users with no remaining scores are stale
	repoResult, err := ps.db.ExecContext(ctx,
		"DELETE FROM repositories WHERE last_synced_at < ? AND user_id NOT IN (SELECT DISTINCT user_id FROM score_history)",
		cutoffDate)
	if err != nil {
		slog.Warn("Failed to clean stale repository snapshots", "error", err)
	} else {
		repoRows, _ := repoResult.RowsAffected()
		slog.Info("Data cleanup completed",
			"cutoff_date", cutoffDate,
			"scores_deleted", scoreRows,
			"recommendations_deleted", recRows,
			"repositories_deleted", repoRows,
		)
	}

	return nil
}

// ScheduleDataCleanup runs periodic cleanup until the context is cancelled
func (ps *PrivacyService) ScheduleDataCleanup(ctx context.Context, interval time.Duration) {
	slog.Info("Scheduling data cleanup", "retention_days", ps.retentionDays, "interval", interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ps.RunDataCleanup(ctx); err != nil {
					slog.Error("Scheduled data cleanup failed", "error", err)
				}
			}
		}
	}()
}

// GetDataRetentionInfo provides information about data retention policies
func (ps *PrivacyService) GetDataRetentionInfo() map[string]interface{} {
	return map[string]interface{}{
		"score_history_retention_days":  ps.retentionDays,
		"recommendation_retention_days": ps.retentionDays,
		"repository_snapshot_retention": "until next analysis",
		"cache_retention_minutes":       int(ps.cacheTTL.Minutes()),
		"data_deletion_response_time":   "immediate",
		"stored_data_sources":           []string{"github_rest_api", "github_graphql_api"},
	}
}
