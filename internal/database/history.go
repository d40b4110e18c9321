package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gitprofile/analyzer/internal/analysis"
	"github.com/gitprofile/analyzer/internal/types"
)

// Store provides persistence for score history, repository snapshots and
// recommendation payloads. It satisfies analysis.HistoryStore.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// AppendScore records one analysis run. Rows are append-only; prior history
// is never rewritten.
func (s *Store) AppendScore(ctx context.Context, userID string, score *analysis.ProfileScore) error {
	dims, err := json.Marshal(score.Dimensions)
	if err != nil {
		return fmt.Errorf("failed to marshal dimensions: %w", err)
	}
	envelope, err := json.Marshal(dimensionsEnvelope{
		SchemaVersion: analysis.SchemaVersion,
		Dimensions:    dims,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dimensions envelope: %w", err)
	}

	stmt, err := s.db.GetPreparedStatement("insert_score")
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx,
		uuid.New().String(),
		userID,
		score.Overall,
		string(envelope),
		score.Improvement,
		score.AnalysisID,
		score.LastAnalyzedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert score: %w", err)
	}

	return nil
}

// MostRecentOverall returns the latest recorded overall score for a user.
// The second return value reports whether any history exists.
func (s *Store) MostRecentOverall(ctx context.Context, userID string) (float64, bool, error) {
	stmt, err := s.db.GetPreparedStatement("get_latest_score")
	if err != nil {
		return 0, false, err
	}

	var overall float64
	err = stmt.QueryRowContext(ctx, userID).Scan(&overall)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query latest score: %w", err)
	}

	return overall, true, nil
}

// RecentScores returns up to limit history rows for a user, newest first.
func (s *Store) RecentScores(ctx context.Context, userID string, limit int) ([]ScoreRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	stmt, err := s.db.GetPreparedStatement("get_score_history")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query score history: %w", err)
	}
	defer rows.Close()

	var records []ScoreRecord
	for rows.Next() {
		var rec ScoreRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.OverallScore, &rec.Dimensions,
			&rec.Improvement, &rec.AnalysisID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate score rows: %w", err)
	}

	return records, nil
}

// DecodeDimensions parses the persisted dimensions envelope of a history row.
func (r *ScoreRecord) DecodeDimensions() (map[string]analysis.ScoreDimension, error) {
	var envelope dimensionsEnvelope
	if err := json.Unmarshal([]byte(r.Dimensions), &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse dimensions envelope: %w", err)
	}
	if envelope.SchemaVersion > analysis.SchemaVersion {
		return nil, fmt.Errorf("unsupported dimensions schema version %d", envelope.SchemaVersion)
	}

	dims := make(map[string]analysis.ScoreDimension)
	if err := json.Unmarshal(envelope.Dimensions, &dims); err != nil {
		return nil, fmt.Errorf("failed to parse dimensions: %w", err)
	}
	return dims, nil
}

// SaveRepositories upserts the normalized repository snapshot for a user.
func (s *Store) SaveRepositories(ctx context.Context, userID string, repos []types.Repository) error {
	stmt, err := s.db.GetPreparedStatement("upsert_repository")
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, repo := range repos {
		topics, err := json.Marshal(repo.Topics)
		if err != nil {
			return fmt.Errorf("failed to marshal topics for %s: %w", repo.Name, err)
		}

		_, err = stmt.ExecContext(ctx,
			userID,
			repo.Name,
			repo.Description,
			repo.URL,
			repo.Stars,
			repo.Language,
			string(topics),
			repo.Forks,
			repo.Source.String(),
			repo.UpdatedAt.UTC(),
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert repository %s: %w", repo.Name, err)
		}
	}

	return nil
}

// LoadRepositories returns the stored snapshot for a user, most-starred first.
func (s *Store) LoadRepositories(ctx context.Context, userID string) ([]RepositoryRecord, error) {
	stmt, err := s.db.GetPreparedStatement("get_repositories")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query repositories: %w", err)
	}
	defer rows.Close()

	var records []RepositoryRecord
	for rows.Next() {
		var (
			rec       RepositoryRecord
			topicsRaw sql.NullString
			desc      sql.NullString
			lang      sql.NullString
		)
		if err := rows.Scan(&rec.RepoName, &desc, &rec.URL, &rec.Stars, &lang,
			&topicsRaw, &rec.Forks, &rec.Source, &rec.UpdatedAt, &rec.LastSyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan repository row: %w", err)
		}
		rec.UserID = userID
		rec.Description = desc.String
		rec.Language = lang.String
		if topicsRaw.Valid && topicsRaw.String != "" {
			if err := json.Unmarshal([]byte(topicsRaw.String), &rec.Topics); err != nil {
				return nil, fmt.Errorf("failed to parse topics for %s: %w", rec.RepoName, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate repository rows: %w", err)
	}

	return records, nil
}

// SaveRecommendations persists a recommendation payload for one analysis.
func (s *Store) SaveRecommendations(ctx context.Context, userID, analysisID string, payload interface{}, generatedBy string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	stmt, err := s.db.GetPreparedStatement("insert_recommendations")
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx,
		uuid.New().String(),
		userID,
		analysisID,
		string(data),
		generatedBy,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert recommendations: %w", err)
	}

	return nil
}

// LatestRecommendations returns the newest stored recommendation payload for
// a user, or nil when none exists.
func (s *Store) LatestRecommendations(ctx context.Context, userID string) (*RecommendationRecord, error) {
	stmt, err := s.db.GetPreparedStatement("get_latest_recommendations")
	if err != nil {
		return nil, err
	}

	var rec RecommendationRecord
	err = stmt.QueryRowContext(ctx, userID).Scan(&rec.ID, &rec.UserID, &rec.AnalysisID,
		&rec.Recommendations, &rec.GeneratedBy, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}

	return &rec, nil
}
