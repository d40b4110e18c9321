package database

import (
	"encoding/json"
	"time"
)

// ScoreRecord is one append-only row of a user's score history.
type ScoreRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	OverallScore int       `json:"overall_score"`
	Dimensions   string    `json:"-"` // versioned JSON envelope
	Improvement  *float64  `json:"improvement"`
	AnalysisID   string    `json:"analysis_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// RepositoryRecord is a persisted snapshot of a normalized repository.
type RepositoryRecord struct {
	UserID       string    `json:"user_id"`
	RepoName     string    `json:"repo_name"`
	Description  string    `json:"description,omitempty"`
	URL          string    `json:"url"`
	Stars        int       `json:"stars"`
	Language     string    `json:"language,omitempty"`
	Topics       []string  `json:"topics"`
	Forks        int       `json:"forks"`
	Source       string    `json:"source"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// RecommendationRecord is a persisted recommendation payload tied to one
// analysis run.
type RecommendationRecord struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	AnalysisID      string    `json:"analysis_id"`
	Recommendations string    `json:"-"` // JSON insight payload
	GeneratedBy     string    `json:"generated_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// dimensionsEnvelope wraps persisted dimension payloads with a schema version
// so old rows stay readable when the dimension set changes.
type dimensionsEnvelope struct {
	SchemaVersion int             `json:"schema_version"`
	Dimensions    json.RawMessage `json:"dimensions"`
}
