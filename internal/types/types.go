package types

import "time"

// RepoSource identifies which fetch source produced a raw repository record.
// Lower values take precedence when the same repository name appears in more
// than one source.
type RepoSource int

const (
	SourcePinned RepoSource = iota
	SourceTopStarred
	SourceRecent
)

func (s RepoSource) String() string {
	switch s {
	case SourcePinned:
		return "pinned"
	case SourceTopStarred:
		return "top_starred"
	case SourceRecent:
		return "recent"
	default:
		return "unknown"
	}
}

// RawRepository is an unprocessed repository record as returned by one of the
// fetch sources. Optional fields may be nil; the normalizer supplies defaults.
type RawRepository struct {
	ID          string
	Name        string
	Description *string
	URL         string
	Stars       int
	Language    *string
	UpdatedAt   time.Time
	Topics      []string
	Forks       int
	Source      RepoSource
}

// Repository is the canonical normalized repository shape consumed by the
// scoring engine. Immutable once produced by the normalizer.
type Repository struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url"`
	Stars       int        `json:"stars"`
	Language    string     `json:"language,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Topics      []string   `json:"topics"`
	Forks       int        `json:"forks"`
	Source      RepoSource `json:"-"`
}

// Profile holds the user-level fields read by the scoring engine.
type Profile struct {
	Username    string    `json:"username"`
	Name        string    `json:"name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	PublicRepos int       `json:"public_repos"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	CreatedAt   time.Time `json:"created_at"`
}

// AnalyzeRequest represents the request structure for the analyze endpoint.
type AnalyzeRequest struct {
	Username string `json:"username" binding:"required"`
}
