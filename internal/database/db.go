package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool creates a new database connection pool
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}
}

// NewDB creates a new database connection with optimized pooling
func NewDB(dataDir string) (*DB, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "profile_analyzer.db")

	// Configure connection string for better performance
	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool := NewConnectionPool(db, 25, 5, 5*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	// Run migrations
	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize prepared statements
	if err := database.initPreparedStatements(); err != nil {
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized with connection pooling",
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns,
		"max_lifetime", pool.maxLifetime)

	return database, nil
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	queries := []string{
		// Append-only score history
		`CREATE TABLE IF NOT EXISTS score_history (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			overall_score INTEGER NOT NULL,
			dimensions_data TEXT NOT NULL, -- versioned JSON envelope
			improvement REAL,
			analysis_id TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL
		)`,

		// Normalized repository snapshots, latest wins per (user, repo)
		`CREATE TABLE IF NOT EXISTS repositories (
			user_id TEXT NOT NULL,
			repo_name TEXT NOT NULL,
			description TEXT,
			url TEXT NOT NULL,
			stars INTEGER NOT NULL DEFAULT 0,
			language TEXT,
			topics TEXT, -- JSON array
			forks INTEGER NOT NULL DEFAULT 0,
			source TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			last_synced_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, repo_name)
		)`,

		// Generated recommendation payloads per analysis
		`CREATE TABLE IF NOT EXISTS ai_recommendations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			analysis_id TEXT NOT NULL,
			recommendations_data TEXT NOT NULL, -- JSON insight payload
			generated_by TEXT NOT NULL, -- 'gemini' or 'fallback'
			created_at DATETIME NOT NULL
		)`,

		// Indexes for performance
		`CREATE INDEX IF NOT EXISTS idx_score_history_user_id ON score_history(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_score_history_created ON score_history(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_repositories_user_id ON repositories(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_user_id ON ai_recommendations(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_created ON ai_recommendations(user_id, created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// initPreparedStatements initializes frequently used prepared statements
func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		"insert_score": `INSERT INTO score_history (id, user_id, overall_score, dimensions_data, improvement, analysis_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,

		"get_latest_score": `SELECT overall_score FROM score_history
			WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,

		"get_score_history": `SELECT id, user_id, overall_score, dimensions_data, improvement, analysis_id, created_at
			FROM score_history WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,

		"upsert_repository": `INSERT INTO repositories (
			user_id, repo_name, description, url, stars, language, topics, forks, source, updated_at, last_synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, repo_name) DO UPDATE SET
			description = excluded.description,
			url = excluded.url,
			stars = excluded.stars,
			language = excluded.language,
			topics = excluded.topics,
			forks = excluded.forks,
			source = excluded.source,
			updated_at = excluded.updated_at,
			last_synced_at = excluded.last_synced_at`,

		"get_repositories": `SELECT repo_name, description, url, stars, language, topics, forks, source, updated_at, last_synced_at
			FROM repositories WHERE user_id = ? ORDER BY stars DESC, repo_name ASC`,

		"insert_recommendations": `INSERT INTO ai_recommendations (id, user_id, analysis_id, recommendations_data, generated_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,

		"get_latest_recommendations": `SELECT id, user_id, analysis_id, recommendations_data, generated_by, created_at
			FROM ai_recommendations WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt

		slog.Debug("Prepared statement initialized", "name", name)
	}

	return nil
}

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the database connection and prepared statements
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	// Close all prepared statements
	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}

	// Clear the map
	db.prepared = make(map[string]*sql.Stmt)

	// Close the database connection
	return db.DB.Close()
}
