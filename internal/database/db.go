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

// FileName is the SQLite file created inside the data directory.
const FileName = "happiness.db"

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DefaultPoolConfig suits a single server process writing through WAL.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MaxOpenConns: 25, MaxIdleConns: 5, MaxLifetime: 5 * time.Minute}
}

// DB is the results database: a pooled *sql.DB plus the prepared hot-path
// statements.
type DB struct {
	*sql.DB
	pool PoolConfig

	mu       sync.RWMutex
	prepared map[string]*sql.Stmt
}

// migrations are applied in order; each index+1 is a schema version.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS survey_results (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		country TEXT NOT NULL,
		total_score INTEGER NOT NULL,
		level TEXT NOT NULL,
		dimension_scores TEXT NOT NULL, -- JSON object dimension -> score
		ip_hash TEXT,
		is_public BOOLEAN DEFAULT FALSE,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_survey_results_country ON survey_results(country);
	CREATE INDEX IF NOT EXISTS idx_survey_results_created ON survey_results(created_at);
	CREATE INDEX IF NOT EXISTS idx_survey_results_score ON survey_results(total_score DESC);
	CREATE INDEX IF NOT EXISTS idx_survey_results_session ON survey_results(session_id);`,

	// period_start/period_end hold YYYY-MM-DD text
	`CREATE TABLE IF NOT EXISTS leaderboard_entries (
		id TEXT PRIMARY KEY,
		result_id TEXT NOT NULL,
		period TEXT NOT NULL, -- 'daily', 'weekly', 'monthly', 'all_time'
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		rank INTEGER NOT NULL,
		total_score INTEGER NOT NULL,
		level TEXT NOT NULL,
		country TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(result_id, period, period_start),
		FOREIGN KEY (result_id) REFERENCES survey_results(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_leaderboard_entries_period ON leaderboard_entries(period, period_start, rank);
	CREATE INDEX IF NOT EXISTS idx_leaderboard_entries_result ON leaderboard_entries(result_id);`,
}

// NewDB opens (creating if needed) the results database in dataDir and
// brings its schema up to date.
func NewDB(dataDir string) (*DB, error) {
	return Open(dataDir, DefaultPoolConfig())
}

// Open is NewDB with explicit pool limits.
func Open(dataDir string, pool PoolConfig) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, FileName)
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.MaxLifetime)

	db := &DB{DB: sqlDB, pool: pool, prepared: make(map[string]*sql.Stmt)}

	version, err := db.migrate()
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := db.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	slog.Info("Database initialized",
		"path", dbPath,
		"schema_version", version,
		"max_open_conns", pool.MaxOpenConns)

	return db, nil
}

// migrate applies pending migrations and returns the resulting schema version.
func (db *DB) migrate() (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL
	)`); err != nil {
		return 0, err
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return 0, err
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		tx, err := db.Begin()
		if err != nil {
			return current, err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return current, fmt.Errorf("migration %d: %w", version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			version, time.Now().UTC()); err != nil {
			tx.Rollback()
			return current, fmt.Errorf("migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return current, fmt.Errorf("migration %d: %w", version, err)
		}
		current = version
	}

	return current, nil
}

// SchemaVersion returns the highest applied migration.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	return version, err
}

const (
	stmtInsertResult = "insert_result"
	stmtGetResult    = "get_result"
)

func (db *DB) prepareStatements() error {
	statements := map[string]string{
		stmtInsertResult: `INSERT INTO survey_results (
			id, session_id, country, total_score, level, dimension_scores, ip_hash, is_public, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,

		stmtGetResult: `SELECT id, session_id, country, total_score, level, dimension_scores, ip_hash, is_public, created_at
			FROM survey_results WHERE id = ?`,
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("statement %s: %w", name, err)
		}
		db.prepared[name] = stmt
	}
	return nil
}

// GetPreparedStatement returns a statement prepared at open.
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stmt, ok := db.prepared[name]
	if !ok {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}
	return stmt, nil
}

// GetPoolStats returns connection pool statistics for /metrics.
func (db *DB) GetPoolStats() map[string]interface{} {
	stats := db.Stats()
	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": db.pool.MaxOpenConns,
		"max_idle_connections": db.pool.MaxIdleConns,
		"max_lifetime_seconds": db.pool.MaxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// Close closes the prepared statements and the database.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
