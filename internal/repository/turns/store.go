// Package turns persists one conversation turn per request in SQLite and
// serves the aggregate views behind the operator panel.
package turns

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kaabil/faqbot/internal/domain"
)

// Store is the SQLite-backed turn log.
type Store struct {
	db *sql.DB
}

// New opens or creates the turn log database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TEXT,
		session_id TEXT,
		ip TEXT,
		user_agent TEXT,
		query TEXT,
		answer TEXT,
		used_evidence INTEGER,
		citations TEXT,
		latency_ms INTEGER,
		provider TEXT,
		model TEXT,
		topk INTEGER,
		threshold REAL
	);

	CREATE INDEX IF NOT EXISTS idx_turns_ts ON turns(ts);
	`
	_, err := db.Exec(schema)
	return err
}

// Insert appends one turn. Each insert is a self-contained statement, safe
// under concurrent requests.
func (s *Store) Insert(ctx context.Context, turn domain.Turn) error {
	citations := turn.Citations
	if citations == nil {
		citations = []string{}
	}
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}

	usedEvidence := 0
	if turn.UsedEvidence {
		usedEvidence = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO turns (
			ts, session_id, ip, user_agent, query, answer,
			used_evidence, citations, latency_ms, provider, model, topk, threshold
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.TS, turn.SessionID, turn.IP, turn.UserAgent, turn.Query, turn.Answer,
		usedEvidence, string(citationsJSON), turn.LatencyMS,
		turn.Provider, turn.Model, turn.TopK, turn.Threshold,
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// Summary aggregates turns with ts in [from, to] (RFC3339 strings compare
// lexicographically).
type Summary struct {
	Total            int     `json:"total"`
	WithEvidence     int     `json:"with_evidence"`
	WithCitations    int     `json:"with_citations"`
	AvgLatencyMS     float64 `json:"avg_latency_ms"`
	MaxLatencyMS     int     `json:"max_latency_ms"`
	DistinctSessions int     `json:"distinct_sessions"`
}

// Summarize computes the panel aggregates for the given ts range.
func (s *Store) Summarize(ctx context.Context, from, to string) (Summary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(used_evidence), 0),
			COALESCE(SUM(CASE WHEN citations NOT IN ('', '[]', 'null') THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(latency_ms), 0),
			COALESCE(MAX(latency_ms), 0),
			COUNT(DISTINCT session_id)
		FROM turns
		WHERE ts BETWEEN ? AND ?`,
		from, to,
	)

	var sum Summary
	if err := row.Scan(
		&sum.Total, &sum.WithEvidence, &sum.WithCitations,
		&sum.AvgLatencyMS, &sum.MaxLatencyMS, &sum.DistinctSessions,
	); err != nil {
		return Summary{}, fmt.Errorf("summarize turns: %w", err)
	}
	return sum, nil
}

// Recent returns the latest turns, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, session_id, ip, user_agent, query, answer,
			used_evidence, citations, latency_ms, provider, model, topk, threshold
		FROM turns
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	var out []domain.Turn
	for rows.Next() {
		var (
			turn          domain.Turn
			usedEvidence  int
			citationsJSON string
		)
		if err := rows.Scan(
			&turn.TS, &turn.SessionID, &turn.IP, &turn.UserAgent, &turn.Query, &turn.Answer,
			&usedEvidence, &citationsJSON, &turn.LatencyMS,
			&turn.Provider, &turn.Model, &turn.TopK, &turn.Threshold,
		); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.UsedEvidence = usedEvidence != 0
		// Malformed citation payloads degrade to an empty list.
		_ = json.Unmarshal([]byte(citationsJSON), &turn.Citations)
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return out, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping turn log: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close turn log: %w", err)
	}
	return nil
}
