package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"wordclash/internal/domain"
)

// DefaultRecentLimit is how many matches RecentMatches returns when asked for none
const DefaultRecentLimit = 20

// MatchStore persists finished matches in SQLite
type MatchStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the match history database at path. ":memory:"
// opens a private in-memory database.
func Open(path string, logger *slog.Logger) (*MatchStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		logger.Warn("couldn't enable WAL mode", "error", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		logger.Warn("couldn't set busy timeout", "error", err)
	}

	store := &MatchStore{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("match history opened", "path", path)
	return store, nil
}

func (s *MatchStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			room_name TEXT NOT NULL DEFAULT '',
			winner_id TEXT NOT NULL,
			winner_name TEXT NOT NULL DEFAULT '',
			loser_id TEXT NOT NULL,
			loser_name TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL,
			winner_words INTEGER NOT NULL DEFAULT 0,
			loser_words INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			ended_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_matches_ended ON matches(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_matches_winner ON matches(winner_id);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// RecordMatch stores one finished match
func (s *MatchStore) RecordMatch(ctx context.Context, m domain.MatchResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (
			id, room_id, room_name, winner_id, winner_name, loser_id, loser_name,
			reason, winner_words, loser_words, started_at, ended_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.RoomID, m.RoomName, m.WinnerID, m.WinnerName, m.LoserID, m.LoserName,
		string(m.Reason), m.WinnerWords, m.LoserWords, m.StartedAt.UnixMilli(), m.EndedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record match %s: %w", m.ID, err)
	}
	return nil
}

// RecentMatches returns the most recently ended matches, newest first
func (s *MatchStore) RecentMatches(ctx context.Context, limit int) ([]domain.MatchResult, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, room_name, winner_id, winner_name, loser_id, loser_name,
			reason, winner_words, loser_words, started_at, ended_at
		FROM matches
		ORDER BY ended_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]domain.MatchResult, 0)
	for rows.Next() {
		var m domain.MatchResult
		var reason string
		var startedAt, endedAt int64
		if err := rows.Scan(&m.ID, &m.RoomID, &m.RoomName, &m.WinnerID, &m.WinnerName, &m.LoserID, &m.LoserName,
			&reason, &m.WinnerWords, &m.LoserWords, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Reason = domain.EndReason(reason)
		m.StartedAt = time.UnixMilli(startedAt).UTC()
		m.EndedAt = time.UnixMilli(endedAt).UTC()
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

// Close closes the database
func (s *MatchStore) Close() error {
	return s.db.Close()
}
