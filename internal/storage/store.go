package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"agentgames/internal/result"
)

// ErrNotFound is returned when a result or session row does not exist.
var ErrNotFound = errors.New("not found")

// ResultRow summarizes a stored match result.
type ResultRow struct {
	ID        string    `json:"id"`
	Game      string    `json:"game"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionRow is the persisted navigator position of a viewing session.
type SessionRow struct {
	Code      string
	ResultID  string
	Filter    string
	Match     int
	Event     int
	UpdatedAt time.Time
}

// Store handles SQLite persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			id         TEXT PRIMARY KEY,
			game       TEXT NOT NULL DEFAULT '',
			payload    TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS results_game ON results(game);
		CREATE TABLE IF NOT EXISTS viewing_sessions (
			code       TEXT PRIMARY KEY,
			result_id  TEXT NOT NULL REFERENCES results(id),
			filter     TEXT NOT NULL DEFAULT 'all',
			match_idx  INTEGER NOT NULL DEFAULT 0,
			event_idx  INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

// SaveResult upserts res. An empty ID is replaced by a new UUID and a zero
// CreatedAt by the current time; both are written back to res.
func (s *Store) SaveResult(ctx context.Context, res *result.MatchResult) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (id, game, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET game = excluded.game, payload = excluded.payload
	`, res.ID, res.Game, string(payload), res.CreatedAt)
	return err
}

// GetResult retrieves a result by id.
func (s *Store) GetResult(ctx context.Context, id string) (*result.MatchResult, error) {
	var payload string
	var created time.Time
	err := s.db.QueryRowContext(ctx, "SELECT payload, created_at FROM results WHERE id = ?", id).Scan(&payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	res, err := result.Parse([]byte(payload))
	if err != nil {
		return nil, err
	}
	res.ID = id
	res.CreatedAt = created
	return res, nil
}

// ListResults returns stored results for game (or all if game is empty),
// newest first.
func (s *Store) ListResults(ctx context.Context, game string) ([]ResultRow, error) {
	var rows *sql.Rows
	var err error
	if game == "" {
		rows, err = s.db.QueryContext(ctx, "SELECT id, game, created_at FROM results ORDER BY created_at DESC, id")
	} else {
		rows, err = s.db.QueryContext(ctx, "SELECT id, game, created_at FROM results WHERE game = ? ORDER BY created_at DESC, id", game)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ResultRow
	for rows.Next() {
		var r ResultRow
		if err := rows.Scan(&r.ID, &r.Game, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteResult removes a result and every session viewing it.
func (s *Store) DeleteResult(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM viewing_sessions WHERE result_id = ?", id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM results WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveSession upserts a session's navigator position.
func (s *Store) SaveSession(ctx context.Context, row SessionRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO viewing_sessions (code, result_id, filter, match_idx, event_idx, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(code) DO UPDATE SET
			result_id = excluded.result_id,
			filter = excluded.filter,
			match_idx = excluded.match_idx,
			event_idx = excluded.event_idx,
			updated_at = excluded.updated_at
	`, row.Code, row.ResultID, row.Filter, row.Match, row.Event)
	return err
}

// GetSession retrieves a session by code.
func (s *Store) GetSession(ctx context.Context, code string) (*SessionRow, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT code, result_id, filter, match_idx, event_idx, updated_at FROM viewing_sessions WHERE code = ?", code)
	var sr SessionRow
	err := row.Scan(&sr.Code, &sr.ResultID, &sr.Filter, &sr.Match, &sr.Event, &sr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sr, nil
}

// ListSessions returns every persisted session, most recently used first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT code, result_id, filter, match_idx, event_idx, updated_at FROM viewing_sessions ORDER BY updated_at DESC, code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionRow
	for rows.Next() {
		var sr SessionRow
		if err := rows.Scan(&sr.Code, &sr.ResultID, &sr.Filter, &sr.Match, &sr.Event, &sr.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

// DeleteSession removes a session row.
func (s *Store) DeleteSession(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM viewing_sessions WHERE code = ?", code)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
