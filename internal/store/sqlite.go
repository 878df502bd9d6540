package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/riderunner/model"
	_ "modernc.org/sqlite"
)

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// migrations. ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *SQLite) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS zones (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			body TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			zone_id TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT,
			score INTEGER NOT NULL DEFAULT 0,
			max_countdown REAL NOT NULL DEFAULT 0,
			body TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS current_session (
			slot INTEGER PRIMARY KEY CHECK (slot = 1),
			session_id TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions(start_time DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_zones_created ON zones(created_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (s *SQLite) Save(ctx context.Context, sess model.GameSession) error {
	if sess.ID == "" {
		return fmt.Errorf("save session: missing id")
	}
	body, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	var end sql.NullString
	if sess.EndTime != nil {
		end = sql.NullString{String: formatTime(*sess.EndTime), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, zone_id, start_time, end_time, score, max_countdown, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			end_time = excluded.end_time,
			score = excluded.score,
			max_countdown = excluded.max_countdown,
			body = excluded.body`,
		sess.ID, sess.Zone.ID, formatTime(sess.StartTime), end, sess.Score, sess.MaxCountdown, string(body),
	); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO current_session (slot, session_id) VALUES (1, ?)
		ON CONFLICT(slot) DO UPDATE SET session_id = excluded.session_id`, sess.ID); err != nil {
		return fmt.Errorf("mark current session: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) LoadCurrent(ctx context.Context) (model.GameSession, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT s.body FROM current_session c
		JOIN sessions s ON s.id = c.session_id
		WHERE c.slot = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GameSession{}, ErrNotFound
	}
	if err != nil {
		return model.GameSession{}, fmt.Errorf("load current session: %w", err)
	}
	return decodeSession(body)
}

func (s *SQLite) ClearCurrent(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM current_session`); err != nil {
		return fmt.Errorf("clear current session: %w", err)
	}
	return nil
}

// ListSessions returns sessions newest first. A non-positive limit returns all.
func (s *SQLite) ListSessions(ctx context.Context, limit int) ([]model.GameSession, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM sessions ORDER BY start_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []model.GameSession
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess, err := decodeSession(body)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func decodeSession(body string) (model.GameSession, error) {
	var sess model.GameSession
	if err := json.Unmarshal([]byte(body), &sess); err != nil {
		return model.GameSession{}, fmt.Errorf("decode session: %w", err)
	}
	if sess.Deliveries == nil {
		sess.Deliveries = []model.Delivery{}
	}
	return sess, nil
}

func (s *SQLite) SaveZone(ctx context.Context, z model.Zone) error {
	if z.ID == "" {
		return fmt.Errorf("save zone: missing id")
	}
	body, err := json.Marshal(z)
	if err != nil {
		return fmt.Errorf("encode zone: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO zones (id, name, created_at, body) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, body = excluded.body`,
		z.ID, z.Name, formatTime(z.Created), string(body),
	); err != nil {
		return fmt.Errorf("save zone: %w", err)
	}
	return nil
}

func (s *SQLite) GetZone(ctx context.Context, id string) (model.Zone, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM zones WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Zone{}, fmt.Errorf("zone %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Zone{}, fmt.Errorf("get zone: %w", err)
	}
	var z model.Zone
	if err := json.Unmarshal([]byte(body), &z); err != nil {
		return model.Zone{}, fmt.Errorf("decode zone: %w", err)
	}
	return z, nil
}

// ListZones returns zones oldest first.
func (s *SQLite) ListZones(ctx context.Context) ([]model.Zone, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM zones ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	defer rows.Close()

	var out []model.Zone
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		var z model.Zone
		if err := json.Unmarshal([]byte(body), &z); err != nil {
			return nil, fmt.Errorf("decode zone: %w", err)
		}
		out = append(out, z)
	}
	return out, rows.Err()
}
