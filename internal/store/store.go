// Package store persists conversion sessions and platform tokens in SQLite.
//
// Progress rows are short-lived and overwritten in place as a conversion
// advances. Result rows live longer and are consumed on first read.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/crosstune/crosstune/internal/shared"
	"github.com/crosstune/crosstune/internal/transport"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS progress (
	id TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	expires_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	id TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	expires_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS tokens (
	platform TEXT PRIMARY KEY,
	access_token TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	expiry TIMESTAMP,
	updated_at TIMESTAMP NOT NULL
);
`

// Sessions is the SQLite-backed session and token store.
type Sessions struct {
	db          *sql.DB
	progressTTL time.Duration
	resultTTL   time.Duration

	// overridable in tests
	now func() time.Time
}

// Open opens (creating if needed) the store at path. progressTTL bounds how
// long in-flight progress is readable, resultTTL how long a finished result
// waits to be claimed.
func Open(path string, progressTTL, resultTTL time.Duration) (*Sessions, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	if progressTTL <= 0 {
		progressTTL = 5 * time.Minute
	}
	if resultTTL <= 0 {
		resultTTL = 30 * time.Minute
	}

	return &Sessions{
		db:          db,
		progressTTL: progressTTL,
		resultTTL:   resultTTL,
		now:         time.Now,
	}, nil
}

func (s *Sessions) Close() error { return s.db.Close() }

// PutProgress upserts the progress snapshot for a conversion, resetting its
// expiry.
func (s *Sessions) PutProgress(id string, snapshot any) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	s.purge("progress")
	_, err = s.db.Exec(
		`INSERT INTO progress (id, payload, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		id, payload, s.now().Add(s.progressTTL),
	)
	return err
}

// Progress returns the latest snapshot for a conversion.
func (s *Sessions) Progress(id string) (json.RawMessage, error) {
	s.purge("progress")

	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM progress WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	return payload, nil
}

// PutResult stores the finished conversion result and drops the progress
// row, which is now stale.
func (s *Sessions) PutResult(id string, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	s.purge("results")
	_, err = s.db.Exec(
		`INSERT INTO results (id, payload, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		id, payload, s.now().Add(s.resultTTL),
	)
	if err != nil {
		return err
	}

	_, _ = s.db.Exec(`DELETE FROM progress WHERE id = ?`, id)
	return nil
}

// TakeResult returns a stored result and deletes it. A second call for the
// same id reports the session as unknown.
func (s *Sessions) TakeResult(id string) (json.RawMessage, error) {
	s.purge("results")

	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM results WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(`DELETE FROM results WHERE id = ?`, id); err != nil {
		return nil, err
	}

	return payload, nil
}

// SaveTokens upserts the auth tokens for a platform.
func (s *Sessions) SaveTokens(platform string, t transport.Tokens) error {
	_, err := s.db.Exec(
		`INSERT INTO tokens (platform, access_token, refresh_token, expiry, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(platform) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at`,
		platform, t.Access, t.Refresh, t.Expiry, s.now(),
	)
	return err
}

// Tokens returns the saved tokens for a platform.
func (s *Sessions) Tokens(platform string) (transport.Tokens, error) {
	var t transport.Tokens
	err := s.db.QueryRow(
		`SELECT access_token, refresh_token, expiry FROM tokens WHERE platform = ?`,
		platform,
	).Scan(&t.Access, &t.Refresh, &t.Expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("%w: no tokens for %s", shared.ErrNotAuthenticated, platform)
	}
	return t, err
}

func (s *Sessions) purge(table string) {
	_, _ = s.db.Exec(`DELETE FROM `+table+` WHERE expires_at < ?`, s.now())
}
