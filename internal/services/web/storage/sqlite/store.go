// Package sqlite provides the web storage adapter backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/statehouse/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/tokens"
	webstorage "github.com/louisbranch/statehouse/internal/services/web/storage"
	"github.com/louisbranch/statehouse/internal/services/web/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

//go:embed seed/tokens.json
var seedTokens []byte

// Store provides SQLite-backed persistence for the web service.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for updated_at columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens, migrates and seeds a SQLite store at path.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	ctx := context.Background()
	if _, err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := store.seed(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("seed tokens: %w", err)
	}
	return store, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// seed loads the bundled token list when the tokens table is empty.
func (s *Store) seed(ctx context.Context) error {
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tokens`).Scan(&count); err != nil {
		return fmt.Errorf("count tokens: %w", err)
	}
	if count > 0 {
		return nil
	}
	var list []tokens.Token
	if err := json.Unmarshal(seedTokens, &list); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	return s.UpsertTokens(ctx, list)
}

// LoadCounter returns the stored counter value, or zero when absent.
func (s *Store) LoadCounter(ctx context.Context, name string) (int, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("counter name is required")
	}

	var value int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load counter: %w", err)
	}
	return int(value), nil
}

// SaveCounter upserts a counter value.
func (s *Store) SaveCounter(ctx context.Context, name string, value int) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("counter name is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO counters (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		    value = excluded.value,
		    updated_at = excluded.updated_at`,
		name,
		int64(value),
		timeToUnixMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("save counter: %w", err)
	}
	return nil
}

// ListTokens returns every stored token, largest market cap first.
func (s *Store) ListTokens(ctx context.Context) ([]tokens.Token, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, payload_json FROM tokens ORDER BY mcap DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	list := make([]tokens.Token, 0)
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		var token tokens.Token
		if err := json.Unmarshal(payload, &token); err != nil {
			return nil, fmt.Errorf("decode token %s: %w", id, err)
		}
		list = append(list, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return list, nil
}

// UpsertTokens stores list in one transaction, replacing rows by id.
func (s *Store) UpsertTokens(ctx context.Context, list []tokens.Token) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	for _, token := range list {
		if strings.TrimSpace(token.ID) == "" {
			return fmt.Errorf("token id is required")
		}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tokens tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	updatedAt := timeToUnixMillis(s.now())
	for _, token := range list {
		payload, err := json.Marshal(token)
		if err != nil {
			return fmt.Errorf("encode token %s: %w", token.ID, err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO tokens (id, payload_json, mcap, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			    payload_json = excluded.payload_json,
			    mcap = excluded.mcap,
			    updated_at = excluded.updated_at`,
			token.ID,
			payload,
			token.Mcap,
			updatedAt,
		); err != nil {
			return fmt.Errorf("upsert token %s: %w", token.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tokens tx: %w", err)
	}
	return nil
}

// SaveSession upserts a browser session.
func (s *Store) SaveSession(ctx context.Context, session webstorage.Session) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	session.ID = strings.TrimSpace(session.ID)
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(session.Email) == "" {
		return fmt.Errorf("session email is required")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO web_sessions (id, email, user_id, user_name, remember_me, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		    email = excluded.email,
		    user_id = excluded.user_id,
		    user_name = excluded.user_name,
		    remember_me = excluded.remember_me,
		    expires_at = excluded.expires_at`,
		session.ID,
		session.Email,
		strings.TrimSpace(session.UserID),
		strings.TrimSpace(session.UserName),
		boolToInt(session.RememberMe),
		timeToUnixMillis(session.CreatedAt),
		timeToUnixMillis(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession returns the session with id. Expired sessions are reported as
// absent.
func (s *Store) LoadSession(ctx context.Context, id string) (webstorage.Session, bool, error) {
	if s == nil || s.sqlDB == nil {
		return webstorage.Session{}, false, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return webstorage.Session{}, false, nil
	}

	var session webstorage.Session
	var remember int64
	var createdAt int64
	var expiresAt int64
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, email, user_id, user_name, remember_me, created_at, expires_at FROM web_sessions WHERE id = ?`,
		id,
	).Scan(&session.ID, &session.Email, &session.UserID, &session.UserName, &remember, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return webstorage.Session{}, false, nil
	}
	if err != nil {
		return webstorage.Session{}, false, fmt.Errorf("load session: %w", err)
	}
	session.RememberMe = remember != 0
	session.CreatedAt = unixMillisToTime(createdAt)
	session.ExpiresAt = unixMillisToTime(expiresAt)
	if session.Expired(s.now()) {
		return webstorage.Session{}, false, nil
	}
	return session, true, nil
}

// DeleteSession removes a session. Deleting an unknown id is not an error.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM web_sessions WHERE id = ?`, strings.TrimSpace(id)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

func timeToUnixMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func unixMillisToTime(value int64) time.Time {
	if value <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

var _ webstorage.Store = (*Store)(nil)
