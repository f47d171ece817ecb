// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// Package sqlitestore provides a SQLite backed signin.BindingStore, so
// sign-in sessions can be reattached after the process which started them
// exits.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/fedsignin/native"
	"github.com/hashicorp/fedsignin/scope"
	"github.com/hashicorp/fedsignin/signin"
	"github.com/hashicorp/go-hclog"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS signin_bindings (
	binding_key             TEXT PRIMARY KEY,
	session_id              TEXT NOT NULL,
	nonce                   TEXT NOT NULL,
	resolution_request_code INTEGER NOT NULL,
	consent_request_code    INTEGER NOT NULL,
	scopes                  TEXT NOT NULL,
	target                  TEXT NOT NULL,
	remember_last_login     INTEGER NOT NULL,
	phase                   TEXT NOT NULL,
	recovery_status         INTEGER NOT NULL,
	platform_state          BLOB,
	created_at              INTEGER NOT NULL,
	expires_at              INTEGER NOT NULL
)`

// Store persists bindings in SQLite.
type Store struct {
	db     *sql.DB
	logger hclog.Logger
}

// ensure that Store implements the signin.BindingStore interface
var _ signin.BindingStore = (*Store)(nil)

// Open opens the SQLite database at path, creating it and its schema if
// needed. Use ":memory:" for a store which lives as long as the Store.
//
// Supported options: WithLogger
func Open(ctx context.Context, path string, opt ...Option) (*Store, error) {
	const op = "sqlitestore.Open"
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%s: path is empty: %w", op, signin.ErrInvalidParameter)
	}
	opts := getOpts(opt...)

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to open database: %w", op, err)
	}
	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: unable to ping database: %w", op, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: unable to create schema: %w", op, err)
	}
	opts.withLogger.Debug("opened binding store", "path", path)
	return &Store{db: db, logger: opts.withLogger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save implements signin.BindingStore.
func (s *Store) Save(ctx context.Context, b *signin.Binding) error {
	const op = "sqlitestore.(Store).Save"
	switch {
	case b == nil:
		return fmt.Errorf("%s: binding is nil: %w", op, signin.ErrNilParameter)
	case b.Key == "":
		return fmt.Errorf("%s: binding key is empty: %w", op, signin.ErrInvalidParameter)
	case b.SessionID == "":
		return fmt.Errorf("%s: session id is empty: %w", op, signin.ErrInvalidParameter)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO signin_bindings (
	binding_key, session_id, nonce, resolution_request_code, consent_request_code,
	scopes, target, remember_last_login, phase, recovery_status, platform_state,
	created_at, expires_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(binding_key) DO UPDATE SET
	session_id = excluded.session_id,
	nonce = excluded.nonce,
	resolution_request_code = excluded.resolution_request_code,
	consent_request_code = excluded.consent_request_code,
	scopes = excluded.scopes,
	target = excluded.target,
	remember_last_login = excluded.remember_last_login,
	phase = excluded.phase,
	recovery_status = excluded.recovery_status,
	platform_state = excluded.platform_state,
	created_at = excluded.created_at,
	expires_at = excluded.expires_at`,
		b.Key,
		b.SessionID,
		b.Nonce,
		b.ResolutionRequestCode,
		b.ConsentRequestCode,
		scope.Join(b.Scopes),
		b.Target,
		b.RememberLastLogin,
		b.Phase.String(),
		int(b.RecoveryStatus),
		b.PlatformState,
		toMillis(b.CreatedAt),
		toMillis(b.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("%s: unable to save binding: %w", op, err)
	}
	return nil
}

// Load implements signin.BindingStore.
func (s *Store) Load(ctx context.Context, key string) (*signin.Binding, error) {
	const op = "sqlitestore.(Store).Load"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	row := s.db.QueryRowContext(ctx, `
SELECT session_id, nonce, resolution_request_code, consent_request_code,
	scopes, target, remember_last_login, phase, recovery_status, platform_state,
	created_at, expires_at
FROM signin_bindings WHERE binding_key = ?`, key)

	b := signin.Binding{Key: key}
	var (
		scopes, phase        string
		recoveryStatus       int
		createdAt, expiresAt int64
	)
	err := row.Scan(
		&b.SessionID,
		&b.Nonce,
		&b.ResolutionRequestCode,
		&b.ConsentRequestCode,
		&scopes,
		&b.Target,
		&b.RememberLastLogin,
		&phase,
		&recoveryStatus,
		&b.PlatformState,
		&createdAt,
		&expiresAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%s: binding %q: %w", op, key, signin.ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("%s: unable to load binding: %w", op, err)
	}
	if b.Phase, err = signin.ParsePhase(phase); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	b.Scopes = scope.Parse(scopes)
	b.RecoveryStatus = native.Status(recoveryStatus)
	if len(b.PlatformState) == 0 {
		b.PlatformState = nil
	}
	b.CreatedAt = fromMillis(createdAt)
	b.ExpiresAt = fromMillis(expiresAt)
	return &b, nil
}

// Delete implements signin.BindingStore.
func (s *Store) Delete(ctx context.Context, key, sessionID string) error {
	const op = "sqlitestore.(Store).Delete"
	res, err := s.db.ExecContext(ctx, `DELETE FROM signin_bindings WHERE binding_key = ? AND session_id = ?`, key, sessionID)
	if err != nil {
		return fmt.Errorf("%s: unable to delete binding: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Trace("no binding to delete", "key", key, "session_id", sessionID)
	}
	return nil
}

// DeleteExpired removes every binding which expired before now and returns
// how many were removed.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "sqlitestore.(Store).DeleteExpired"
	res, err := s.db.ExecContext(ctx, `DELETE FROM signin_bindings WHERE expires_at < ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("%s: unable to delete expired bindings: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
