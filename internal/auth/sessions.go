package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// SessionStore persists UI session tokens.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates the store and applies its migrations.
func NewSessionStore(ctx context.Context, st plugin.Store) (*SessionStore, error) {
	if err := st.Migrate(ctx, "auth", migrations()); err != nil {
		return nil, err
	}
	return &SessionStore{db: st.DB()}, nil
}

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create sessions table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE sessions (
					token      TEXT PRIMARY KEY,
					expires_at DATETIME NOT NULL
				)`)
				return err
			},
		},
	}
}

// Create inserts a new session valid for the given duration.
func (s *SessionStore) Create(ctx context.Context, token string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (token, expires_at) VALUES (?, ?)",
		token, time.Now().UTC().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Valid reports whether the token identifies an unexpired session.
func (s *SessionStore) Valid(ctx context.Context, token string) (bool, error) {
	var expires time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT expires_at FROM sessions WHERE token = ?", token,
	).Scan(&expires)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query session: %w", err)
	}
	return expires.After(time.Now().UTC()), nil
}

// Delete removes a session (logout).
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// DeleteExpired removes all expired sessions, returning the count.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < ?", time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
