// Package settings is a small key/value store for runtime-changeable
// configuration: webhook URL, admin password hash, per-device bandwidth
// thresholds, and maintenance bookkeeping.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// Well-known setting keys.
const (
	KeyWebhookURL   = "webhook_url"
	KeyPasswordHash = "admin_password_hash"
	KeyLastVacuumAt = "last_vacuum_at"
	KeyAlertsDays   = "retention_alerts_days"

	// bandwidthKeyPrefix namespaces per-device thresholds.
	bandwidthKeyPrefix = "bandwidth_threshold_bps."
)

// Store reads and writes settings rows.
type Store struct {
	db *sql.DB
}

// NewStore applies the settings migration and wraps the shared handle.
func NewStore(ctx context.Context, base plugin.Store) (*Store, error) {
	migs := []plugin.Migration{
		{
			Version:     1,
			Description: "create settings table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE settings (
					key        TEXT PRIMARY KEY,
					value      TEXT NOT NULL,
					updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`)
				return err
			},
		},
	}
	if err := base.Migrate(ctx, "settings", migs); err != nil {
		return nil, err
	}
	return &Store{db: base.DB()}, nil
}

// Get returns a setting's value, or "" if unset.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, nil
}

// Set writes a setting, creating or replacing it.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// Delete removes a setting. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	return err
}

// All returns every setting except secrets.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM settings WHERE key != ?`, KeyPasswordHash)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// WebhookURL implements the webhook notifier's URL source.
func (s *Store) WebhookURL(ctx context.Context) (string, error) {
	return s.Get(ctx, KeyWebhookURL)
}

// PasswordHash implements the auth password source.
func (s *Store) PasswordHash(ctx context.Context) (string, error) {
	return s.Get(ctx, KeyPasswordHash)
}

// SetPasswordHash implements the auth password source.
func (s *Store) SetPasswordHash(ctx context.Context, hash string) error {
	return s.Set(ctx, KeyPasswordHash, hash)
}

// BandwidthThreshold implements the alert engine's threshold source.
// Zero means no threshold is configured for the device.
func (s *Store) BandwidthThreshold(ctx context.Context, deviceID string) (int64, error) {
	v, err := s.Get(ctx, bandwidthKeyPrefix+deviceID)
	if err != nil || v == "" {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

// SetBandwidthThreshold stores a device's threshold; zero clears it.
func (s *Store) SetBandwidthThreshold(ctx context.Context, deviceID string, bps int64) error {
	if bps <= 0 {
		return s.Delete(ctx, bandwidthKeyPrefix+deviceID)
	}
	return s.Set(ctx, bandwidthKeyPrefix+deviceID, strconv.FormatInt(bps, 10))
}

// LastVacuumAt returns when the database was last compacted, zero if never.
func (s *Store) LastVacuumAt(ctx context.Context) (time.Time, error) {
	v, err := s.Get(ctx, KeyLastVacuumAt)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

// SetLastVacuumAt records a successful compaction.
func (s *Store) SetLastVacuumAt(ctx context.Context, t time.Time) error {
	return s.Set(ctx, KeyLastVacuumAt, t.UTC().Format(time.RFC3339))
}
