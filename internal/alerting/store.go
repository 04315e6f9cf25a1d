package alerting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/panoptikon-net/panoptikon/internal/store"
	"github.com/panoptikon-net/panoptikon/pkg/models"
)

type txRunner interface {
	Tx(ctx context.Context, fn func(*sql.Tx) error) error
}

// Store persists alerts.
type Store struct {
	db   *sql.DB
	base txRunner
}

// NewStore wraps the shared database handle.
func NewStore(db *sql.DB, base txRunner) *Store {
	return &Store{db: db, base: base}
}

// Insert stores a new alert, assigning its ID and creation time.
func (s *Store) Insert(ctx context.Context, a *models.Alert) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, type, severity, device_id, agent_id, message, details, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		a.ID, a.Type, string(a.Severity), a.DeviceID, a.AgentID, a.Message, a.Details, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// ListFilter narrows List results. Zero values mean no filter.
type ListFilter struct {
	Type       string
	DeviceID   string
	UnreadOnly bool
	Limit      int
}

// List returns alerts newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]*models.Alert, error) {
	q := `SELECT id, type, severity, device_id, agent_id, message, details,
		is_read, acknowledged_at, acknowledged_by, created_at FROM alerts WHERE 1=1`
	var args []any
	if f.Type != "" {
		q += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.DeviceID != "" {
		q += ` AND device_id = ?`
		args = append(args, f.DeviceID)
	}
	if f.UnreadOnly {
		q += ` AND is_read = 0`
	}
	q += ` ORDER BY created_at DESC`
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Get returns one alert by ID.
func (s *Store) Get(ctx context.Context, id string) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, severity, device_id, agent_id, message, details,
			is_read, acknowledged_at, acknowledged_by, created_at FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return a, err
}

// MarkRead flags an alert as read.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Acknowledge records who acknowledged the alert and when. An acknowledged
// alert is always read.
func (s *Store) Acknowledge(ctx context.Context, id, by string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET acknowledged_at = ?, acknowledged_by = ?, is_read = 1 WHERE id = ?`,
		time.Now().UTC(), by, id)
	if err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteAcknowledgedBefore ages out acknowledged alerts; unacknowledged
// alerts are never deleted.
func (s *Store) DeleteAcknowledgedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE acknowledged_at IS NOT NULL AND created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete acknowledged alerts: %w", err)
	}
	return res.RowsAffected()
}

// CountUnread returns the number of unread alerts.
func (s *Store) CountUnread(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE is_read = 0`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	var sev string
	var ackAt sql.NullTime
	err := row.Scan(&a.ID, &a.Type, &sev, &a.DeviceID, &a.AgentID, &a.Message, &a.Details,
		&a.IsRead, &ackAt, &a.AcknowledgedBy, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Severity = models.Severity(sev)
	if ackAt.Valid {
		a.AcknowledgedAt = &ackAt.Time
	}
	return &a, nil
}
