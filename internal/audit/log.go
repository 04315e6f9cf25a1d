// Package audit keeps a durable trail of operator actions: logins,
// password changes, settings mutations, device and agent administration.
package audit

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// Entry is one recorded operator action.
type Entry struct {
	ID         int64     `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	Target     string    `json:"target,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Log writes and reads the audit trail.
type Log struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewLog applies the audit schema and returns the log.
func NewLog(ctx context.Context, st plugin.Store, logger *zap.Logger) (*Log, error) {
	if err := st.Migrate(ctx, "audit", migrations()); err != nil {
		return nil, err
	}
	return &Log{db: st.DB(), logger: logger, now: time.Now}, nil
}

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create audit log table",
			Up: func(tx *sql.Tx) error {
				if _, err := tx.Exec(`CREATE TABLE audit_log (
					id          INTEGER PRIMARY KEY AUTOINCREMENT,
					occurred_at DATETIME NOT NULL,
					actor       TEXT NOT NULL DEFAULT '',
					action      TEXT NOT NULL,
					target      TEXT NOT NULL DEFAULT '',
					detail      TEXT NOT NULL DEFAULT ''
				)`); err != nil {
					return err
				}
				_, err := tx.Exec(`CREATE INDEX idx_audit_log_occurred ON audit_log(occurred_at)`)
				return err
			},
		},
	}
}

// Record appends an entry. Auditing never fails the action being audited:
// write errors are logged and dropped.
func (l *Log) Record(ctx context.Context, actor, action, target, detail string) {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (occurred_at, actor, action, target, detail) VALUES (?, ?, ?, ?, ?)`,
		l.now().UTC(), actor, action, target, detail)
	if err != nil {
		l.logger.Warn("failed to record audit entry",
			zap.String("action", action), zap.Error(err))
	}
}

// List returns the newest entries first.
func (l *Log) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, occurred_at, actor, action, target, detail
         FROM audit_log ORDER BY occurred_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.Actor, &e.Action, &e.Target, &e.Detail); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteBefore prunes entries older than cutoff.
func (l *Log) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM audit_log WHERE occurred_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
