package alerting

import (
	"database/sql"

	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create alerts table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE alerts (
						id              TEXT PRIMARY KEY,
						type            TEXT NOT NULL,
						severity        TEXT NOT NULL,
						device_id       TEXT NOT NULL DEFAULT '',
						agent_id        TEXT NOT NULL DEFAULT '',
						message         TEXT NOT NULL,
						details         TEXT NOT NULL DEFAULT '',
						is_read         INTEGER NOT NULL DEFAULT 0,
						acknowledged_at DATETIME,
						acknowledged_by TEXT NOT NULL DEFAULT '',
						created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX idx_alerts_created ON alerts(created_at)`,
					`CREATE INDEX idx_alerts_unread ON alerts(is_read) WHERE is_read = 0`,
					`CREATE INDEX idx_alerts_device ON alerts(device_id)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
