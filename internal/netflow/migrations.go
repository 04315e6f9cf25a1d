package netflow

import (
	"database/sql"

	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// migrations returns the NetFlow module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create traffic_samples table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE traffic_samples (
						id         INTEGER PRIMARY KEY AUTOINCREMENT,
						device_id  TEXT NOT NULL,
						sampled_at DATETIME NOT NULL,
						rx_bps     INTEGER NOT NULL DEFAULT 0,
						tx_bps     INTEGER NOT NULL DEFAULT 0,
						source     TEXT NOT NULL DEFAULT 'netflow'
					)`,
					`CREATE INDEX idx_traffic_samples_device ON traffic_samples(device_id, sampled_at)`,
					`CREATE INDEX idx_traffic_samples_time ON traffic_samples(sampled_at)`,
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
