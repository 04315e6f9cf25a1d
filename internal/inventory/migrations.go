package inventory

import (
	"database/sql"

	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// migrations returns the Inventory module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create inventory tables (devices, device_ips, device_events)",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE devices (
						id                   TEXT PRIMARY KEY,
						mac                  TEXT NOT NULL UNIQUE,
						hostname             TEXT NOT NULL DEFAULT '',
						vendor               TEXT NOT NULL DEFAULT '',
						icon                 TEXT NOT NULL DEFAULT 'device',
						notes                TEXT NOT NULL DEFAULT '',
						is_known             INTEGER NOT NULL DEFAULT 0,
						is_favorite          INTEGER NOT NULL DEFAULT 0,
						is_online            INTEGER NOT NULL DEFAULT 0,
						first_seen_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						last_seen_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						os_family            TEXT NOT NULL DEFAULT '',
						os_version           TEXT NOT NULL DEFAULT '',
						device_type          TEXT NOT NULL DEFAULT '',
						device_brand         TEXT NOT NULL DEFAULT '',
						device_model         TEXT NOT NULL DEFAULT '',
						enrichment_source    TEXT NOT NULL DEFAULT '',
						enrichment_corrected INTEGER NOT NULL DEFAULT 0,
						mdns_services        TEXT NOT NULL DEFAULT '',
						muted_until          DATETIME,
						updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX idx_devices_last_seen ON devices(last_seen_at)`,
					`CREATE INDEX idx_devices_online ON devices(is_online)`,
					`CREATE TABLE device_ips (
						device_id  TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
						ip         TEXT NOT NULL,
						is_current INTEGER NOT NULL DEFAULT 1,
						seen_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						PRIMARY KEY (device_id, ip)
					)`,
					`CREATE INDEX idx_device_ips_current ON device_ips(ip) WHERE is_current = 1`,
					`CREATE TABLE device_events (
						id          INTEGER PRIMARY KEY AUTOINCREMENT,
						device_id   TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
						event_type  TEXT NOT NULL,
						detail      TEXT NOT NULL DEFAULT '',
						occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX idx_device_events_device ON device_events(device_id, occurred_at)`,
					`CREATE INDEX idx_device_events_time ON device_events(occurred_at)`,
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
