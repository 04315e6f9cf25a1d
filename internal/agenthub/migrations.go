package agenthub

import (
	"database/sql"

	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// migrations returns the AgentHub module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create agent tables (agents, agent_reports)",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE agents (
						id             TEXT PRIMARY KEY,
						device_id      TEXT NOT NULL DEFAULT '',
						name           TEXT NOT NULL DEFAULT '',
						api_key_hash   TEXT NOT NULL,
						last_report_at DATETIME,
						created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE TABLE agent_reports (
						id          INTEGER PRIMARY KEY AUTOINCREMENT,
						agent_id    TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
						reported_at DATETIME NOT NULL,
						hostname    TEXT NOT NULL DEFAULT '',
						os_name     TEXT NOT NULL DEFAULT '',
						os_version  TEXT NOT NULL DEFAULT '',
						cpu_percent REAL NOT NULL DEFAULT 0,
						mem_used    INTEGER NOT NULL DEFAULT 0,
						mem_total   INTEGER NOT NULL DEFAULT 0,
						disks       TEXT NOT NULL DEFAULT '[]',
						interfaces  TEXT NOT NULL DEFAULT '[]'
					)`,
					`CREATE INDEX idx_agent_reports_agent ON agent_reports(agent_id, reported_at)`,
					`CREATE INDEX idx_agent_reports_time ON agent_reports(reported_at)`,
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
