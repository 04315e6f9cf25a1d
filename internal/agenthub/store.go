package agenthub

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/panoptikon-net/panoptikon/internal/store"
	"github.com/panoptikon-net/panoptikon/pkg/models"
)

// ErrBadAPIKey is returned when no registered agent matches a presented key.
var ErrBadAPIKey = errors.New("agenthub: unknown api key")

type txRunner interface {
	Tx(ctx context.Context, fn func(*sql.Tx) error) error
}

// Store persists agents and their health reports.
type Store struct {
	db   *sql.DB
	base txRunner
}

// NewStore wraps the shared database handle.
func NewStore(db *sql.DB, base txRunner) *Store {
	return &Store{db: db, base: base}
}

// CreateAgent registers a new agent and returns it together with the
// plaintext API key. The key is shown exactly once; only its bcrypt hash
// is stored.
func (s *Store) CreateAgent(ctx context.Context, name, deviceID string) (*models.Agent, string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("generate api key: %w", err)
	}
	key := "pan_" + hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash api key: %w", err)
	}

	agent := &models.Agent{
		ID:        uuid.New().String(),
		DeviceID:  deviceID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agents (id, device_id, name, api_key_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		agent.ID, agent.DeviceID, agent.Name, string(hash), agent.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("insert agent: %w", err)
	}
	return agent, key, nil
}

// FindByAPIKey resolves a plaintext key to its agent. The key is never
// stored, so every registered hash is compared in turn; the agent count on
// a home network is small enough that this stays cheap.
func (s *Store) FindByAPIKey(ctx context.Context, key string) (*models.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_id, name, api_key_hash, last_report_at, created_at FROM agents`)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		if bcrypt.CompareHashAndPassword([]byte(a.APIKeyHash), []byte(key)) == nil {
			return a, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, ErrBadAPIKey
}

// GetAgent returns one agent by ID.
func (s *Store) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, device_id, name, api_key_hash, last_report_at, created_at FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return a, err
}

// ListAgents returns all registered agents, newest first.
func (s *Store) ListAgents(ctx context.Context) ([]*models.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_id, name, api_key_hash, last_report_at, created_at
		 FROM agents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// UpdateAgent renames an agent or relinks it to a device.
func (s *Store) UpdateAgent(ctx context.Context, id string, name, deviceID *string) error {
	return s.base.Tx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents WHERE id = ?`, id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return store.ErrNotFound
		}
		if name != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE agents SET name = ? WHERE id = ?`, *name, id); err != nil {
				return err
			}
		}
		if deviceID != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE agents SET device_id = ? WHERE id = ?`, *deviceID, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteAgent removes an agent and, via cascade, its reports.
func (s *Store) DeleteAgent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// LinkDevice sets an agent's device association if it is not yet linked.
func (s *Store) LinkDevice(ctx context.Context, agentID, deviceID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE agents SET device_id = ? WHERE id = ? AND device_id = ''`, deviceID, agentID)
	return err
}

// InsertReport stores one health report and bumps the agent's
// last_report_at in the same transaction.
func (s *Store) InsertReport(ctx context.Context, rep *models.AgentReport) error {
	return s.base.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO agent_reports (agent_id, reported_at, hostname, os_name, os_version,
				cpu_percent, mem_used, mem_total, disks, interfaces)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rep.AgentID, rep.ReportedAt, rep.Hostname, rep.OSName, rep.OSVersion,
			rep.CPUPercent, rep.MemUsed, rep.MemTotal, rep.Disks, rep.Interfaces)
		if err != nil {
			return fmt.Errorf("insert report: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE agents SET last_report_at = ? WHERE id = ?`, rep.ReportedAt, rep.AgentID)
		return err
	})
}

// LatestReport returns the most recent report for an agent.
func (s *Store) LatestReport(ctx context.Context, agentID string) (*models.AgentReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT agent_id, reported_at, hostname, os_name, os_version,
			cpu_percent, mem_used, mem_total, disks, interfaces
		 FROM agent_reports WHERE agent_id = ? ORDER BY reported_at DESC LIMIT 1`, agentID)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rep, err
}

// ListReports returns reports for an agent within the trailing window,
// oldest first.
func (s *Store) ListReports(ctx context.Context, agentID string, since time.Time) ([]*models.AgentReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, reported_at, hostname, os_name, os_version,
			cpu_percent, mem_used, mem_total, disks, interfaces
		 FROM agent_reports WHERE agent_id = ? AND reported_at >= ? ORDER BY reported_at ASC`,
		agentID, since)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.AgentReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

// CountAgents returns the number of registered agents.
func (s *Store) CountAgents(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*models.Agent, error) {
	var a models.Agent
	var last sql.NullTime
	err := row.Scan(&a.ID, &a.DeviceID, &a.Name, &a.APIKeyHash, &last, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if last.Valid {
		a.LastReportAt = &last.Time
	}
	return &a, nil
}

func scanReport(row rowScanner) (*models.AgentReport, error) {
	var rep models.AgentReport
	err := row.Scan(&rep.AgentID, &rep.ReportedAt, &rep.Hostname, &rep.OSName, &rep.OSVersion,
		&rep.CPUPercent, &rep.MemUsed, &rep.MemTotal, &rep.Disks, &rep.Interfaces)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// flattenReport converts a wire report into its stored row. Disk and
// interface details are kept as raw JSON so the UI can render them without
// another schema.
func flattenReport(rep *models.Report, agentID string, at time.Time) (*models.AgentReport, error) {
	disks, err := json.Marshal(rep.Disks)
	if err != nil {
		return nil, err
	}
	ifaces, err := json.Marshal(rep.NetworkInterfaces)
	if err != nil {
		return nil, err
	}
	return &models.AgentReport{
		AgentID:    agentID,
		ReportedAt: at,
		Hostname:   rep.Hostname,
		OSName:     rep.OS.Name,
		OSVersion:  rep.OS.Version,
		CPUPercent: rep.CPU.UsagePercent,
		MemUsed:    rep.Memory.UsedBytes,
		MemTotal:   rep.Memory.TotalBytes,
		Disks:      string(disks),
		Interfaces: string(ifaces),
	}, nil
}
