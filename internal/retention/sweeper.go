// Package retention ages out append-only rows and periodically compacts
// the database file.
package retention

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// Windows configures how long each row class is kept.
type Windows struct {
	TrafficSamples time.Duration
	AgentReports   time.Duration
	DeviceEvents   time.Duration
	// Alerts applies only to acknowledged alerts; unacknowledged alerts
	// are kept forever.
	Alerts time.Duration
}

// DefaultWindows returns the stock retention policy.
func DefaultWindows() Windows {
	return Windows{
		TrafficSamples: 48 * time.Hour,
		AgentReports:   7 * 24 * time.Hour,
		DeviceEvents:   30 * 24 * time.Hour,
		Alerts:         90 * 24 * time.Hour,
	}
}

// AlertPruner deletes aged acknowledged alerts.
type AlertPruner interface {
	DeleteAcknowledgedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionPruner deletes expired UI sessions.
type SessionPruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Compactor runs the heavy weekly maintenance.
type Compactor interface {
	Checkpoint(ctx context.Context) error
}

// VacuumClock persists when the last compaction ran.
type VacuumClock interface {
	LastVacuumAt(ctx context.Context) (time.Time, error)
	SetLastVacuumAt(ctx context.Context, t time.Time) error
}

// vacuumEvery spaces out compactions; the sweep itself runs hourly.
const vacuumEvery = 7 * 24 * time.Hour

// Sweeper deletes bounded-age rows on a fixed cadence.
type Sweeper struct {
	db       *sql.DB
	windows  Windows
	alerts   AlertPruner
	sessions SessionPruner
	compact  Compactor
	clock    VacuumClock
	logger   *zap.Logger

	interval time.Duration
	now      func() time.Time
}

// NewSweeper assembles a sweeper. alerts, sessions, compact, and clock may
// be nil; the matching step is then skipped.
func NewSweeper(db *sql.DB, windows Windows, alerts AlertPruner, sessions SessionPruner, compact Compactor, clock VacuumClock, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		db:       db,
		windows:  windows,
		alerts:   alerts,
		sessions: sessions,
		compact:  compact,
		clock:    clock,
		logger:   logger,
		interval: time.Hour,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then hourly until the context ends.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one cleanup pass. Each step is independent; a failing
// delete never blocks the others.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now().UTC()

	s.deleteOlder(ctx, "traffic_samples", "sampled_at", now.Add(-s.windows.TrafficSamples))
	s.deleteOlder(ctx, "agent_reports", "reported_at", now.Add(-s.windows.AgentReports))
	s.deleteOlder(ctx, "device_events", "occurred_at", now.Add(-s.windows.DeviceEvents))
	s.deleteOlder(ctx, "audit_log", "occurred_at", now.Add(-s.windows.DeviceEvents))

	if s.alerts != nil {
		n, err := s.alerts.DeleteAcknowledgedBefore(ctx, now.Add(-s.windows.Alerts))
		if err != nil {
			s.logger.Error("failed to prune alerts", zap.Error(err))
		} else if n > 0 {
			s.logger.Debug("pruned acknowledged alerts", zap.Int64("rows", n))
		}
	}

	if s.sessions != nil {
		if n, err := s.sessions.DeleteExpired(ctx); err != nil {
			s.logger.Error("failed to prune sessions", zap.Error(err))
		} else if n > 0 {
			s.logger.Debug("pruned expired sessions", zap.Int64("rows", n))
		}
	}

	s.maybeVacuum(ctx, now)
}

func (s *Sweeper) deleteOlder(ctx context.Context, table, column string, cutoff time.Time) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM "+table+" WHERE "+column+" < ?", cutoff)
	if err != nil {
		s.logger.Error("retention delete failed",
			zap.String("table", table), zap.Error(err))
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("aged out rows",
			zap.String("table", table), zap.Int64("rows", n))
	}
}

// maybeVacuum compacts the database at most once per week. The timestamp
// is only advanced on success so a failed compaction retries next sweep.
func (s *Sweeper) maybeVacuum(ctx context.Context, now time.Time) {
	if s.compact == nil || s.clock == nil {
		return
	}

	last, err := s.clock.LastVacuumAt(ctx)
	if err != nil {
		s.logger.Error("failed to read last vacuum time", zap.Error(err))
		return
	}
	if !last.IsZero() && now.Sub(last) < vacuumEvery {
		return
	}

	if err := s.compact.Checkpoint(ctx); err != nil {
		s.logger.Error("database compaction failed", zap.Error(err))
		return
	}
	if err := s.clock.SetLastVacuumAt(ctx, now); err != nil {
		s.logger.Error("failed to record vacuum time", zap.Error(err))
		return
	}
	s.logger.Info("database compacted")
}
