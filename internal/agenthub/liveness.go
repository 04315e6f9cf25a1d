package agenthub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// liveness watches last_report_at across all agents and publishes an
// offline event once per transition from online to offline.
type liveness struct {
	store    *Store
	bus      plugin.EventBus
	logger   *zap.Logger
	interval time.Duration

	// wasOnline carries the previous sweep's verdict per agent so each
	// transition fires exactly once.
	wasOnline map[string]bool

	now func() time.Time
}

func newLiveness(store *Store, bus plugin.EventBus, logger *zap.Logger) *liveness {
	return &liveness{
		store:     store,
		bus:       bus,
		logger:    logger,
		interval:  30 * time.Second,
		wasOnline: make(map[string]bool),
		now:       time.Now,
	}
}

func (l *liveness) run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep(ctx)
		}
	}
}

func (l *liveness) sweep(ctx context.Context) {
	agents, err := l.store.ListAgents(ctx)
	if err != nil {
		l.logger.Error("liveness sweep failed", zap.Error(err))
		return
	}

	now := l.now()
	seen := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		seen[a.ID] = struct{}{}
		online := AgentOnline(a.LastReportAt, now)
		if l.wasOnline[a.ID] && !online {
			l.logger.Info("agent went offline",
				zap.String("agent_id", a.ID), zap.String("name", a.Name))
			if l.bus != nil {
				var last time.Time
				if a.LastReportAt != nil {
					last = *a.LastReportAt
				}
				l.bus.PublishAsync(ctx, plugin.Event{
					Topic:     TopicAgentOffline,
					Source:    "agenthub",
					Timestamp: now,
					Payload: OfflineEvent{
						AgentID:      a.ID,
						DeviceID:     a.DeviceID,
						Name:         a.Name,
						LastReportAt: last,
					},
				})
			}
		}
		l.wasOnline[a.ID] = online
	}

	// Forget deleted agents so the map does not grow without bound.
	for id := range l.wasOnline {
		if _, ok := seen[id]; !ok {
			delete(l.wasOnline, id)
		}
	}
}
