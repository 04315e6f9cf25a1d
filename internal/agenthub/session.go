package agenthub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/store"
	"github.com/panoptikon-net/panoptikon/pkg/models"
	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// DeviceLookup resolves reported host details to discovered devices so an
// agent can be linked to the device it runs on.
type DeviceLookup interface {
	GetDeviceByMAC(ctx context.Context, mac string) (*models.Device, error)
	GetDeviceByHostname(ctx context.Context, hostname string) (*models.Device, error)
}

// Session is one live agent WebSocket connection.
type Session struct {
	agent   *models.Agent
	conn    *websocket.Conn
	store   *Store
	devices DeviceLookup
	bus     plugin.EventBus
	logger  *zap.Logger

	// readTimeout is three report intervals; a session that stays silent
	// that long is considered dead and torn down.
	readTimeout time.Duration

	now func() time.Time
}

// run processes report frames until the connection breaks, the context
// ends, or the agent misbehaves.
func (s *Session) run(ctx context.Context) {
	for {
		readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
		_, data, err := s.conn.Read(readCtx)
		cancel()
		if err != nil {
			s.logger.Debug("agent session read ended",
				zap.String("agent_id", s.agent.ID), zap.Error(err))
			return
		}

		var rep models.Report
		if err := json.Unmarshal(data, &rep); err != nil {
			s.logger.Warn("agent sent malformed report, closing",
				zap.String("agent_id", s.agent.ID), zap.Error(err))
			s.conn.Close(websocket.StatusUnsupportedData, "malformed report")
			return
		}

		if err := s.handleReport(ctx, &rep); err != nil {
			s.logger.Error("failed to process agent report",
				zap.String("agent_id", s.agent.ID), zap.Error(err))
			continue
		}

		s.ack(ctx)
	}
}

// handleReport persists a report and publishes it to the bus. The stored
// timestamp is the server clock; whatever the agent claims is ignored.
func (s *Session) handleReport(ctx context.Context, rep *models.Report) error {
	at := s.now().UTC()

	row, err := flattenReport(rep, s.agent.ID, at)
	if err != nil {
		return err
	}
	if err := s.store.InsertReport(ctx, row); err != nil {
		return err
	}
	s.agent.LastReportAt = &at

	if s.agent.DeviceID == "" {
		if id := s.matchDevice(ctx, rep); id != "" {
			if err := s.store.LinkDevice(ctx, s.agent.ID, id); err != nil {
				s.logger.Warn("failed to link agent to device", zap.Error(err))
			} else {
				s.agent.DeviceID = id
				s.logger.Info("agent linked to device",
					zap.String("agent_id", s.agent.ID), zap.String("device_id", id))
			}
		}
	}

	if s.bus != nil {
		s.bus.PublishAsync(ctx, plugin.Event{
			Topic:     TopicAgentReport,
			Source:    "agenthub",
			Timestamp: at,
			Payload: ReportEvent{
				AgentID:    s.agent.ID,
				DeviceID:   s.agent.DeviceID,
				Hostname:   rep.Hostname,
				CPUPercent: rep.CPU.UsagePercent,
				MemUsed:    rep.Memory.UsedBytes,
				MemTotal:   rep.Memory.TotalBytes,
				ReportedAt: at,
			},
		})
	}
	return nil
}

// matchDevice finds the discovered device this agent runs on: interface
// MACs are authoritative, hostname is the fallback.
func (s *Session) matchDevice(ctx context.Context, rep *models.Report) string {
	if s.devices == nil {
		return ""
	}
	for _, iface := range rep.NetworkInterfaces {
		mac := models.NormalizeMAC(iface.MAC)
		if !models.ValidMAC(mac) {
			continue
		}
		d, err := s.devices.GetDeviceByMAC(ctx, mac)
		if err == nil {
			return d.ID
		}
		if err != store.ErrNotFound {
			s.logger.Warn("device lookup by mac failed", zap.Error(err))
		}
	}
	if rep.Hostname != "" {
		d, err := s.devices.GetDeviceByHostname(ctx, rep.Hostname)
		if err == nil {
			return d.ID
		}
	}
	return ""
}

// ack confirms receipt. Best effort: a lost ack only delays the agent,
// the report is already stored.
func (s *Session) ack(ctx context.Context) {
	ackCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	data, _ := json.Marshal(models.Ack{Status: "ok"})
	if err := s.conn.Write(ackCtx, websocket.MessageText, data); err != nil {
		s.logger.Debug("agent ack write failed",
			zap.String("agent_id", s.agent.ID), zap.Error(err))
	}
}
