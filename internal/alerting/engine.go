package alerting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/agenthub"
	"github.com/panoptikon-net/panoptikon/internal/inventory"
	"github.com/panoptikon-net/panoptikon/internal/netflow"
	"github.com/panoptikon-net/panoptikon/pkg/models"
	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// onlineAlertFloor is the minimum known-offline duration before an online
// transition is worth alerting on; shorter gaps are blips.
const onlineAlertFloor = 5 * time.Minute

// severityFor maps alert types to their fixed severity. The mapping is
// part of the API contract and must not change between releases.
func severityFor(alertType string) models.Severity {
	switch alertType {
	case models.AlertNewDevice, models.AlertDeviceOnline:
		return models.SeverityInfo
	default:
		return models.SeverityWarning
	}
}

// MuteChecker answers whether a device's alerts are currently suppressed.
type MuteChecker interface {
	IsMuted(ctx context.Context, deviceID string) (bool, error)
}

// Engine turns bus events into persisted alerts.
type Engine struct {
	store     *Store
	mutes     MuteChecker
	bandwidth *bandwidthTracker
	bus       plugin.EventBus
	logger    *zap.Logger

	now func() time.Time
}

// NewEngine creates the alert engine. mutes may be nil, in which case no
// device is ever considered muted.
func NewEngine(store *Store, mutes MuteChecker, thresholds ThresholdSource, bus plugin.EventBus, logger *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		mutes:     mutes,
		bandwidth: newBandwidthTracker(thresholds),
		bus:       bus,
		logger:    logger,
		now:       time.Now,
	}
}

// subscribe wires the engine to every alert-bearing topic.
func (e *Engine) subscribe() {
	e.bus.Subscribe(inventory.TopicDeviceNew, e.onDeviceNew)
	e.bus.Subscribe(inventory.TopicDeviceOnline, e.onDeviceOnline)
	e.bus.Subscribe(inventory.TopicDeviceOffline, e.onDeviceOffline)
	e.bus.Subscribe(agenthub.TopicAgentOffline, e.onAgentOffline)
	e.bus.Subscribe(netflow.TopicSamplesFlushed, e.onSamplesFlushed)
}

func (e *Engine) onDeviceNew(ctx context.Context, event plugin.Event) {
	ev, ok := event.Payload.(inventory.DeviceEvent)
	if !ok {
		return
	}
	e.raise(ctx, &models.Alert{
		Type:     models.AlertNewDevice,
		DeviceID: ev.DeviceID,
		Message:  fmt.Sprintf("New device %s discovered at %s", deviceLabel(ev), ev.IP),
	})
}

func (e *Engine) onDeviceOnline(ctx context.Context, event plugin.Event) {
	ev, ok := event.Payload.(inventory.DeviceEvent)
	if !ok {
		return
	}
	// A device that bounced for a couple of ticks is not news.
	if ev.OfflineSince == nil || e.now().Sub(*ev.OfflineSince) <= onlineAlertFloor {
		return
	}
	e.raise(ctx, &models.Alert{
		Type:     models.AlertDeviceOnline,
		DeviceID: ev.DeviceID,
		Message:  fmt.Sprintf("Device %s is back online", deviceLabel(ev)),
		Details:  fmt.Sprintf("offline since %s", ev.OfflineSince.UTC().Format(time.RFC3339)),
	})
}

func (e *Engine) onDeviceOffline(ctx context.Context, event plugin.Event) {
	ev, ok := event.Payload.(inventory.DeviceEvent)
	if !ok {
		return
	}
	e.raise(ctx, &models.Alert{
		Type:     models.AlertDeviceOffline,
		DeviceID: ev.DeviceID,
		Message:  fmt.Sprintf("Device %s went offline", deviceLabel(ev)),
	})
}

func (e *Engine) onAgentOffline(ctx context.Context, event plugin.Event) {
	ev, ok := event.Payload.(agenthub.OfflineEvent)
	if !ok {
		return
	}
	name := ev.Name
	if name == "" {
		name = ev.AgentID
	}
	e.raise(ctx, &models.Alert{
		Type:     models.AlertAgentOffline,
		DeviceID: ev.DeviceID,
		AgentID:  ev.AgentID,
		Message:  fmt.Sprintf("Agent %s stopped reporting", name),
		Details:  fmt.Sprintf("last report at %s", ev.LastReportAt.UTC().Format(time.RFC3339)),
	})
}

func (e *Engine) onSamplesFlushed(ctx context.Context, event plugin.Event) {
	samples, ok := event.Payload.([]models.TrafficSample)
	if !ok {
		return
	}
	for _, trip := range e.bandwidth.Observe(ctx, samples) {
		e.raise(ctx, &models.Alert{
			Type:     models.AlertHighBandwidth,
			DeviceID: trip.DeviceID,
			Message: fmt.Sprintf("Device %s exceeded %d bps for %d consecutive windows",
				trip.DeviceID, trip.Threshold, consecutiveWindows),
			Details: fmt.Sprintf("observed %d bps", trip.ObservedBps),
		})
	}
}

// raise applies the mute window and severity table, persists the alert,
// and broadcasts it. Muted devices keep their event history; only the
// alert is dropped.
func (e *Engine) raise(ctx context.Context, a *models.Alert) {
	if a.DeviceID != "" && e.mutes != nil {
		muted, err := e.mutes.IsMuted(ctx, a.DeviceID)
		if err != nil {
			e.logger.Warn("mute check failed, raising alert anyway",
				zap.String("device_id", a.DeviceID), zap.Error(err))
		} else if muted {
			e.logger.Debug("alert suppressed by mute window",
				zap.String("type", a.Type), zap.String("device_id", a.DeviceID))
			return
		}
	}

	a.Severity = severityFor(a.Type)
	a.CreatedAt = e.now().UTC()
	if err := e.store.Insert(ctx, a); err != nil {
		e.logger.Error("failed to insert alert",
			zap.String("type", a.Type), zap.Error(err))
		return
	}

	e.logger.Info("alert raised",
		zap.String("alert_id", a.ID),
		zap.String("type", a.Type),
		zap.String("severity", string(a.Severity)),
		zap.String("device_id", a.DeviceID),
	)

	if e.bus != nil {
		e.bus.PublishAsync(ctx, plugin.Event{
			Topic:     TopicAlertCreated,
			Source:    "alerting",
			Timestamp: a.CreatedAt,
			Payload:   a,
		})
	}
}

func deviceLabel(ev inventory.DeviceEvent) string {
	if ev.Hostname != "" {
		return ev.Hostname
	}
	return ev.MAC
}
