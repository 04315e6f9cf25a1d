package inventory

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/enrich"
	"github.com/panoptikon-net/panoptikon/internal/server"
	"github.com/panoptikon-net/panoptikon/internal/store"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (m *Module) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := m.store.ListDevices(r.Context())
	if err != nil {
		m.logger.Error("failed to list devices", zap.Error(err))
		server.InternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (m *Module) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := m.store.GetDevice(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		server.NotFound(w, "device not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to get device", zap.Error(err))
		server.InternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// updateDeviceRequest mirrors DeviceUpdate with JSON field names.
type updateDeviceRequest struct {
	Hostname    *string `json:"hostname"`
	Icon        *string `json:"icon"`
	Notes       *string `json:"notes"`
	IsKnown     *bool   `json:"is_known"`
	IsFavorite  *bool   `json:"is_favorite"`
	OSFamily    *string `json:"os_family"`
	OSVersion   *string `json:"os_version"`
	DeviceType  *string `json:"device_type"`
	DeviceBrand *string `json:"device_brand"`
	DeviceModel *string `json:"device_model"`
}

func (m *Module) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.BadRequest(w, "invalid request body")
		return
	}

	id := r.PathValue("id")
	err := m.store.UpdateDevice(r.Context(), id, DeviceUpdate{
		Hostname:    req.Hostname,
		Icon:        req.Icon,
		Notes:       req.Notes,
		IsKnown:     req.IsKnown,
		IsFavorite:  req.IsFavorite,
		OSFamily:    req.OSFamily,
		OSVersion:   req.OSVersion,
		DeviceType:  req.DeviceType,
		DeviceBrand: req.DeviceBrand,
		DeviceModel: req.DeviceModel,
	})
	if errors.Is(err, store.ErrNotFound) {
		server.NotFound(w, "device not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to update device", zap.String("device_id", id), zap.Error(err))
		server.InternalError(w)
		return
	}

	device, err := m.store.GetDevice(r.Context(), id)
	if err != nil {
		m.logger.Error("failed to reload device", zap.String("device_id", id), zap.Error(err))
		server.InternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (m *Module) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	err := m.store.DeleteDevice(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		server.NotFound(w, "device not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to delete device", zap.Error(err))
		server.InternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// muteRequest sets the mute window. Zero duration clears the mute.
type muteRequest struct {
	DurationSeconds int `json:"duration_seconds"`
}

func (m *Module) handleMuteDevice(w http.ResponseWriter, r *http.Request) {
	var req muteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.BadRequest(w, "invalid request body")
		return
	}
	if req.DurationSeconds < 0 {
		server.BadRequest(w, "duration_seconds must not be negative")
		return
	}

	var until *time.Time
	if req.DurationSeconds > 0 {
		t := time.Now().UTC().Add(time.Duration(req.DurationSeconds) * time.Second)
		until = &t
	}

	err := m.store.SetMute(r.Context(), r.PathValue("id"), until)
	if errors.Is(err, store.ErrNotFound) {
		server.NotFound(w, "device not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to mute device", zap.Error(err))
		server.InternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"muted_until": until})
}

func (m *Module) handleListIPs(w http.ResponseWriter, r *http.Request) {
	ips, err := m.store.ListIPs(r.Context(), r.PathValue("id"))
	if err != nil {
		m.logger.Error("failed to list ips", zap.Error(err))
		server.InternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, ips)
}

func (m *Module) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			server.BadRequest(w, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	events, err := m.store.ListEvents(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		m.logger.Error("failed to list events", zap.Error(err))
		server.InternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleProbeDevice pings the device once and folds the observed TTL back
// into the enrichment signal set.
func (m *Module) handleProbeDevice(w http.ResponseWriter, r *http.Request) {
	device, err := m.store.GetDevice(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		server.NotFound(w, "device not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to get device", zap.Error(err))
		server.InternalError(w)
		return
	}
	if device.CurrentIP == "" {
		server.BadRequest(w, "device has no current IP")
		return
	}

	ttl := m.prober.ProbeTTL(r.Context(), device.CurrentIP)
	if ttl > 0 {
		sig := enrich.Signals{
			Hostname: device.Hostname,
			Vendor:   device.Vendor,
			TTL:      ttl,
		}
		if device.MDNSServices != "" {
			sig.MDNSServices = strings.Split(device.MDNSServices, ",")
		}
		if result := enrich.Enrich(sig); !result.Empty() {
			if err := m.store.ApplyEnrichment(r.Context(), device.ID, result); err != nil {
				m.logger.Warn("failed to apply enrichment",
					zap.String("device_id", device.ID), zap.Error(err))
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ip":        device.CurrentIP,
		"reachable": ttl > 0,
		"ttl":       ttl,
	})
}

// handlePortScanDevice runs an on-demand nmap scan. 503 when nmap is not
// installed on the appliance.
func (m *Module) handlePortScanDevice(w http.ResponseWriter, r *http.Request) {
	device, err := m.store.GetDevice(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		server.NotFound(w, "device not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to get device", zap.Error(err))
		server.InternalError(w)
		return
	}
	if device.CurrentIP == "" {
		server.BadRequest(w, "device has no current IP")
		return
	}

	ports, err := m.portscan.Scan(r.Context(), device.CurrentIP)
	if errors.Is(err, ErrScannerUnavailable) {
		server.WriteError(w, http.StatusServiceUnavailable, "scanner_unavailable",
			"nmap is not installed on this host")
		return
	}
	if err != nil {
		m.logger.Error("port scan failed",
			zap.String("device_id", device.ID), zap.String("ip", device.CurrentIP), zap.Error(err))
		server.InternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ip":         device.CurrentIP,
		"open_ports": ports,
	})
}

// handleScanNow triggers an immediate discovery tick in the background.
func (m *Module) handleScanNow(w http.ResponseWriter, _ *http.Request) {
	if m.runCtx == nil || m.runCtx.Err() != nil {
		server.InternalError(w)
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop.Tick(m.runCtx)
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scan started"})
}
