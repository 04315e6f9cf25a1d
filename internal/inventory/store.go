package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/panoptikon-net/panoptikon/internal/enrich"
	"github.com/panoptikon-net/panoptikon/internal/store"
	"github.com/panoptikon-net/panoptikon/pkg/models"
)

// txRunner runs a function inside a serialized write transaction.
type txRunner interface {
	Tx(ctx context.Context, fn func(*sql.Tx) error) error
}

// Store handles database operations for the Inventory module.
type Store struct {
	db   *sql.DB
	base txRunner
}

// NewStore creates a new inventory store on the shared database handle.
func NewStore(db *sql.DB, base txRunner) *Store {
	return &Store{db: db, base: base}
}

// Sighting is the outcome of recording one (mac, ip) observation.
type Sighting struct {
	DeviceID     string
	WasNew       bool
	WasOffline   bool // device was offline before this sighting
	PrevLastSeen time.Time
	IPChanged    bool
	OldIP        string
}

// UpsertSighting records one ARP observation inside a single transaction:
// it finds or creates the device, reconciles its current IP (including an
// IP that migrated here from another device), and flips it online.
func (s *Store) UpsertSighting(ctx context.Context, mac, ip string) (Sighting, error) {
	var sg Sighting
	now := time.Now().UTC()

	err := s.base.Tx(ctx, func(tx *sql.Tx) error {
		var (
			id       string
			online   bool
			lastSeen time.Time
		)
		err := tx.QueryRow(
			"SELECT id, is_online, last_seen_at FROM devices WHERE mac = ?", mac,
		).Scan(&id, &online, &lastSeen)
		switch {
		case err == sql.ErrNoRows:
			id = uuid.New().String()
			if _, err := tx.Exec(`INSERT INTO devices
				(id, mac, is_online, first_seen_at, last_seen_at, updated_at)
				VALUES (?, ?, 1, ?, ?, ?)`, id, mac, now, now, now); err != nil {
				return fmt.Errorf("insert device: %w", err)
			}
			sg.WasNew = true
		case err != nil:
			return fmt.Errorf("find device by mac: %w", err)
		default:
			if _, err := tx.Exec(
				"UPDATE devices SET is_online = 1, last_seen_at = ?, updated_at = ? WHERE id = ?",
				now, now, id); err != nil {
				return fmt.Errorf("touch device: %w", err)
			}
			sg.WasOffline = !online
			sg.PrevLastSeen = lastSeen
		}
		sg.DeviceID = id

		// If the IP previously belonged to a different device (DHCP release
		// and reassign), the old owner's row becomes historical.
		if _, err := tx.Exec(
			"UPDATE device_ips SET is_current = 0 WHERE ip = ? AND is_current = 1 AND device_id != ?",
			ip, id); err != nil {
			return fmt.Errorf("retire migrated ip: %w", err)
		}

		var currentIP string
		err = tx.QueryRow(
			"SELECT ip FROM device_ips WHERE device_id = ? AND is_current = 1", id,
		).Scan(&currentIP)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("find current ip: %w", err)
		}

		switch {
		case currentIP == ip:
			if _, err := tx.Exec(
				"UPDATE device_ips SET seen_at = ? WHERE device_id = ? AND ip = ?",
				now, id, ip); err != nil {
				return fmt.Errorf("touch ip: %w", err)
			}
		default:
			if currentIP != "" {
				if _, err := tx.Exec(
					"UPDATE device_ips SET is_current = 0 WHERE device_id = ? AND is_current = 1",
					id); err != nil {
					return fmt.Errorf("retire old ip: %w", err)
				}
				sg.IPChanged = true
				sg.OldIP = currentIP
			}
			if _, err := tx.Exec(`INSERT INTO device_ips (device_id, ip, is_current, seen_at)
				VALUES (?, ?, 1, ?)
				ON CONFLICT(device_id, ip) DO UPDATE SET is_current = 1, seen_at = excluded.seen_at`,
				id, ip, now); err != nil {
				return fmt.Errorf("insert ip: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Sighting{}, err
	}
	return sg, nil
}

// StaleDevice identifies a device that just transitioned offline.
type StaleDevice struct {
	ID       string
	MAC      string
	Hostname string
}

// MarkStaleOffline flips is_online=false for devices not seen within the
// grace window, returning only those that actually transitioned.
func (s *Store) MarkStaleOffline(ctx context.Context, grace time.Duration) ([]StaleDevice, error) {
	cutoff := time.Now().UTC().Add(-grace)

	var stale []StaleDevice
	err := s.base.Tx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(
			"SELECT id, mac, hostname FROM devices WHERE is_online = 1 AND last_seen_at < ?",
			cutoff)
		if err != nil {
			return fmt.Errorf("query stale devices: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var d StaleDevice
			if err := rows.Scan(&d.ID, &d.MAC, &d.Hostname); err != nil {
				return err
			}
			stale = append(stale, d)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		now := time.Now().UTC()
		for i := range stale {
			if _, err := tx.Exec(
				"UPDATE devices SET is_online = 0, updated_at = ? WHERE id = ?",
				now, stale[i].ID); err != nil {
				return fmt.Errorf("mark offline: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stale, nil
}

// IsMuted reports whether the device's mute window extends into the future.
func (s *Store) IsMuted(ctx context.Context, deviceID string) (bool, error) {
	var muted sql.NullTime
	err := s.db.QueryRowContext(ctx,
		"SELECT muted_until FROM devices WHERE id = ?", deviceID,
	).Scan(&muted)
	if err == sql.ErrNoRows {
		return false, store.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("query mute: %w", err)
	}
	return muted.Valid && muted.Time.After(time.Now().UTC()), nil
}

// SetMute sets or clears the device's mute window. A nil until clears it.
func (s *Store) SetMute(ctx context.Context, deviceID string, until *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE devices SET muted_until = ?, updated_at = ? WHERE id = ?",
		until, time.Now().UTC(), deviceID)
	if err != nil {
		return fmt.Errorf("set mute: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

const deviceColumns = `id, mac, hostname, vendor, icon, notes, is_known, is_favorite,
	is_online, first_seen_at, last_seen_at, os_family, os_version, device_type,
	device_brand, device_model, enrichment_source, enrichment_corrected,
	mdns_services, muted_until`

func scanDevice(row interface{ Scan(...any) error }) (*models.Device, error) {
	var (
		d     models.Device
		muted sql.NullTime
	)
	err := row.Scan(&d.ID, &d.MAC, &d.Hostname, &d.Vendor, &d.Icon, &d.Notes,
		&d.IsKnown, &d.IsFavorite, &d.IsOnline, &d.FirstSeenAt, &d.LastSeenAt,
		&d.OSFamily, &d.OSVersion, &d.DeviceType, &d.DeviceBrand, &d.DeviceModel,
		&d.EnrichmentSource, &d.EnrichmentCorrected, &d.MDNSServices, &muted)
	if err != nil {
		return nil, err
	}
	if muted.Valid {
		d.MutedUntil = &muted.Time
	}
	return &d, nil
}

// GetDevice returns one device with its current IP populated.
func (s *Store) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE id = ?", id)
	d, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	if err := s.fillCurrentIP(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// GetDeviceByMAC returns one device by its canonical MAC.
func (s *Store) GetDeviceByMAC(ctx context.Context, mac string) (*models.Device, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE mac = ?", mac)
	d, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device by mac: %w", err)
	}
	if err := s.fillCurrentIP(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// GetDeviceByHostname returns the device with the given hostname, matching
// case-insensitively. Used for agent-to-device linkage.
func (s *Store) GetDeviceByHostname(ctx context.Context, hostname string) (*models.Device, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE hostname = ? COLLATE NOCASE", hostname)
	d, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device by hostname: %w", err)
	}
	return d, nil
}

func (s *Store) fillCurrentIP(ctx context.Context, d *models.Device) error {
	err := s.db.QueryRowContext(ctx,
		"SELECT ip FROM device_ips WHERE device_id = ? AND is_current = 1", d.ID,
	).Scan(&d.CurrentIP)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("current ip: %w", err)
	}
	return nil
}

// ListDevices returns all devices ordered by last_seen_at descending, with
// current IPs populated.
func (s *Store) ListDevices(ctx context.Context) ([]*models.Device, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+deviceColumns+" FROM devices ORDER BY last_seen_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, d := range devices {
		if err := s.fillCurrentIP(ctx, d); err != nil {
			return nil, err
		}
	}
	return devices, nil
}

// ListIPs returns all IP rows for a device, current first.
func (s *Store) ListIPs(ctx context.Context, deviceID string) ([]models.DeviceIP, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT device_id, ip, is_current, seen_at FROM device_ips
		 WHERE device_id = ? ORDER BY is_current DESC, seen_at DESC`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list ips: %w", err)
	}
	defer rows.Close()

	var ips []models.DeviceIP
	for rows.Next() {
		var ip models.DeviceIP
		if err := rows.Scan(&ip.DeviceID, &ip.IP, &ip.IsCurrent, &ip.SeenAt); err != nil {
			return nil, err
		}
		ips = append(ips, ip)
	}
	return ips, rows.Err()
}

// DeviceIDByIP resolves a current IP to its device, for NetFlow attribution.
// Returns empty string (not an error) when the IP is unmanaged.
func (s *Store) DeviceIDByIP(ctx context.Context, ip string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT device_id FROM device_ips WHERE ip = ? AND is_current = 1", ip,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("device by ip: %w", err)
	}
	return id, nil
}

// DeviceUpdate carries the user-editable device fields. Nil pointers leave
// the column unchanged.
type DeviceUpdate struct {
	Hostname   *string
	Icon       *string
	Notes      *string
	IsKnown    *bool
	IsFavorite *bool

	// Manual classification. Setting any of these also sets
	// enrichment_corrected so automated enrichment stops touching them.
	OSFamily    *string
	OSVersion   *string
	DeviceType  *string
	DeviceBrand *string
	DeviceModel *string
}

// UpdateDevice applies user edits to a device.
func (s *Store) UpdateDevice(ctx context.Context, id string, upd DeviceUpdate) error {
	set := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	add := func(col string, v any) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}
	if upd.Hostname != nil {
		add("hostname", *upd.Hostname)
	}
	if upd.Icon != nil {
		add("icon", *upd.Icon)
	}
	if upd.Notes != nil {
		add("notes", *upd.Notes)
	}
	if upd.IsKnown != nil {
		add("is_known", *upd.IsKnown)
	}
	if upd.IsFavorite != nil {
		add("is_favorite", *upd.IsFavorite)
	}

	corrected := false
	if upd.OSFamily != nil {
		add("os_family", *upd.OSFamily)
		corrected = true
	}
	if upd.OSVersion != nil {
		add("os_version", *upd.OSVersion)
		corrected = true
	}
	if upd.DeviceType != nil {
		add("device_type", *upd.DeviceType)
		corrected = true
	}
	if upd.DeviceBrand != nil {
		add("device_brand", *upd.DeviceBrand)
		corrected = true
	}
	if upd.DeviceModel != nil {
		add("device_model", *upd.DeviceModel)
		corrected = true
	}
	if corrected {
		add("enrichment_corrected", true)
		add("enrichment_source", "user")
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE devices SET "+strings.Join(set, ", ")+" WHERE id = ?",
		append(args, id)...)
	if err != nil {
		return fmt.Errorf("update device: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteDevice removes a device and its dependent rows (user-initiated only).
func (s *Store) DeleteDevice(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetVendor records the OUI manufacturer name for a device.
func (s *Store) SetVendor(ctx context.Context, id, vendor string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE devices SET vendor = ?, updated_at = ? WHERE id = ?",
		vendor, time.Now().UTC(), id)
	return err
}

// SetHostname records a discovered hostname if none was set by the user.
func (s *Store) SetHostname(ctx context.Context, id, hostname string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE devices SET hostname = ?, updated_at = ? WHERE id = ? AND hostname = ''",
		hostname, time.Now().UTC(), id)
	return err
}

// SetMDNSServices replaces the comma-joined mDNS service list for a device.
func (s *Store) SetMDNSServices(ctx context.Context, id, services string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE devices SET mdns_services = ?, updated_at = ? WHERE id = ?",
		services, time.Now().UTC(), id)
	return err
}

// ApplyEnrichment persists a classification result. Devices the user has
// corrected are never touched; otherwise only fields the result carries a
// value for are updated.
func (s *Store) ApplyEnrichment(ctx context.Context, deviceID string, r enrich.Result) error {
	if r.Empty() {
		return nil
	}
	return s.base.Tx(ctx, func(tx *sql.Tx) error {
		var corrected bool
		err := tx.QueryRow(
			"SELECT enrichment_corrected FROM devices WHERE id = ?", deviceID,
		).Scan(&corrected)
		if err == sql.ErrNoRows {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check corrected: %w", err)
		}
		if corrected {
			return nil
		}

		set := []string{"enrichment_source = ?", "updated_at = ?"}
		args := []any{r.Source, time.Now().UTC()}
		if r.OSFamily != "" {
			set = append(set, "os_family = ?")
			args = append(args, r.OSFamily)
		}
		if r.OSVersion != "" {
			set = append(set, "os_version = ?")
			args = append(args, r.OSVersion)
		}
		if r.DeviceType != "" {
			set = append(set, "device_type = ?")
			args = append(args, r.DeviceType)
		}
		if r.DeviceBrand != "" {
			set = append(set, "device_brand = ?")
			args = append(args, r.DeviceBrand)
		}
		if r.DeviceModel != "" {
			set = append(set, "device_model = ?")
			args = append(args, r.DeviceModel)
		}
		_, err = tx.Exec(
			"UPDATE devices SET "+strings.Join(set, ", ")+" WHERE id = ?",
			append(args, deviceID)...)
		if err != nil {
			return fmt.Errorf("apply enrichment: %w", err)
		}
		return nil
	})
}

// RecordEvent appends a row to the device event log.
func (s *Store) RecordEvent(ctx context.Context, deviceID, eventType, detail string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO device_events (device_id, event_type, detail, occurred_at) VALUES (?, ?, ?, ?)",
		deviceID, eventType, detail, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events for a device.
func (s *Store) ListEvents(ctx context.Context, deviceID string, limit int) ([]models.DeviceEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_id, event_type, detail, occurred_at FROM device_events
		 WHERE device_id = ? ORDER BY occurred_at DESC LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.DeviceEvent
	for rows.Next() {
		var e models.DeviceEvent
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.EventType, &e.Detail, &e.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountDevices returns (total, online) device counts for health reporting.
func (s *Store) CountDevices(ctx context.Context) (total, online int, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(is_online), 0) FROM devices",
	).Scan(&total, &online)
	if err != nil {
		return 0, 0, fmt.Errorf("count devices: %w", err)
	}
	return total, online, nil
}
