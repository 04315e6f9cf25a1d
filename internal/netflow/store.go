package netflow

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/panoptikon-net/panoptikon/pkg/models"
)

// txRunner runs a function inside a serialized write transaction.
type txRunner interface {
	Tx(ctx context.Context, fn func(*sql.Tx) error) error
}

// Store handles database operations for the NetFlow module.
type Store struct {
	db   *sql.DB
	base txRunner
}

// NewStore creates a new netflow store on the shared database handle.
func NewStore(db *sql.DB, base txRunner) *Store {
	return &Store{db: db, base: base}
}

// InsertSamples writes one flush batch in a single transaction.
func (s *Store) InsertSamples(ctx context.Context, samples []models.TrafficSample) error {
	if len(samples) == 0 {
		return nil
	}
	return s.base.Tx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(
			"INSERT INTO traffic_samples (device_id, sampled_at, rx_bps, tx_bps, source) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i := range samples {
			sm := &samples[i]
			if _, err := stmt.Exec(sm.DeviceID, sm.SampledAt, sm.RxBps, sm.TxBps, sm.Source); err != nil {
				return fmt.Errorf("insert sample: %w", err)
			}
		}
		return nil
	})
}

// ListSamples returns samples for a device within [since, now], oldest first.
func (s *Store) ListSamples(ctx context.Context, deviceID string, since time.Time) ([]models.TrafficSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT device_id, sampled_at, rx_bps, tx_bps, source FROM traffic_samples
		 WHERE device_id = ? AND sampled_at >= ? ORDER BY sampled_at`, deviceID, since)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	var samples []models.TrafficSample
	for rows.Next() {
		var sm models.TrafficSample
		if err := rows.Scan(&sm.DeviceID, &sm.SampledAt, &sm.RxBps, &sm.TxBps, &sm.Source); err != nil {
			return nil, err
		}
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}
