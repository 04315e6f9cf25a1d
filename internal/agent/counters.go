package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// counterSnapshot is the persisted last-seen cumulative counters per
// interface, used to compute deltas across agent restarts.
type counterSnapshot struct {
	Tx uint64 `json:"tx"`
	Rx uint64 `json:"rx"`
}

// CounterStore persists interface counters between reports.
type CounterStore struct {
	path string
	prev map[string]counterSnapshot
}

// NewCounterStore loads the previous snapshot from dir, or starts empty
// if none exists or it is unreadable.
func NewCounterStore(dir string) *CounterStore {
	s := &CounterStore{
		path: filepath.Join(dir, "net-counters.json"),
		prev: make(map[string]counterSnapshot),
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return s
	}
	var prev map[string]counterSnapshot
	if json.Unmarshal(data, &prev) == nil {
		s.prev = prev
	}
	return s
}

// DefaultCounterDir returns the per-user data directory for the agent.
// Cache directories are purgeable and a purge would silently zero the
// first delta after cleanup, so the snapshot lives under the data dir.
func DefaultCounterDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "panoptikon-agent"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve data dir: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "panoptikon-agent"), nil
	case "windows":
		if dir := os.Getenv("LocalAppData"); dir != "" {
			return filepath.Join(dir, "panoptikon-agent"), nil
		}
		return filepath.Join(home, "AppData", "Local", "panoptikon-agent"), nil
	default:
		return filepath.Join(home, ".local", "share", "panoptikon-agent"), nil
	}
}

// Delta returns the bytes transferred since the previous snapshot for one
// interface. A counter that went backwards (reboot, counter wrap) clamps
// to zero rather than reporting a huge bogus value; an interface seen for
// the first time reports zero.
func (s *CounterStore) Delta(iface string, tx, rx uint64) (txDelta, rxDelta uint64) {
	prev, seen := s.prev[iface]
	s.prev[iface] = counterSnapshot{Tx: tx, Rx: rx}
	if !seen {
		return 0, 0
	}
	if tx >= prev.Tx {
		txDelta = tx - prev.Tx
	}
	if rx >= prev.Rx {
		rxDelta = rx - prev.Rx
	}
	return txDelta, rxDelta
}

// Save writes the snapshot atomically: temp file in the same directory,
// then rename.
func (s *CounterStore) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create counter dir: %w", err)
	}
	data, err := json.Marshal(s.prev)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "net-counters-*.json")
	if err != nil {
		return fmt.Errorf("create temp counters: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write counters: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close counters: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace counters: %w", err)
	}
	return nil
}
