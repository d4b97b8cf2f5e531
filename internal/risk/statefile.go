package risk

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// ErrCorruptState marks a persisted day snapshot that fails validation.
var ErrCorruptState = errors.New("corrupt risk state")

// Snapshot is the durable form of a trading day's risk counters. It lets
// the bot restart mid-session without forgetting a tripped kill switch.
type Snapshot struct {
	Day               time.Time `json:"day"`
	RealizedPnl       float64   `json:"realized_pnl"`
	TradesOpened      int       `json:"trades_opened"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	KillSwitch        bool      `json:"kill_switch"`
	KillReason        string    `json:"kill_reason,omitempty"`
	ProfitHalt        bool      `json:"profit_halt"`
	CooldownUntil     time.Time `json:"cooldown_until,omitempty"`
}

// Validate rejects snapshots whose counters could only go negative through
// file corruption or hand-editing. A rejected snapshot is discarded and the
// day starts fresh.
func (s Snapshot) Validate() error {
	if s.TradesOpened < 0 {
		return fmt.Errorf("%w: trades_opened %d", ErrCorruptState, s.TradesOpened)
	}
	if s.ConsecutiveLosses < 0 {
		return fmt.Errorf("%w: consecutive_losses %d", ErrCorruptState, s.ConsecutiveLosses)
	}
	if math.IsNaN(s.RealizedPnl) || math.IsInf(s.RealizedPnl, 0) {
		return fmt.Errorf("%w: realized_pnl %v", ErrCorruptState, s.RealizedPnl)
	}
	return nil
}

type StateFile struct {
	path string
}

func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

func (s *StateFile) Load() (Snapshot, error) {
	var snap Snapshot
	data, err := os.ReadFile(s.path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// Save writes the snapshot atomically (tmp file + rename) so a crash
// mid-write never leaves a truncated state file behind.
func (s *StateFile) Save(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".risk-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}
