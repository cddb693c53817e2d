package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var ErrCorruptState = errors.New("corrupt ledger state")

// State is the persisted balance snapshot.
type State struct {
	Balance         float64 `json:"balance"`
	Day             string  `json:"day"`
	DayStartBalance float64 `json:"day_start_balance"`
}

// DayNet is the P&L since the start of the trading day.
func (s State) DayNet() float64 {
	return s.Balance - s.DayStartBalance
}

// dayKey formats the calendar day of t in loc, e.g. "2025-03-04".
func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

// loadState reads path. A missing file returns os.ErrNotExist; an unreadable
// or malformed one returns ErrCorruptState.
func loadState(path string) (State, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var raw struct {
		Balance         *float64 `json:"balance"`
		Day             string   `json:"day"`
		DayStartBalance *float64 `json:"day_start_balance"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if raw.Balance == nil {
		return State{}, fmt.Errorf("%w: missing balance", ErrCorruptState)
	}
	s := State{Balance: *raw.Balance, Day: raw.Day, DayStartBalance: *raw.Balance}
	if raw.DayStartBalance != nil {
		s.DayStartBalance = *raw.DayStartBalance
	}
	if s.Day != "" {
		if _, err := time.Parse(time.DateOnly, s.Day); err != nil {
			return State{}, fmt.Errorf("%w: day %q", ErrCorruptState, s.Day)
		}
	}
	return s, nil
}

func saveState(path string, s State) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, b, 0o644)
}

// writeFileAtomic writes data to path via a synced temp file and rename,
// then syncs the parent directory.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
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
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
