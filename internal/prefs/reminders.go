// Package prefs keeps small per-user state in the user config directory.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/notify"
)

const reminderDayFile = "reminder-day.json"

// ReminderDayFile persists the fired and dismissed reminder sets of the
// current day. Sets saved on another day are ignored on load.
type ReminderDayFile struct {
	Path string
}

// DefaultReminderDayFile stores under os.UserConfigDir()/cic.
func DefaultReminderDayFile() (*ReminderDayFile, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return &ReminderDayFile{Path: filepath.Join(dir, "cic", reminderDayFile)}, nil
}

func (f *ReminderDayFile) Save(_ context.Context, st notify.DayState) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

func (f *ReminderDayFile) Load(_ context.Context, day string) (notify.DayState, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return notify.DayState{Day: day}, nil
		}
		return notify.DayState{Day: day}, err
	}
	var st notify.DayState
	if err := json.Unmarshal(data, &st); err != nil {
		return notify.DayState{Day: day}, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	if st.Day != day {
		return notify.DayState{Day: day}, nil
	}
	return st, nil
}

var _ notify.DayStore = (*ReminderDayFile)(nil)
