package notify

import (
	"context"
	"sync"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/appstate"
)

// DayState is the persisted fired and dismissed sets of one day.
type DayState struct {
	Day       string   `json:"date"`
	Fired     []string `json:"fired"`
	Dismissed []string `json:"dismissed"`
}

// DayStore persists DayState. Load returns an empty state for day when the
// stored sets belong to another day.
type DayStore interface {
	Load(ctx context.Context, day string) (DayState, error)
	Save(ctx context.Context, st DayState) error
}

// Capture reads the sets to persist from the session.
func Capture(n appstate.Notifications) DayState {
	return DayState{
		Day:       n.Day,
		Fired:     appstate.Keys(n.Fired),
		Dismissed: appstate.Keys(n.Dismissed),
	}
}

// Restore loads day's sets and returns the action that installs them.
func Restore(ctx context.Context, store DayStore, day string) (appstate.RestoreDay, error) {
	st, err := store.Load(ctx, day)
	if err != nil {
		return appstate.RestoreDay{Day: day}, err
	}
	if st.Day != day {
		return appstate.RestoreDay{Day: day}, nil
	}
	return appstate.RestoreDay{Day: day, Fired: st.Fired, Dismissed: st.Dismissed}, nil
}

// MemoryDayStore keeps the last saved state in memory.
type MemoryDayStore struct {
	mu sync.Mutex
	st DayState
}

func (m *MemoryDayStore) Load(_ context.Context, day string) (DayState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.Day != day {
		return DayState{Day: day}, nil
	}
	return DayState{Day: day, Fired: sortedCopy(m.st.Fired), Dismissed: sortedCopy(m.st.Dismissed)}, nil
}

func (m *MemoryDayStore) Save(_ context.Context, st DayState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = DayState{Day: st.Day, Fired: sortedCopy(st.Fired), Dismissed: sortedCopy(st.Dismissed)}
	return nil
}
