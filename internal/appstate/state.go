// Package appstate holds the client session state: edit mode, staged edits,
// row selection, CSV preview, write intents and the reminder notification
// queue. State only changes through Reduce, which never mutates its input.
package appstate

import (
	"time"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/roundtrip"
)

// IntentStatus tracks a pushed edit through the store write.
type IntentStatus int

const (
	IntentPending IntentStatus = iota
	IntentConfirmed
	IntentFailed
)

func (s IntentStatus) String() string {
	switch s {
	case IntentPending:
		return "pending"
	case IntentConfirmed:
		return "confirmed"
	case IntentFailed:
		return "failed"
	}
	return "unknown"
}

// WriteIntent is one row's edit while its store write is in flight or after
// it failed.
type WriteIntent struct {
	RowKey string
	Fields map[string]string
	Status IntentStatus
	Err    string
}

// Notification is a queued day-before reminder alert.
type Notification struct {
	Key     string
	Ticket  string
	Invoice string
	Message string
	AlertAt time.Time
}

// Notifications is the reminder alert queue plus the per-day fired and
// dismissed sets. Day is the YYYY-MM-DD the sets belong to.
type Notifications struct {
	Day             string
	Queue           []Notification
	Fired           map[string]struct{}
	Dismissed       map[string]struct{}
	SuppressedUntil time.Time
}

// Suppressed reports whether alerts are silenced at now.
func (n Notifications) Suppressed(now time.Time) bool {
	return !n.SuppressedUntil.IsZero() && now.Before(n.SuppressedUntil)
}

// Blocked reports whether key must not be queued again today.
func (n Notifications) Blocked(key string) bool {
	_, fired := n.Fired[key]
	_, dismissed := n.Dismissed[key]
	return fired || dismissed
}

// Queued reports whether key is currently in the queue.
func (n Notifications) Queued(key string) bool {
	for _, q := range n.Queue {
		if q.Key == key {
			return true
		}
	}
	return false
}

// Csv is the CSV round-trip lifecycle: a chosen file, then its preview.
type Csv struct {
	FileName string
	Preview  *roundtrip.Preview
}

// State is the whole session state.
type State struct {
	EditMode      bool
	PendingEdits  map[string]map[string]string
	Selected      map[string]struct{}
	Csv           Csv
	Intents       map[string]WriteIntent
	Notifications Notifications
	Error         string
	Message       string
}

// New returns an empty state for day.
func New(day string) State {
	return State{
		PendingEdits: map[string]map[string]string{},
		Selected:     map[string]struct{}{},
		Intents:      map[string]WriteIntent{},
		Notifications: Notifications{
			Day:       day,
			Fired:     map[string]struct{}{},
			Dismissed: map[string]struct{}{},
		},
	}
}

// IsSelected reports whether rowKey is selected.
func (s State) IsSelected(rowKey string) bool {
	_, ok := s.Selected[rowKey]
	return ok
}

// HasPendingEdits reports whether any edit is staged.
func (s State) HasPendingEdits() bool {
	return len(s.PendingEdits) > 0
}

// FailedIntents returns the intents whose writes failed.
func (s State) FailedIntents() []WriteIntent {
	var out []WriteIntent
	for _, in := range s.Intents {
		if in.Status == IntentFailed {
			out = append(out, in)
		}
	}
	return out
}

// CsvReady reports whether a preview exists with rows and no issues.
func (s State) CsvReady() bool {
	p := s.Csv.Preview
	return p != nil && len(p.Rows) > 0 && !p.Blocked()
}
