// Package reminders reconciles reminder snapshots onto credit records.
//
// A Store keeps every reminder by key plus a ticket index. Snapshots are
// full collections; the store rebuilds both maps from each one and reports
// which keys disappeared so callers can detach them from records.
package reminders

import (
	"sort"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// Store is not safe for concurrent use; it is owned by one event loop.
type Store struct {
	byKey       map[string]credit.Reminder
	keyByTicket map[string]string
	prevKeys    map[string]struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		byKey:       map[string]credit.Reminder{},
		keyByTicket: map[string]string{},
		prevKeys:    map[string]struct{}{},
	}
}

// ApplySnapshot rebuilds the store from a full, ordered snapshot. When two
// reminders share a ticket, the later one in snapshot order wins the ticket
// index; both stay reachable by key. It returns the keys that were present
// in the previous snapshot and are absent now, sorted.
func (s *Store) ApplySnapshot(snapshot []credit.Reminder) []string {
	byKey := make(map[string]credit.Reminder, len(snapshot))
	keyByTicket := make(map[string]string, len(snapshot))
	keys := make(map[string]struct{}, len(snapshot))
	for _, r := range snapshot {
		key := r.StoreKey()
		if key == "" {
			continue
		}
		r.Key = key
		byKey[key] = r
		keys[key] = struct{}{}
		if ticket, ok := r.TicketKey(); ok {
			keyByTicket[ticket] = key
		}
	}

	var removed []string
	for key := range s.prevKeys {
		if _, ok := keys[key]; !ok {
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)

	s.byKey = byKey
	s.keyByTicket = keyByTicket
	s.prevKeys = keys
	return removed
}

// Cache writes a locally created or mutated reminder before the store
// confirms it. The next snapshot supersedes it.
func (s *Store) Cache(r credit.Reminder) {
	key := r.StoreKey()
	if key == "" {
		return
	}
	r.Key = key
	s.byKey[key] = r
	if ticket, ok := r.TicketKey(); ok {
		s.keyByTicket[ticket] = key
	}
}

// Get looks a reminder up by key.
func (s *Store) Get(key string) (credit.Reminder, bool) {
	r, ok := s.byKey[key]
	return r, ok
}

// ForTicket looks a reminder up through the ticket index.
func (s *Store) ForTicket(ticket string) (credit.Reminder, bool) {
	t, ok := credit.StrictTicketKey(ticket)
	if !ok {
		return credit.Reminder{}, false
	}
	key, ok := s.keyByTicket[t]
	if !ok {
		return credit.Reminder{}, false
	}
	return s.Get(key)
}

// Len is the number of reminders held.
func (s *Store) Len() int { return len(s.byKey) }

// All returns every reminder ordered by key.
func (s *Store) All() []credit.Reminder {
	out := make([]credit.Reminder, 0, len(s.byKey))
	for _, r := range s.byKey {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Attach returns a copy of records with reminders attached. A record first
// resolves through its ticket; failing that, a reminder key it already
// carries is looked up directly; failing both, its attachment is cleared.
func (s *Store) Attach(records []credit.Record) []credit.Record {
	out := make([]credit.Record, len(records))
	for i, rec := range records {
		out[i] = s.attachOne(rec)
	}
	return out
}

func (s *Store) attachOne(rec credit.Record) credit.Record {
	if r, ok := s.ForTicket(rec.TicketNumber); ok {
		return withReminder(rec, r)
	}
	if rec.ActionKey != "" {
		if r, ok := s.Get(rec.ActionKey); ok {
			return withReminder(rec, r)
		}
	}
	return rec.WithoutReminder()
}

func withReminder(rec credit.Record, r credit.Reminder) credit.Record {
	cp := r
	rec.Reminder = &cp
	rec.ActionKey = r.Key
	return rec
}

// DetachRemoved clears the attachment on every record still pointing at a
// removed key.
func DetachRemoved(records []credit.Record, removed []string) []credit.Record {
	if len(removed) == 0 {
		return records
	}
	gone := make(map[string]struct{}, len(removed))
	for _, k := range removed {
		gone[k] = struct{}{}
	}
	out := make([]credit.Record, len(records))
	for i, rec := range records {
		if _, ok := gone[rec.ActionKey]; ok && rec.ActionKey != "" {
			rec = rec.WithoutReminder()
		}
		out[i] = rec
	}
	return out
}

// Reconcile applies a snapshot and re-attaches records in one step, clearing
// attachments to removed keys first so the cached-key fallback cannot
// resurrect them.
func (s *Store) Reconcile(records []credit.Record, snapshot []credit.Reminder) []credit.Record {
	removed := s.ApplySnapshot(snapshot)
	return s.Attach(DetachRemoved(records, removed))
}
