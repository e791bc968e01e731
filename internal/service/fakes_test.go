package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/notify"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/rbac"
)

var errStoreDown = errors.New("store unavailable")

type memCredits struct {
	mu      sync.Mutex
	recs    map[string]credit.Record
	seq     int
	failIDs map[string]bool
	updates []string
	// onUpdate runs before each Update, outside the lock.
	onUpdate func(id string)
}

func newMemCredits(recs ...credit.Record) *memCredits {
	m := &memCredits{recs: map[string]credit.Record{}, failIDs: map[string]bool{}}
	for _, r := range recs {
		m.recs[r.ID] = r
	}
	return m
}

func (m *memCredits) List(context.Context) ([]credit.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]credit.Record, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memCredits) Insert(_ context.Context, rec credit.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		m.seq++
		rec.ID = fmt.Sprintf("new-%d", m.seq)
	}
	m.recs[rec.ID] = rec
	return rec.ID, nil
}

func (m *memCredits) Update(_ context.Context, id string, fields map[string]string) error {
	if m.onUpdate != nil {
		m.onUpdate(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs[id] {
		return errStoreDown
	}
	rec, ok := m.recs[id]
	if !ok {
		return credit.ErrNotFound
	}
	for f, v := range fields {
		rec.Set(f, v)
	}
	m.recs[id] = rec
	m.updates = append(m.updates, id)
	return nil
}

func (m *memCredits) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[id]; !ok {
		return credit.ErrNotFound
	}
	delete(m.recs, id)
	return nil
}

func (m *memCredits) Watch(ctx context.Context, fn func([]credit.Record)) error {
	recs, _ := m.List(ctx)
	fn(recs)
	<-ctx.Done()
	return ctx.Err()
}

func (m *memCredits) get(id string) credit.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs[id]
}

type memReminders struct {
	mu   sync.Mutex
	rems map[string]credit.Reminder
	seq  int
	fail bool
}

func newMemReminders(rems ...credit.Reminder) *memReminders {
	m := &memReminders{rems: map[string]credit.Reminder{}}
	for _, r := range rems {
		m.rems[r.StoreKey()] = r
	}
	return m
}

func (m *memReminders) NewKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return fmt.Sprintf("rem-%d", m.seq)
}

func (m *memReminders) List(context.Context) ([]credit.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]credit.Reminder, 0, len(m.rems))
	for _, r := range m.rems {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoreKey() < out[j].StoreKey() })
	return out, nil
}

func (m *memReminders) Put(_ context.Context, r credit.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreDown
	}
	m.rems[r.StoreKey()] = r
	return nil
}

func (m *memReminders) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rems, key)
	return nil
}

func (m *memReminders) Watch(ctx context.Context, fn func([]credit.Reminder)) error {
	rems, _ := m.List(ctx)
	fn(rems)
	<-ctx.Done()
	return ctx.Err()
}

func (m *memReminders) get(key string) credit.Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rems[key]
}

type memNotes struct {
	mu    sync.Mutex
	notes []credit.Note
	block chan struct{}
}

func (m *memNotes) Add(_ context.Context, n credit.Note) (credit.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = fmt.Sprintf("note-%d", len(m.notes)+1)
	m.notes = append(m.notes, n)
	return n, nil
}

func (m *memNotes) ListByCombo(ctx context.Context, combo string) ([]credit.Note, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []credit.Note
	for _, n := range m.notes {
		if n.ComboKey == combo {
			out = append(out, n)
		}
	}
	return out, nil
}

type memRoles map[string]map[string]any

func (m memRoles) Lookup(_ context.Context, idOrEmail string) (map[string]any, error) {
	doc, ok := m[idOrEmail]
	if !ok {
		return nil, credit.ErrNotFound
	}
	return doc, nil
}

type stoppedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stoppedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stoppedClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

func (c *stoppedClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

var march1 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func sampleRecords() []credit.Record {
	return []credit.Record{
		{ID: "a", Date: "2024-02-28", CustomerNumber: "ACC1", InvoiceNumber: "INV1", ItemNumber: "I1", TicketNumber: "T-1", CreditRequestTotal: "100"},
		{ID: "b", Date: "2024-02-20", CustomerNumber: "ACC1", InvoiceNumber: "INV2", ItemNumber: "I2", TicketNumber: "T-1", CreditRequestTotal: "250.50"},
		{ID: "c", Date: "2024-01-02", CustomerNumber: "BRX2", InvoiceNumber: "INV3", ItemNumber: "I3", TicketNumber: "T-2", RTNCRNo: "RTN9", CreditRequestTotal: "3000"},
	}
}

type fixture struct {
	ws      *Workspace
	credits *memCredits
	rems    *memReminders
	notes   *memNotes
	days    *notify.MemoryDayStore
	clock   *stoppedClock
}

func newFixture(t *testing.T, role rbac.Role, recs []credit.Record, rems ...credit.Reminder) fixture {
	t.Helper()
	f := fixture{
		credits: newMemCredits(recs...),
		rems:    newMemReminders(rems...),
		notes:   &memNotes{},
		days:    &notify.MemoryDayStore{},
		clock:   &stoppedClock{now: march1},
	}
	f.ws = NewWorkspace(Deps{
		Credits:   f.credits,
		Reminders: f.rems,
		Notes:     f.notes,
		Days:      f.days,
		Clock:     f.clock,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, Settings{
		Location: time.UTC,
		PageSize: 2,
		Email:    "ann.lee@example.com",
		Role:     role,
		Aliases:  map[string]string{"ann.lee": "AL"},
	})
	return f
}
