package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/analytics"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/appstate"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/filtering"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/notify"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/rbac"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/reminders"
)

// Deps are the stores and collaborators a Workspace talks to. Notes, Roles
// and Days may be nil.
type Deps struct {
	Credits   CreditStore
	Reminders ReminderStore
	Notes     NoteStore
	Roles     RoleStore
	Days      notify.DayStore
	Clock     notify.Clock
	Logger    *slog.Logger
}

// Settings are per-session options.
type Settings struct {
	Location      *time.Location
	PageSize      int
	Currency      string
	Analytics     analytics.Options
	CheckInterval time.Duration
	RemindTime    string
	Email         string
	Role          rbac.Role
	Aliases       map[string]string
}

// Workspace is one user's session: the latest record and reminder
// snapshots reconciled together, the view criteria and the client state.
// All mutation is serialized by mu, so snapshot callbacks, the reminder
// check and user actions never interleave.
type Workspace struct {
	deps     Deps
	settings Settings
	logger   *slog.Logger

	mu       sync.Mutex
	records  []credit.Record
	rems     *reminders.Store
	state    appstate.State
	criteria filtering.Criteria
	sort     filtering.Sort
	page     int
	onChange func()

	// checkMu serializes reminder checks and day restores. saveMu orders
	// day-state saves so an older snapshot never overwrites a newer one.
	checkMu  sync.Mutex
	saveMu   sync.Mutex
	daySeq   uint64
	savedSeq uint64
}

// NewWorkspace builds a session. Nothing is loaded until Load or Run.
func NewWorkspace(deps Deps, settings Settings) *Workspace {
	if deps.Clock == nil {
		deps.Clock = notify.SystemClock
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.PageSize <= 0 {
		settings.PageSize = 50
	}
	if settings.Currency == "" {
		settings.Currency = "$"
	}
	if settings.Role == "" {
		settings.Role = rbac.RoleReadOnly
	}
	now := deps.Clock.Now()
	return &Workspace{
		deps:     deps,
		settings: settings,
		logger:   logger.With("user", settings.Email, "role", string(settings.Role)),
		rems:     reminders.NewStore(),
		state:    appstate.New(notify.Day(now, settings.Location)),
		criteria: filtering.Criteria{Status: filtering.StatusAll},
		sort:     filtering.DefaultSort,
	}
}

// OnChange registers fn to be called after every state change. fn runs
// outside the workspace lock.
func (w *Workspace) OnChange(fn func()) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

func (w *Workspace) changed() {
	w.mu.Lock()
	fn := w.onChange
	w.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Settings returns the session settings.
func (w *Workspace) Settings() Settings { return w.settings }

// Role returns the session role.
func (w *Workspace) Role() rbac.Role { return w.settings.Role }

// Now is the session clock.
func (w *Workspace) Now() time.Time { return w.deps.Clock.Now().In(w.settings.Location) }

func (w *Workspace) require(action rbac.Action) error {
	if !rbac.Can(w.settings.Role, action) {
		return fmt.Errorf("%s: %w", action, ErrForbidden)
	}
	return nil
}

// Load reads both collections once and restores today's reminder state.
func (w *Workspace) Load(ctx context.Context) error {
	recs, err := w.deps.Credits.List(ctx)
	if err != nil {
		return fmt.Errorf("load credit requests: %w", err)
	}
	rems, err := w.deps.Reminders.List(ctx)
	if err != nil {
		return fmt.Errorf("load reminders: %w", err)
	}
	w.ApplyCredits(recs)
	w.ApplyReminders(rems)
	w.checkMu.Lock()
	w.restoreDay(ctx, notify.Day(w.Now(), w.settings.Location))
	w.checkMu.Unlock()
	return nil
}

// Run streams snapshots from both collections and runs the reminder check
// until ctx is done.
func (w *Workspace) Run(ctx context.Context) error {
	w.checkMu.Lock()
	w.restoreDay(ctx, notify.Day(w.Now(), w.settings.Location))
	w.checkMu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	// every snapshot is also a reminder check
	g.Go(func() error {
		return w.deps.Credits.Watch(ctx, func(recs []credit.Record) {
			w.ApplyCredits(recs)
			w.checkNow(ctx)
		})
	})
	g.Go(func() error {
		return w.deps.Reminders.Watch(ctx, func(rems []credit.Reminder) {
			w.ApplyReminders(rems)
			w.checkNow(ctx)
		})
	})
	g.Go(func() error {
		sched := &notify.Scheduler{
			Clock:    w.deps.Clock,
			Interval: w.settings.CheckInterval,
			Logger:   w.logger,
			Check: func(ctx context.Context, now time.Time) error {
				_, err := w.CheckReminders(ctx, now)
				return err
			},
		}
		return sched.Run(ctx)
	})
	return g.Wait()
}

func (w *Workspace) checkNow(ctx context.Context) {
	if _, err := w.CheckReminders(ctx, w.deps.Clock.Now()); err != nil {
		w.logger.Warn("reminder check failed", "err", err)
	}
}

// ApplyCredits installs a full credit snapshot. Reminder keys already shown
// on a record carry over so the cached-key fallback can keep it attached.
func (w *Workspace) ApplyCredits(recs []credit.Record) {
	w.mu.Lock()
	prev := make(map[string]string, len(w.records))
	for _, r := range w.records {
		if r.ActionKey == "" {
			continue
		}
		if id, err := r.Identity(); err == nil {
			prev[id] = r.ActionKey
		}
	}
	next := make([]credit.Record, len(recs))
	for i, r := range recs {
		r = r.WithoutReminder()
		if id, err := r.Identity(); err == nil {
			r.ActionKey = prev[id]
		}
		next[i] = r
	}
	w.records = w.rems.Attach(next)
	w.mu.Unlock()
	w.logger.Debug("credit snapshot applied", "count", len(recs))
	w.changed()
}

// ApplyReminders installs a full reminder snapshot and reconciles records
// against it.
func (w *Workspace) ApplyReminders(rems []credit.Reminder) {
	w.mu.Lock()
	w.records = w.rems.Reconcile(w.records, rems)
	w.mu.Unlock()
	w.logger.Debug("reminder snapshot applied", "count", len(rems))
	w.changed()
}

// Records returns every reconciled record in store order.
func (w *Workspace) Records() []credit.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]credit.Record(nil), w.records...)
}

// Criteria returns the active filter.
func (w *Workspace) Criteria() filtering.Criteria {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.criteria
}

// SetCriteria replaces the filter and returns to the first page.
func (w *Workspace) SetCriteria(c filtering.Criteria) {
	w.mu.Lock()
	if c.Status == "" {
		c.Status = filtering.StatusAll
	}
	w.criteria = c
	w.page = 0
	w.mu.Unlock()
	w.changed()
}

// Sort returns the active sort.
func (w *Workspace) Sort() filtering.Sort {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sort
}

// ToggleSort flips direction on the active column or switches column.
func (w *Workspace) ToggleSort(col filtering.Column) {
	w.mu.Lock()
	w.sort = w.sort.Toggle(col)
	w.mu.Unlock()
	w.changed()
}

// View is the filtered, sorted record list.
func (w *Workspace) View() []credit.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

func (w *Workspace) viewLocked() []credit.Record {
	return filtering.View(w.records, w.criteria, w.sort)
}

// PageView is one page of the view.
type PageView struct {
	Rows   []credit.Record
	Keys   []string
	Page   int
	Pages  int
	Offset int
	Total  int
}

// Page returns the current page with the row keys of its rows.
func (w *Workspace) Page() PageView {
	w.mu.Lock()
	defer w.mu.Unlock()
	view := w.viewLocked()
	rows, pages := filtering.Page(view, w.page, w.settings.PageSize)
	if w.page >= pages {
		w.page = pages - 1
	}
	offset := w.page * w.settings.PageSize
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = credit.RowKey(r, offset+i)
	}
	return PageView{Rows: rows, Keys: keys, Page: w.page, Pages: pages, Offset: offset, Total: len(view)}
}

// SetPage moves to page, clamped on the next Page call.
func (w *Workspace) SetPage(page int) {
	w.mu.Lock()
	if page < 0 {
		page = 0
	}
	w.page = page
	w.mu.Unlock()
	w.changed()
}

// Report computes the dashboard numbers for the current filter.
func (w *Workspace) Report() analytics.Report {
	w.mu.Lock()
	all := append([]credit.Record(nil), w.records...)
	c := w.criteria
	w.mu.Unlock()
	filtered := filtering.Filter(all, c)
	return analytics.Build(all, filtered, c.IsFiltered(), w.Now(), w.settings.Analytics)
}

// State returns the client state.
func (w *Workspace) State() appstate.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Dispatch applies a state transition. Changes to the fired or dismissed
// sets are persisted to the day store.
func (w *Workspace) Dispatch(ctx context.Context, a appstate.Action) appstate.State {
	w.mu.Lock()
	before := w.state.Notifications
	w.state = appstate.Reduce(w.state, a)
	after := w.state
	var seq uint64
	if daySetsChanged(before, after.Notifications) {
		w.daySeq++
		seq = w.daySeq
	}
	w.mu.Unlock()
	if seq > 0 {
		w.saveDay(ctx, seq, after.Notifications)
	}
	w.changed()
	return after
}

func daySetsChanged(a, b appstate.Notifications) bool {
	return a.Day != b.Day || len(a.Fired) != len(b.Fired) || len(a.Dismissed) != len(b.Dismissed)
}

func (w *Workspace) saveDay(ctx context.Context, seq uint64, n appstate.Notifications) {
	if w.deps.Days == nil {
		return
	}
	w.saveMu.Lock()
	defer w.saveMu.Unlock()
	if seq <= w.savedSeq {
		return
	}
	w.savedSeq = seq
	if err := w.deps.Days.Save(ctx, notify.Capture(n)); err != nil {
		w.logger.Warn("save reminder day state failed", "day", n.Day, "err", err)
	}
}

// restoreDay reloads the day sets for day. Callers hold checkMu.
func (w *Workspace) restoreDay(ctx context.Context, day string) {
	if w.deps.Days == nil {
		w.Dispatch(ctx, appstate.RollDay{Day: day})
		return
	}
	action, err := notify.Restore(ctx, w.deps.Days, day)
	if err != nil {
		w.logger.Warn("restore reminder day state failed", "day", day, "err", err)
	}
	w.Dispatch(ctx, action)
}

// failWrite records a failed remote write as a visible error. Local state
// is left as is.
func (w *Workspace) failWrite(ctx context.Context, op string, err error, attrs ...any) error {
	w.logger.Error(op+" failed", append(attrs, "err", err)...)
	w.Dispatch(ctx, appstate.SetError{Err: fmt.Sprintf("%s: %v", op, err)})
	return fmt.Errorf("%s: %w", op, err)
}

// updateLocal applies fn to every record matching match, under the lock.
func (w *Workspace) updateLocal(match func(credit.Record) bool, fn func(*credit.Record)) {
	w.mu.Lock()
	next := make([]credit.Record, len(w.records))
	for i, r := range w.records {
		if match(r) {
			fn(&r)
		}
		next[i] = r
	}
	w.records = next
	w.mu.Unlock()
}
