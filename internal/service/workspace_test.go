package service

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/appstate"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/filtering"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/rbac"
)

func dayBefore(key, ticket, due string) credit.Reminder {
	return credit.Reminder{Key: key, TicketNumber: ticket, DueDate: due, RemindDayBefore: true, RemindTime: "09:00"}
}

func TestLoadReconcilesAndPages(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rbac.RoleOwner, sampleRecords(), dayBefore("r1", "T-2", "2024-03-05"))
	require.NoError(t, f.ws.Load(context.Background()))

	view := f.ws.View()
	require.Equal(t, []string{"a", "b", "c"}, []string{view[0].ID, view[1].ID, view[2].ID})
	require.Nil(t, view[0].Reminder)
	require.NotNil(t, view[2].Reminder)
	require.Equal(t, "r1", view[2].ActionKey)

	page := f.ws.Page()
	require.Equal(t, 2, page.Pages)
	require.Equal(t, []string{"a", "b"}, page.Keys)

	f.ws.SetPage(5)
	page = f.ws.Page()
	require.Equal(t, 1, page.Page)
	require.Equal(t, []string{"c"}, page.Keys)

	f.ws.SetCriteria(filtering.Criteria{Status: string(credit.StatePending)})
	require.Len(t, f.ws.View(), 2)
	require.Equal(t, 0, f.ws.Page().Page)

	f.ws.ToggleSort(filtering.ByCreditTotal)
	view = f.ws.View()
	require.Equal(t, "a", view[0].ID)

	rep := f.ws.Report()
	require.Equal(t, 3, rep.All.Count)
	require.Equal(t, 2, rep.Filtered.Count)
}

func TestRemovedReminderDetaches(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rbac.RoleOwner, sampleRecords(), dayBefore("r1", "T-2", "2024-03-05"))
	require.NoError(t, f.ws.Load(context.Background()))

	f.ws.ApplyReminders(nil)
	for _, r := range f.ws.Records() {
		require.Nil(t, r.Reminder, r.ID)
		require.Empty(t, r.ActionKey)
	}
}

func TestStageEditGuards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ro := newFixture(t, rbac.RoleReadOnly, sampleRecords())
	require.ErrorIs(t, ro.ws.StageEdit(ctx, "a", credit.FieldSalesRep, "Kim"), ErrForbidden)

	f := newFixture(t, rbac.RoleCredit, sampleRecords())
	require.ErrorIs(t, f.ws.StageEdit(ctx, "a", credit.FieldStatus, "x"), ErrReadOnlyField)
	require.ErrorIs(t, f.ws.StageEdit(ctx, "a", credit.FieldID, "x"), ErrReadOnlyField)
	require.NoError(t, f.ws.StageEdit(ctx, "a", credit.FieldReason, "Freight"))

	_, err := newFixture(t, rbac.RoleCredit, nil).ws.PushEdits(ctx)
	require.ErrorIs(t, err, ErrNoPendingEdits)
}

func TestPushEdits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleCredit, sampleRecords())
	require.NoError(t, f.ws.Load(ctx))

	require.NoError(t, f.ws.StageEdit(ctx, "a", credit.FieldSalesRep, "Kim"))
	require.NoError(t, f.ws.StageEdit(ctx, "c", credit.FieldQTY, "4"))

	res, err := f.ws.PushEdits(ctx)
	require.NoError(t, err)
	require.Equal(t, PushResult{Updated: 2}, res)
	require.Equal(t, "Kim", f.credits.get("a").SalesRep)
	require.Equal(t, "4", f.credits.get("c").QTY)

	st := f.ws.State()
	require.Empty(t, st.PendingEdits)
	require.Empty(t, st.Intents)
	require.False(t, st.EditMode)
	require.Contains(t, st.Message, "Pushed 2 update(s)")
}

func TestPushEditsKeepsEditsStagedMidPush(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleCredit, sampleRecords())
	require.NoError(t, f.ws.Load(ctx))
	require.NoError(t, f.ws.StageEdit(ctx, "a", credit.FieldSalesRep, "Kim"))

	var (
		once     sync.Once
		stageErr error
	)
	f.credits.onUpdate = func(string) {
		once.Do(func() { stageErr = f.ws.StageEdit(ctx, "b", credit.FieldQTY, "9") })
	}
	res, err := f.ws.PushEdits(ctx)
	require.NoError(t, err)
	require.NoError(t, stageErr)
	require.Equal(t, PushResult{Updated: 1}, res)

	st := f.ws.State()
	require.Empty(t, st.Intents)
	require.Equal(t, map[string]string{credit.FieldQTY: "9"}, st.PendingEdits["b"])

	f.credits.onUpdate = nil
	res, err = f.ws.PushEdits(ctx)
	require.NoError(t, err)
	require.Equal(t, PushResult{Updated: 1}, res)
	require.Equal(t, "9", f.credits.get("b").QTY)
	require.Empty(t, f.ws.State().PendingEdits)
}

func TestPushEditsFailureKeepsLocalState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleOwner, sampleRecords())
	require.NoError(t, f.ws.Load(ctx))
	f.credits.failIDs["b"] = true

	require.NoError(t, f.ws.StageEdit(ctx, "a", credit.FieldSalesRep, "Kim"))
	require.NoError(t, f.ws.StageEdit(ctx, "b", credit.FieldSalesRep, "Lou"))

	res, err := f.ws.PushEdits(ctx)
	require.ErrorIs(t, err, errStoreDown)
	require.Equal(t, 1, res.Updated)
	require.Equal(t, 1, res.Failed)

	st := f.ws.State()
	require.Len(t, st.FailedIntents(), 1)
	require.Equal(t, "b", st.FailedIntents()[0].RowKey)
	require.NotEmpty(t, st.Error)

	for _, r := range f.ws.Records() {
		if r.ID == "b" {
			require.Equal(t, "Lou", r.SalesRep, "local edit is not rolled back")
		}
	}

	f.ws.RetryFailed(ctx)
	st = f.ws.State()
	require.Empty(t, st.FailedIntents())
	require.Equal(t, map[string]string{credit.FieldSalesRep: "Lou"}, st.PendingEdits["b"])

	delete(f.credits.failIDs, "b")
	_, err = f.ws.PushEdits(ctx)
	require.NoError(t, err)
	require.Equal(t, "Lou", f.credits.get("b").SalesRep)
}

func TestPushEditsWithoutIDInsertsOrUpdatesByCombo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleOwner, sampleRecords())
	require.NoError(t, f.ws.Load(ctx))

	loose := credit.Record{Date: "2024-02-29", InvoiceNumber: "INV9", ItemNumber: "I9", CreditRequestTotal: "10"}
	twin := credit.Record{Date: "2024-02-27", InvoiceNumber: "INV1", ItemNumber: "I1"}
	f.ws.ApplyCredits(append(f.ws.Records(), loose, twin))

	view := f.ws.View()
	keys := map[string]string{}
	for i, r := range view {
		keys[r.Combo()+"/"+r.ID] = credit.RowKey(r, i)
	}

	require.NoError(t, f.ws.StageEdit(ctx, keys["INV9|I9/"], credit.FieldSalesRep, "New"))
	require.NoError(t, f.ws.StageEdit(ctx, keys["INV1|I1/"], credit.FieldQTY, "7"))

	res, err := f.ws.PushEdits(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)
	require.Equal(t, 1, res.Updated)
	require.Equal(t, "7", f.credits.get("a").QTY)

	inserted := f.credits.get("new-1")
	require.Equal(t, "New", inserted.SalesRep)
	require.Equal(t, "INV9|I9", inserted.ComboKey)
}

const roundTripCSV = `id,Invoice Number,Item Number,Sales Rep,Credit Request Total
a,INV1,I1,Kim,100
b,INV2,I2,,250.50
`

func TestCSVRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleCredit, sampleRecords())
	require.NoError(t, f.ws.Load(ctx))

	_, err := f.ws.PushCSV(ctx)
	require.ErrorIs(t, err, ErrPreviewMissing)

	p, err := f.ws.PreviewCSV(ctx, "edits.csv", strings.NewReader(roundTripCSV))
	require.NoError(t, err)
	require.Empty(t, p.Issues)
	require.Len(t, p.Diffs, 1)
	require.Equal(t, "a", p.Diffs[0].ID)
	require.True(t, f.ws.State().CsvReady())

	res, err := f.ws.PushCSV(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Updated)
	require.Equal(t, 1, res.Skipped)
	require.Equal(t, "Kim", f.credits.get("a").SalesRep)
	require.Nil(t, f.ws.State().Csv.Preview)
}

func TestCSVPushIdOnlyRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleCredit, sampleRecords())
	require.NoError(t, f.ws.Load(ctx))

	p, err := f.ws.PreviewCSV(ctx, "ids.csv", strings.NewReader("id,Credit Request Total\na,500\n"))
	require.NoError(t, err)
	require.Empty(t, p.Issues)
	require.False(t, p.Blocked())
	require.Len(t, p.Diffs, 1)

	res, err := f.ws.PushCSV(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Updated)
	require.Equal(t, "500", f.credits.get("a").CreditRequestTotal)
	require.Equal(t, "INV1", f.credits.get("a").InvoiceNumber)
}

func TestCSVPushBlockedByIssues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleCredit, sampleRecords())
	require.NoError(t, f.ws.Load(ctx))

	data := "Invoice Number,Item Number,Sales Rep\nINV1,I1,Kim\nINV7,I7,Lou\n\"bad,quote\n"
	p, err := f.ws.PreviewCSV(ctx, "edits.csv", strings.NewReader(data))
	require.NoError(t, err)
	require.True(t, p.Blocked())

	_, err = f.ws.PushCSV(ctx)
	require.ErrorIs(t, err, ErrPreviewHasIssues)
	require.Empty(t, f.credits.updates)

	ro := newFixture(t, rbac.RoleManager, sampleRecords())
	_, err = ro.ws.PreviewCSV(ctx, "edits.csv", strings.NewReader(roundTripCSV))
	require.ErrorIs(t, err, ErrForbidden)
}

func TestExportCSV(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rbac.RoleView, sampleRecords())
	require.NoError(t, f.ws.Load(context.Background()))

	var buf bytes.Buffer
	require.NoError(t, f.ws.ExportCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	require.True(t, strings.HasPrefix(lines[1], "a,INV1|I1,"))
}

func TestReminderLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleCredit, sampleRecords())
	require.NoError(t, f.ws.Load(ctx))

	rem, err := f.ws.SaveReminder(ctx, f.ws.Records()[0], ReminderDraft{DueDate: "2024-03-04", RemindDayBefore: true})
	require.NoError(t, err)
	require.Equal(t, "rem-1", rem.Key)
	require.Equal(t, "rem-1", rem.AlertID)
	require.Equal(t, credit.DefaultRemindTime, rem.RemindTime)
	require.Equal(t, credit.PriorityNormal, rem.Priority)
	require.Equal(t, "ann.lee@example.com", rem.CreatedBy)
	require.Equal(t, rem, f.rems.get("rem-1"))

	attached := 0
	for _, r := range f.ws.Records() {
		if r.ActionKey == "rem-1" {
			attached++
		}
	}
	require.Equal(t, 2, attached, "both T-1 records show the reminder before any snapshot")

	rem, err = f.ws.SnoozeReminder(ctx, "rem-1", "2024-03-08")
	require.NoError(t, err)
	require.Equal(t, credit.ReminderSnoozed, rem.Status)
	require.Equal(t, "2024-03-08", f.rems.get("rem-1").SnoozedUntil)

	rem, err = f.ws.SnoozeReminder(ctx, "rem-1", "")
	require.NoError(t, err)
	require.Equal(t, credit.ReminderPending, rem.Status)
	require.Empty(t, rem.SnoozedUntil)

	rem, err = f.ws.CompleteReminder(ctx, "rem-1")
	require.NoError(t, err)
	require.Equal(t, credit.ReminderCompleted, rem.Status)
	require.Equal(t, "2024-03-01 10:00:00", rem.CompletedAt)
	require.Equal(t, "2024-03-04", f.rems.get("rem-1").DueDate, "writes carry the whole object")

	_, err = f.ws.CompleteReminder(ctx, "missing")
	require.ErrorIs(t, err, ErrNoReminder)
	_, err = f.ws.CompleteReminder(ctx, "")
	require.ErrorIs(t, err, ErrMissingReminderKey)

	require.NoError(t, f.ws.DeleteReminder(ctx, "rem-1"))
	rems, _ := f.rems.List(ctx)
	f.ws.ApplyReminders(rems)
	for _, r := range f.ws.Records() {
		require.Nil(t, r.Reminder)
	}
}

func TestSaveReminderFailureStaysCached(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleOwner, sampleRecords())
	require.NoError(t, f.ws.Load(ctx))
	f.rems.fail = true

	_, err := f.ws.SaveReminder(ctx, f.ws.Records()[2], ReminderDraft{DueDate: "2024-03-04"})
	require.ErrorIs(t, err, errStoreDown)
	require.Contains(t, f.ws.State().Error, "save reminder")

	cached, ok := f.ws.Reminder("rem-1")
	require.True(t, ok)
	require.Equal(t, "T-2", cached.TicketNumber)

	ro := newFixture(t, rbac.RoleReadOnly, sampleRecords())
	_, err = ro.ws.SaveReminder(ctx, sampleRecords()[0], ReminderDraft{DueDate: "2024-03-04"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAppendStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleCredit, sampleRecords())
	require.NoError(t, f.ws.Load(ctx))

	n, err := f.ws.AppendStatus(ctx, f.ws.Records()[0], "Called customer", true)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "[2024-03-01 10:00:00] [AL] Called customer", f.credits.get("a").Status)
	require.Equal(t, "[2024-03-01 10:00:00] [AL] Called customer", f.credits.get("b").Status)
	require.Empty(t, f.credits.get("c").Status)

	f.clock.set(march1.Add(time.Hour))
	n, err = f.ws.AppendStatus(ctx, f.ws.Records()[0], "Credit issued", false)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "[2024-03-01 10:00:00] [AL] Called customer\n[2024-03-01 11:00:00] [AL] Credit issued", f.credits.get("a").Status)

	for _, r := range f.ws.Records() {
		if r.ID == "a" {
			require.Equal(t, "[AL] Credit issued", credit.ExtractLatestStatusLabel(r.Status, credit.DefaultLabelLength))
		}
	}

	_, err = f.ws.AppendStatus(ctx, f.ws.Records()[0], "  ", false)
	require.ErrorIs(t, err, ErrEmptyNote)
}

func TestNotes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleOwner, sampleRecords())
	require.NoError(t, f.ws.Load(ctx))
	rec := f.ws.Records()[0]

	_, err := f.ws.AddNote(ctx, rec, "   ")
	require.ErrorIs(t, err, ErrEmptyNote)

	saved, err := f.ws.AddNote(ctx, rec, "Customer sent photos")
	require.NoError(t, err)
	require.Equal(t, "INV1|I1", saved.ComboKey)

	notes, err := f.ws.LoadNotes(ctx, rec)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, "Customer sent photos", notes[0].Text)

	f.notes.block = make(chan struct{})
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	notes, err = f.ws.LoadNotes(cctx, rec)
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, notes, "a closed view never receives stale notes")
}

func TestCheckRemindersPersistsDayState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleOwner, sampleRecords(), dayBefore("r1", "T-2", "2024-03-02"), dayBefore("r2", "T-1", "2024-03-09"))
	require.NoError(t, f.ws.Load(ctx))

	due, err := f.ws.CheckReminders(ctx, march1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "r1", due[0].Key)

	again, err := f.ws.CheckReminders(ctx, march1.Add(time.Minute))
	require.NoError(t, err)
	require.Empty(t, again)

	st, err := f.days.Load(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Equal(t, []string{"r1"}, st.Fired)

	groups := f.ws.Alerts()
	require.Len(t, groups, 1)
	f.ws.DismissAlerts(ctx, groups[0].Keys())
	require.Empty(t, f.ws.Alerts())
	st, err = f.days.Load(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Equal(t, []string{"r1"}, st.Dismissed)

	// a fresh session on the same day does not re-fire
	g := newFixture(t, rbac.RoleOwner, sampleRecords(), dayBefore("r1", "T-2", "2024-03-02"))
	g.ws.deps.Days = f.days
	require.NoError(t, g.ws.Load(ctx))
	due, err = g.ws.CheckReminders(ctx, march1)
	require.NoError(t, err)
	require.Empty(t, due)

	f.ws.HideAlertsToday(ctx)
	require.True(t, f.ws.State().Notifications.Suppressed(march1.Add(time.Hour)))
}

func TestCheckRemindersRollsDay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleOwner, sampleRecords(), dayBefore("r1", "T-2", "2024-03-02"))
	require.NoError(t, f.ws.Load(ctx))

	_, err := f.ws.CheckReminders(ctx, march1)
	require.NoError(t, err)
	f.ws.Dispatch(ctx, appstate.ClearQueue{})

	next := march1.Add(24 * time.Hour)
	due, err := f.ws.CheckReminders(ctx, next)
	require.NoError(t, err)
	require.Len(t, due, 1, "fired state belongs to one day")
	require.Equal(t, "2024-03-02", f.ws.State().Notifications.Day)
}

func TestCheckRemindersConcurrentRollover(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleOwner, sampleRecords(), dayBefore("r1", "T-2", "2024-03-03"))
	require.NoError(t, f.ws.Load(ctx))

	next := march1.Add(24 * time.Hour)
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fired int
		errs  []error
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			due, err := f.ws.CheckReminders(ctx, next)
			mu.Lock()
			defer mu.Unlock()
			fired += len(due)
			if err != nil {
				errs = append(errs, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Equal(t, 1, fired)
	require.Equal(t, "2024-03-02", f.ws.State().Notifications.Day)
	st, err := f.days.Load(ctx, "2024-03-02")
	require.NoError(t, err)
	require.Equal(t, []string{"r1"}, st.Fired)
}

func TestSaveDaySkipsStaleSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleOwner, nil)

	newer := appstate.Notifications{Day: "2024-03-01", Fired: map[string]struct{}{"r1": {}, "r2": {}}}
	older := appstate.Notifications{Day: "2024-03-01", Fired: map[string]struct{}{"r1": {}}}
	f.ws.saveDay(ctx, 2, newer)
	f.ws.saveDay(ctx, 1, older)

	st, err := f.days.Load(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Equal(t, []string{"r1", "r2"}, st.Fired)
}

func TestDeleteRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleOwner, sampleRecords())
	require.NoError(t, f.ws.Load(ctx))

	f.ws.Dispatch(ctx, appstate.ToggleRowSelection{RowKey: "b", Selected: true})
	n, err := f.ws.DeleteSelected(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, f.ws.Records(), 2)
	require.Empty(t, f.ws.State().Selected)
	left, _ := f.credits.List(ctx)
	require.Len(t, left, 2)

	ro := newFixture(t, rbac.RoleView, sampleRecords())
	_, err = ro.ws.DeleteRecords(ctx, []string{"a"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAddRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, rbac.RoleCredit, sampleRecords())
	require.NoError(t, f.ws.Load(ctx))

	_, err := f.ws.AddRecord(ctx, credit.Record{CustomerNumber: "X"})
	require.ErrorIs(t, err, credit.ErrNoIdentity)

	id, err := f.ws.AddRecord(ctx, credit.Record{InvoiceNumber: "INV5", ItemNumber: "I5", TicketNumber: "T-1"})
	require.NoError(t, err)
	require.Equal(t, "new-1", id)
	require.Len(t, f.ws.Records(), 4)
}

func TestResolveRole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	roles := memRoles{"kim@example.com": {"access": "Credit"}}

	role, err := ResolveRole(ctx, roles, "", "kim@example.com")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleCredit, role)

	role, err = ResolveRole(ctx, roles, "owner", "kim@example.com")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleOwner, role)

	role, err = ResolveRole(ctx, roles, "", "nobody@example.com")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleReadOnly, role)

	role, err = ResolveRole(ctx, nil, "manager", "")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleManager, role)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, rbac.RoleOwner, sampleRecords(), dayBefore("r1", "T-2", "2024-03-02"))
	changed := make(chan struct{}, 64)
	f.ws.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.ws.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(f.ws.Records()) == 3 && len(f.ws.State().Notifications.Queue) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NotEmpty(t, changed)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
