package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/analytics"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/appstate"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/config"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/filtering"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/rbac"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/roundtrip"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/service"
)

// App ties together views.
type App struct {
	ctx      context.Context
	ws       *service.Workspace
	services Services
	cfg      config.Config
	tab      rbac.Tab
	tabs     []rbac.Tab
	cursor   int
	field    int
	status   string
	tz       *time.Location
	currency string
	modal    modalState
	input    string

	// aging hub
	followQuery analytics.FollowUpQuery

	// notes panel
	notes       []credit.Note
	notesFor    string
	notesCancel context.CancelFunc

	// import flow
	importPath string
	importing  bool
	lastPush   *service.PushResult
}

// Services are the optional collaborators beyond the workspace.
type Services struct {
	Maintenance *service.MaintenanceService
}

type modalState string

const (
	modalNone          modalState = ""
	modalSearch        modalState = "search"
	modalBulk          modalState = "bulk"
	modalEditField     modalState = "editField"
	modalStatus        modalState = "status"
	modalStatusAll     modalState = "statusAll"
	modalReminder      modalState = "reminder"
	modalSnooze        modalState = "snooze"
	modalNote          modalState = "note"
	modalExport        modalState = "export"
	modalConfirmDelete modalState = "confirmDelete"
	modalConfirmReset  modalState = "confirmReset"
)

var statusCycle = []string{filtering.StatusAll, string(credit.StatePending), string(credit.StateCompleted)}

var actionCycle = []string{analytics.ActionAll, analytics.ActionPending, analytics.ActionSnoozed, analytics.ActionCompleted, analytics.ActionRush}

var slaCycle = []string{analytics.SLAAll, analytics.SLAUnder30, analytics.SLA30To59, analytics.SLA60Plus}

// Fields in edit order.
var editFields = append(append([]string{credit.FieldDate}, credit.BusinessFields...), credit.FieldReason)

// ChangedMsg tells the app that workspace state changed outside Update.
type ChangedMsg struct{}

func New(ctx context.Context, cfg config.Config, ws *service.Workspace, services Services) *App {
	tabs := rbac.VisibleTabs(ws.Role())
	return &App{
		ctx:         ctx,
		ws:          ws,
		services:    services,
		cfg:         cfg,
		tabs:        tabs,
		tab:         tabs[0],
		tz:          ws.Settings().Location,
		currency:    ws.Settings().Currency,
		importPath:  "credit_requests.csv",
		followQuery: analytics.FollowUpQuery{Action: analytics.ActionAll, SLA: analytics.SLAAll},
	}
}

func (a *App) Init() tea.Cmd {
	return nil
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		if a.modal != modalNone {
			return a.handleModalKey(m)
		}
		if a.importing {
			return a.handleImportKey(m)
		}
		return a.handleKey(m)
	case ChangedMsg:
		a.clampCursor()
	case notesMsg:
		if m.combo == a.notesFor {
			a.notes = m.notes
		}
	case previewMsg:
		p := roundtrip.Preview(m)
		a.status = fmt.Sprintf("preview: %d row(s), %d update(s), %d issue(s)", len(p.Rows), len(p.Diffs), len(p.Issues))
	case pushDoneMsg:
		a.lastPush = &m.Result
		a.status = fmt.Sprintf("%s: %d updated, %d inserted, %d failed", m.What, m.Result.Updated, m.Result.Inserted, m.Result.Failed)
	case statusMsg:
		a.status = string(m)
	case errMsg:
		a.status = "error: " + m.Error()
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := a.ctx
	switch m.String() {
	case "q", "ctrl+c":
		a.closeNotes()
		return a, tea.Quit
	case "tab":
		a.switchTab(1)
	case "shift+tab":
		a.switchTab(-1)
	case "1", "2", "3", "4", "5":
		idx := int(m.String()[0] - '1')
		if idx < len(a.tabs) {
			a.tab = a.tabs[idx]
			a.cursor = 0
		}
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.ws.Page().Rows)-1 {
			a.cursor++
		}
	case "right", "l":
		a.ws.SetPage(a.ws.Page().Page + 1)
		a.cursor = 0
	case "left", "h":
		a.ws.SetPage(a.ws.Page().Page - 1)
		a.cursor = 0
	case "/":
		a.openModal(modalSearch, a.ws.Criteria().Search)
	case "b":
		a.openModal(modalBulk, a.ws.Criteria().Bulk)
	case "f":
		c := a.ws.Criteria()
		c.Status = next(statusCycle, c.Status)
		a.ws.SetCriteria(c)
	case "s":
		a.ws.ToggleSort(filtering.Column(next(columnNames(), string(a.ws.Sort().Column))))
	case "S":
		a.ws.ToggleSort(a.ws.Sort().Column)
	case " ":
		if key, ok := a.currentKey(); ok {
			a.ws.Dispatch(ctx, appstate.ToggleRowSelection{RowKey: key, Selected: !a.ws.State().IsSelected(key)})
		}
	case "A":
		page := a.ws.Page()
		allOn := len(page.Keys) > 0
		for _, k := range page.Keys {
			if !a.ws.State().IsSelected(k) {
				allOn = false
			}
		}
		a.ws.Dispatch(ctx, appstate.ToggleAllVisible{Selected: !allOn, Rows: page.Rows, Offset: page.Offset, Key: credit.RowKey})
	case "esc":
		a.ws.Dispatch(ctx, appstate.ClearSelection{})
		a.closeNotes()
	case "D":
		if groups := a.ws.Alerts(); len(groups) > 0 {
			a.ws.DismissAlerts(ctx, groups[0].Keys())
		}
	case "H":
		a.ws.HideAlerts(ctx, time.Hour)
		a.status = "alerts hidden for 1 hour"
	case "T":
		a.ws.HideAlertsToday(ctx)
		a.status = "alerts hidden for today"
	case "o":
		a.openModal(modalExport, "credit_requests_export.csv")
	case "n":
		return a, a.loadNotesCmd()
	}
	if !a.ws.Role().CanEdit() {
		return a, nil
	}
	return a.handleWriteKey(m)
}

// handleWriteKey covers keys that change data. Callers gate on role.
func (a *App) handleWriteKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := a.ctx
	switch a.tab {
	case rbac.TabEdit:
		switch m.String() {
		case "e":
			a.ws.Dispatch(ctx, appstate.ToggleEditMode{})
		case ",":
			a.field = (a.field + len(editFields) - 1) % len(editFields)
		case ".":
			a.field = (a.field + 1) % len(editFields)
		case "enter":
			if !a.ws.State().EditMode {
				a.status = "press e to enter edit mode"
				return a, nil
			}
			if rec, ok := a.currentRecord(); ok {
				a.openModal(modalEditField, rec.Field(editFields[a.field]))
			}
		case "P":
			a.status = "pushing edits..."
			return a, a.pushEditsCmd()
		case "R":
			a.ws.RetryFailed(ctx)
		case "X":
			a.ws.DiscardEdits(ctx)
			a.status = "staged edits discarded"
		case "x":
			if len(a.ws.State().Selected) == 0 {
				a.status = "select rows with space first"
				return a, nil
			}
			a.modal = modalConfirmDelete
		case "i":
			a.importing = true
			a.status = ""
		}
	case rbac.TabAgingHub:
		switch m.String() {
		case "a":
			a.followQuery.Action = next(actionCycle, a.followQuery.Action)
		case "g":
			a.followQuery.SLA = next(slaCycle, a.followQuery.SLA)
		case "N":
			a.followQuery.NewestFirst = !a.followQuery.NewestFirst
		}
	}
	switch m.String() {
	case "u":
		a.openModal(modalStatus, "")
	case "U":
		a.openModal(modalStatusAll, "")
	case "m":
		a.openModal(modalReminder, a.Now().AddDate(0, 0, 7).Format("2006-01-02"))
	case "c":
		if rec, ok := a.currentRecord(); ok && rec.ActionKey != "" {
			return a, a.reminderCmd("reminder completed", func() error {
				_, err := a.ws.CompleteReminder(a.ctx, rec.ActionKey)
				return err
			})
		}
	case "z":
		a.openModal(modalSnooze, "")
	case "w":
		a.openModal(modalNote, "")
	case "ctrl+x":
		if a.services.Maintenance != nil {
			a.modal = modalConfirmReset
		}
	}
	return a, nil
}

func (a *App) handleModalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.modal {
	case modalConfirmDelete:
		switch m.String() {
		case "y", "Y":
			a.modal = modalNone
			return a, a.deleteCmd()
		case "n", "N", "esc":
			a.modal = modalNone
		}
		return a, nil
	case modalConfirmReset:
		switch m.String() {
		case "y", "Y":
			a.modal = modalNone
			return a, a.resetCmd()
		case "n", "N", "esc":
			a.modal = modalNone
		}
		return a, nil
	}

	switch m.Type {
	case tea.KeyEsc:
		a.modal = modalNone
		a.input = ""
	case tea.KeyEnter:
		mode, text := a.modal, a.input
		a.modal = modalNone
		a.input = ""
		return a, a.submit(mode, text)
	case tea.KeyBackspace, tea.KeyCtrlH, tea.KeyDelete:
		if len(a.input) > 0 {
			r := []rune(a.input)
			a.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		a.input += " "
	case tea.KeyRunes:
		a.input += string(m.Runes)
	}
	return a, nil
}

func (a *App) submit(mode modalState, text string) tea.Cmd {
	ctx := a.ctx
	switch mode {
	case modalSearch:
		c := a.ws.Criteria()
		c.Search = strings.TrimSpace(text)
		a.ws.SetCriteria(c)
		a.cursor = 0
	case modalBulk:
		c := a.ws.Criteria()
		c.Bulk = text
		a.ws.SetCriteria(c)
		a.cursor = 0
	case modalEditField:
		key, ok := a.currentKey()
		if !ok {
			return nil
		}
		if err := a.ws.StageEdit(ctx, key, editFields[a.field], text); err != nil {
			return errCmd(err)
		}
	case modalStatus, modalStatusAll:
		rec, ok := a.currentRecord()
		if !ok {
			return nil
		}
		applyAll := mode == modalStatusAll
		return func() tea.Msg {
			n, err := a.ws.AppendStatus(ctx, rec, text, applyAll)
			if err != nil {
				return errMsg{err}
			}
			return statusMsg(fmt.Sprintf("status appended to %d record(s)", n))
		}
	case modalReminder:
		rec, ok := a.currentRecord()
		if !ok {
			return nil
		}
		draft := service.ReminderDraft{DueDate: strings.TrimSpace(text), RemindDayBefore: true}
		if rec.Reminder != nil {
			draft.Note = rec.Reminder.Note
			draft.Priority = rec.Reminder.Priority
			draft.RemindTime = rec.Reminder.RemindTime
		}
		return a.reminderCmd("reminder saved", func() error {
			_, err := a.ws.SaveReminder(ctx, rec, draft)
			return err
		})
	case modalSnooze:
		rec, ok := a.currentRecord()
		if !ok || rec.ActionKey == "" {
			return errCmd(service.ErrNoReminder)
		}
		msg := "reminder snoozed"
		if strings.TrimSpace(text) == "" {
			msg = "reminder unsnoozed"
		}
		return a.reminderCmd(msg, func() error {
			_, err := a.ws.SnoozeReminder(ctx, rec.ActionKey, text)
			return err
		})
	case modalNote:
		rec, ok := a.currentRecord()
		if !ok {
			return nil
		}
		return func() tea.Msg {
			if _, err := a.ws.AddNote(ctx, rec, text); err != nil {
				return errMsg{err}
			}
			notes, err := a.ws.LoadNotes(ctx, rec)
			if err != nil {
				return errMsg{err}
			}
			return notesMsg{combo: rec.Combo(), notes: notes}
		}
	case modalExport:
		return a.exportCmd(strings.TrimSpace(text))
	}
	return nil
}

func (a *App) handleImportKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "ctrl+p":
		a.status = "pushing CSV..."
		return a, a.pushCSVCmd()
	}
	switch m.Type {
	case tea.KeyEsc:
		a.importing = false
		a.ws.ClearCSV(a.ctx)
		a.status = ""
	case tea.KeyEnter:
		path := strings.TrimSpace(a.importPath)
		if path == "" {
			a.status = "enter a CSV path"
			return a, nil
		}
		return a, a.previewCmd(path)
	case tea.KeyBackspace, tea.KeyCtrlH, tea.KeyDelete:
		if len(a.importPath) > 0 {
			a.importPath = a.importPath[:len(a.importPath)-1]
		}
	case tea.KeySpace:
		a.importPath += " "
	case tea.KeyRunes:
		a.importPath += string(m.Runes)
	}
	return a, nil
}

// commands
func (a *App) pushEditsCmd() tea.Cmd {
	return func() tea.Msg {
		res, err := a.ws.PushEdits(a.ctx)
		if err != nil && res == (service.PushResult{}) {
			return errMsg{err}
		}
		return pushDoneMsg{What: "edits", Result: res}
	}
}

func (a *App) previewCmd(path string) tea.Cmd {
	abs := path
	if !filepath.IsAbs(path) {
		if p, err := filepath.Abs(path); err == nil {
			abs = p
		}
	}
	a.status = "reading..."
	return func() tea.Msg {
		f, err := os.Open(abs)
		if err != nil {
			return errMsg{fmt.Errorf("open %s: %w", abs, err)}
		}
		defer f.Close()

		p, err := a.ws.PreviewCSV(a.ctx, filepath.Base(abs), f)
		if err != nil {
			return errMsg{err}
		}
		return previewMsg(p)
	}
}

func (a *App) pushCSVCmd() tea.Cmd {
	return func() tea.Msg {
		res, err := a.ws.PushCSV(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return pushDoneMsg{What: "csv", Result: res}
	}
}

func (a *App) exportCmd(path string) tea.Cmd {
	return func() tea.Msg {
		if path == "" {
			return errMsg{fmt.Errorf("enter a file name")}
		}
		f, err := os.Create(path)
		if err != nil {
			return errMsg{err}
		}
		defer f.Close()
		if err := a.ws.ExportCSV(f); err != nil {
			return errMsg{err}
		}
		return statusMsg("exported view to " + path)
	}
}

func (a *App) deleteCmd() tea.Cmd {
	return func() tea.Msg {
		n, err := a.ws.DeleteSelected(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return statusMsg(fmt.Sprintf("deleted %d record(s)", n))
	}
}

func (a *App) resetCmd() tea.Cmd {
	return func() tea.Msg {
		if a.services.Maintenance == nil {
			return errMsg{fmt.Errorf("maintenance not configured")}
		}
		if err := a.services.Maintenance.Reset(a.ctx); err != nil {
			return errMsg{err}
		}
		if err := a.ws.Load(a.ctx); err != nil {
			return errMsg{err}
		}
		return statusMsg("database reset (empty)")
	}
}

func (a *App) reminderCmd(done string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return errMsg{err}
		}
		return statusMsg(done)
	}
}

// loadNotesCmd loads notes for the current row. Opening another row or
// closing the panel cancels a load still in flight.
func (a *App) loadNotesCmd() tea.Cmd {
	rec, ok := a.currentRecord()
	if !ok {
		return nil
	}
	a.closeNotes()
	ctx, cancel := context.WithCancel(a.ctx)
	a.notesCancel = cancel
	a.notesFor = rec.Combo()
	return func() tea.Msg {
		notes, err := a.ws.LoadNotes(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errMsg{err}
		}
		return notesMsg{combo: rec.Combo(), notes: notes}
	}
}

func (a *App) closeNotes() {
	if a.notesCancel != nil {
		a.notesCancel()
		a.notesCancel = nil
	}
	a.notes = nil
	a.notesFor = ""
}

func errCmd(err error) tea.Cmd {
	return func() tea.Msg { return errMsg{err} }
}

// helpers
func (a *App) Now() time.Time {
	return a.ws.Now()
}

func (a *App) openModal(mode modalState, initial string) {
	a.modal = mode
	a.input = initial
}

func (a *App) switchTab(step int) {
	for i, t := range a.tabs {
		if t == a.tab {
			a.tab = a.tabs[(i+step+len(a.tabs))%len(a.tabs)]
			a.cursor = 0
			return
		}
	}
}

func (a *App) currentRecord() (credit.Record, bool) {
	page := a.ws.Page()
	if a.cursor < 0 || a.cursor >= len(page.Rows) {
		return credit.Record{}, false
	}
	return page.Rows[a.cursor], true
}

func (a *App) currentKey() (string, bool) {
	page := a.ws.Page()
	if a.cursor < 0 || a.cursor >= len(page.Keys) {
		return "", false
	}
	return page.Keys[a.cursor], true
}

func (a *App) clampCursor() {
	if n := len(a.ws.Page().Rows); a.cursor >= n {
		a.cursor = max(0, n-1)
	}
}

func columnNames() []string {
	out := make([]string, len(filtering.Columns))
	for i, c := range filtering.Columns {
		out[i] = string(c)
	}
	return out
}

func next(cycle []string, cur string) string {
	for i, v := range cycle {
		if v == cur {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return cycle[0]
}

// messages
type notesMsg struct {
	combo string
	notes []credit.Note
}

type previewMsg roundtrip.Preview

type pushDoneMsg struct {
	What   string
	Result service.PushResult
}

type statusMsg string

type errMsg struct{ error }
