package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/analytics"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/rbac"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/service"
)

// styles
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	tabStyle   = lipgloss.NewStyle().Padding(0, 1)
	activeTab  = tabStyle.Bold(true).Reverse(true)
	alertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
	riskColors = map[string]lipgloss.Color{
		analytics.RiskLow:    lipgloss.Color("42"),
		analytics.RiskMedium: lipgloss.Color("214"),
		analytics.RiskHigh:   lipgloss.Color("196"),
	}
)

var tabTitles = map[rbac.Tab]string{
	rbac.TabDashboard: "Dashboard",
	rbac.TabEdit:      "Edit",
	rbac.TabAgingHub:  "Aging Hub",
	rbac.TabKPIs:      "KPIs",
	rbac.TabRisk:      "Risk",
}

const labelWidth = 32

func (a *App) View() string {
	if a.modal != modalNone {
		return a.renderModal()
	}
	var body string
	switch {
	case a.importing:
		body = a.renderImport()
	case a.tab == rbac.TabEdit:
		body = a.renderEdit()
	case a.tab == rbac.TabAgingHub:
		body = a.renderAging()
	case a.tab == rbac.TabKPIs:
		body = a.renderKPIs()
	case a.tab == rbac.TabRisk:
		body = a.renderRisk()
	default:
		body = a.renderDashboard()
	}
	return strings.Join([]string{a.renderTabs(), a.renderAlerts(), body, a.renderFooter()}, "\n")
}

func (a *App) renderTabs() string {
	parts := make([]string, 0, len(a.tabs)+1)
	for i, t := range a.tabs {
		label := fmt.Sprintf("%d %s", i+1, tabTitles[t])
		if t == a.tab {
			parts = append(parts, activeTab.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	parts = append(parts, dimStyle.Render(a.ws.Role().DisplayName()))
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (a *App) renderAlerts() string {
	groups := a.ws.Alerts()
	if len(groups) == 0 {
		return ""
	}
	var out []string
	for _, g := range groups {
		out = append(out, alertStyle.Render(fmt.Sprintf("⏰ %s", g.Items[0].Message)))
	}
	out = append(out, dimStyle.Render("[D] Dismiss  [H] Hide 1h  [T] Hide today"))
	return strings.Join(out, "\n")
}

func (a *App) renderFooter() string {
	st := a.ws.State()
	var out []string
	if st.Error != "" {
		out = append(out, errStyle.Render(st.Error))
	} else if st.Message != "" {
		out = append(out, st.Message)
	}
	if a.status != "" {
		out = append(out, a.status)
	}
	out = append(out, "[tab] Next  [/] Search  [b] Bulk  [f] Status  [s] Sort  [←/→] Page  [n] Notes  [o] Export  [q] Quit")
	return strings.Join(out, "\n")
}

func (a *App) renderDashboard() string {
	rep := a.ws.Report()
	head := rep.Headline()
	title := titleStyle.Render("Credit Requests")
	if rep.IsFiltered {
		title += dimStyle.Render(" (filtered)")
	}
	c := a.ws.Criteria()
	body := fmt.Sprintf("Total: %s  Records: %d  Avg: %s  Pending: %d",
		analytics.FormatCurrency(head.Total, a.currency), head.Count, analytics.FormatCurrency(head.Avg, a.currency), head.Pending)
	body += fmt.Sprintf("\nSearch: %q  Status: %s  Bulk keys: %d  Sort: %s", c.Search, orAll(c.Status), len(strings.Fields(c.Bulk)), a.sortLabel())
	body += "\n" + a.renderTable(false)
	if len(a.notes) > 0 || a.notesFor != "" {
		body += "\n" + a.renderNotes()
	}
	return fmt.Sprintf("%s\n%s", title, body)
}

func (a *App) renderTable(editing bool) string {
	page := a.ws.Page()
	st := a.ws.State()
	if page.Total == 0 {
		return "No records match."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "   %-10s  %-10s  %-12s  %-10s  %12s  %-10s  %s\n", "Date", "Customer", "Invoice", "Item", "Credit", "Ticket", "Status")
	for i, r := range page.Rows {
		key := page.Keys[i]
		marker := " "
		if i == a.cursor {
			marker = "▶"
		}
		sel := " "
		if st.IsSelected(key) {
			sel = "✓"
		}
		view := r
		for f, v := range st.PendingEdits[key] {
			view.Set(f, v)
		}
		status := credit.ExtractLatestStatusLabel(r.Status, 40)
		if in, ok := st.Intents[key]; ok {
			status = fmt.Sprintf("[%s] %s", in.Status, status)
		} else if _, staged := st.PendingEdits[key]; staged {
			status = "[staged] " + status
		}
		if r.Reminder != nil && !r.Reminder.IsCompleted() {
			status = "⏰ " + status
		}
		fmt.Fprintf(&b, "%s%s %-10s  %-10s  %-12s  %-10s  %12s  %-10s  %s\n", marker, sel,
			view.Date, view.CustomerNumber, view.InvoiceNumber, view.ItemNumber, view.CreditRequestTotal, view.TicketNumber, status)
	}
	fmt.Fprintf(&b, "Page %d of %d  (%d records)", page.Page, page.Pages, page.Total)
	if editing {
		b.WriteString("\n" + a.renderFieldBar())
	}
	return b.String()
}

func (a *App) renderFieldBar() string {
	parts := make([]string, len(editFields))
	for i, f := range editFields {
		if i == a.field {
			parts[i] = activeTab.Render(f)
		} else {
			parts[i] = f
		}
	}
	return "Field: " + strings.Join(parts, " ")
}

func (a *App) renderEdit() string {
	st := a.ws.State()
	mode := "off"
	if st.EditMode {
		mode = "on"
	}
	title := titleStyle.Render("Edit Credit Requests")
	body := fmt.Sprintf("Edit mode: %s  Staged rows: %d  Selected: %d", mode, len(st.PendingEdits), len(st.Selected))
	if failed := st.FailedIntents(); len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool { return failed[i].RowKey < failed[j].RowKey })
		body += errStyle.Render(fmt.Sprintf("\n%d write(s) failed; first: %s", len(failed), failed[0].Err))
	}
	if a.lastPush != nil {
		body += fmt.Sprintf("\nLast push: %d updated, %d inserted, %d failed, %d skipped", a.lastPush.Updated, a.lastPush.Inserted, a.lastPush.Failed, a.lastPush.Skipped)
	}
	body += "\n" + a.renderTable(st.EditMode)
	if rec, ok := a.currentRecord(); ok {
		body += "\n" + a.renderTimeline(rec)
	}
	body += "\n[e] Edit mode  [,/.] Field  [enter] Set field  [P] Push  [R] Retry failed  [X] Discard  [space] Select  [A] Select page  [x] Delete  [i] Import CSV"
	body += "\n[u] Add status  [U] Add status to ticket  [m] Reminder  [c] Complete  [z] Snooze  [w] Add note"
	return fmt.Sprintf("%s\n%s", title, body)
}

func (a *App) renderTimeline(rec credit.Record) string {
	entries := credit.ParseStatusTimeline(rec.Status)
	if len(entries) == 0 {
		return dimStyle.Render("No status history.")
	}
	out := "Status history:"
	for _, e := range entries {
		out += fmt.Sprintf("\n  %s  %s", e.Timestamp, e.Label)
	}
	return out
}

func (a *App) renderAging() string {
	rows := analytics.FollowUps(a.ws.Records(), a.Now(), a.followQuery)
	order := "oldest first"
	if a.followQuery.NewestFirst {
		order = "newest first"
	}
	title := titleStyle.Render("Aging Hub")
	body := fmt.Sprintf("Action: %s  SLA: %s  Order: %s  Rows: %d", a.followQuery.Action, a.followQuery.SLA, order, len(rows))
	limit := min(len(rows), 20)
	for _, f := range rows[:limit] {
		days := "?"
		if f.Aging.DaysPending != nil {
			days = fmt.Sprintf("%d", *f.Aging.DaysPending)
		}
		body += fmt.Sprintf("\n  %-10s  %-10s  %-10s  %4sd  %-8s  %12s  %s", f.Record.Date, f.Record.TicketNumber, f.Record.CustomerNumber, days, f.Badge,
			analytics.FormatCurrency(f.Record.Amount(), a.currency), f.Record.SalesRep)
	}
	if len(rows) > limit {
		body += fmt.Sprintf("\n  ... %d more", len(rows)-limit)
	}
	body += "\n\nBy sales rep:"
	for _, s := range analytics.StatsByRep(rows, 5) {
		body += fmt.Sprintf("\n  %-24s %12s  %d item(s)  %d account(s)", s.Rep, analytics.FormatCurrency(s.Total, a.currency), s.Items, s.Accounts)
	}
	body += "\n[a] Action filter  [g] SLA filter  [N] Toggle order"
	return fmt.Sprintf("%s\n%s", title, body)
}

func (a *App) renderKPIs() string {
	recs := a.ws.View()
	title := titleStyle.Render("KPIs")
	body := analytics.DailySummary(recs, a.Now(), a.currency)

	body += "\n\nTop sales reps:" + a.renderTotals(analytics.TopReps(recs, 5))
	body += "\n\nTop account groups:" + a.renderTotals(analytics.TopAccountGroups(recs, 5))
	body += "\n\nLargest credits:"
	for _, r := range analytics.LargestCredits(recs, 5) {
		body += fmt.Sprintf("\n  %-*s %s", labelWidth, r.TicketNumber+" "+r.CustomerNumber, analytics.FormatCurrency(r.Amount(), a.currency))
	}
	body += "\n\nVolume by date:" + a.renderTotals(analytics.VolumeByDate(recs, 7))

	dups := analytics.Duplicates(recs)
	body += fmt.Sprintf("\n\nDuplicate invoice|item pairs: %d (%d rows)", dups.Pairs, dups.Rows)
	for _, p := range a.ws.Duplicates() {
		kind := p.Kind
		if p.Kind == service.MatchFuzzy {
			kind = fmt.Sprintf("fuzzy %.2f", p.Similarity)
		}
		body += fmt.Sprintf("\n  %-*s ~ %s (%s)", labelWidth, p.A.Combo(), p.B.Combo(), kind)
	}
	return fmt.Sprintf("%s\n%s", title, body)
}

func (a *App) renderTotals(items []analytics.NamedTotal) string {
	if len(items) == 0 {
		return "\n  (none)"
	}
	var out string
	for _, it := range items {
		out += fmt.Sprintf("\n  %-*s %s", labelWidth, it.Name, analytics.FormatCurrency(it.Total, a.currency))
	}
	return out
}

func (a *App) renderRisk() string {
	rep := a.ws.Report()
	risk := rep.Risk
	title := titleStyle.Render("Credit Risk Index")
	label := lipgloss.NewStyle().Bold(true).Foreground(riskColors[risk.Label]).Render(fmt.Sprintf("%d / 100  %s", risk.Score, risk.Label))
	body := label
	body += fmt.Sprintf("\nPending load:  %5.1f  (%d of %d pending)", risk.Factors.Pending, risk.Inputs.Pending, risk.Inputs.TotalCount)
	body += fmt.Sprintf("\nAging mix:     %5.1f  (%d at 60d+, %d at 30-59d)", risk.Factors.Aging, risk.Inputs.SLA60, risk.Inputs.SLA30)
	body += fmt.Sprintf("\nHigh dollar:   %5.1f  (%d ticket(s), %s)", risk.Factors.HighDollar, risk.Inputs.DollarCount, analytics.FormatCurrency(risk.Inputs.DollarTotal, a.currency))
	body += fmt.Sprintf("\nTrend:         %5.1f  (%d this week, %d last week, %+.0f%%)", risk.Factors.Trend, rep.Trend.Current, rep.Trend.Previous, rep.Trend.PctChange)

	body += "\n\nSLA buckets:"
	for _, label := range credit.SLABuckets {
		b := rep.SLA.Get(label)
		body += fmt.Sprintf("\n  %-8s %5d  %s", b.Label, b.Count, analytics.FormatCurrency(b.Total, a.currency))
	}
	body += "\n\nHigh-dollar tickets:"
	if len(rep.HighDollar.Tickets) == 0 {
		body += "\n  (none)"
	}
	for _, t := range rep.HighDollar.Tickets {
		body += fmt.Sprintf("\n  %-*s %s", labelWidth, t.Ticket, analytics.FormatCurrency(t.Total, a.currency))
	}
	return fmt.Sprintf("%s\n%s", title, body)
}

func (a *App) renderImport() string {
	title := titleStyle.Render("Import CSV")
	body := fmt.Sprintf("CSV path: %s\nType a path to an exported credit request CSV and press Enter to preview.\n[enter] Preview  [ctrl+p] Push  [esc] Back", a.importPath)
	st := a.ws.State()
	if p := st.Csv.Preview; p != nil {
		body += fmt.Sprintf("\n\nFile: %s  Rows: %d  Updates: %d  Inserts: %d", st.Csv.FileName, p.Summary.Total, p.Summary.Updates, p.Summary.Inserts)
		for i, is := range p.Issues {
			if i == 5 {
				body += fmt.Sprintf("\n  (+%d more issues)", len(p.Issues)-i)
				break
			}
			body += errStyle.Render("\n  " + is.String())
		}
		for i, d := range p.Diffs {
			if i == 10 {
				body += fmt.Sprintf("\n  (+%d more changes)", len(p.Diffs)-i)
				break
			}
			fields := make([]string, 0, len(d.Changed))
			for f, c := range d.Changed {
				fields = append(fields, fmt.Sprintf("%s: %q → %q", f, c.From, c.To))
			}
			sort.Strings(fields)
			body += fmt.Sprintf("\n  %s  %s", d.Combo, strings.Join(fields, "; "))
		}
		if !st.CsvReady() {
			body += dimStyle.Render("\nPush disabled until the issues are fixed.")
		}
	}
	return fmt.Sprintf("%s\n%s", title, body)
}

func (a *App) renderNotes() string {
	out := titleStyle.Render("Investigation notes")
	if len(a.notes) == 0 {
		return out + "\n" + dimStyle.Render("No notes.")
	}
	for _, n := range a.notes {
		out += fmt.Sprintf("\n  %s  %s: %s", n.CreatedAt.In(a.tz).Format("2006-01-02 15:04"), n.Author, n.Text)
	}
	return out
}

func (a *App) renderModal() string {
	switch a.modal {
	case modalConfirmDelete:
		return titleStyle.Render("Delete selected records?") + fmt.Sprintf("\n%d record(s) will be removed.\n[y] Yes  [n] No", len(a.ws.State().Selected))
	case modalConfirmReset:
		return titleStyle.Render("Reset database?") + "\nThis will delete all data.\n[y] Yes  [n] No"
	}
	prompts := map[modalState]string{
		modalSearch:    "Search",
		modalBulk:      "Bulk invoice/item/ticket keys (space, comma or newline separated)",
		modalEditField: "Set " + editFields[a.field],
		modalStatus:    "Add status update",
		modalStatusAll: "Add status update to every record on the ticket",
		modalReminder:  "Reminder due date (YYYY-MM-DD)",
		modalSnooze:    "Snooze until (YYYY-MM-DD, empty to unsnooze)",
		modalNote:      "Add investigation note",
		modalExport:    "Export current view to file",
	}
	return titleStyle.Render(prompts[a.modal]) + fmt.Sprintf("\n%s\n[enter] Save  [esc] Cancel", a.input)
}

func (a *App) sortLabel() string {
	s := a.ws.Sort()
	dir := "desc"
	if s.Ascending {
		dir = "asc"
	}
	return fmt.Sprintf("%s %s", s.Column, dir)
}

func orAll(status string) string {
	if status == "" {
		return "All"
	}
	return status
}
