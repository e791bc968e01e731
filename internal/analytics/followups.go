package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// FollowUpWindowDays bounds the aging hub to recent pending credits.
const FollowUpWindowDays = 90

// Action filters for the aging hub.
const (
	ActionAll       = "all"
	ActionPending   = "pending"
	ActionCompleted = "completed"
	ActionSnoozed   = "snoozed"
	ActionRush      = "rush"
)

// SLA filters for the aging hub.
const (
	SLAAll     = "all"
	SLAUnder30 = "lt30"
	SLA30To59  = "30_59"
	SLA60Plus  = "60_plus"
)

// FollowUpQuery narrows the aging hub.
type FollowUpQuery struct {
	Action      string
	SLA         string
	NewestFirst bool
}

// FollowUp is one aging hub row.
type FollowUp struct {
	Record credit.Record
	Aging  credit.Aging
	Badge  string
}

// FollowUps returns pending records dated within the follow-up window,
// oldest first unless q.NewestFirst is set. Records must already carry
// their reminder attachment for the action filter to see it.
func FollowUps(records []credit.Record, now time.Time, q FollowUpQuery) []FollowUp {
	type dated struct {
		f FollowUp
		t time.Time
	}
	var rows []dated
	for _, r := range Within(records, now, FollowUpWindowDays) {
		if !r.IsPending() {
			continue
		}
		if !matchesAction(r.Reminder, q.Action) {
			continue
		}
		aging := credit.ComputeAging(r, now)
		if !matchesSLA(aging.DaysPending, q.SLA) {
			continue
		}
		d, _ := credit.ParseDate(r.Date, now.Location())
		rows = append(rows, dated{
			f: FollowUp{Record: r, Aging: aging, Badge: credit.SLABucket(aging.DaysPending)},
			t: d,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if q.NewestFirst {
			return rows[j].t.Before(rows[i].t)
		}
		return rows[i].t.Before(rows[j].t)
	})
	out := make([]FollowUp, len(rows))
	for i, row := range rows {
		out[i] = row.f
	}
	return out
}

func matchesAction(rem *credit.Reminder, action string) bool {
	if action == "" || action == ActionAll {
		return true
	}
	if rem == nil {
		return false
	}
	status := strings.ToLower(rem.Status)
	switch action {
	case ActionPending:
		return status == credit.ReminderPending
	case ActionCompleted:
		return status == credit.ReminderCompleted || status == "done"
	case ActionSnoozed:
		return status == credit.ReminderSnoozed
	case ActionRush:
		return rem.Priority == credit.PriorityRush || rem.Priority == "ultra_rush"
	}
	return true
}

func matchesSLA(days *int, filter string) bool {
	if filter == "" || filter == SLAAll {
		return true
	}
	if days == nil {
		return false
	}
	switch filter {
	case SLAUnder30:
		return *days < 30
	case SLA30To59:
		return *days >= 30 && *days < 60
	case SLA60Plus:
		return *days >= 60
	}
	return true
}

// RepStat summarizes one sales rep across follow-ups.
type RepStat struct {
	Rep      string
	Total    float64
	Items    int
	Accounts int
}

// StatsByRep ranks reps by total over the given follow-ups.
func StatsByRep(rows []FollowUp, n int) []RepStat {
	type acc struct {
		total     float64
		items     map[string]struct{}
		customers map[string]struct{}
	}
	byRep := map[string]*acc{}
	for _, f := range rows {
		rep := strings.TrimSpace(f.Record.SalesRep)
		if rep == "" {
			rep = "Unknown"
		}
		a, ok := byRep[rep]
		if !ok {
			a = &acc{items: map[string]struct{}{}, customers: map[string]struct{}{}}
			byRep[rep] = a
		}
		a.total += f.Record.Amount()
		if f.Record.ItemNumber != "" {
			a.items[f.Record.ItemNumber] = struct{}{}
		}
		if f.Record.CustomerNumber != "" {
			a.customers[f.Record.CustomerNumber] = struct{}{}
		}
	}
	out := make([]RepStat, 0, len(byRep))
	for rep, a := range byRep {
		out = append(out, RepStat{Rep: rep, Total: a.total, Items: len(a.items), Accounts: len(a.customers)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Rep < out[j].Rep
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
