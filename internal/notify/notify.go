// Package notify evaluates day-before reminder alerts and runs the periodic
// check that feeds them into the session's notification queue.
package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/appstate"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// Clock supplies the current time and tick channels.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Message is the alert text for a reminder due tomorrow.
func Message(ticket string) string {
	if t := strings.TrimSpace(ticket); t != "" {
		return fmt.Sprintf("Follow-up for ticket %s is due tomorrow.", t)
	}
	return "Follow-up for ticket n/a is due tomorrow."
}

// Evaluate returns the alerts due at now. Nothing is returned while alerts
// are suppressed. Only records whose reminder asks for a day-before alert
// and is not completed are considered; keys fired or dismissed today, or
// already queued, are skipped. Evaluate is pure: calling it again with the
// same inputs gives the same result.
func Evaluate(records []credit.Record, now time.Time, loc *time.Location, n appstate.Notifications) []appstate.Notification {
	if n.Suppressed(now) {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	seen := map[string]struct{}{}
	var out []appstate.Notification
	for _, rec := range records {
		rem := rec.Reminder
		if rem == nil || !rem.RemindDayBefore || rem.IsCompleted() {
			continue
		}
		key := rec.ActionKey
		if key == "" {
			key = rem.StoreKey()
		}
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup || n.Blocked(key) || n.Queued(key) {
			continue
		}
		at, ok := rem.AlertAt(loc)
		if !ok || now.Before(at) {
			continue
		}
		seen[key] = struct{}{}
		ticket := rec.TicketNumber
		if strings.TrimSpace(ticket) == "" {
			ticket = rem.TicketNumber
		}
		out = append(out, appstate.Notification{
			Key:     key,
			Ticket:  ticket,
			Invoice: rec.InvoiceNumber,
			Message: Message(ticket),
			AlertAt: at,
		})
	}
	return out
}

// EnqueueAction wraps evaluated alerts in the reducer action that queues
// them and marks their keys fired.
func EnqueueAction(items []appstate.Notification, now time.Time) appstate.Enqueue {
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, it.Key)
	}
	return appstate.Enqueue{Notifications: items, Fired: keys, At: now}
}

// Group is the queued alerts of one ticket.
type Group struct {
	Ticket string
	Items  []appstate.Notification
}

// Keys returns the reminder keys of the group, for DismissGroup.
func (g Group) Keys() []string {
	out := make([]string, 0, len(g.Items))
	for _, it := range g.Items {
		out = append(out, it.Key)
	}
	return out
}

// GroupByTicket groups the queue by ticket, in first-seen order.
func GroupByTicket(queue []appstate.Notification) []Group {
	idx := map[string]int{}
	var groups []Group
	for _, it := range queue {
		t := strings.TrimSpace(it.Ticket)
		if t == "" {
			t = "n/a"
		}
		i, ok := idx[t]
		if !ok {
			i = len(groups)
			idx[t] = i
			groups = append(groups, Group{Ticket: t})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups
}

// HideFor suppresses alerts for d from now.
func HideFor(now time.Time, d time.Duration) appstate.SuppressUntil {
	return appstate.SuppressUntil{Until: now.Add(d)}
}

// HideToday suppresses alerts until the last instant of now's day in loc.
func HideToday(now time.Time, loc *time.Location) appstate.SuppressUntil {
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)
	end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
	return appstate.SuppressUntil{Until: end}
}

// Day formats now as the YYYY-MM-DD key of the fired and dismissed sets.
func Day(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format("2006-01-02")
}

func sortedCopy(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	return out
}
