package service

import (
	"context"
	"time"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/appstate"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/notify"
)

// CheckReminders runs one day-before evaluation at now and queues what is
// due. On a new calendar day the fired and dismissed sets are restored from
// the day store first. It returns the newly queued notifications. Checks
// run one at a time.
func (w *Workspace) CheckReminders(ctx context.Context, now time.Time) ([]appstate.Notification, error) {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()

	loc := w.settings.Location
	day := notify.Day(now, loc)
	if w.State().Notifications.Day != day {
		w.restoreDay(ctx, day)
	}

	recs := w.Records()
	due := notify.Evaluate(recs, now, loc, w.State().Notifications)
	if len(due) == 0 {
		return nil, nil
	}
	w.Dispatch(ctx, notify.EnqueueAction(due, now))
	w.logger.Info("reminders due", "count", len(due), "day", day)
	return due, nil
}

// Alerts groups the queued notifications by ticket for display.
func (w *Workspace) Alerts() []notify.Group {
	return notify.GroupByTicket(w.State().Notifications.Queue)
}

// DismissAlerts dismisses a group of queued notifications for today.
func (w *Workspace) DismissAlerts(ctx context.Context, keys []string) {
	w.Dispatch(ctx, appstate.DismissGroup{Keys: keys})
}

// HideAlerts silences alerts for d.
func (w *Workspace) HideAlerts(ctx context.Context, d time.Duration) {
	w.Dispatch(ctx, notify.HideFor(w.Now(), d))
}

// HideAlertsToday silences alerts until the end of the local day.
func (w *Workspace) HideAlertsToday(ctx context.Context) {
	w.Dispatch(ctx, notify.HideToday(w.Now(), w.settings.Location))
}
