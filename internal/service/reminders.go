package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/rbac"
)

// ReminderDraft is the user-editable part of a reminder.
type ReminderDraft struct {
	DueDate         string
	DueTime         string
	Note            string
	Priority        string
	RemindDayBefore bool
	RemindTime      string
}

// SaveReminder creates or replaces the reminder of rec. A new reminder gets
// its key reserved before the write so the record shows it immediately.
func (w *Workspace) SaveReminder(ctx context.Context, rec credit.Record, d ReminderDraft) (credit.Reminder, error) {
	if err := w.require(rbac.ActionWriteReminder); err != nil {
		return credit.Reminder{}, err
	}
	if strings.TrimSpace(d.DueDate) == "" {
		return credit.Reminder{}, fmt.Errorf("save reminder: due date is required")
	}
	now := w.stamp()

	var rem credit.Reminder
	if rec.Reminder != nil {
		rem = *rec.Reminder
	} else {
		rem = credit.Reminder{
			Key:       w.deps.Reminders.NewKey(),
			Status:    credit.ReminderPending,
			CreatedAt: now,
			CreatedBy: w.settings.Email,
		}
	}
	rem.TicketNumber = rec.TicketNumber
	rem.CustomerNumber = rec.CustomerNumber
	rem.InvoiceNumber = rec.InvoiceNumber
	rem.ItemNumber = rec.ItemNumber
	rem.ComboKey = rec.Combo()
	rem.DueDate = strings.TrimSpace(d.DueDate)
	rem.DueTime = strings.TrimSpace(d.DueTime)
	rem.Note = strings.TrimSpace(d.Note)
	rem.Priority = d.Priority
	rem.RemindDayBefore = d.RemindDayBefore
	rem.RemindTime = d.RemindTime
	if rem.RemindTime == "" {
		rem.RemindTime = w.defaultRemindTime()
	}
	rem.UpdatedAt = now
	rem.UpdatedBy = w.settings.Email
	rem = rem.Normalized()
	if rem.StoreKey() == "" {
		return credit.Reminder{}, ErrMissingReminderKey
	}

	w.cacheReminder(rem, rec)
	if err := w.deps.Reminders.Put(ctx, rem); err != nil {
		return rem, w.failWrite(ctx, "save reminder", err, "key", rem.Key, "ticket", rem.TicketNumber)
	}
	w.logger.Info("reminder saved", "key", rem.Key, "ticket", rem.TicketNumber, "due", rem.DueDate)
	return rem, nil
}

// CompleteReminder marks the reminder completed now.
func (w *Workspace) CompleteReminder(ctx context.Context, key string) (credit.Reminder, error) {
	return w.mutateReminder(ctx, "complete reminder", key, func(r *credit.Reminder) {
		r.Status = credit.ReminderCompleted
		r.CompletedAt = w.Now().Format(credit.TimestampLayout)
	})
}

// SnoozeReminder moves the effective due date to until. An empty until
// clears the snooze.
func (w *Workspace) SnoozeReminder(ctx context.Context, key, until string) (credit.Reminder, error) {
	until = strings.TrimSpace(until)
	if until == "" {
		return w.UnsnoozeReminder(ctx, key)
	}
	return w.mutateReminder(ctx, "snooze reminder", key, func(r *credit.Reminder) {
		r.SnoozedUntil = until
		r.Status = credit.ReminderSnoozed
	})
}

// UnsnoozeReminder clears snoozed_until and returns the reminder to pending.
func (w *Workspace) UnsnoozeReminder(ctx context.Context, key string) (credit.Reminder, error) {
	return w.mutateReminder(ctx, "unsnooze reminder", key, func(r *credit.Reminder) {
		r.SnoozedUntil = ""
		r.Status = credit.ReminderPending
	})
}

// DeleteReminder removes a reminder from the store. The record detaches
// when the next snapshot no longer carries the key.
func (w *Workspace) DeleteReminder(ctx context.Context, key string) error {
	if err := w.require(rbac.ActionWriteReminder); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return ErrMissingReminderKey
	}
	if err := w.deps.Reminders.Delete(ctx, key); err != nil {
		return w.failWrite(ctx, "delete reminder", err, "key", key)
	}
	return nil
}

// Reminder returns the cached reminder for key.
func (w *Workspace) Reminder(key string) (credit.Reminder, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rems.Get(key)
}

func (w *Workspace) mutateReminder(ctx context.Context, op, key string, fn func(*credit.Reminder)) (credit.Reminder, error) {
	if err := w.require(rbac.ActionWriteReminder); err != nil {
		return credit.Reminder{}, err
	}
	if strings.TrimSpace(key) == "" {
		return credit.Reminder{}, ErrMissingReminderKey
	}
	rem, ok := w.Reminder(key)
	if !ok {
		return credit.Reminder{}, fmt.Errorf("%s %s: %w", op, key, ErrNoReminder)
	}
	fn(&rem)
	rem.UpdatedAt = w.stamp()
	rem.UpdatedBy = w.settings.Email
	rem = rem.Normalized()

	w.cacheReminder(rem, credit.Record{})
	if err := w.deps.Reminders.Put(ctx, rem); err != nil {
		return rem, w.failWrite(ctx, op, err, "key", key)
	}
	w.logger.Info(op, "key", key, "status", rem.Status)
	return rem, nil
}

// cacheReminder writes rem into the local store and re-attaches records.
// owner, when it has an identity, is pinned to the key so it shows the
// reminder even without a usable ticket.
func (w *Workspace) cacheReminder(rem credit.Reminder, owner credit.Record) {
	w.mu.Lock()
	w.rems.Cache(rem)
	recs := w.records
	if _, err := owner.Identity(); err == nil {
		recs = make([]credit.Record, len(w.records))
		for i, r := range w.records {
			if credit.SameRecord(r, owner) {
				r.ActionKey = rem.Key
			}
			recs[i] = r
		}
	}
	w.records = w.rems.Attach(recs)
	w.mu.Unlock()
	w.changed()
}

func (w *Workspace) stamp() string {
	return w.deps.Clock.Now().UTC().Format(time.RFC3339)
}

func (w *Workspace) defaultRemindTime() string {
	if t := strings.TrimSpace(w.settings.RemindTime); t != "" {
		return t
	}
	return credit.DefaultRemindTime
}
