package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// ReminderRepo handles reminders. Rows are whole reminder objects keyed by
// their store key.
type ReminderRepo struct {
	db           *sql.DB
	pollInterval time.Duration
}

func NewReminderRepo(db *sql.DB) *ReminderRepo {
	return &ReminderRepo{db: db, pollInterval: DefaultPollInterval}
}

// PollEvery sets the Watch interval.
func (r *ReminderRepo) PollEvery(d time.Duration) *ReminderRepo {
	r.pollInterval = d
	return r
}

// NewKey reserves a key for a reminder before it is written.
func (r *ReminderRepo) NewKey() string { return uuid.NewString() }

const reminderColumns = `key, ticket_number, customer_number, invoice_number, item_number, combo_key, due_date,
 due_time, note, priority, status, remind_day_before, remind_time, snoozed_until, completed_at,
 created_at, created_by, updated_at, updated_by`

// List returns every reminder ordered by key.
func (r *ReminderRepo) List(ctx context.Context) ([]credit.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+reminderColumns+` FROM reminders ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []credit.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

func (r *ReminderRepo) Get(ctx context.Context, key string) (credit.Reminder, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE key = ?`, key)
	rem, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return credit.Reminder{}, ErrNotFound
	}
	return rem, err
}

// Put writes the whole reminder, replacing any row with the same key.
func (r *ReminderRepo) Put(ctx context.Context, rem credit.Reminder) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO reminders(`+reminderColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
	 ticket_number=excluded.ticket_number,
	 customer_number=excluded.customer_number,
	 invoice_number=excluded.invoice_number,
	 item_number=excluded.item_number,
	 combo_key=excluded.combo_key,
	 due_date=excluded.due_date,
	 due_time=excluded.due_time,
	 note=excluded.note,
	 priority=excluded.priority,
	 status=excluded.status,
	 remind_day_before=excluded.remind_day_before,
	 remind_time=excluded.remind_time,
	 snoozed_until=excluded.snoozed_until,
	 completed_at=excluded.completed_at,
	 created_at=excluded.created_at,
	 created_by=excluded.created_by,
	 updated_at=excluded.updated_at,
	 updated_by=excluded.updated_by;
	`, rem.StoreKey(), rem.TicketNumber, rem.CustomerNumber, rem.InvoiceNumber, rem.ItemNumber, rem.ComboKey,
		rem.DueDate, rem.DueTime, rem.Note, rem.Priority, rem.Status, rem.RemindDayBefore, rem.RemindTime,
		nullString(rem.SnoozedUntil), nullString(rem.CompletedAt),
		rem.CreatedAt, rem.CreatedBy, rem.UpdatedAt, rem.UpdatedBy)
	return err
}

func (r *ReminderRepo) Delete(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE key = ?`, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Watch delivers the full collection now and on every change until ctx is done.
func (r *ReminderRepo) Watch(ctx context.Context, fn func([]credit.Reminder)) error {
	return poll(ctx, r.pollInterval, r.List, fn)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanReminder(row scanner) (credit.Reminder, error) {
	var (
		rem                credit.Reminder
		snoozed, completed sql.NullString
	)
	err := row.Scan(&rem.Key, &rem.TicketNumber, &rem.CustomerNumber, &rem.InvoiceNumber, &rem.ItemNumber,
		&rem.ComboKey, &rem.DueDate, &rem.DueTime, &rem.Note, &rem.Priority, &rem.Status, &rem.RemindDayBefore,
		&rem.RemindTime, &snoozed, &completed, &rem.CreatedAt, &rem.CreatedBy, &rem.UpdatedAt, &rem.UpdatedBy)
	if err != nil {
		return rem, err
	}
	rem.SnoozedUntil = snoozed.String
	rem.CompletedAt = completed.String
	rem.ID, rem.AlertID = rem.Key, rem.Key
	return rem, nil
}
