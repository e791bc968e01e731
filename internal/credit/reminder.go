package credit

import (
	"strings"
	"time"
)

// Reminder priorities.
const (
	PriorityNormal = "normal"
	PriorityRush   = "rush"
)

// Reminder statuses.
const (
	ReminderPending   = "pending"
	ReminderSnoozed   = "snoozed"
	ReminderCompleted = "completed"
)

// DefaultRemindTime is used when a reminder carries no remind_time.
const DefaultRemindTime = "08:00"

// Reminder is a follow-up attached to credit records by ticket number. Key
// is the store key; ID and AlertID mirror it. Empty SnoozedUntil and
// CompletedAt mean null.
type Reminder struct {
	Key             string
	ID              string
	AlertID         string
	TicketNumber    string
	CustomerNumber  string
	InvoiceNumber   string
	ItemNumber      string
	ComboKey        string
	DueDate         string
	DueTime         string
	Note            string
	Priority        string
	Status          string
	RemindDayBefore bool
	RemindTime      string
	SnoozedUntil    string
	CompletedAt     string
	CreatedAt       string
	CreatedBy       string
	UpdatedAt       string
	UpdatedBy       string
}

// StoreKey resolves the reminder's identity: key, else id, else alert id.
func (r Reminder) StoreKey() string {
	for _, k := range []string{r.Key, r.ID, r.AlertID} {
		if s := strings.TrimSpace(k); s != "" {
			return s
		}
	}
	return ""
}

// TicketKey is the strict ticket join key.
func (r Reminder) TicketKey() (string, bool) {
	return StrictTicketKey(r.TicketNumber)
}

// Normalized fills defaults and mirrors the key into id and alert_id.
func (r Reminder) Normalized() Reminder {
	if r.Priority != PriorityRush {
		r.Priority = PriorityNormal
	}
	switch r.Status {
	case ReminderPending, ReminderSnoozed, ReminderCompleted:
	default:
		r.Status = ReminderPending
	}
	if strings.TrimSpace(r.RemindTime) == "" {
		r.RemindTime = DefaultRemindTime
	}
	if key := r.StoreKey(); key != "" {
		r.Key, r.ID, r.AlertID = key, key, key
	}
	return r
}

// IsCompleted reports whether completed_at is set.
func (r Reminder) IsCompleted() bool {
	return strings.TrimSpace(r.CompletedAt) != ""
}

// EffectiveDue is snoozed_until when set, else due_date, parsed in loc.
func (r Reminder) EffectiveDue(loc *time.Location) (time.Time, bool) {
	if s := strings.TrimSpace(r.SnoozedUntil); s != "" {
		return ParseDate(s, loc)
	}
	return ParseDate(r.DueDate, loc)
}

// AlertAt is the day-before alert instant: the calendar day before the
// effective due date at remind_time in loc. Malformed remind_time falls
// back to the default.
func (r Reminder) AlertAt(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	due, ok := r.EffectiveDue(loc)
	if !ok {
		return time.Time{}, false
	}
	day := CalendarDate(due, loc).AddDate(0, 0, -1)
	hh, mm, ok := parseClock(r.RemindTime)
	if !ok {
		hh, mm, _ = parseClock(DefaultRemindTime)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, loc), true
}

func parseClock(s string) (int, int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}

// Reminder document field names.
const (
	RemFieldID              = "id"
	RemFieldAlertID         = "alert_id"
	RemFieldTicketNumber    = "ticket_number"
	RemFieldCustomerNumber  = "customer_number"
	RemFieldInvoiceNumber   = "invoice_number"
	RemFieldItemNumber      = "item_number"
	RemFieldComboKey        = "combo_key"
	RemFieldDueDate         = "due_date"
	RemFieldDueTime         = "due_time"
	RemFieldNote            = "note"
	RemFieldPriority        = "priority"
	RemFieldStatus          = "status"
	RemFieldRemindDayBefore = "remind_day_before"
	RemFieldRemindTime      = "remind_time"
	RemFieldSnoozedUntil    = "snoozed_until"
	RemFieldCompletedAt     = "completed_at"
	RemFieldCreatedAt       = "created_at"
	RemFieldCreatedBy       = "created_by"
	RemFieldUpdatedAt       = "updated_at"
	RemFieldUpdatedBy       = "updated_by"
)

// ReminderFromMap decodes a loosely typed reminder document. The ticket is
// read from ticket_number, then "ticket", then "Ticket Number".
func ReminderFromMap(key string, m map[string]any) Reminder {
	str := func(name string) string { return Stringify(m[name]) }
	r := Reminder{
		Key:             key,
		ID:              str(RemFieldID),
		AlertID:         str(RemFieldAlertID),
		TicketNumber:    str(RemFieldTicketNumber),
		CustomerNumber:  str(RemFieldCustomerNumber),
		InvoiceNumber:   str(RemFieldInvoiceNumber),
		ItemNumber:      str(RemFieldItemNumber),
		ComboKey:        str(RemFieldComboKey),
		DueDate:         str(RemFieldDueDate),
		DueTime:         str(RemFieldDueTime),
		Note:            str(RemFieldNote),
		Priority:        str(RemFieldPriority),
		Status:          str(RemFieldStatus),
		RemindDayBefore: truthy(m[RemFieldRemindDayBefore]),
		RemindTime:      str(RemFieldRemindTime),
		SnoozedUntil:    str(RemFieldSnoozedUntil),
		CompletedAt:     str(RemFieldCompletedAt),
		CreatedAt:       str(RemFieldCreatedAt),
		CreatedBy:       str(RemFieldCreatedBy),
		UpdatedAt:       str(RemFieldUpdatedAt),
		UpdatedBy:       str(RemFieldUpdatedBy),
	}
	if r.TicketNumber == "" {
		r.TicketNumber = str("ticket")
	}
	if r.TicketNumber == "" {
		r.TicketNumber = str(FieldTicketNumber)
	}
	return r
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "1" || s == "yes"
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	}
	return false
}

// ToMap renders the whole reminder object. Empty optional timestamps are
// written as nil.
func (r Reminder) ToMap() map[string]any {
	nullable := func(s string) any {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		return s
	}
	return map[string]any{
		RemFieldID:              r.ID,
		RemFieldAlertID:         r.AlertID,
		RemFieldTicketNumber:    r.TicketNumber,
		RemFieldCustomerNumber:  r.CustomerNumber,
		RemFieldInvoiceNumber:   r.InvoiceNumber,
		RemFieldItemNumber:      r.ItemNumber,
		RemFieldComboKey:        r.ComboKey,
		RemFieldDueDate:         r.DueDate,
		RemFieldDueTime:         r.DueTime,
		RemFieldNote:            r.Note,
		RemFieldPriority:        r.Priority,
		RemFieldStatus:          r.Status,
		RemFieldRemindDayBefore: r.RemindDayBefore,
		RemFieldRemindTime:      r.RemindTime,
		RemFieldSnoozedUntil:    nullable(r.SnoozedUntil),
		RemFieldCompletedAt:     nullable(r.CompletedAt),
		RemFieldCreatedAt:       r.CreatedAt,
		RemFieldCreatedBy:       r.CreatedBy,
		RemFieldUpdatedAt:       r.UpdatedAt,
		RemFieldUpdatedBy:       r.UpdatedBy,
	}
}
