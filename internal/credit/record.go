// Package credit holds the credit-request record model and the pure rules
// that classify, age and identify records.
package credit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Store field names. They double as CSV headers.
const (
	FieldID             = "id"
	FieldComboKey       = "combo_key"
	FieldDate           = "Date"
	FieldCustomerNumber = "Customer Number"
	FieldInvoiceNumber  = "Invoice Number"
	FieldItemNumber     = "Item Number"
	FieldQTY            = "QTY"
	FieldCreditType     = "Credit Type"
	FieldTicketNumber   = "Ticket Number"
	FieldRTN            = "RTN_CR_No"
	FieldSalesRep       = "Sales Rep"
	FieldCreditTotal    = "Credit Request Total"
	FieldReason         = "Reason for Credit"
	FieldStatus         = "Status"
)

// BusinessFields is the allowlist compared during CSV round-trip diffs and
// accepted by staged edits.
var BusinessFields = []string{
	FieldCustomerNumber,
	FieldInvoiceNumber,
	FieldItemNumber,
	FieldQTY,
	FieldCreditType,
	FieldTicketNumber,
	FieldRTN,
	FieldSalesRep,
	FieldCreditTotal,
}

// ErrNoIdentity is returned when a record has neither an id nor the
// invoice/item pair needed for a combo key.
var ErrNoIdentity = errors.New("credit: record has no id or combo key")

// ErrNotFound is returned by stores when a document does not exist.
var ErrNotFound = errors.New("credit: not found")

// Record is one credit request row. Reminder and ActionKey are attached by
// the reminder reconciliation store and never persisted.
type Record struct {
	ID                 string
	ComboKey           string
	Date               string
	CustomerNumber     string
	InvoiceNumber      string
	ItemNumber         string
	QTY                string
	CreditType         string
	TicketNumber       string
	RTNCRNo            string
	SalesRep           string
	CreditRequestTotal string
	Reason             string
	Status             string

	Reminder  *Reminder
	ActionKey string
}

// Field returns the value stored under a store field name.
func (r Record) Field(name string) string {
	if p := r.fieldPtr(name); p != nil {
		return *p
	}
	return ""
}

// Set assigns a field by store name. It reports false for unknown names.
func (r *Record) Set(name, value string) bool {
	p := r.fieldPtr(name)
	if p == nil {
		return false
	}
	*p = value
	return true
}

func (r *Record) fieldPtr(name string) *string {
	switch name {
	case FieldID:
		return &r.ID
	case FieldComboKey:
		return &r.ComboKey
	case FieldDate:
		return &r.Date
	case FieldCustomerNumber:
		return &r.CustomerNumber
	case FieldInvoiceNumber:
		return &r.InvoiceNumber
	case FieldItemNumber:
		return &r.ItemNumber
	case FieldQTY:
		return &r.QTY
	case FieldCreditType:
		return &r.CreditType
	case FieldTicketNumber:
		return &r.TicketNumber
	case FieldRTN:
		return &r.RTNCRNo
	case FieldSalesRep:
		return &r.SalesRep
	case FieldCreditTotal:
		return &r.CreditRequestTotal
	case FieldReason:
		return &r.Reason
	case FieldStatus:
		return &r.Status
	}
	return nil
}

// KnownField reports whether name is a record field.
func KnownField(name string) bool {
	var r Record
	return r.fieldPtr(name) != nil
}

// Combo returns invoice|item when both are present, otherwise the stored
// combo_key. Empty means the record has no combo identity.
func (r Record) Combo() string {
	return ComboKeyOf(r.InvoiceNumber, r.ItemNumber, r.ComboKey)
}

// ComboKeyOf derives a combo key from invoice and item, falling back to an
// explicit combo key.
func ComboKeyOf(invoice, item, fallback string) string {
	inv := strings.TrimSpace(invoice)
	itm := strings.TrimSpace(item)
	if inv != "" && itm != "" {
		return inv + "|" + itm
	}
	return strings.TrimSpace(fallback)
}

// Identity returns the record's stable identity: its id, else its combo key.
func (r Record) Identity() (string, error) {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id, nil
	}
	if combo := r.Combo(); combo != "" {
		return combo, nil
	}
	return "", ErrNoIdentity
}

// SameRecord matches by id when both carry one, else by combo key.
func SameRecord(a, b Record) bool {
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	ca, cb := a.Combo(), b.Combo()
	if ca != "" && cb != "" {
		return ca == cb
	}
	return false
}

// RowKey is the display-row key used for staged edits and selection. It is
// the record id when present, else a positional composite that is only
// stable for one ordering of the view.
func RowKey(r Record, idx int) string {
	if r.ID != "" {
		return r.ID
	}
	inv := orDefault(r.InvoiceNumber, "inv")
	item := orDefault(r.ItemNumber, "item")
	ticket := orDefault(r.TicketNumber, "ticket")
	date := orDefault(r.Date, "date")
	return fmt.Sprintf("%s|%s|%s|%s|%d", inv, item, ticket, date, idx)
}

func orDefault(v, fallback string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return fallback
}

// StrictTicketKey trims a ticket number and rejects empty and "nan" values.
func StrictTicketKey(ticket string) (string, bool) {
	t := strings.TrimSpace(ticket)
	if t == "" || strings.EqualFold(t, "nan") {
		return "", false
	}
	return t, true
}

// WithoutReminder returns a copy with the reminder attachment cleared.
func (r Record) WithoutReminder() Record {
	r.Reminder = nil
	r.ActionKey = ""
	return r
}

// Amount is the tolerant numeric value of the credit request total.
func (r Record) Amount() float64 {
	return ToNumber(r.CreditRequestTotal)
}

// FromMap builds a record from a loosely typed document. Numbers are
// rendered as strings so amounts stored either way parse identically.
func FromMap(id string, m map[string]any) Record {
	r := Record{ID: id}
	for name, v := range m {
		if name == FieldID && id != "" {
			continue
		}
		r.Set(name, Stringify(v))
	}
	return r
}

// ToMap renders the persisted fields of a record. The id is left out; it is
// the document key.
func (r Record) ToMap() map[string]any {
	m := map[string]any{
		FieldDate:           r.Date,
		FieldCustomerNumber: r.CustomerNumber,
		FieldInvoiceNumber:  r.InvoiceNumber,
		FieldItemNumber:     r.ItemNumber,
		FieldQTY:            r.QTY,
		FieldCreditType:     r.CreditType,
		FieldTicketNumber:   r.TicketNumber,
		FieldRTN:            r.RTNCRNo,
		FieldSalesRep:       r.SalesRep,
		FieldCreditTotal:    r.CreditRequestTotal,
		FieldReason:         r.Reason,
		FieldStatus:         r.Status,
	}
	if combo := r.Combo(); combo != "" {
		m[FieldComboKey] = combo
	}
	return m
}

// Stringify renders a document value as text. nil becomes "".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
