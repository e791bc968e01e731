// Package filtering narrows and orders credit records for display.
package filtering

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// StatusAll disables the workflow-state filter.
const StatusAll = "All"

// Criteria is the active filter set. Every active condition must hold.
type Criteria struct {
	Search string
	Status string
	Bulk   string
}

// IsFiltered reports whether any condition is active.
func (c Criteria) IsFiltered() bool {
	return strings.TrimSpace(c.Search) != "" || !isAll(c.Status) || strings.TrimSpace(c.Bulk) != ""
}

func isAll(status string) bool {
	return status == "" || status == StatusAll
}

var (
	bulkSeparators = regexp.MustCompile(`[\s,;]+`)
	nonAlnum       = regexp.MustCompile(`[^a-z0-9]`)
)

// NormalizeKey lower-cases s, strips non-alphanumerics and drops leading
// "inv" prefixes while something follows them, so "INV-12345" and "12345"
// agree. Repeated prefixes are dropped too, which keeps it idempotent.
func NormalizeKey(s string) string {
	k := nonAlnum.ReplaceAllString(strings.ToLower(s), "")
	for len(k) > 3 && strings.HasPrefix(k, "inv") {
		k = k[3:]
	}
	return k
}

// BulkSet splits a pasted identifier list on whitespace, commas and
// semicolons and returns the normalized tokens.
func BulkSet(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, tok := range bulkSeparators.Split(text, -1) {
		if k := NormalizeKey(tok); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// Haystack is the lower-cased text searched by free-text queries.
func Haystack(r credit.Record) string {
	return strings.ToLower(strings.Join([]string{
		r.InvoiceNumber,
		r.ItemNumber,
		r.CustomerNumber,
		r.TicketNumber,
		r.RTNCRNo,
		r.Reason,
		r.CreditType,
		r.SalesRep,
	}, " "))
}

// Filter returns the records matching c in their original order.
func Filter(records []credit.Record, c Criteria) []credit.Record {
	query := strings.ToLower(strings.TrimSpace(c.Search))
	bulk := BulkSet(c.Bulk)
	out := make([]credit.Record, 0, len(records))
	for _, r := range records {
		if !isAll(c.Status) && string(r.State()) != c.Status {
			continue
		}
		if query != "" && !strings.Contains(Haystack(r), query) {
			continue
		}
		if len(bulk) > 0 && !matchesBulk(r, bulk) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesBulk(r credit.Record, bulk map[string]struct{}) bool {
	for _, v := range []string{r.InvoiceNumber, r.ItemNumber, r.TicketNumber} {
		if k := NormalizeKey(v); k != "" {
			if _, ok := bulk[k]; ok {
				return true
			}
		}
	}
	return false
}

// Column is a sortable column.
type Column string

const (
	ByDate        Column = credit.FieldDate
	ByCustomer    Column = credit.FieldCustomerNumber
	ByInvoice     Column = credit.FieldInvoiceNumber
	ByCreditTotal Column = credit.FieldCreditTotal
)

// Columns lists the sortable columns.
var Columns = []Column{ByDate, ByCustomer, ByInvoice, ByCreditTotal}

// Sort is a column plus direction.
type Sort struct {
	Column    Column
	Ascending bool
}

// DefaultSort shows newest dates first.
var DefaultSort = Sort{Column: ByDate, Ascending: false}

// Toggle flips the direction when col is already active and otherwise
// switches to col ascending.
func (s Sort) Toggle(col Column) Sort {
	if s.Column == col {
		return Sort{Column: col, Ascending: !s.Ascending}
	}
	return Sort{Column: col, Ascending: true}
}

// SortRecords returns a stably sorted copy. The credit total compares as a
// tolerant number; every other column compares raw strings.
func SortRecords(records []credit.Record, s Sort) []credit.Record {
	out := make([]credit.Record, len(records))
	copy(out, records)
	less := lessFunc(s.Column)
	sort.SliceStable(out, func(i, j int) bool {
		if s.Ascending {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out
}

func lessFunc(col Column) func(a, b credit.Record) bool {
	if col == ByCreditTotal {
		return func(a, b credit.Record) bool { return a.Amount() < b.Amount() }
	}
	name := string(col)
	if !credit.KnownField(name) {
		name = credit.FieldDate
	}
	return func(a, b credit.Record) bool { return a.Field(name) < b.Field(name) }
}

// View filters then sorts.
func View(records []credit.Record, c Criteria, s Sort) []credit.Record {
	return SortRecords(Filter(records, c), s)
}

// Page returns the 0-based page of rows and the page count. Out of range
// pages are clamped.
func Page(rows []credit.Record, page, size int) ([]credit.Record, int) {
	if size <= 0 {
		return rows, 1
	}
	pages := (len(rows) + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}
	start := page * size
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], pages
}
