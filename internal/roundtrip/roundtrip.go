// Package roundtrip parses edited CSV exports and previews the updates they
// would make to existing credit records. A round trip only ever updates:
// rows that match no stored record are reported as issues.
package roundtrip

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// ErrEmpty is returned when a CSV has no data rows.
var ErrEmpty = errors.New("roundtrip: CSV is empty or could not be parsed")

// LineError is a CSV line that could not be read.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *LineError) Unwrap() error { return e.Err }

// Row is one data row keyed by header. Line is the 1-based line number in
// the file; the header is line 1.
type Row struct {
	Line   int
	Values map[string]string
}

// ID returns the row's id from any of the accepted id headers.
func (r Row) ID() string {
	for _, h := range []string{"id", "Id", "ID"} {
		if v := strings.TrimSpace(r.Values[h]); v != "" {
			return v
		}
	}
	return ""
}

// Combo returns the explicit combo_key, else invoice|item.
func (r Row) Combo() string {
	if v := strings.TrimSpace(r.Values[credit.FieldComboKey]); v != "" {
		return v
	}
	return credit.ComboKeyOf(r.Values[credit.FieldInvoiceNumber], r.Values[credit.FieldItemNumber], "")
}

// Parse reads a header row plus data rows. Malformed lines are collected as
// errors and skipped; the caller decides whether they are fatal.
func Parse(r io.Reader) ([]Row, []error, error) {
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1

	header, err := csvr.Read()
	if err == io.EOF {
		return nil, nil, ErrEmpty
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	var rows []Row
	var lineErrs []error
	line := 1
	for {
		line++
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			lineErrs = append(lineErrs, &LineError{Line: line, Err: err})
			continue
		}
		if blank(rec) {
			continue
		}
		values := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" || i >= len(rec) {
				continue
			}
			values[h] = rec[i]
		}
		rows = append(rows, Row{Line: line, Values: values})
	}
	if len(rows) == 0 {
		return nil, lineErrs, ErrEmpty
	}
	return rows, lineErrs, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Issue is a validation problem that blocks a push.
type Issue struct {
	Line    int
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("Row %d: %s", i.Line, i.Message)
}

// Change is one field's before and after values.
type Change struct {
	From string
	To   string
}

// Diff lists the changed fields of one matched record.
type Diff struct {
	ID      string
	Combo   string
	Changed map[string]Change
}

// Summary counts matched rows (updates) and unmatched rows (inserts).
type Summary struct {
	Updates int
	Inserts int
	Total   int
}

// Match pairs a CSV row with the stored record it updates.
type Match struct {
	Row    Row
	Record credit.Record
}

// Preview is the full validation and diff result of a CSV file.
type Preview struct {
	FileName string
	Rows     []Row
	Issues   []Issue
	Diffs    []Diff
	Matches  []Match
	Summary  Summary
}

// Blocked reports whether issues prevent a push.
func (p Preview) Blocked() bool {
	return len(p.Issues) > 0
}

type index struct {
	byID    map[string]credit.Record
	byCombo map[string]credit.Record
	combos  []string
}

func newIndex(existing []credit.Record) index {
	ix := index{byID: map[string]credit.Record{}, byCombo: map[string]credit.Record{}}
	for _, r := range existing {
		if r.ID != "" {
			ix.byID[r.ID] = r
		}
		for _, ck := range []string{strings.TrimSpace(r.ComboKey), credit.ComboKeyOf(r.InvoiceNumber, r.ItemNumber, "")} {
			if ck == "" {
				continue
			}
			if _, ok := ix.byCombo[ck]; !ok {
				ix.combos = append(ix.combos, ck)
			}
			ix.byCombo[ck] = r
		}
	}
	return ix
}

func (ix index) lookup(id, combo string) (credit.Record, bool) {
	if id != "" {
		if r, ok := ix.byID[id]; ok {
			return r, true
		}
	}
	if combo != "" {
		if r, ok := ix.byCombo[combo]; ok {
			return r, true
		}
	}
	return credit.Record{}, false
}

// closest returns the stored combo key nearest to combo by edit distance,
// when it is close enough to be a plausible typo.
func (ix index) closest(combo string) string {
	if combo == "" {
		return ""
	}
	best, bestDist := "", -1
	for _, ck := range ix.combos {
		d := levenshtein.ComputeDistance(strings.ToUpper(combo), strings.ToUpper(ck))
		if bestDist < 0 || d < bestDist || (d == bestDist && ck < best) {
			best, bestDist = ck, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len(combo)/5) {
		return ""
	}
	return best
}

// Build validates every row against existing records and computes diffs
// over credit.BusinessFields. All rows are checked; issues accumulate. A
// row with an id needs no Invoice or Item.
func Build(rows []Row, existing []credit.Record) Preview {
	p := Preview{Rows: rows}
	for _, row := range rows {
		inv := strings.TrimSpace(row.Values[credit.FieldInvoiceNumber])
		item := strings.TrimSpace(row.Values[credit.FieldItemNumber])
		if row.ID() == "" && row.Combo() == "" {
			p.Issues = append(p.Issues, Issue{Line: row.Line, Message: "missing id and combo_key (Invoice+Item)."})
		}
		if row.ID() == "" && (inv == "" || item == "") {
			p.Issues = append(p.Issues, Issue{Line: row.Line, Message: "Invoice or Item is missing."})
		}
	}

	ix := newIndex(existing)
	seen := map[string]struct{}{}
	for _, row := range rows {
		id, combo := row.ID(), row.Combo()
		if combo != "" {
			if _, dup := seen[combo]; dup {
				p.Issues = append(p.Issues, Issue{Line: row.Line, Message: fmt.Sprintf("duplicate combo_key %s in CSV.", combo)})
			} else {
				seen[combo] = struct{}{}
			}
		}
		match, ok := ix.lookup(id, combo)
		if !ok {
			p.Summary.Inserts++
			msg := "combo_key/id not found in the store. CSV round-trip can only update existing records (no new inserts)."
			if hint := ix.closest(combo); hint != "" {
				msg += fmt.Sprintf(" Closest existing combo_key: %s.", hint)
			}
			p.Issues = append(p.Issues, Issue{Line: row.Line, Message: msg})
			continue
		}
		p.Summary.Updates++
		p.Matches = append(p.Matches, Match{Row: row, Record: match})
		if changed := diffFields(match, row); len(changed) > 0 {
			diffID := match.ID
			if diffID == "" {
				diffID = id
			}
			p.Diffs = append(p.Diffs, Diff{ID: diffID, Combo: combo, Changed: changed})
		}
	}
	p.Summary.Total = len(rows)
	return p
}

func diffFields(rec credit.Record, row Row) map[string]Change {
	changed := map[string]Change{}
	for _, field := range credit.BusinessFields {
		from := rec.Field(field)
		to, present := row.Values[field]
		if !present {
			continue
		}
		f, t := strings.TrimSpace(from), strings.TrimSpace(to)
		if f == "" && t == "" {
			continue
		}
		if f != t {
			changed[field] = Change{From: from, To: to}
		}
	}
	return changed
}

// Apply returns the stored record updated with the row's business fields,
// date and reason. Columns absent from the CSV leave the stored value
// untouched; the status timeline is never overwritten.
func Apply(rec credit.Record, row Row) credit.Record {
	for _, field := range credit.BusinessFields {
		if v, ok := row.Values[field]; ok {
			rec.Set(field, v)
		}
	}
	for _, field := range []string{credit.FieldDate, credit.FieldReason} {
		if v, ok := row.Values[field]; ok {
			rec.Set(field, v)
		}
	}
	return rec
}
