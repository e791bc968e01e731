package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// DuplicateStats describes invoice+item pairs occurring more than once.
// It is advisory and never blocks a write.
type DuplicateStats struct {
	Pairs  int
	Rows   int
	Combos []string
}

// Duplicates counts repeated invoice|item pairs. Rows missing either half
// are ignored.
func Duplicates(records []credit.Record) DuplicateStats {
	counts := map[string]int{}
	for _, r := range records {
		inv := strings.TrimSpace(r.InvoiceNumber)
		item := strings.TrimSpace(r.ItemNumber)
		if inv == "" || item == "" {
			continue
		}
		counts[inv+"|"+item]++
	}
	var ds DuplicateStats
	for combo, n := range counts {
		if n > 1 {
			ds.Pairs++
			ds.Rows += n
			ds.Combos = append(ds.Combos, combo)
		}
	}
	sort.Strings(ds.Combos)
	return ds
}

// NamedTotal is a label with a summed amount.
type NamedTotal struct {
	Name  string
	Total float64
}

// TopReps returns the n sales reps with the largest totals.
func TopReps(records []credit.Record, n int) []NamedTotal {
	return topBy(records, n, func(r credit.Record) string { return r.SalesRep })
}

// AccountGroup is the first three characters of a customer number.
func AccountGroup(customer string) string {
	raw := strings.TrimSpace(customer)
	if raw == "" {
		return "Unknown"
	}
	if len([]rune(raw)) <= 3 {
		return raw
	}
	return string([]rune(raw)[:3])
}

// TopAccountGroups returns the n account groups with the largest totals.
func TopAccountGroups(records []credit.Record, n int) []NamedTotal {
	return topBy(records, n, func(r credit.Record) string { return AccountGroup(r.CustomerNumber) })
}

func topBy(records []credit.Record, n int, key func(credit.Record) string) []NamedTotal {
	totals := map[string]float64{}
	for _, r := range records {
		k := strings.TrimSpace(key(r))
		if k == "" {
			k = "Unknown"
		}
		totals[k] += r.Amount()
	}
	out := make([]NamedTotal, 0, len(totals))
	for name, total := range totals {
		out = append(out, NamedTotal{Name: name, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// LargestCredits returns the n largest records by amount.
func LargestCredits(records []credit.Record, n int) []credit.Record {
	out := make([]credit.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount() > out[j].Amount() })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// VolumeByDate sums amounts per raw date string and keeps the last n dates
// in string order.
func VolumeByDate(records []credit.Record, n int) []NamedTotal {
	totals := map[string]float64{}
	for _, r := range records {
		if credit.IsNaN(r.Date) {
			continue
		}
		totals[r.Date] += r.Amount()
	}
	out := make([]NamedTotal, 0, len(totals))
	for d, total := range totals {
		out = append(out, NamedTotal{Name: d, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// Within returns records dated no earlier than days before now.
func Within(records []credit.Record, now time.Time, days int) []credit.Record {
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	var out []credit.Record
	for _, r := range records {
		d, ok := credit.ParseDate(r.Date, now.Location())
		if ok && !d.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// DailySummary describes yesterday's new credits and how the pending count
// moved against the day before.
func DailySummary(records []credit.Record, now time.Time, currency string) string {
	if len(records) == 0 {
		return "No credit data available yet."
	}
	today := credit.CalendarDate(now, now.Location())
	yesterday := today.AddDate(0, 0, -1).Format("2006-01-02")
	dayBefore := today.AddDate(0, 0, -2).Format("2006-01-02")

	var yCount, yPending, prevPending int
	var yTotal float64
	for _, r := range records {
		pending := r.IsPending()
		if r.Date == yesterday {
			yCount++
			yTotal += r.Amount()
			if pending {
				yPending++
			}
		}
		if r.Date == dayBefore && pending {
			prevPending++
		}
	}
	diff := yPending - prevPending
	direction := "stayed flat"
	switch {
	case diff > 0:
		direction = "increased"
	case diff < 0:
		direction = "decreased"
	}
	return fmt.Sprintf("Yesterday (%s) there were %d new credits for a total of %s. Pending credits %s by %d compared to the day before.",
		yesterday, yCount, FormatCurrency(yTotal, currency), direction, abs(diff))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// FormatCurrency renders an amount with thousands separators and cents.
func FormatCurrency(v float64, symbol string) string {
	if symbol == "" {
		symbol = "$"
	}
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	whole, frac := s[:len(s)-3], s[len(s)-3:]
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + symbol + b.String() + frac
}
