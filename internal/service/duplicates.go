package service

import (
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// Duplicate match kinds.
const (
	MatchExact = "exact"
	MatchFuzzy = "fuzzy"
)

// DuplicatePair is an advisory duplicate finding. It never blocks a write.
type DuplicatePair struct {
	A          credit.Record
	B          credit.Record
	Kind       string
	Similarity float64
}

// DuplicateChecker flags likely duplicate credit requests in two stages:
// exact (same id or same upper-cased combo key) and fuzzy (same customer
// and amount within a week, with near-identical invoice and item).
type DuplicateChecker struct {
	// MaxDays bounds the date gap of a fuzzy pair.
	MaxDays int
	// MaxRatio is the largest edit distance, relative to key length, that
	// still counts as a fuzzy match.
	MaxRatio float64
}

// DefaultDuplicateChecker uses a 7 day window and a 0.2 distance ratio.
var DefaultDuplicateChecker = DuplicateChecker{MaxDays: 7, MaxRatio: 0.2}

// Check returns every duplicate pair, exact pairs first.
func (c DuplicateChecker) Check(records []credit.Record) []DuplicatePair {
	var exact, fuzzy []DuplicatePair
	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			a, b := records[i], records[j]
			// Stage1 exact
			if matchExact(a, b) {
				exact = append(exact, DuplicatePair{A: a, B: b, Kind: MatchExact, Similarity: 1})
				continue
			}
			// Stage2 fuzzy
			if sim, ok := c.matchFuzzy(a, b); ok {
				fuzzy = append(fuzzy, DuplicatePair{A: a, B: b, Kind: MatchFuzzy, Similarity: sim})
			}
		}
	}
	sort.SliceStable(fuzzy, func(i, j int) bool { return fuzzy[i].Similarity > fuzzy[j].Similarity })
	return append(exact, fuzzy...)
}

// Duplicates runs the default checker over the session's records.
func (w *Workspace) Duplicates() []DuplicatePair {
	return DefaultDuplicateChecker.Check(w.Records())
}

func matchExact(a, b credit.Record) bool {
	if a.ID != "" && a.ID == b.ID {
		return true
	}
	ca, cb := stringsUpper(a.Combo()), stringsUpper(b.Combo())
	return ca != "" && ca == cb
}

func (c DuplicateChecker) matchFuzzy(a, b credit.Record) (float64, bool) {
	if !strings.EqualFold(strings.TrimSpace(a.CustomerNumber), strings.TrimSpace(b.CustomerNumber)) {
		return 0, false
	}
	if a.Amount() != b.Amount() || a.Amount() == 0 {
		return 0, false
	}
	da, okA := credit.ParseDate(a.Date, time.UTC)
	db, okB := credit.ParseDate(b.Date, time.UTC)
	if !okA || !okB || daysApart(da, db) > c.MaxDays {
		return 0, false
	}
	sim := similarity(stringsUpper(a.Combo()), stringsUpper(b.Combo()))
	return sim, sim >= 1-c.MaxRatio
}

func stringsUpper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func daysApart(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}

func similarity(a, b string) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
