// Package analytics folds credit records into summaries, SLA histograms,
// high-dollar exposure, pending trends and a composite risk index.
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// DefaultHighDollarThreshold is the per-ticket total above which a ticket
// counts as high-dollar.
const DefaultHighDollarThreshold = 2500.0

// Summary is the headline fold over a record set.
type Summary struct {
	Total   float64
	Count   int
	Avg     float64
	Pending int
}

// Summarize sums amounts and counts pending records. Unparseable amounts
// count as zero.
func Summarize(records []credit.Record) Summary {
	var s Summary
	for _, r := range records {
		s.Total += r.Amount()
		if r.IsPending() {
			s.Pending++
		}
	}
	s.Count = len(records)
	if s.Count > 0 {
		s.Avg = s.Total / float64(s.Count)
	}
	return s
}

// Bucket is one SLA histogram cell.
type Bucket struct {
	Label string
	Count int
	Total float64
}

// SLAHistogram holds one bucket per label in credit.SLABuckets order.
type SLAHistogram []Bucket

// Get returns the bucket for label, or a zero bucket.
func (h SLAHistogram) Get(label string) Bucket {
	for _, b := range h {
		if b.Label == label {
			return b
		}
	}
	return Bucket{Label: label}
}

// BucketSLA classifies pending records by days since created.
func BucketSLA(records []credit.Record, now time.Time) SLAHistogram {
	h := make(SLAHistogram, len(credit.SLABuckets))
	idx := make(map[string]int, len(credit.SLABuckets))
	for i, label := range credit.SLABuckets {
		h[i] = Bucket{Label: label}
		idx[label] = i
	}
	for _, r := range records {
		if !r.IsPending() {
			continue
		}
		aging := credit.ComputeAging(r, now)
		i := idx[credit.SLABucket(aging.DaysSinceCreated)]
		h[i].Count++
		h[i].Total += r.Amount()
	}
	return h
}

// TicketTotal is a ticket with its summed credit amount.
type TicketTotal struct {
	Ticket string
	Total  float64
}

// HighDollar lists tickets whose summed amount exceeds the threshold.
type HighDollar struct {
	Tickets []TicketTotal
	Total   float64
}

// HighDollarTickets groups records by ticket number and keeps tickets whose
// total is strictly above threshold, largest first. Blank tickets group
// under "Unknown".
func HighDollarTickets(records []credit.Record, threshold float64) HighDollar {
	totals := map[string]float64{}
	for _, r := range records {
		ticket := strings.TrimSpace(r.TicketNumber)
		if ticket == "" {
			ticket = "Unknown"
		}
		totals[ticket] += r.Amount()
	}
	var hd HighDollar
	for ticket, total := range totals {
		if total > threshold {
			hd.Tickets = append(hd.Tickets, TicketTotal{Ticket: ticket, Total: total})
			hd.Total += total
		}
	}
	sort.Slice(hd.Tickets, func(i, j int) bool {
		if hd.Tickets[i].Total != hd.Tickets[j].Total {
			return hd.Tickets[i].Total > hd.Tickets[j].Total
		}
		return hd.Tickets[i].Ticket < hd.Tickets[j].Ticket
	})
	return hd
}

// Trend compares pending records dated in the last 7 days against the 7
// days before that.
type Trend struct {
	Current   int
	Previous  int
	PctChange float64
}

// PendingTrend computes the week-over-week pending trend.
func PendingTrend(records []credit.Record, now time.Time) Trend {
	currentStart := now.Add(-7 * 24 * time.Hour)
	prevStart := currentStart.Add(-7 * 24 * time.Hour)
	var t Trend
	for _, r := range records {
		if !r.IsPending() {
			continue
		}
		d, ok := credit.ParseDate(r.Date, now.Location())
		if !ok {
			continue
		}
		switch {
		case !d.Before(currentStart):
			t.Current++
		case !d.Before(prevStart):
			t.Previous++
		}
	}
	t.PctChange = pctChange(t.Current, t.Previous)
	return t
}

func pctChange(current, previous int) float64 {
	if previous > 0 {
		return float64(current-previous) / float64(previous) * 100
	}
	if current > 0 {
		return 100
	}
	return 0
}
