package analytics

import (
	"math"
	"time"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// Risk labels.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// Thresholds are the score cut-offs for Medium and High.
type Thresholds struct {
	Medium float64
	High   float64
}

// DefaultThresholds are 35 and 65.
var DefaultThresholds = Thresholds{Medium: 35, High: 65}

// Label maps a score to its label.
func (th Thresholds) Label(score int) string {
	switch {
	case float64(score) >= th.High:
		return RiskHigh
	case float64(score) >= th.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskInputs are the raw counts the score is computed from.
type RiskInputs struct {
	Pending     int
	TotalCount  int
	SLA60       int
	SLA30       int
	DollarTotal float64
	DollarCount int
	TrendPct    float64
}

// RiskFactors are the weighted contributions before rounding.
type RiskFactors struct {
	Pending    float64
	Aging      float64
	HighDollar float64
	Trend      float64
}

// RiskIndex is the composite score with its diagnostics.
type RiskIndex struct {
	Score      int
	Label      string
	Factors    RiskFactors
	Inputs     RiskInputs
	Thresholds Thresholds
}

// ComputeRisk weights pending load (35), aging mix (35), high-dollar
// exposure (25) and trend (-5..+10) into a score clamped to [0, 100].
func ComputeRisk(in RiskInputs, th Thresholds) RiskIndex {
	if th.Medium <= 0 && th.High <= 0 {
		th = DefaultThresholds
	}
	in.Pending = max(0, in.Pending)
	in.SLA60 = max(0, in.SLA60)
	in.SLA30 = max(0, in.SLA30)
	in.DollarCount = max(0, in.DollarCount)
	in.DollarTotal = math.Max(0, in.DollarTotal)
	if in.TotalCount <= 0 {
		in.TotalCount = 1
	}
	if math.IsNaN(in.TrendPct) || math.IsInf(in.TrendPct, 0) {
		in.TrendPct = 0
	}

	f := RiskFactors{
		Pending:    clamp01(float64(in.Pending)/float64(in.TotalCount)) * 35,
		Aging:      clamp01((float64(in.SLA60)+0.5*float64(in.SLA30))/float64(max(1, in.Pending))) * 35,
		HighDollar: clamp01(in.DollarTotal/50000)*20 + clamp01(float64(in.DollarCount)/5)*5,
	}
	switch {
	case in.TrendPct > 0:
		f.Trend = clamp01(in.TrendPct/50) * 10
	case in.TrendPct < 0:
		f.Trend = -clamp01(math.Abs(in.TrendPct)/50) * 5
	}

	raw := f.Pending + f.Aging + f.HighDollar + f.Trend
	score := int(math.Round(math.Max(0, raw)))
	if score > 100 {
		score = 100
	}
	return RiskIndex{
		Score:      score,
		Label:      th.Label(score),
		Factors:    f,
		Inputs:     in,
		Thresholds: th,
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}

// Options tune report construction.
type Options struct {
	HighDollarThreshold float64
	Thresholds          Thresholds
}

func (o Options) withDefaults() Options {
	if o.HighDollarThreshold <= 0 {
		o.HighDollarThreshold = DefaultHighDollarThreshold
	}
	if o.Thresholds.Medium <= 0 && o.Thresholds.High <= 0 {
		o.Thresholds = DefaultThresholds
	}
	return o
}

// Report is everything the dashboard and risk views show for one pass.
type Report struct {
	All        Summary
	Filtered   Summary
	IsFiltered bool
	SLA        SLAHistogram
	HighDollar HighDollar
	Trend      Trend
	Risk       RiskIndex
}

// Headline picks the filtered summary when a filter is active.
func (r Report) Headline() Summary {
	if r.IsFiltered {
		return r.Filtered
	}
	return r.All
}

// Build computes a report. Risk inputs come from the filtered set.
func Build(all, filtered []credit.Record, isFiltered bool, now time.Time, opts Options) Report {
	opts = opts.withDefaults()
	rep := Report{
		All:        Summarize(all),
		Filtered:   Summarize(filtered),
		IsFiltered: isFiltered,
		SLA:        BucketSLA(filtered, now),
		HighDollar: HighDollarTickets(filtered, opts.HighDollarThreshold),
		Trend:      PendingTrend(filtered, now),
	}
	rep.Risk = ComputeRisk(RiskInputs{
		Pending:     rep.Filtered.Pending,
		TotalCount:  rep.Filtered.Count,
		SLA60:       rep.SLA.Get(credit.Bucket60Plus).Count,
		SLA30:       rep.SLA.Get(credit.Bucket30To59).Count,
		DollarTotal: rep.HighDollar.Total,
		DollarCount: len(rep.HighDollar.Tickets),
		TrendPct:    rep.Trend.PctChange,
	}, opts.Thresholds)
	return rep
}
