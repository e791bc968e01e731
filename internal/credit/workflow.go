package credit

import (
	"math"
	"strings"
	"time"
)

// WorkflowState is the Pending/Completed classification of a record.
type WorkflowState string

const (
	StatePending   WorkflowState = "Pending"
	StateCompleted WorkflowState = "Completed"
)

// StateOf classifies an RTN_CR_No value. Empty and the literal "nan" are
// Pending; the comparison against "nan" is case-sensitive.
func StateOf(rtn string) WorkflowState {
	if rtn == "" || rtn == "nan" {
		return StatePending
	}
	return StateCompleted
}

// State is the record's workflow state.
func (r Record) State() WorkflowState {
	return StateOf(r.RTNCRNo)
}

// IsPending reports whether the record is still awaiting an RTN/CR number.
func (r Record) IsPending() bool {
	return r.State() == StatePending
}

// Aging holds day counts derived from a record's date. Nil means the date
// could not be parsed.
type Aging struct {
	DaysSinceCreated *int
	DaysPending      *int
}

// ComputeAging counts whole days between the record's date and now, in
// now's location. Completed records always report zero days pending.
func ComputeAging(r Record, now time.Time) Aging {
	date, ok := ParseDate(r.Date, now.Location())
	if !ok {
		return Aging{}
	}
	days := DaysBetween(date, now)
	pending := days
	if !r.IsPending() {
		pending = 0
	}
	return Aging{DaysSinceCreated: &days, DaysPending: &pending}
}

// DaysBetween returns floor((to - from) / 24h) measured on wall clocks so a
// DST transition between the two instants does not shave a day.
func DaysBetween(from, to time.Time) int {
	f := wallUTC(from.In(to.Location()))
	t := wallUTC(to)
	return int(math.Floor(t.Sub(f).Hours() / 24))
}

func wallUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// SLA bucket labels.
const (
	BucketUnder30 = "<30d"
	Bucket30To59  = "30-59d"
	Bucket60Plus  = "60d+"
	BucketUnknown = "n/a"
)

// SLABuckets lists the bucket labels in display order.
var SLABuckets = []string{BucketUnder30, Bucket30To59, Bucket60Plus, BucketUnknown}

// SLABucket classifies a day count.
func SLABucket(days *int) string {
	switch {
	case days == nil:
		return BucketUnknown
	case *days >= 60:
		return Bucket60Plus
	case *days >= 30:
		return Bucket30To59
	default:
		return BucketUnder30
	}
}

// IsNaN reports whether a text field holds no usable value.
func IsNaN(s string) bool {
	t := strings.TrimSpace(s)
	return t == "" || strings.EqualFold(t, "nan")
}
