package credit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStateOf(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"", "nan"} {
		require.Equal(t, StatePending, StateOf(v), "value %q", v)
	}
	for _, v := range []string{"RTN-1", "CR123", "NaN", "0", " "} {
		require.Equal(t, StateCompleted, StateOf(v), "value %q", v)
	}
}

func TestComputeAgingScenario(t *testing.T) {
	t.Parallel()

	rec := Record{RTNCRNo: "", Date: "2024-01-01", CreditRequestTotal: "1,234.50"}
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.Equal(t, StatePending, rec.State())
	aging := ComputeAging(rec, now)
	require.NotNil(t, aging.DaysSinceCreated)
	require.Equal(t, 60, *aging.DaysSinceCreated)
	require.Equal(t, 60, *aging.DaysPending)
	require.Equal(t, Bucket60Plus, SLABucket(aging.DaysSinceCreated))
	require.InDelta(t, 1234.50, rec.Amount(), 0.0001)
}

func TestComputeAgingCompletedIsZeroPending(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	for _, date := range []string{"2024-01-01", "2023-06-01", "2024-05-31"} {
		aging := ComputeAging(Record{RTNCRNo: "CR-9", Date: date}, now)
		require.NotNil(t, aging.DaysPending)
		require.Zero(t, *aging.DaysPending)
		require.Positive(t, *aging.DaysSinceCreated)
	}
}

func TestComputeAgingUnparseable(t *testing.T) {
	t.Parallel()

	aging := ComputeAging(Record{Date: "not a date"}, time.Now())
	require.Nil(t, aging.DaysSinceCreated)
	require.Nil(t, aging.DaysPending)
	require.Equal(t, BucketUnknown, SLABucket(aging.DaysSinceCreated))
}

func TestComputeAgingAcrossDST(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Indiana/Indianapolis")
	require.NoError(t, err)
	now := time.Date(2024, 3, 20, 0, 0, 0, 0, loc)
	aging := ComputeAging(Record{Date: "2024-03-01"}, now)
	require.Equal(t, 19, *aging.DaysSinceCreated)
}

func TestSLABucket(t *testing.T) {
	t.Parallel()

	cases := []struct {
		days int
		want string
	}{
		{0, BucketUnder30},
		{29, BucketUnder30},
		{30, Bucket30To59},
		{59, Bucket30To59},
		{60, Bucket60Plus},
		{400, Bucket60Plus},
	}
	for _, tc := range cases {
		d := tc.days
		require.Equal(t, tc.want, SLABucket(&d), "days %d", tc.days)
	}
}

func TestToNumber(t *testing.T) {
	t.Parallel()

	cases := map[string]float64{
		"1,234.50": 1234.5,
		"$500":     500,
		"-12.5":    -12.5,
		"":         0,
		"abc":      0,
		"--5":      0,
		"1.2.3":    1.2,
		"USD 7":    7,
	}
	for in, want := range cases {
		require.InDelta(t, want, ToNumber(in), 0.0001, "input %q", in)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"2024-01-05", "1/5/2024", "01/05/2024", "2024-01-05T10:00:00Z", "Jan 5, 2024"} {
		d, ok := ParseDate(in, time.UTC)
		require.True(t, ok, "input %q", in)
		require.Equal(t, "2024-01-05", d.Format("2006-01-02"))
	}
	for _, in := range []string{"", "nan", "NaN", "yesterday"} {
		_, ok := ParseDate(in, time.UTC)
		require.False(t, ok, "input %q", in)
	}
}

func TestExtractLatestStatusLabel(t *testing.T) {
	t.Parallel()

	status := "[2024-01-01 09:00:00] [JD] opened\n[2024-01-03 10:30:00] [JD] waiting on rep"
	require.Equal(t, "[JD] waiting on rep", ExtractLatestStatusLabel(status, DefaultLabelLength))
	require.Equal(t, "plain note", ExtractLatestStatusLabel("  plain note \n", DefaultLabelLength))
	require.Equal(t, "", ExtractLatestStatusLabel("   ", DefaultLabelLength))

	long := "[2024-01-01 09:00:00] abcdefghijklmnop"
	got := ExtractLatestStatusLabel(long, 10)
	require.Equal(t, "abcdefghi…", got)
	require.Len(t, []rune(got), 10)
	require.Equal(t, "abcdefghijklmnop", ExtractLatestStatusLabel(long, 16))
	require.Equal(t, "…", ExtractLatestStatusLabel(long, 1))
}

func TestParseStatusTimeline(t *testing.T) {
	t.Parallel()

	status := "legacy text\n" +
		"[2024-01-01 09:00:00] [JD] opened\n" +
		"[2024-01-02 09:00:00] Reminder completed for ticket T-1\n" +
		"[2024-01-03 09:00:00] reminder snoozed until 2024-01-05\n" +
		"[2024-01-04 11:15:00] [AB] credit issued"
	got := ParseStatusTimeline(status)
	require.Equal(t, []TimelineEntry{
		{Timestamp: "2024-01-01 09:00:00", Label: "[JD] opened"},
		{Timestamp: "2024-01-04 11:15:00", Label: "[AB] credit issued"},
	}, got)
}

func TestAppendStatusLine(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Indiana/Indianapolis")
	require.NoError(t, err)
	ts := time.Date(2024, 2, 3, 14, 5, 6, 0, time.UTC).In(loc)
	line := FormatStatusLine(ts, "JD", " called customer ")
	require.Equal(t, "[2024-02-03 09:05:06] [JD] called customer", line)

	require.Equal(t, line, AppendStatusLine("", line))
	require.Equal(t, "old\n"+line, AppendStatusLine("old\n", line))
}

func TestAuthorTag(t *testing.T) {
	t.Parallel()

	aliases := map[string]string{"jane.doe": "JD"}
	require.Equal(t, "JD", AuthorTag("Jane.Doe@example.com", aliases))
	require.Equal(t, "BOBSMITH2", AuthorTag("bob.smith-2@example.com", aliases))
	require.Equal(t, "USER", AuthorTag("", aliases))
}

func TestIdentityAndKeys(t *testing.T) {
	t.Parallel()

	id, err := Record{ID: "abc", InvoiceNumber: "INV1", ItemNumber: "I1"}.Identity()
	require.NoError(t, err)
	require.Equal(t, "abc", id)

	id, err = Record{InvoiceNumber: "INV1", ItemNumber: "I1"}.Identity()
	require.NoError(t, err)
	require.Equal(t, "INV1|I1", id)

	_, err = Record{InvoiceNumber: "INV1"}.Identity()
	require.ErrorIs(t, err, ErrNoIdentity)

	require.Equal(t, "abc", RowKey(Record{ID: "abc"}, 4))
	require.Equal(t, "INV1|item|T-1|date|3", RowKey(Record{InvoiceNumber: "INV1", TicketNumber: "T-1"}, 3))

	key, ok := StrictTicketKey("  T-9 ")
	require.True(t, ok)
	require.Equal(t, "T-9", key)
	for _, bad := range []string{"", "  ", "nan", "NaN"} {
		_, ok := StrictTicketKey(bad)
		require.False(t, ok, "ticket %q", bad)
	}
}

func TestRecordMapRoundTrip(t *testing.T) {
	t.Parallel()

	rec := FromMap("doc1", map[string]any{
		FieldInvoiceNumber: "INV1",
		FieldItemNumber:    "I1",
		FieldCreditTotal:   float64(400),
		FieldRTN:           nil,
		"unknown":          "ignored",
	})
	require.Equal(t, "doc1", rec.ID)
	require.Equal(t, "400", rec.CreditRequestTotal)
	require.Equal(t, "", rec.RTNCRNo)

	m := rec.ToMap()
	require.Equal(t, "INV1|I1", m[FieldComboKey])
	require.NotContains(t, m, FieldID)
}

func TestReminderAlertAt(t *testing.T) {
	t.Parallel()

	loc := time.UTC
	r := Reminder{DueDate: "2024-03-10", RemindTime: "14:30"}
	at, ok := r.AlertAt(loc)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 3, 9, 14, 30, 0, 0, loc), at)

	r.SnoozedUntil = "2024-03-20T00:00:00Z"
	at, ok = r.AlertAt(loc)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 3, 19, 14, 30, 0, 0, loc), at)

	r = Reminder{DueDate: "2024-03-10", RemindTime: "bogus"}
	at, ok = r.AlertAt(loc)
	require.True(t, ok)
	require.Equal(t, 8, at.Hour())

	_, ok = Reminder{}.AlertAt(loc)
	require.False(t, ok)
}

func TestReminderNormalizedAndMap(t *testing.T) {
	t.Parallel()

	r := Reminder{Key: "k1", TicketNumber: "T-1", Priority: "weird"}.Normalized()
	require.Equal(t, PriorityNormal, r.Priority)
	require.Equal(t, ReminderPending, r.Status)
	require.Equal(t, DefaultRemindTime, r.RemindTime)
	require.Equal(t, "k1", r.ID)
	require.Equal(t, "k1", r.AlertID)

	m := r.ToMap()
	require.Nil(t, m[RemFieldSnoozedUntil])
	require.Nil(t, m[RemFieldCompletedAt])

	back := ReminderFromMap("k1", m)
	require.Equal(t, r, back)

	legacy := ReminderFromMap("k2", map[string]any{"ticket": "T-7", RemFieldRemindDayBefore: "true"})
	require.Equal(t, "T-7", legacy.TicketNumber)
	require.True(t, legacy.RemindDayBefore)

	stamped := ReminderFromMap("k3", map[string]any{
		RemFieldDueDate:      "2024-03-01",
		RemFieldSnoozedUntil: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	})
	require.Equal(t, "2024-03-05T10:00:00Z", stamped.SnoozedUntil)
	at, ok := stamped.AlertAt(time.UTC)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC), at)
}
