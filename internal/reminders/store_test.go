package reminders

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

func TestAttachByTicket(t *testing.T) {
	t.Parallel()

	s := NewStore()
	removed := s.ApplySnapshot([]credit.Reminder{
		{Key: "r1", TicketNumber: " T-1 "},
		{Key: "r2", TicketNumber: "nan"},
	})
	require.Empty(t, removed)

	recs := s.Attach([]credit.Record{
		{ID: "a", TicketNumber: "T-1"},
		{ID: "b", TicketNumber: "T-2"},
		{ID: "c", TicketNumber: "nan"},
	})
	require.NotNil(t, recs[0].Reminder)
	require.Equal(t, "r1", recs[0].ActionKey)
	require.Nil(t, recs[1].Reminder)
	require.Nil(t, recs[2].Reminder)

	_, ok := s.Get("r2")
	require.True(t, ok, "ticketless reminders stay addressable by key")
}

func TestDuplicateTicketLastWins(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.ApplySnapshot([]credit.Reminder{
		{Key: "r1", TicketNumber: "T-1"},
		{Key: "r2", TicketNumber: "T-1"},
	})
	r, ok := s.ForTicket("T-1")
	require.True(t, ok)
	require.Equal(t, "r2", r.Key)
	_, ok = s.Get("r1")
	require.True(t, ok)
}

func TestCachedKeyFallback(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.ApplySnapshot([]credit.Reminder{{Key: "r1", TicketNumber: "T-1"}})
	recs := s.Attach([]credit.Record{{ID: "a", TicketNumber: "T-1"}})
	require.Equal(t, "r1", recs[0].ActionKey)

	// ticket edited locally; the remembered key still resolves
	recs[0].TicketNumber = "T-1-edited"
	recs = s.Attach(recs)
	require.NotNil(t, recs[0].Reminder)
	require.Equal(t, "r1", recs[0].ActionKey)
}

func TestRemovalDetachesRecords(t *testing.T) {
	t.Parallel()

	s := NewStore()
	recs := s.Reconcile([]credit.Record{
		{ID: "a", TicketNumber: "T-1"},
		{ID: "b", TicketNumber: "T-1"},
		{ID: "c", TicketNumber: "T-3"},
	}, []credit.Reminder{
		{Key: "r1", TicketNumber: "T-1"},
		{Key: "r3", TicketNumber: "T-3"},
	})
	require.Equal(t, "r1", recs[0].ActionKey)
	require.Equal(t, "r1", recs[1].ActionKey)

	removed := s.ApplySnapshot([]credit.Reminder{{Key: "r3", TicketNumber: "T-3"}})
	require.Equal(t, []string{"r1"}, removed)

	recs = s.Attach(DetachRemoved(recs, removed))
	for _, rec := range recs[:2] {
		require.Nil(t, rec.Reminder)
		require.Empty(t, rec.ActionKey)
	}
	require.Equal(t, "r3", recs[2].ActionKey)
}

func TestCacheIsSupersededBySnapshot(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.ApplySnapshot(nil)
	s.Cache(credit.Reminder{Key: "new", TicketNumber: "T-5", Note: "optimistic"})
	r, ok := s.ForTicket("T-5")
	require.True(t, ok)
	require.Equal(t, "optimistic", r.Note)

	s.ApplySnapshot([]credit.Reminder{{Key: "new", TicketNumber: "T-5", Note: "canonical"}})
	r, ok = s.ForTicket("T-5")
	require.True(t, ok)
	require.Equal(t, "canonical", r.Note)
	require.Equal(t, 1, s.Len())
}

func TestAttachDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.ApplySnapshot([]credit.Reminder{{Key: "r1", TicketNumber: "T-1"}})
	in := []credit.Record{{ID: "a", TicketNumber: "T-1"}}
	out := s.Attach(in)
	require.Nil(t, in[0].Reminder)
	require.NotNil(t, out[0].Reminder)
}
