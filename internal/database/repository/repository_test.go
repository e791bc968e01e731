package repository_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/database"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/database/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("../migrations")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dbPath, migrations))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreditRepoCRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repository.NewCreditRepo(openTestDB(t))

	id, err := repo.Insert(ctx, credit.Record{InvoiceNumber: "INV1", ItemNumber: "A", CreditRequestTotal: "1,200.00"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "INV1|A", got.ComboKey)
	require.Equal(t, "1,200.00", got.CreditRequestTotal)

	require.NoError(t, repo.Update(ctx, id, map[string]string{credit.FieldItemNumber: "B", credit.FieldRTN: "RTN9"}))
	got, err = repo.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "INV1|B", got.ComboKey)
	require.Equal(t, credit.StateCompleted, got.State())

	require.Error(t, repo.Update(ctx, id, map[string]string{"Nope": "x"}))
	require.ErrorIs(t, repo.Update(ctx, "missing", map[string]string{credit.FieldQTY: "1"}), repository.ErrNotFound)

	_, err = repo.Insert(ctx, credit.Record{ID: "fixed", InvoiceNumber: "INV2", ItemNumber: "C"})
	require.NoError(t, err)
	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, repo.Delete(ctx, "fixed"))
	require.ErrorIs(t, repo.Delete(ctx, "fixed"), repository.ErrNotFound)
	_, err = repo.Get(ctx, "fixed")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReminderRepoPutReplacesWholeObject(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repository.NewReminderRepo(openTestDB(t))

	key := repo.NewKey()
	rem := credit.Reminder{Key: key, TicketNumber: "T-1", DueDate: "2024-03-02", SnoozedUntil: "2024-03-05", RemindDayBefore: true}.Normalized()
	require.NoError(t, repo.Put(ctx, rem))

	got, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, rem, got)

	rem.SnoozedUntil = ""
	rem.Status = credit.ReminderPending
	require.NoError(t, repo.Put(ctx, rem))
	got, err = repo.Get(ctx, key)
	require.NoError(t, err)
	require.Empty(t, got.SnoozedUntil)
	require.Nil(t, got.ToMap()[credit.RemFieldSnoozedUntil])

	require.NoError(t, repo.Delete(ctx, key))
	require.ErrorIs(t, repo.Delete(ctx, key), repository.ErrNotFound)
}

func TestNoteRepo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repository.NewNoteRepo(openTestDB(t))

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err := repo.Add(ctx, credit.Note{ComboKey: "INV1|A", Author: "SR", Text: "second", CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	first, err := repo.Add(ctx, credit.Note{ComboKey: "INV1|A", Author: "DW", Text: "first", CreatedAt: base})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	_, err = repo.Add(ctx, credit.Note{ComboKey: "INV2|B", Text: "other"})
	require.NoError(t, err)

	notes, err := repo.ListByCombo(ctx, "INV1|A")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	require.Equal(t, "first", notes[0].Text)
	require.Equal(t, "second", notes[1].Text)
}

func TestRoleRepoLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repository.NewRoleRepo(openTestDB(t))

	require.NoError(t, repo.Upsert(ctx, "uid-1", "ann@example.com", "credit"))
	doc, err := repo.Lookup(ctx, "ann@example.com")
	require.NoError(t, err)
	require.Equal(t, "credit", doc["role"])

	doc, err = repo.Lookup(ctx, "uid-1")
	require.NoError(t, err)
	require.Equal(t, "ann@example.com", doc["email"])

	_, err = repo.Lookup(ctx, "nobody")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWatchDeliversOnChangeOnly(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := repository.NewCreditRepo(openTestDB(t)).PollEvery(10 * time.Millisecond)

	snaps := make(chan []credit.Record, 8)
	done := make(chan error, 1)
	go func() { done <- repo.Watch(ctx, func(recs []credit.Record) { snaps <- recs }) }()

	require.Empty(t, <-snaps, "initial empty snapshot")

	_, err := repo.Insert(ctx, credit.Record{ID: "a", InvoiceNumber: "I", ItemNumber: "J"})
	require.NoError(t, err)
	select {
	case recs := <-snaps:
		require.Len(t, recs, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after insert")
	}

	select {
	case recs := <-snaps:
		t.Fatalf("unchanged table redelivered: %v", recs)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
