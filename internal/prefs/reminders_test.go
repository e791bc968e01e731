package prefs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/notify"
)

func TestReminderDayFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := &ReminderDayFile{Path: filepath.Join(t.TempDir(), "nested", reminderDayFile)}

	st, err := f.Load(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Equal(t, notify.DayState{Day: "2024-03-01"}, st)

	saved := notify.DayState{Day: "2024-03-01", Fired: []string{"r1"}, Dismissed: []string{"r2"}}
	require.NoError(t, f.Save(ctx, saved))

	st, err = f.Load(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Equal(t, saved, st)

	st, err = f.Load(ctx, "2024-03-02")
	require.NoError(t, err)
	require.Empty(t, st.Fired, "only today's sets are restored")

	_, err = os.Stat(f.Path + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestReminderDayFileCorrupt(t *testing.T) {
	t.Parallel()

	f := &ReminderDayFile{Path: filepath.Join(t.TempDir(), reminderDayFile)}
	require.NoError(t, os.WriteFile(f.Path, []byte("{"), 0o600))
	_, err := f.Load(context.Background(), "2024-03-01")
	require.Error(t, err)
}
