package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/janpfeifer/GoSlot/internal/device"
	"github.com/janpfeifer/GoSlot/internal/game"
	"github.com/janpfeifer/GoSlot/internal/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	grid := game.Grid{{1, 2, 3}, {4, 5, 6}, {7, 8, 0xffff}}
	for i := range 3 {
		require.NoError(t, store.Record(ctx, Entry{
			SessionID: "s1",
			Number:    i + 1,
			Outcome:   i == 1,
			Won:       i == 1,
			Pattern:   "middle",
			Final:     grid,
			StartedAt: start,
			EndedAt:   start.Add(time.Duration(i) * time.Second),
		}))
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 3, recent[0].Number)
	assert.Equal(t, 2, recent[1].Number)
	assert.True(t, recent[1].Won)
	assert.Equal(t, grid, recent[0].Final)
	assert.Equal(t, start.Add(2*time.Second), recent[0].EndedAt)

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Rounds: 3, Wins: 1, Sessions: 1, WinRate: 1.0 / 3}, st)
}

func TestRecordRequiresSession(t *testing.T) {
	store := openTestStore(t)
	assert.Error(t, store.Record(context.Background(), Entry{}))
}

func TestReopenKeepsRounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), Entry{SessionID: "s", Number: 1}))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Rounds)
}

func TestObserverRecordsSessionRounds(t *testing.T) {
	store := openTestStore(t)

	opts := machine.DefaultOptions()
	opts.SessionID = "observed"
	opts.WinChance = 1
	script := device.NewScript()
	s, err := machine.NewSession(opts, game.NewRand(1), script, &device.Recorder{}, store.Observer())
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for range 2 * (game.Cols + 1) {
		script.Push(device.Shake)
		require.True(t, s.Tick(now))
		now = now.Add(opts.Debounce)
	}

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Rounds)
	assert.Equal(t, 2, st.Wins)
	assert.Zero(t, st.Mismatches)

	recent, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, game.Evaluate(&recent[0].Final))
	assert.NotEmpty(t, recent[0].Pattern)
}

func TestDecodeGridRejectsGarbage(t *testing.T) {
	_, err := decodeGrid("1,2,3")
	assert.Error(t, err)
}
