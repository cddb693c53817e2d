package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='trades'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "trades", name)
}

func TestSQLiteGetTrade(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	at := time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC)
	want := trade(at, 1.5)
	want.ID = "01JNDX0000000000000000TEST"
	want.BalanceAfter = 501.5
	require.NoError(t, j.RecordTrade(want))

	got, err := j.GetTrade(want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.True(t, got.Time.Equal(at))
	assert.Equal(t, want.Epic, got.Epic)
	assert.Equal(t, want.Direction, got.Direction)
	assert.InDelta(t, want.Size, got.Size, 1e-9)
	require.NotNil(t, got.Exit)
	assert.InDelta(t, *want.Exit, *got.Exit, 1e-9)
	assert.InDelta(t, want.PnL, got.PnL, 1e-9)
	assert.InDelta(t, 501.5, got.BalanceAfter, 1e-9)

	_, err = j.GetTrade("missing")
	assert.ErrorContains(t, err, "not found")
}

func TestSQLiteNullableExit(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	rec := TradeRecord{ID: "X1", Time: time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC), Epic: "E", Direction: "SELL", Currency: "EUR", Notes: "exit not observed"}
	require.NoError(t, j.RecordTrade(rec))

	got, err := j.GetTrade("X1")
	require.NoError(t, err)
	assert.Nil(t, got.Exit)
	assert.Nil(t, got.MovePoints)
}

func TestListTradesBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	day := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{day.Add(-time.Minute), day.Add(9 * time.Hour), day.Add(15 * time.Hour), day.Add(24 * time.Hour)} {
		rec := trade(at, float64(i))
		rec.ID = string(rune('A' + i))
		require.NoError(t, j.RecordTrade(rec))
	}

	got, err := j.ListTradesBetween(day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].ID)
	assert.Equal(t, "C", got[1].ID)
}

func TestLedgerMirrorsToSQLite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	at := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	l, err := Open(Options{Dir: dir, SQLitePath: filepath.Join(dir, "ledger.db"), StartBalance: 500, Now: func() time.Time { return at }})
	require.NoError(t, err)
	defer l.Close()

	rec, err := l.RecordTrade(trade(at, -2))
	require.NoError(t, err)

	require.NotNil(t, l.Store())
	got, err := l.Store().GetTrade(rec.ID)
	require.NoError(t, err)
	assert.InDelta(t, 498.0, got.BalanceAfter, 1e-9)
}
