package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rustyeddy/scalper/market"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func openTest(t *testing.T, dir string, c *clock) *Ledger {
	t.Helper()
	l, err := Open(Options{Dir: dir, StartBalance: 500, Now: c.Now})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func trade(at time.Time, pnl float64) TradeRecord {
	return TradeRecord{
		Time:       at,
		Epic:       "IX.D.DAX.IFMM.IP",
		Direction:  market.Buy,
		Size:       0.5,
		Currency:   "EUR",
		Entry:      18000,
		Exit:       Float(18000 + 2*pnl),
		MovePoints: Float(2 * pnl),
		TPPoints:   2,
		SLPoints:   6,
		PnL:        pnl,
	}
}

func TestOpenSeedsState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := &clock{time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)}
	l := openTest(t, dir, c)

	assert.Equal(t, 500.0, l.Balance())
	assert.Equal(t, 500.0, l.DayStartBalance())
	assert.Equal(t, "2025-03-04", l.Day())
	assert.Zero(t, l.DayNet())

	st, err := loadState(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	assert.Equal(t, State{Balance: 500, Day: "2025-03-04", DayStartBalance: 500}, st)

	fh, err := os.Open(filepath.Join(dir, "trades.csv"))
	require.NoError(t, err)
	defer fh.Close()
	header, err := csv.NewReader(fh).Read()
	require.NoError(t, err)
	assert.Equal(t, csvHeader, header)
}

func TestDayNetAcrossRollover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	day1 := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	c := &clock{day1}
	l := openTest(t, dir, c)

	pnls := []float64{1, -0.5, 1.25}
	for i, p := range pnls {
		_, err := l.RecordTrade(trade(day1.Add(time.Duration(i)*time.Minute), p))
		require.NoError(t, err)
		assert.InDelta(t, l.Balance()-l.DayStartBalance(), l.DayNet(), 1e-9)
	}
	assert.InDelta(t, 501.75, l.Balance(), 1e-9)
	assert.InDelta(t, 1.75, l.DayNet(), 1e-9)

	day2 := day1.Add(24 * time.Hour)
	rec, err := l.RecordTrade(trade(day2, -1))
	require.NoError(t, err)
	assert.Equal(t, "2025-03-05", l.Day())
	assert.InDelta(t, 501.75, l.DayStartBalance(), 1e-9)
	assert.InDelta(t, 500.75, l.Balance(), 1e-9)
	assert.InDelta(t, -1.0, l.DayNet(), 1e-9)
	assert.InDelta(t, 500.75, rec.BalanceAfter, 1e-9)
	assert.NotEmpty(t, rec.ID)
}

func TestRolloverWithoutTrade(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	day1 := time.Date(2025, 3, 4, 23, 59, 0, 0, time.UTC)
	l := openTest(t, dir, &clock{day1})
	_, err := l.RecordTrade(trade(day1, 2))
	require.NoError(t, err)

	rolled, err := l.Rollover(day1)
	require.NoError(t, err)
	assert.False(t, rolled)

	rolled, err = l.Rollover(day1.Add(2 * time.Minute))
	require.NoError(t, err)
	assert.True(t, rolled)
	assert.Zero(t, l.DayNet())
	assert.Equal(t, 502.0, l.DayStartBalance())

	st, err := loadState(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	assert.Equal(t, "2025-03-05", st.Day)
}

func TestReopenKeepsBalanceAndReanchorsNewDay(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	day1 := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	l, err := Open(Options{Dir: dir, StartBalance: 500, Now: func() time.Time { return day1 }})
	require.NoError(t, err)
	_, err = l.RecordTrade(trade(day1, 3))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	// same day: anchor preserved
	l = openTest(t, dir, &clock{day1.Add(time.Hour)})
	assert.Equal(t, 503.0, l.Balance())
	assert.Equal(t, 3.0, l.DayNet())

	// next day: anchor moves to the carried balance
	l = openTest(t, dir, &clock{day1.Add(24 * time.Hour)})
	assert.Equal(t, 503.0, l.Balance())
	assert.Equal(t, 503.0, l.DayStartBalance())
	assert.Zero(t, l.DayNet())
}

func TestCorruptStateResets(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"garbage":     "{not json",
		"no balance":  `{"day":"2025-03-04"}`,
		"bad day":     `{"balance":10,"day":"yesterday"}`,
		"wrong types": `{"balance":"lots"}`,
	} {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte(body), 0o644))

			core, logs := observer.New(zap.ErrorLevel)
			l, err := Open(Options{
				Dir:          dir,
				StartBalance: 750,
				Logger:       zap.New(core),
				Now:          func() time.Time { return time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC) },
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = l.Close() })

			assert.Equal(t, 750.0, l.Balance())
			assert.Equal(t, 750.0, l.DayStartBalance())
			assert.Equal(t, 1, logs.Len())
		})
	}
}

func TestLedgerCSVRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	at := time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC)
	l := openTest(t, dir, &clock{at})

	_, err := l.RecordTrade(trade(at, 1))
	require.NoError(t, err)
	indeterminate := TradeRecord{Time: at.Add(time.Minute), Epic: "IX.D.DAX.IFMM.IP", Direction: market.Sell, Size: 0.5, Entry: 18010, Notes: "exit not observed"}
	_, err = l.RecordTrade(indeterminate)
	require.NoError(t, err)

	recs, err := ReadCSV(filepath.Join(dir, "trades.csv"))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.True(t, recs[0].Time.Equal(at))
	assert.Equal(t, market.Buy, recs[0].Direction)
	require.NotNil(t, recs[0].Exit)
	assert.Equal(t, 18002.0, *recs[0].Exit)
	assert.Equal(t, 501.0, recs[0].BalanceAfter)

	assert.Nil(t, recs[1].Exit)
	assert.Nil(t, recs[1].MovePoints)
	assert.Zero(t, recs[1].PnL)
	assert.Equal(t, "EUR", recs[1].Currency)
	assert.Equal(t, "exit not observed", recs[1].Notes)
	assert.Equal(t, 501.0, recs[1].BalanceAfter)
}

func TestCSVAppendsWithoutSecondHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	for i := 0; i < 2; i++ {
		j, err := NewCSV(path)
		require.NoError(t, err)
		require.NoError(t, j.RecordTrade(trade(time.Date(2025, 3, 4, 9, i, 0, 0, time.UTC), 1)))
		require.NoError(t, j.Close())
	}

	recs, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestFilterBetween(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	recs := []TradeRecord{trade(t0.Add(-time.Second), 1), trade(t0, 1), trade(t0.Add(23*time.Hour), 1), trade(t0.Add(24*time.Hour), 1)}
	assert.Len(t, FilterBetween(recs, t0, t0.Add(24*time.Hour)), 2)
}

func TestLedgerTimezone(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CET", 3600)
	dir := t.TempDir()
	at := time.Date(2025, 3, 4, 23, 30, 0, 0, time.UTC) // 00:30 next day in CET
	l, err := Open(Options{Dir: dir, StartBalance: 100, Location: loc, Now: func() time.Time { return at }})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	assert.Equal(t, "2025-03-05", l.Day())
}
