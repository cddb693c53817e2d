package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scalper/market"
)

func createTestBars() []market.Bar {
	t0 := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	ohlc := [][4]float64{
		{100, 105, 99, 102},
		{102, 107, 101, 105},
		{105, 108, 104, 106},
		{106, 110, 105, 108},
		{108, 112, 107, 110},
		{110, 113, 109, 111},
		{111, 115, 110, 113},
		{113, 116, 112, 114},
		{114, 118, 113, 116},
		{116, 120, 115, 118},
	}
	bars := make([]market.Bar, 0, len(ohlc))
	for i, v := range ohlc {
		bars = append(bars, market.MidBar(t0.Add(time.Duration(i)*time.Minute), v[0], v[1], v[2], v[3]))
	}
	return bars
}

func TestSMA(t *testing.T) {
	closes := Closes(createTestBars())

	// Last 5 closes: 111,113,114,116,118 => 572/5 = 114.4
	assert.InDelta(t, 114.4, SMA(closes, 5), 0.001)
	assert.True(t, math.IsNaN(SMA(closes, 11)))
	assert.True(t, math.IsNaN(SMA(closes, 0)))
}

func TestEMA(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6}

	// seed = mean(1,2,3) = 2; k = 0.5 => 3, 4, 5
	assert.InDelta(t, 5.0, EMA(vals, 3), 1e-9)
	assert.InDelta(t, 3.5, EMA(vals, 6), 1e-9)
	assert.True(t, math.IsNaN(EMA(vals, 7)))
}

func TestSlope(t *testing.T) {
	assert.Equal(t, 1, Slope([]float64{1, 2, 3, 4}, 3))
	assert.Equal(t, -1, Slope([]float64{4, 3, 2, 1}, 3))
	assert.Equal(t, 0, Slope([]float64{2, 2, 2, 2}, 3))
	assert.Equal(t, 0, Slope([]float64{1, 2, 3}, 3))
}

func TestATRWilder(t *testing.T) {
	bars := []market.Bar{
		market.MidBar(time.Time{}, 9, 10, 8, 9),
		market.MidBar(time.Time{}, 9, 11, 9, 10),   // tr 2
		market.MidBar(time.Time{}, 10, 12, 10, 11), // tr 2
		market.MidBar(time.Time{}, 11, 11, 9, 10),  // tr 2
		market.MidBar(time.Time{}, 10, 16, 10, 15), // tr 6
	}

	// seed over 3 TRs = 2, then (2*2+6)/3
	assert.InDelta(t, 10.0/3.0, ATR(bars, 3), 1e-9)
	assert.InDelta(t, 3.0, ATR(bars, 4), 1e-9)
	assert.True(t, math.IsNaN(ATR(bars, 5)))
}

func TestATRSkipsMissingBars(t *testing.T) {
	bars := createTestBars()
	bars[4].High = market.PricePoint{}
	assert.True(t, Ready(ATR(bars, 8)))
	assert.True(t, math.IsNaN(ATR(bars, 9)))
}

func TestTrueRange(t *testing.T) {
	assert.Equal(t, 10.0, trueRange(110, 100, 104))
	assert.Equal(t, 15.0, trueRange(110, 100, 115))
	assert.Equal(t, 12.0, trueRange(110, 100, 98))
}

func TestRSISeries(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		assert.Empty(t, RSISeries([]float64{1, 2, 3}, 3))
	})

	t.Run("only gains", func(t *testing.T) {
		out := RSISeries([]float64{1, 2, 3, 4, 5, 6}, 3)
		require.Len(t, out, 3)
		for _, v := range out {
			assert.Equal(t, 100.0, v)
		}
	})

	t.Run("wilder smoothing", func(t *testing.T) {
		// changes: +1, -1, +1, -1 ; seed(3): gain 2/3, loss 1/3
		// next: gain (2/3*2+0)/3 = 4/9, loss (1/3*2+1)/3 = 5/9
		out := RSISeries([]float64{10, 11, 10, 11, 10}, 3)
		require.Len(t, out, 2)
		assert.InDelta(t, 100-100/(1+2.0), out[0], 1e-9)
		assert.InDelta(t, 100-100/(1+4.0/5.0), out[1], 1e-9)
	})
}

func TestStochastic(t *testing.T) {
	closes := []float64{5, 6, 7, 8, 9}
	highs := []float64{10, 10, 10, 10, 10}
	lows := []float64{0, 0, 0, 0, 0}

	k, d := Stochastic(closes, highs, lows, 3, 2)
	require.Len(t, k, 2)
	require.Len(t, d, 2)
	assert.InDelta(t, 80.0, k[0], 1e-9)
	assert.InDelta(t, 90.0, k[1], 1e-9)
	assert.InDelta(t, 75.0, d[0], 1e-9)
	assert.InDelta(t, 85.0, d[1], 1e-9)

	k, d = Stochastic(closes[:2], highs[:2], lows[:2], 3, 2)
	assert.Empty(t, k)
	assert.Empty(t, d)
}

func TestStochasticFlatRange(t *testing.T) {
	flat := []float64{5, 5, 5, 5}
	k, _ := Stochastic(flat, flat, flat, 2, 1)
	for _, v := range k {
		assert.Equal(t, 0.0, v)
	}
}

func TestParabolicSAR(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		assert.Empty(t, ParabolicSAR([]float64{1, 2}, []float64{0, 1}, nil, 0.02, 0.2))
	})

	t.Run("uptrend stays below lows", func(t *testing.T) {
		highs := []float64{11, 12, 13, 14, 15, 16}
		lows := []float64{9, 10, 11, 12, 13, 14}
		closes := []float64{10, 11, 12, 13, 14, 15}
		sar := ParabolicSAR(highs, lows, closes, 0.02, 0.2)
		require.Len(t, sar, len(highs))
		for i := range sar {
			assert.LessOrEqual(t, sar[i], lows[i])
		}
	})

	t.Run("flip resets to prior extreme", func(t *testing.T) {
		highs := []float64{11, 12, 13, 14, 15, 9}
		lows := []float64{9, 10, 11, 12, 13, 5}
		closes := []float64{10, 11, 12, 13, 14, 6}
		sar := ParabolicSAR(highs, lows, closes, 0.02, 0.2)
		require.Len(t, sar, 6)
		assert.Equal(t, 15.0, sar[5])
		assert.Greater(t, sar[5], closes[5])
	})
}

func TestOHLCSkipsMissing(t *testing.T) {
	bars := createTestBars()
	bars[2].Close = market.PricePoint{}
	bars[3].Low = market.PricePoint{Bid: 104, Ask: 106}

	c, h, l := OHLC(bars)
	assert.Len(t, c, 9)
	assert.Len(t, h, 9)
	assert.Len(t, l, 9)
	assert.Equal(t, 105.0, l[2])
}

func TestLatestQuote(t *testing.T) {
	_, ok := LatestQuote(nil)
	assert.False(t, ok)

	bars := createTestBars()
	bars[len(bars)-1].Close = market.PricePoint{Bid: 117.5, Ask: 118.5}
	q, ok := LatestQuote(bars)
	require.True(t, ok)
	assert.InDelta(t, 118.0, q.Mid, 1e-9)
	assert.InDelta(t, 1.0, q.Spread, 1e-9)
	assert.True(t, q.HasSpread)
}
