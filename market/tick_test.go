package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPricePointValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    PricePoint
		want float64
		ok   bool
	}{
		{"mid given", PricePoint{Mid: 101.5, Bid: 100, Ask: 102}, 101.5, true},
		{"derived", PricePoint{Bid: 1.0, Ask: 3.0}, 2.0, true},
		{"fractional", PricePoint{Bid: 1.1, Ask: 1.3}, 1.2, true},
		{"bid only", PricePoint{Bid: 100}, 0, false},
		{"empty", PricePoint{}, 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tt.p.Value()
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestQuoteOf(t *testing.T) {
	t.Parallel()

	q, ok := QuoteOf(PricePoint{Bid: 18000.2, Ask: 18001.4})
	assert.True(t, ok)
	assert.True(t, q.HasSpread)
	assert.InDelta(t, 1.2, q.Spread, 1e-9)
	assert.InDelta(t, 18000.8, q.Mid, 1e-9)
	assert.Equal(t, 18001.4, q.Fill(Buy))
	assert.Equal(t, 18000.2, q.Fill(Sell))

	q, ok = QuoteOf(PricePoint{Mid: 50})
	assert.True(t, ok)
	assert.False(t, q.HasSpread)
	assert.Equal(t, 50.0, q.Fill(Buy))

	_, ok = QuoteOf(PricePoint{})
	assert.False(t, ok)
}

func TestDirection(t *testing.T) {
	t.Parallel()

	d, err := ParseDirection(" buy ")
	assert.NoError(t, err)
	assert.Equal(t, Buy, d)
	assert.Equal(t, Sell, d.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
	assert.InDelta(t, 5.0, Buy.Move(100, 105), 1e-9)
	assert.InDelta(t, -5.0, Sell.Move(100, 105), 1e-9)

	_, err = ParseDirection("hold")
	assert.Error(t, err)
}

func TestResolutionPeriod(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Second, Second.Period())
	assert.Equal(t, time.Minute, Minute.Period())
	assert.Equal(t, 5*time.Minute, Minute5.Period())
	assert.Equal(t, 4*time.Hour, Resolution("HOUR_4").Period())
	assert.Equal(t, 24*time.Hour, Day.Period())
	assert.Equal(t, time.Minute, Resolution("MINUTE_x").Period())
	assert.Equal(t, time.Minute, Resolution("WEEK").Period())
}

func TestInstrumentMarginExposure(t *testing.T) {
	t.Parallel()

	in := Instrument{Price: 18000, ContractSize: 1, MarginRate: 0.05}
	assert.InDelta(t, 9000.0, in.Exposure(0.5), 1e-9)
	assert.InDelta(t, 450.0, in.Margin(0.5), 1e-9)
}
