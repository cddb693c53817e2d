package indicators

import (
	"math"

	"github.com/rustyeddy/scalper/market"
)

// ATR calculates the Average True Range in points using Wilder smoothing:
// the first period true ranges are averaged, each later one is folded in
// with (atr*(period-1)+tr)/period. Bars with missing mids are skipped.
func ATR(bars []market.Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return math.NaN()
	}

	trs := make([]float64, 0, len(bars)-1)
	prevClose, havePrev := bars[0].Close.Value()
	for _, b := range bars[1:] {
		high, hok := b.High.Value()
		low, lok := b.Low.Value()
		closeV, cok := b.Close.Value()
		if hok && lok && havePrev {
			trs = append(trs, trueRange(high, low, prevClose))
		}
		prevClose, havePrev = closeV, cok
	}
	if len(trs) < period {
		return math.NaN()
	}

	sum := 0.0
	for _, tr := range trs[:period] {
		sum += tr
	}
	atr := sum / float64(period)

	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr
}

func trueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}
