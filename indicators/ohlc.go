package indicators

import "github.com/rustyeddy/scalper/market"

// OHLC extracts mid closes, highs and lows, skipping bars where any of the
// three is missing so the slices stay aligned.
func OHLC(bars []market.Bar) (closes, highs, lows []float64) {
	for _, b := range bars {
		c, cok := b.Close.Value()
		h, hok := b.High.Value()
		l, lok := b.Low.Value()
		if !cok || !hok || !lok {
			continue
		}
		closes = append(closes, c)
		highs = append(highs, h)
		lows = append(lows, l)
	}
	return closes, highs, lows
}

// Closes returns the mid close of every bar that has one.
func Closes(bars []market.Bar) []float64 {
	out := make([]float64, 0, len(bars))
	for _, b := range bars {
		if c, ok := b.Close.Value(); ok {
			out = append(out, c)
		}
	}
	return out
}

// LatestQuote returns the mid and spread of the last bar's close.
func LatestQuote(bars []market.Bar) (market.Quote, bool) {
	if len(bars) == 0 {
		return market.Quote{}, false
	}
	return market.QuoteOf(bars[len(bars)-1].Close)
}
