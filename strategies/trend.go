package strategies

// minLookback is the smallest window requested for trend-gated variants.
const minLookback = 230

func lookback(n int) int {
	return max(n, minLookback)
}

// trendGate keeps a bullish trigger only on a rising trend and a bearish
// one only on a falling trend.
func trendGate(bull, bear bool, slope int) Signal {
	switch {
	case bull && slope > 0:
		return Buy
	case bear && slope < 0:
		return Sell
	}
	return None
}
