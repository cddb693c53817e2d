package strategies

import (
	"context"

	"github.com/rustyeddy/scalper/indicators"
	"github.com/rustyeddy/scalper/market"
)

func init() {
	Register("moving_average", func(src Bars, p Params) Strategy {
		return &MovingAverage{src: src, Fast: p.MAFast, Slow: p.MASlow, Trend: p.MATrend}
	})
}

// MovingAverage signals on the bar where the fast SMA crosses the slow SMA,
// only in the direction of the trend SMA's slope.
type MovingAverage struct {
	src   Bars
	Fast  int
	Slow  int
	Trend int
}

func (s *MovingAverage) Name() string { return "moving_average" }

func (s *MovingAverage) Direction(ctx context.Context, epic string) (Signal, error) {
	bars, err := s.src.RecentBars(ctx, epic, market.Minute, lookback(s.Trend+s.Slow+2))
	if err != nil {
		return None, err
	}
	return s.evaluate(indicators.Closes(bars)), nil
}

func (s *MovingAverage) evaluate(closes []float64) Signal {
	if len(closes) < s.Trend+s.Slow+1 {
		return None
	}
	prev := closes[:len(closes)-1]
	fastNow, fastPrev := indicators.SMA(closes, s.Fast), indicators.SMA(prev, s.Fast)
	slowNow, slowPrev := indicators.SMA(closes, s.Slow), indicators.SMA(prev, s.Slow)
	if !indicators.Ready(fastNow, fastPrev, slowNow, slowPrev) {
		return None
	}

	return trendGate(
		fastPrev <= slowPrev && fastNow > slowNow,
		fastPrev >= slowPrev && fastNow < slowNow,
		indicators.Slope(closes, s.Trend),
	)
}
