package strategies

import (
	"context"

	"github.com/rustyeddy/scalper/indicators"
	"github.com/rustyeddy/scalper/market"
)

const psarBars = 150

func init() {
	Register("parabolic_sar", func(src Bars, p Params) Strategy {
		return &ParabolicSAR{src: src, Step: p.PSARStep, Max: p.PSARMax}
	})
}

// ParabolicSAR signals on the bar where the close crosses the SAR.
type ParabolicSAR struct {
	src  Bars
	Step float64
	Max  float64
}

func (s *ParabolicSAR) Name() string { return "parabolic_sar" }

func (s *ParabolicSAR) Direction(ctx context.Context, epic string) (Signal, error) {
	bars, err := s.src.RecentBars(ctx, epic, market.Minute, psarBars)
	if err != nil {
		return None, err
	}
	return s.evaluate(indicators.OHLC(bars)), nil
}

func (s *ParabolicSAR) evaluate(closes, highs, lows []float64) Signal {
	sar := indicators.ParabolicSAR(highs, lows, closes, s.Step, s.Max)
	if len(sar) < 2 {
		return None
	}
	n := len(closes)
	prevAbove := closes[n-2] > sar[n-2]
	nowAbove := closes[n-1] > sar[n-1]
	switch {
	case !prevAbove && nowAbove:
		return Buy
	case prevAbove && !nowAbove:
		return Sell
	}
	return None
}
