package strategies

import (
	"context"

	"github.com/rustyeddy/scalper/indicators"
	"github.com/rustyeddy/scalper/market"
)

func init() {
	Register("stochastic", func(src Bars, p Params) Strategy {
		return &Stochastic{src: src, K: p.StoK, D: p.StoD, Lo: p.StoLo, Hi: p.StoHi, Trend: p.MATrend}
	})
	Register("rsi", func(src Bars, p Params) Strategy {
		return &RSI{src: src, Period: p.RSIPeriod, Lo: p.RSILo, Hi: p.RSIHi, Trend: p.MATrend}
	})
}

// Stochastic signals a %K/%D cross that starts beyond the oversold or
// overbought threshold, in the direction of the trend.
type Stochastic struct {
	src   Bars
	K, D  int
	Lo    float64
	Hi    float64
	Trend int
}

func (s *Stochastic) Name() string { return "stochastic" }

func (s *Stochastic) Direction(ctx context.Context, epic string) (Signal, error) {
	bars, err := s.src.RecentBars(ctx, epic, market.Minute, lookback(s.Trend+s.K+s.D+2))
	if err != nil {
		return None, err
	}
	return s.evaluate(indicators.OHLC(bars)), nil
}

func (s *Stochastic) evaluate(closes, highs, lows []float64) Signal {
	if len(closes) < s.Trend+s.K+s.D {
		return None
	}
	k, d := indicators.Stochastic(closes, highs, lows, s.K, s.D)
	if len(k) < 2 || len(d) < 2 {
		return None
	}
	kPrev, kNow := k[len(k)-2], k[len(k)-1]
	dPrev, dNow := d[len(d)-2], d[len(d)-1]

	return trendGate(
		kPrev <= dPrev && kNow > dNow && kPrev < s.Lo,
		kPrev >= dPrev && kNow < dNow && kPrev > s.Hi,
		indicators.Slope(closes, s.Trend),
	)
}

// RSI signals a rebound up through Lo or a roll-off down through Hi, in
// the direction of the trend.
type RSI struct {
	src    Bars
	Period int
	Lo     float64
	Hi     float64
	Trend  int
}

func (s *RSI) Name() string { return "rsi" }

func (s *RSI) Direction(ctx context.Context, epic string) (Signal, error) {
	bars, err := s.src.RecentBars(ctx, epic, market.Minute, lookback(s.Trend+s.Period+2))
	if err != nil {
		return None, err
	}
	return s.evaluate(indicators.Closes(bars)), nil
}

func (s *RSI) evaluate(closes []float64) Signal {
	if len(closes) < s.Trend+s.Period+1 {
		return None
	}
	r := indicators.RSISeries(closes, s.Period)
	if len(r) < 2 {
		return None
	}
	prev, now := r[len(r)-2], r[len(r)-1]

	return trendGate(
		prev <= s.Lo && now > s.Lo,
		prev >= s.Hi && now < s.Hi,
		indicators.Slope(closes, s.Trend),
	)
}
