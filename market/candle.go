package market

import "time"

// PricePoint is one side-pair of a bar field (open, high, low or close) as
// the broker reports it. Zero means "not reported".
type PricePoint struct {
	Bid float64
	Ask float64
	Mid float64
}

// Value returns the mid price, deriving it from bid/ask when the broker did
// not report one directly.
func (p PricePoint) Value() (float64, bool) {
	if p.Mid != 0 {
		return p.Mid, true
	}
	if p.Bid != 0 && p.Ask != 0 {
		return (p.Bid + p.Ask) / 2, true
	}
	return 0, false
}

// Spread returns ask - bid when both sides are present.
func (p PricePoint) Spread() (float64, bool) {
	if p.Bid == 0 || p.Ask == 0 {
		return 0, false
	}
	return p.Ask - p.Bid, true
}

// Bar represents an OHLC bar with bid/ask detail.
type Bar struct {
	Time   time.Time
	Open   PricePoint
	High   PricePoint
	Low    PricePoint
	Close  PricePoint
	Volume float64
}

// MidBar builds a bar whose fields carry mid prices only.
func MidBar(t time.Time, o, h, l, c float64) Bar {
	return Bar{
		Time:  t,
		Open:  PricePoint{Mid: o},
		High:  PricePoint{Mid: h},
		Low:   PricePoint{Mid: l},
		Close: PricePoint{Mid: c},
	}
}
