package strategies

import (
	"context"

	"github.com/rustyeddy/scalper/indicators"
	"github.com/rustyeddy/scalper/market"
)

func init() {
	Register("micro_momentum", func(src Bars, _ Params) Strategy {
		return &Momentum{src: src}
	})
}

// Momentum compares the last two one-minute closes: Buy when the latest is
// not below the previous, otherwise Sell.
type Momentum struct {
	src Bars
}

func (m *Momentum) Name() string { return "micro_momentum" }

func (m *Momentum) Direction(ctx context.Context, epic string) (Signal, error) {
	bars, err := m.src.RecentBars(ctx, epic, market.Minute, 3)
	if err != nil {
		return None, err
	}
	closes := indicators.Closes(bars)
	if len(closes) < 2 {
		return None, nil
	}
	if closes[len(closes)-1] >= closes[len(closes)-2] {
		return Buy, nil
	}
	return Sell, nil
}
