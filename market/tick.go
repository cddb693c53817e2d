package market

// Quote is the latest observable price of an instrument, taken from the close
// of the most recent bar.
type Quote struct {
	Bid    float64
	Ask    float64
	Mid    float64
	Spread float64

	// HasSpread is false when the broker only reported a mid price.
	HasSpread bool
}

// QuoteOf builds a Quote from a bar close.
func QuoteOf(p PricePoint) (Quote, bool) {
	mid, ok := p.Value()
	if !ok {
		return Quote{}, false
	}
	q := Quote{Bid: p.Bid, Ask: p.Ask, Mid: mid}
	q.Spread, q.HasSpread = p.Spread()
	return q, true
}

// Fill returns the side of the book a market order in dir executes on.
func (q Quote) Fill(dir Direction) float64 {
	if dir == Buy && q.Ask != 0 {
		return q.Ask
	}
	if dir == Sell && q.Bid != 0 {
		return q.Bid
	}
	return q.Mid
}
