package paper

import "github.com/rustyeddy/scalper/market"

// mark ratchets a trailing stop towards the price and reports whether the
// stop or limit was reached, with the price the position exits at.
func (p *position) mark(q market.Quote) (string, float64) {
	px := q.Fill(p.Direction.Opposite())

	if p.trailing && p.stop != nil {
		candidate := px - sign(p.Direction)*p.trailDist
		if sign(p.Direction)*(candidate-*p.stop) >= p.trailStep {
			*p.stop = candidate
		}
	}

	switch {
	case p.hitStop(px):
		return ReasonStop, px
	case p.hitLimit(px):
		return ReasonLimit, px
	}
	return "", 0
}

func (p *position) hitStop(px float64) bool {
	if p.stop == nil {
		return false
	}
	if p.Direction.IsLong() {
		return px <= *p.stop
	}
	return px >= *p.stop
}

func (p *position) hitLimit(px float64) bool {
	if p.limit == nil {
		return false
	}
	if p.Direction.IsLong() {
		return px >= *p.limit
	}
	return px <= *p.limit
}
