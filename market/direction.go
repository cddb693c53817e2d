package market

import (
	"fmt"
	"strings"
)

// Direction is the side of a deal as the broker spells it.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// ParseDirection accepts BUY/SELL in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

func (d Direction) IsLong() bool { return d == Buy }

// Opposite returns the direction that closes a position opened in d.
func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}

// Move returns the signed point move from entry to price, positive when
// favourable for a position in direction d.
func (d Direction) Move(entry, price float64) float64 {
	if d.IsLong() {
		return price - entry
	}
	return entry - price
}
