// Package broker defines the dealing capability the bot trades through and
// the request and response values that cross it.
package broker

import (
	"context"
	"strings"

	"github.com/rustyeddy/scalper/market"
)

// Broker is a REST dealing account. Every call may block on the network.
type Broker interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context) error

	SearchMarkets(ctx context.Context, term string) ([]MarketSummary, error)
	Instrument(ctx context.Context, epic string) (market.Instrument, error)
	RecentBars(ctx context.Context, epic string, res market.Resolution, n int) ([]market.Bar, error)

	OpenMarket(ctx context.Context, req OrderRequest) (Confirmation, error)
	AmendPosition(ctx context.Context, dealID string, a Amendment) error
	Positions(ctx context.Context) ([]Position, error)
	ClosePosition(ctx context.Context, req CloseRequest) (string, error)
}

// MarketSummary is one search hit.
type MarketSummary struct {
	Epic   string
	Name   string
	Type   string
	Expiry string
	Bid    float64
	Offer  float64
}

// OrderRequest opens a market position with a limit and an optional stop,
// both given as distances in points from the fill.
type OrderRequest struct {
	Epic          string
	Expiry        string
	Currency      string
	Direction     market.Direction
	Size          float64
	LimitDistance float64
	StopDistance  float64 // 0 means no stop
}

// Confirmation is the broker's verdict on a submitted deal.
type Confirmation struct {
	DealRef string
	DealID  string
	Status  string
	Reason  string
	Level   float64
}

// Accepted reports whether the deal was filled and can be managed.
func (c Confirmation) Accepted() bool {
	if c.DealID == "" {
		return false
	}
	switch strings.ToUpper(c.Status) {
	case "ACCEPTED", "OPENED", "FILLED":
		return true
	}
	return false
}

// Amendment changes the protective orders of an open position. A trailing
// amendment needs StopLevel, TrailingDistance and TrailingIncrement.
type Amendment struct {
	LimitLevel        *float64
	StopLevel         *float64
	Trailing          bool
	TrailingDistance  float64
	TrailingIncrement float64
}

// Position is an open position as the broker lists it.
type Position struct {
	DealID    string
	Epic      string
	Name      string
	Expiry    string
	Currency  string
	Direction market.Direction
	Size      float64
	Level     float64
	Bid       float64
	Offer     float64
}

// CloseRequest closes a position at market. Direction is the side of the
// open position, not of the closing deal.
type CloseRequest struct {
	DealID    string
	Epic      string
	Expiry    string
	Currency  string
	Direction market.Direction
	Size      float64
}

// CloseFor builds the request that flattens p.
func CloseFor(p Position) CloseRequest {
	req := CloseRequest{
		DealID:    p.DealID,
		Epic:      p.Epic,
		Expiry:    p.Expiry,
		Currency:  p.Currency,
		Direction: p.Direction,
		Size:      p.Size,
	}
	if req.Expiry == "" {
		req.Expiry = "-"
	}
	if req.Currency == "" {
		req.Currency = "EUR"
	}
	return req
}

// Find returns the position with dealID.
func Find(ps []Position, dealID string) (Position, bool) {
	for _, p := range ps {
		if p.DealID == dealID {
			return p, true
		}
	}
	return Position{}, false
}
