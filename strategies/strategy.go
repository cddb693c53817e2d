// Package strategies holds the entry-signal variants and the registry that
// maps a configured name to one of them.
package strategies

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rustyeddy/scalper/market"
)

// Signal is the output of a strategy for one evaluation.
type Signal int

const (
	None Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return "NONE"
}

// Direction converts a Buy or Sell signal to a deal direction.
func (s Signal) Direction() (market.Direction, bool) {
	switch s {
	case Buy:
		return market.Buy, true
	case Sell:
		return market.Sell, true
	}
	return "", false
}

// Bars is the market-data access a strategy needs.
type Bars interface {
	RecentBars(ctx context.Context, epic string, res market.Resolution, n int) ([]market.Bar, error)
}

// Strategy decides the direction of the next entry. Insufficient data is
// reported as None, never as a guessed direction.
type Strategy interface {
	Name() string
	Direction(ctx context.Context, epic string) (Signal, error)
}

// Params carries the tunables of every variant; each variant reads only
// the fields it needs.
type Params struct {
	MAFast  int
	MASlow  int
	MATrend int

	StoK  int
	StoD  int
	StoLo float64
	StoHi float64

	RSIPeriod int
	RSILo     float64
	RSIHi     float64

	PSARStep float64
	PSARMax  float64
}

// DefaultParams mirrors the configuration defaults.
func DefaultParams() Params {
	return Params{
		MAFast: 5, MASlow: 20, MATrend: 200,
		StoK: 14, StoD: 3, StoLo: 20, StoHi: 80,
		RSIPeriod: 14, RSILo: 30, RSIHi: 70,
		PSARStep: 0.02, PSARMax: 0.2,
	}
}

// Factory builds a strategy bound to a bar source.
type Factory func(src Bars, p Params) Strategy

var ErrUnknownStrategy = errors.New("unknown strategy")

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register makes a variant available under name. Registering the same
// name twice replaces the earlier factory.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[normalize(name)] = f
}

// New builds the named strategy. Names are case-insensitive and accept
// either '-' or '_' as separator.
func New(name string, src Bars, p Params) (Strategy, error) {
	mu.RLock()
	f, ok := registry[normalize(name)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownStrategy, name, strings.Join(Names(), ", "))
	}
	return f(src, p), nil
}

// Names lists the registered variants in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}
