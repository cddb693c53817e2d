package paper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/broker/brokertest"
	"github.com/rustyeddy/scalper/market"
)

type feed struct {
	mu       sync.Mutex
	bid, ask float64
}

func (f *feed) set(bid, ask float64) {
	f.mu.Lock()
	f.bid, f.ask = bid, ask
	f.mu.Unlock()
}

func (f *feed) bars(string, market.Resolution, int) ([]market.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bid == 0 {
		return nil, nil
	}
	p := market.PricePoint{Bid: f.bid, Ask: f.ask}
	return []market.Bar{{Time: time.Now(), Open: p, High: p, Low: p, Close: p}}, nil
}

func newEngine(t *testing.T) (*Engine, *feed) {
	t.Helper()
	fd := &feed{}
	fd.set(18000, 18001)
	data := &brokertest.Fake{
		Instruments: map[string]market.Instrument{
			"DAX": {Epic: "DAX", Name: "Germany 40", ContractSize: 1, PointsPerPip: 1, PipValue: 1, MinDealSize: 0.5},
		},
		BarsFn: fd.bars,
	}
	return NewEngine(data, 500, nil), fd
}

func open(t *testing.T, e *Engine, dir market.Direction, limit, stop float64) broker.Confirmation {
	t.Helper()
	conf, err := e.OpenMarket(context.Background(), broker.OrderRequest{
		Epic: "DAX", Currency: "EUR", Direction: dir, Size: 2, LimitDistance: limit, StopDistance: stop,
	})
	require.NoError(t, err)
	require.True(t, conf.Accepted())
	return conf
}

func TestOpenFillsOnCorrectSide(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t)
	buy := open(t, e, market.Buy, 4, 12)
	sell := open(t, e, market.Sell, 4, 12)
	assert.Equal(t, 18001.0, buy.Level)
	assert.Equal(t, 18000.0, sell.Level)

	ps, err := e.Positions(context.Background())
	require.NoError(t, err)
	assert.Len(t, ps, 2)
}

func TestOpenRejectsZeroSize(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t)
	_, err := e.OpenMarket(context.Background(), broker.OrderRequest{Epic: "DAX", Direction: market.Buy})
	assert.ErrorIs(t, err, broker.ErrRejected)
}

func TestLimitHit(t *testing.T) {
	t.Parallel()

	e, fd := newEngine(t)
	open(t, e, market.Buy, 4, 12)

	fd.set(18005, 18006)
	ps, err := e.Positions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ps)

	fills := e.Fills()
	require.Len(t, fills, 1)
	assert.Equal(t, ReasonLimit, fills[0].Reason)
	assert.InDelta(t, 8.0, fills[0].PnL, 1e-9)
	assert.InDelta(t, 508.0, e.Balance(), 1e-9)
}

func TestStopHitShort(t *testing.T) {
	t.Parallel()

	e, fd := newEngine(t)
	open(t, e, market.Sell, 4, 12)

	fd.set(18011, 18012)
	ps, err := e.Positions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ps)

	fills := e.Fills()
	require.Len(t, fills, 1)
	assert.Equal(t, ReasonStop, fills[0].Reason)
	assert.InDelta(t, -24.0, fills[0].PnL, 1e-9)
}

func TestTrailingStopRatchets(t *testing.T) {
	t.Parallel()

	e, fd := newEngine(t)
	conf := open(t, e, market.Buy, 50, 12)
	ctx := context.Background()

	stop := 18001.1
	require.NoError(t, e.AmendPosition(ctx, conf.DealID, broker.Amendment{
		StopLevel: &stop, Trailing: true, TrailingDistance: 5, TrailingIncrement: 1,
	}))

	fd.set(18010, 18011)
	ps, err := e.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 1)

	fd.set(18008, 18009)
	ps, err = e.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 1)

	fd.set(18005, 18006)
	ps, err = e.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, ps)

	fills := e.Fills()
	require.Len(t, fills, 1)
	assert.Equal(t, ReasonStop, fills[0].Reason)
	assert.InDelta(t, 8.0, fills[0].PnL, 1e-9)
}

func TestAmendValidation(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t)
	ctx := context.Background()
	stop := 1.0

	assert.Error(t, e.AmendPosition(ctx, "x", broker.Amendment{Trailing: true}))
	assert.ErrorIs(t, e.AmendPosition(ctx, "missing", broker.Amendment{StopLevel: &stop}), broker.ErrNotFound)
}

func TestClosePosition(t *testing.T) {
	t.Parallel()

	e, fd := newEngine(t)
	conf := open(t, e, market.Sell, 4, 12)
	ctx := context.Background()

	fd.set(17998, 17999)
	ps, err := e.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 1)

	ref, err := e.ClosePosition(ctx, broker.CloseFor(ps[0]))
	require.NoError(t, err)
	assert.NotEmpty(t, ref)

	fills := e.Fills()
	require.Len(t, fills, 1)
	assert.Equal(t, ReasonClose, fills[0].Reason)
	assert.Equal(t, 17999.0, fills[0].Exit)
	assert.InDelta(t, 2.0, fills[0].PnL, 1e-9)

	_, err = e.ClosePosition(ctx, broker.CloseRequest{DealID: conf.DealID})
	assert.ErrorIs(t, err, ErrTradeNotFound)
}

func TestNoPrice(t *testing.T) {
	t.Parallel()

	e, fd := newEngine(t)
	fd.set(0, 0)
	_, err := e.OpenMarket(context.Background(), broker.OrderRequest{Epic: "DAX", Direction: market.Buy, Size: 1})
	assert.ErrorIs(t, err, ErrNoPrice)
}
