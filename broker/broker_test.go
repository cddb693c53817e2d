package broker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/broker/brokertest"
	"github.com/rustyeddy/scalper/market"
)

func TestConfirmationAccepted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		c    broker.Confirmation
		want bool
	}{
		{"accepted", broker.Confirmation{Status: "ACCEPTED", DealID: "D1"}, true},
		{"opened lower", broker.Confirmation{Status: "opened", DealID: "D1"}, true},
		{"filled", broker.Confirmation{Status: "FILLED", DealID: "D1"}, true},
		{"no deal id", broker.Confirmation{Status: "ACCEPTED"}, false},
		{"rejected", broker.Confirmation{Status: "REJECTED", DealID: "D1"}, false},
		{"empty", broker.Confirmation{}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.c.Accepted())
		})
	}
}

func TestCloseForDefaults(t *testing.T) {
	t.Parallel()

	req := broker.CloseFor(broker.Position{DealID: "D1", Epic: "E", Direction: market.Buy, Size: 1.5})
	assert.Equal(t, "-", req.Expiry)
	assert.Equal(t, "EUR", req.Currency)
	assert.Equal(t, market.Buy, req.Direction)
	assert.Equal(t, 1.5, req.Size)

	req = broker.CloseFor(broker.Position{DealID: "D2", Expiry: "DFB", Currency: "GBP"})
	assert.Equal(t, "DFB", req.Expiry)
	assert.Equal(t, "GBP", req.Currency)
}

func TestFind(t *testing.T) {
	t.Parallel()

	ps := []broker.Position{{DealID: "A"}, {DealID: "B", Level: 2}}
	p, ok := broker.Find(ps, "B")
	assert.True(t, ok)
	assert.Equal(t, 2.0, p.Level)
	_, ok = broker.Find(ps, "C")
	assert.False(t, ok)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unauthorized", &broker.APIError{Status: http.StatusUnauthorized}, true},
		{"rate limited", &broker.APIError{Status: http.StatusTooManyRequests}, true},
		{"server", fmt.Errorf("wrap: %w", &broker.APIError{Status: 503}), true},
		{"bad request", &broker.APIError{Status: http.StatusBadRequest}, false},
		{"rejected", broker.ErrRejected, false},
		{"timeout", timeoutErr{}, true},
		{"eof", io.ErrUnexpectedEOF, true},
		{"deadline", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, broker.IsTransient(tt.err))
		})
	}
}

func TestAPIErrorNotFound(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("details: %w", &broker.APIError{Method: "GET", Path: "/markets/X", Status: 404, Body: "{}"})
	assert.True(t, errors.Is(err, broker.ErrNotFound))
	assert.Contains(t, err.Error(), "GET /markets/X: status 404")
}

func TestSelectIndex(t *testing.T) {
	t.Parallel()

	f := &brokertest.Fake{
		Instruments: map[string]market.Instrument{
			"IX.D.DAX.IFD.IP":  {Epic: "IX.D.DAX.IFD.IP", Name: "Germany 40", Type: "INDICES", ContractSize: 25, MarginRate: 0.05},
			"IX.D.DAX.IFMM.IP": {Epic: "IX.D.DAX.IFMM.IP", Name: "Germany 40 Mini", Type: "INDICES", ContractSize: 1, MarginRate: 0.05},
			"IX.D.DAX.CHEAP":   {Epic: "IX.D.DAX.CHEAP", Name: "Germany 40 Cash", Type: "INDICES", ContractSize: 1, MarginRate: 0.01},
			"SH.D.DAX.IP":      {Epic: "SH.D.DAX.IP", Name: "DAX Share", Type: "SHARES", ContractSize: 0.1},
			"IX.D.FTSE.IP":     {Epic: "IX.D.FTSE.IP", Name: "FTSE 100", Type: "INDICES", ContractSize: 0.5},
		},
		SearchFn: func(term string) ([]broker.MarketSummary, error) {
			switch term {
			case "Germany 40":
				return []broker.MarketSummary{{Epic: "IX.D.DAX.IFD.IP"}, {Epic: "IX.D.DAX.IFMM.IP"}, {Epic: "MISSING"}}, nil
			case "DAX":
				return []broker.MarketSummary{{Epic: "SH.D.DAX.IP"}, {Epic: "IX.D.FTSE.IP"}, {Epic: "IX.D.DAX.CHEAP"}, {Epic: "IX.D.DAX.IFD.IP"}}, nil
			case "GER40":
				return nil, errors.New("boom")
			}
			return nil, nil
		},
	}

	in, err := broker.SelectIndex(context.Background(), f, broker.DefaultSelector(), nil)
	require.NoError(t, err)
	assert.Equal(t, "IX.D.DAX.CHEAP", in.Epic)
}

func TestSelectIndexFallback(t *testing.T) {
	t.Parallel()

	f := &brokertest.Fake{
		Instruments: map[string]market.Instrument{
			broker.DefaultEpic: {Epic: broker.DefaultEpic, Name: "Germany 40", Type: "INDICES"},
		},
	}
	in, err := broker.SelectIndex(context.Background(), f, broker.DefaultSelector(), nil)
	require.NoError(t, err)
	assert.Equal(t, broker.DefaultEpic, in.Epic)

	_, err = broker.SelectIndex(context.Background(), &brokertest.Fake{}, broker.DefaultSelector(), nil)
	assert.ErrorIs(t, err, broker.ErrNotFound)

	_, err = broker.SelectIndex(context.Background(), &brokertest.Fake{}, broker.Selector{Terms: []string{"x"}}, nil)
	assert.Error(t, err)
}
