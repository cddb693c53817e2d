// Package journal persists completed trades and the running balance.
//
// The Ledger owns a small JSON state snapshot (balance, trading day,
// day-start balance) and appends every trade to a CSV log. An optional
// SQLite mirror keeps the same rows queryable for the journal commands.
package journal

import (
	"strconv"
	"time"

	"github.com/rustyeddy/scalper/market"
)

// TradeRecord is one completed trade. Exit and MovePoints are nil when the
// outcome could not be observed.
type TradeRecord struct {
	ID           string
	Time         time.Time
	Epic         string
	Direction    market.Direction
	Size         float64
	Currency     string
	Entry        float64
	Exit         *float64
	MovePoints   *float64
	TPPoints     float64
	SLPoints     float64
	PnL          float64
	BalanceAfter float64
	Notes        string
}

// Journal is a sink for completed trades.
type Journal interface {
	RecordTrade(TradeRecord) error
	Close() error
}

// Float returns a pointer to v, for the nullable record fields.
func Float(v float64) *float64 { return &v }

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func optional(p *float64) string {
	if p == nil {
		return ""
	}
	return f(*p)
}
