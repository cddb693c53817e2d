package trade

import "github.com/rustyeddy/scalper/market"

// State is the lifecycle stage of a managed trade.
type State int

const (
	OpenUnmanaged State = iota
	OpenTrailing
	Closed
)

func (s State) String() string {
	switch s {
	case OpenUnmanaged:
		return "OPEN_UNMANAGED"
	case OpenTrailing:
		return "OPEN_TRAILING"
	case Closed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// ExitReason says why a trade reached Closed.
type ExitReason string

const (
	ExitBrokerClosed ExitReason = "BROKER_CLOSED"
	ExitInvalidated  ExitReason = "EMA_INVALIDATION"
	ExitDeteriorated ExitReason = "VOL_SPREAD_EXIT"
	ExitCancelled    ExitReason = "CANCELLED"
)

// OpenTrade is a confirmed position handed to the manager.
type OpenTrade struct {
	DealID     string
	Epic       string
	Currency   string
	Expiry     string
	Direction  market.Direction
	Size       float64
	Entry      float64
	TakeProfit float64 // points
}

// Outcome is the result of a managed trade. Move and Exit are nil when the
// result could not be observed.
type Outcome struct {
	Reason ExitReason
	Move   *float64
	Exit   *float64
}

// Determinate reports whether the point move is known.
func (o Outcome) Determinate() bool { return o.Move != nil }

func observed(reason ExitReason, move, exit float64) Outcome {
	return Outcome{Reason: reason, Move: &move, Exit: &exit}
}
