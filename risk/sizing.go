package risk

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/scalper/market"
)

// capSlack absorbs float noise when comparing an estimate against a cap.
const capSlack = 1e-9

// SizingParams are the budget inputs of one sizing pass.
type SizingParams struct {
	TargetProfit      float64 // account currency per trade
	WorkingCapital    float64
	Leverage          float64 // exposure cap = capital * leverage
	MarginUtilization float64 // margin cap = capital * utilization
	StopMultiplier    float64 // stop = take-profit * multiplier, floored at 1
}

// Sizing is the result of ComputeSize. Size and distances are rounded to
// two decimals; everything else is informational.
type Sizing struct {
	Size       float64
	TakeProfit float64 // points
	StopLoss   float64 // points
	Currency   string
	Feasible   bool

	Margin      float64
	MarginCap   float64
	Exposure    float64
	ExposureCap float64
}

// ComputeSize picks the largest affordable size and a take-profit distance
// worth roughly TargetProfit at that size. When even the broker minimum
// size would breach the margin or exposure cap the result is infeasible
// with zero size and distances.
func ComputeSize(in market.Instrument, p SizingParams) Sizing {
	s := Sizing{
		Currency:    in.Currency,
		ExposureCap: math.Max(0, p.WorkingCapital*p.Leverage),
		MarginCap:   math.Max(0, p.WorkingCapital*p.MarginUtilization),
	}
	if in.Price <= 0 || in.ContractSize <= 0 || in.MinDealSize <= 0 {
		return s
	}

	if in.Margin(in.MinDealSize) > s.MarginCap+capSlack ||
		in.Exposure(in.MinDealSize) > s.ExposureCap+capSlack {
		s.Margin = in.Margin(in.MinDealSize)
		s.Exposure = in.Exposure(in.MinDealSize)
		return s
	}

	maxSize := in.MaxDealSize
	if maxSize <= 0 {
		maxSize = math.Inf(1)
	}
	size := math.Min(s.ExposureCap/(in.Price*in.ContractSize), maxSize)
	if den := in.Price * in.ContractSize * in.MarginRate; den > 0 {
		size = math.Min(size, s.MarginCap/den)
	}
	size = math.Max(size, in.MinDealSize)

	pipValue := in.PipValue
	if pipValue <= 0 {
		pipValue = 1
	}
	pips := math.Max(1e-9, p.TargetProfit/(pipValue*size))
	tp := math.Max(in.MinStopDistance, pips*pointsPerPip(in))
	sl := math.Max(in.MinStopDistance, tp*math.Max(1, p.StopMultiplier))

	s.Size = math.Max(roundDown2(size), in.MinDealSize)
	s.TakeProfit = roundUp2(tp)
	s.StopLoss = roundUp2(sl)
	s.Margin = in.Margin(s.Size)
	s.Exposure = in.Exposure(s.Size)
	s.Feasible = true
	return s
}

// PnL converts a signed point move into account currency for size.
func PnL(movePoints float64, in market.Instrument, size float64) float64 {
	pipValue := in.PipValue
	if pipValue <= 0 {
		pipValue = 1
	}
	pnl := movePoints / pointsPerPip(in) * pipValue * size
	return decimal.NewFromFloat(pnl).Round(2).InexactFloat64()
}

func pointsPerPip(in market.Instrument) float64 {
	if in.PointsPerPip <= 0 {
		return 1
	}
	return in.PointsPerPip
}

// Float noise (1.0000000000000002) is squashed before the directional
// rounding so it does not add a whole cent.
func roundUp2(x float64) float64 {
	return decimal.NewFromFloat(x).Round(8).RoundCeil(2).InexactFloat64()
}

func roundDown2(x float64) float64 {
	return decimal.NewFromFloat(x).Round(8).RoundFloor(2).InexactFloat64()
}
