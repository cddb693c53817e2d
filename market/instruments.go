// market/instruments.go
package market

// Instrument is a snapshot of the dealing rules and reference price of one
// epic. A refresh produces a new value; snapshots are never edited in place.
type Instrument struct {
	Epic     string
	Name     string
	Type     string
	Expiry   string
	Currency string

	MinDealSize     float64
	MaxDealSize     float64
	MinStopDistance float64 // points
	ContractSize    float64
	MarginRate      float64 // fraction, 0.05 == 5%

	// PointsPerPip converts a point move into pips ("onePipMeans").
	PointsPerPip float64
	// PipValue is the account-currency value of one pip at size 1.
	PipValue float64

	// Price is the reference price used for margin and exposure estimates.
	Price float64
}

// Margin estimates the deposit required to hold size.
func (in Instrument) Margin(size float64) float64 {
	return in.Exposure(size) * in.MarginRate
}

// Exposure estimates the notional value of size.
func (in Instrument) Exposure(size float64) float64 {
	return in.Price * size * in.ContractSize
}
