package ig

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/market"
)

// number accepts JSON numbers, numeric strings and null. IG sends several
// instrument fields ("contractSize", "valueOfOnePip") as strings.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = number(f)
	return nil
}

type ruleValue struct {
	Unit  string `json:"unit"`
	Value number `json:"value"`
}

type currency struct {
	Code      string `json:"code"`
	IsDefault bool   `json:"isDefault"`
}

type marginBand struct {
	Min    number `json:"min"`
	Max    number `json:"max"`
	Margin number `json:"margin"`
}

type marketDetails struct {
	Instrument struct {
		Epic               string       `json:"epic"`
		Name               string       `json:"name"`
		Type               string       `json:"type"`
		Expiry             string       `json:"expiry"`
		ContractSize       number       `json:"contractSize"`
		OnePipMeans        string       `json:"onePipMeans"`
		ValueOfOnePip      number       `json:"valueOfOnePip"`
		Currencies         []currency   `json:"currencies"`
		MarginDepositBands []marginBand `json:"marginDepositBands"`
		MarginFactor       number       `json:"marginFactor"`
	} `json:"instrument"`
	DealingRules struct {
		MinNormalStopOrLimitDistance ruleValue `json:"minNormalStopOrLimitDistance"`
		MinDealSize                  ruleValue `json:"minDealSize"`
		MaxDealSize                  ruleValue `json:"maxDealSize"`
	} `json:"dealingRules"`
	Snapshot struct {
		Bid   number `json:"bid"`
		Offer number `json:"offer"`
		Mid   number `json:"mid"`
	} `json:"snapshot"`
}

// Fallbacks for fields a market details response leaves out.
const (
	defaultMinStop    = 0.1
	defaultMinSize    = 0.1
	defaultMaxSize    = 1e9
	defaultPrice      = 20000.0
	defaultMarginRate = 0.05
	defaultCurrency   = "EUR"
)

func or(v number, def float64) float64 {
	if v == 0 {
		return def
	}
	return float64(v)
}

func (d marketDetails) instrument(epic string) market.Instrument {
	in := d.Instrument
	out := market.Instrument{
		Epic:            in.Epic,
		Name:            in.Name,
		Type:            in.Type,
		Expiry:          in.Expiry,
		Currency:        defaultCurrency,
		MinDealSize:     or(d.DealingRules.MinDealSize.Value, defaultMinSize),
		MaxDealSize:     or(d.DealingRules.MaxDealSize.Value, defaultMaxSize),
		MinStopDistance: or(d.DealingRules.MinNormalStopOrLimitDistance.Value, defaultMinStop),
		ContractSize:    or(in.ContractSize, 1),
		MarginRate:      d.marginRate(),
		PointsPerPip:    pointsPerPip(in.OnePipMeans),
		PipValue:        or(in.ValueOfOnePip, 1),
		Price:           or(d.Snapshot.Offer, or(d.Snapshot.Bid, or(d.Snapshot.Mid, defaultPrice))),
	}
	if out.Epic == "" {
		out.Epic = epic
	}
	for _, c := range in.Currencies {
		if c.IsDefault && c.Code != "" {
			out.Currency = c.Code
			break
		}
	}
	return out
}

// marginRate prefers the first deposit band, then the margin factor, which
// IG reports either as a percentage or as a fraction.
func (d marketDetails) marginRate() float64 {
	if bands := d.Instrument.MarginDepositBands; len(bands) > 0 && bands[0].Margin > 0 {
		return float64(bands[0].Margin) / 100
	}
	mf := float64(d.Instrument.MarginFactor)
	switch {
	case mf > 1:
		return mf / 100
	case mf > 0:
		return mf
	}
	return defaultMarginRate
}

// pointsPerPip reads the leading number of "onePipMeans", e.g. "1 Index Point".
func pointsPerPip(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 1
	}
	f, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || f <= 0 {
		return 1
	}
	return f
}

type searchResponse struct {
	Markets []struct {
		Epic           string `json:"epic"`
		InstrumentName string `json:"instrumentName"`
		InstrumentType string `json:"instrumentType"`
		Expiry         string `json:"expiry"`
		Bid            number `json:"bid"`
		Offer          number `json:"offer"`
	} `json:"markets"`
}

func (r searchResponse) summaries() []broker.MarketSummary {
	out := make([]broker.MarketSummary, 0, len(r.Markets))
	for _, m := range r.Markets {
		out = append(out, broker.MarketSummary{
			Epic:   m.Epic,
			Name:   m.InstrumentName,
			Type:   m.InstrumentType,
			Expiry: m.Expiry,
			Bid:    float64(m.Bid),
			Offer:  float64(m.Offer),
		})
	}
	return out
}

type pricePoint struct {
	Bid number `json:"bid"`
	Ask number `json:"ask"`
	Mid number `json:"mid"`
}

func (p pricePoint) point() market.PricePoint {
	return market.PricePoint{Bid: float64(p.Bid), Ask: float64(p.Ask), Mid: float64(p.Mid)}
}

type apiBar struct {
	SnapshotTime    string     `json:"snapshotTime"`
	SnapshotTimeUTC string     `json:"snapshotTimeUTC"`
	OpenPrice       pricePoint `json:"openPrice"`
	HighPrice       pricePoint `json:"highPrice"`
	LowPrice        pricePoint `json:"lowPrice"`
	ClosePrice      pricePoint `json:"closePrice"`
	Volume          number     `json:"lastTradedVolume"`
}

type pricesResponse struct {
	Prices []apiBar `json:"prices"`
}

var barTimeLayouts = []string{"2006-01-02T15:04:05", "2006/01/02 15:04:05", time.RFC3339}

func (b apiBar) time() time.Time {
	for _, s := range []string{b.SnapshotTimeUTC, b.SnapshotTime} {
		for _, layout := range barTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

func (r pricesResponse) bars() []market.Bar {
	out := make([]market.Bar, 0, len(r.Prices))
	for _, p := range r.Prices {
		out = append(out, market.Bar{
			Time:   p.time(),
			Open:   p.OpenPrice.point(),
			High:   p.HighPrice.point(),
			Low:    p.LowPrice.point(),
			Close:  p.ClosePrice.point(),
			Volume: float64(p.Volume),
		})
	}
	return out
}

type dealReference struct {
	DealReference string `json:"dealReference"`
}

type confirmResponse struct {
	DealReference string `json:"dealReference"`
	DealID        string `json:"dealId"`
	DealStatus    string `json:"dealStatus"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
	Level         number `json:"level"`
}

func (c confirmResponse) confirmation() broker.Confirmation {
	status := c.DealStatus
	if status == "" {
		status = c.Status
	}
	return broker.Confirmation{
		DealRef: c.DealReference,
		DealID:  c.DealID,
		Status:  strings.ToUpper(status),
		Reason:  c.Reason,
		Level:   float64(c.Level),
	}
}

type positionsResponse struct {
	Positions []struct {
		Position struct {
			DealID    string `json:"dealId"`
			Direction string `json:"direction"`
			Size      number `json:"size"`
			Level     number `json:"level"`
			Currency  string `json:"currency"`
			Expiry    string `json:"expiry"`
			Epic      string `json:"epic"`
		} `json:"position"`
		Market struct {
			Epic           string `json:"epic"`
			Expiry         string `json:"expiry"`
			InstrumentName string `json:"instrumentName"`
			Bid            number `json:"bid"`
			Offer          number `json:"offer"`
		} `json:"market"`
	} `json:"positions"`
}

func (r positionsResponse) positions() []broker.Position {
	out := make([]broker.Position, 0, len(r.Positions))
	for _, p := range r.Positions {
		pos, mkt := p.Position, p.Market
		dir, err := market.ParseDirection(pos.Direction)
		if err != nil || pos.DealID == "" {
			continue
		}
		bp := broker.Position{
			DealID:    pos.DealID,
			Epic:      pos.Epic,
			Name:      mkt.InstrumentName,
			Expiry:    pos.Expiry,
			Currency:  pos.Currency,
			Direction: dir,
			Size:      float64(pos.Size),
			Level:     float64(pos.Level),
			Bid:       float64(mkt.Bid),
			Offer:     float64(mkt.Offer),
		}
		if bp.Epic == "" {
			bp.Epic = mkt.Epic
		}
		if bp.Expiry == "" {
			bp.Expiry = mkt.Expiry
		}
		out = append(out, bp)
	}
	return out
}

type sessionDetails struct {
	CurrentAccountID string `json:"currentAccountId"`
}

type accountsResponse struct {
	Accounts []struct {
		AccountID   string `json:"accountId"`
		AccountType string `json:"accountType"`
	} `json:"accounts"`
}

type apiErrorBody struct {
	ErrorCode string `json:"errorCode"`
}
