package broker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/rustyeddy/scalper/market"
)

// DefaultEpic is used when no search hit qualifies.
const DefaultEpic = "IX.D.DAX.IFMM.IP"

// Selector describes which index instrument to trade.
type Selector struct {
	Terms       []string // search terms, tried in order
	Keywords    []string // lower-case name fragments, any must match
	Types       []string // accepted instrument types
	DefaultEpic string
}

// DefaultSelector picks the Germany 40 index.
func DefaultSelector() Selector {
	return Selector{
		Terms:       []string{"Germany 40", "Germany40", "DAX", "GER40", "DE40"},
		Keywords:    []string{"germany 40", "dax", "ger40", "de40"},
		Types:       []string{"INDICES", "INDEX"},
		DefaultEpic: DefaultEpic,
	}
}

// SelectIndex searches every term, keeps index instruments whose name matches
// a keyword and returns the one with the smallest contract size, then the
// smallest margin rate. With no candidates it falls back to the default epic.
func SelectIndex(ctx context.Context, b Broker, s Selector, log *zap.Logger) (market.Instrument, error) {
	if log == nil {
		log = zap.NewNop()
	}

	seen := map[string]bool{}
	var candidates []market.Instrument

	for _, term := range s.Terms {
		if err := ctx.Err(); err != nil {
			return market.Instrument{}, err
		}
		hits, err := b.SearchMarkets(ctx, term)
		if err != nil {
			log.Error("market search failed", zap.String("term", term), zap.Error(err))
			continue
		}
		for _, h := range hits {
			if h.Epic == "" || seen[h.Epic] {
				continue
			}
			seen[h.Epic] = true

			in, err := b.Instrument(ctx, h.Epic)
			if err != nil {
				log.Debug("skipping epic", zap.String("epic", h.Epic), zap.Error(err))
				continue
			}
			if !s.matches(in, h) {
				continue
			}
			candidates = append(candidates, in)
		}
	}

	if len(candidates) == 0 {
		if s.DefaultEpic == "" {
			return market.Instrument{}, fmt.Errorf("select index: no matching instrument")
		}
		log.Warn("no index matched, using default epic", zap.String("epic", s.DefaultEpic))
		in, err := b.Instrument(ctx, s.DefaultEpic)
		if err != nil {
			return market.Instrument{}, fmt.Errorf("select index: default epic %s: %w", s.DefaultEpic, err)
		}
		return in, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ContractSize != candidates[j].ContractSize {
			return candidates[i].ContractSize < candidates[j].ContractSize
		}
		return candidates[i].MarginRate < candidates[j].MarginRate
	})
	best := candidates[0]
	log.Info("selected epic",
		zap.String("epic", best.Epic),
		zap.String("name", best.Name),
		zap.Float64("contract_size", best.ContractSize),
	)
	return best, nil
}

func (s Selector) matches(in market.Instrument, h MarketSummary) bool {
	typ := in.Type
	if typ == "" {
		typ = h.Type
	}
	okType := false
	for _, t := range s.Types {
		if strings.EqualFold(typ, t) {
			okType = true
			break
		}
	}
	if !okType {
		return false
	}

	name := in.Name
	if name == "" {
		name = h.Name
	}
	name = strings.ToLower(name)
	for _, k := range s.Keywords {
		if strings.Contains(name, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
