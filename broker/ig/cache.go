package ig

import (
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/rustyeddy/scalper/market"
)

// CacheConfig controls how recent bars are reused between polls.
type CacheConfig struct {
	Enabled bool
	// StaleLimit bounds the age of cached bars served while the weekly
	// historical allowance is at or below HistReserve.
	StaleLimit  time.Duration
	HistReserve int
}

// DefaultCacheConfig mirrors the bot's defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Enabled: true, StaleLimit: 300 * time.Second, HistReserve: 2000}
}

type cachedBars struct {
	bars    []market.Bar
	fetched time.Time
}

type priceCache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

func newPriceCache(ttl time.Duration) (*priceCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        1e4,
		MaxCost:            1 << 10,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &priceCache{c: c, ttl: ttl}, nil
}

func priceKey(epic string, res market.Resolution) string {
	return epic + "|" + string(res)
}

func (p *priceCache) get(key string) (cachedBars, bool) {
	v, ok := p.c.Get(key)
	if !ok {
		return cachedBars{}, false
	}
	e, ok := v.(cachedBars)
	return e, ok
}

// set stores e and waits for the write so the next poll sees it.
func (p *priceCache) set(key string, e cachedBars) {
	p.c.SetWithTTL(key, e, 1, p.ttl)
	p.c.Wait()
}

func (p *priceCache) close() { p.c.Close() }

// tail returns the last n bars.
func tail(bars []market.Bar, n int) []market.Bar {
	if n <= 0 || n >= len(bars) {
		return append([]market.Bar(nil), bars...)
	}
	return append([]market.Bar(nil), bars[len(bars)-n:]...)
}
