// Package quota keeps rolling counts of broker API calls and historical
// price datapoints so the bot can stay inside the dealing allowance.
package quota

import (
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Default allowances, kept below the broker's published limits.
const (
	DefaultTradePerMin    = 35
	DefaultDataPerMin     = 120
	DefaultHistPointsWeek = 10000
)

// Bucket names a class of API call.
type Bucket string

const (
	Trade Bucket = "trade"
	Data  Bucket = "data"
	Auth  Bucket = "auth"
	Other Bucket = "other"
)

var (
	tradePat = regexp.MustCompile(`(?i)/positions/otc|/workingorders`)
	dataPat  = regexp.MustCompile(`(?i)/prices/|/markets/|/positions\b|/clientsentiment`)
	authPat  = regexp.MustCompile(`(?i)/session\b|/session/refresh-token\b`)
)

var rateHeaders = []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}

const (
	window = time.Minute
	week   = 7 * 24 * time.Hour
)

// BucketFor classifies a request by method and URL.
func BucketFor(method, url string) Bucket {
	m := strings.ToUpper(method)
	if tradePat.MatchString(url) && (m == http.MethodPost || m == http.MethodPut || m == http.MethodDelete) {
		return Trade
	}
	if authPat.MatchString(url) {
		return Auth
	}
	if dataPat.MatchString(url) || m == http.MethodGet {
		return Data
	}
	return Other
}

// Limits are the per-minute and weekly allowances the snapshot reports against.
type Limits struct {
	TradePerMin    int
	DataPerMin     int
	HistPointsWeek int
}

// DefaultLimits returns the conservative demo-account allowances.
func DefaultLimits() Limits {
	return Limits{
		TradePerMin:    DefaultTradePerMin,
		DataPerMin:     DefaultDataPerMin,
		HistPointsWeek: DefaultHistPointsWeek,
	}
}

type stamp struct {
	at time.Time
	n  int
}

// Tracker is safe for concurrent use.
type Tracker struct {
	lim Limits
	now func() time.Time

	mu      sync.Mutex
	calls   map[Bucket][]time.Time
	points  []stamp
	headers map[string]string
}

// NewTracker returns a tracker reporting against lim.
func NewTracker(lim Limits) *Tracker {
	return &Tracker{
		lim:     lim,
		now:     time.Now,
		calls:   make(map[Bucket][]time.Time),
		headers: make(map[string]string),
	}
}

// Limits returns the configured allowances.
func (t *Tracker) Limits() Limits { return t.lim }

// RecordCall counts one request and remembers any X-RateLimit-* response
// headers. It returns the bucket the call was counted in.
func (t *Tracker) RecordCall(method, url string, h http.Header) Bucket {
	b := BucketFor(method, url)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls[b] = append(trimCalls(t.calls[b], now), now)
	for _, k := range rateHeaders {
		if v := h.Get(k); v != "" {
			t.headers[k] = v
		}
	}
	return b
}

// RecordHistPoints counts n historical datapoints against the weekly allowance.
func (t *Tracker) RecordHistPoints(n int) {
	if n <= 0 {
		return
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.points = append(trimPoints(t.points, now), stamp{at: now, n: n})
}

// HistRemaining returns the unused weekly datapoint allowance.
func (t *Tracker) HistRemaining() int {
	return t.Snapshot().Hist.Remaining
}

func trimCalls(s []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-window)
	i := 0
	for i < len(s) && s[i].Before(cutoff) {
		i++
	}
	return s[i:]
}

func trimPoints(s []stamp, now time.Time) []stamp {
	cutoff := now.Add(-week)
	i := 0
	for i < len(s) && s[i].at.Before(cutoff) {
		i++
	}
	return s[i:]
}

// Usage is the state of one rate-limited bucket.
type Usage struct {
	Used      int `json:"used" yaml:"used"`
	Limit     int `json:"limit" yaml:"limit"`
	Remaining int `json:"remaining" yaml:"remaining"`
	ResetSec  int `json:"reset_s" yaml:"reset_s"`
}

// Snapshot is a read-only copy of the tracker state.
type Snapshot struct {
	Trade   Usage             `json:"trade" yaml:"trade"`
	Data    Usage             `json:"data" yaml:"data"`
	Auth    Usage             `json:"auth" yaml:"auth"`
	Other   Usage             `json:"other" yaml:"other"`
	Hist    Usage             `json:"hist" yaml:"hist"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Snapshot reports usage over the last minute and the last seven days.
func (t *Tracker) Snapshot() Snapshot {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for b, s := range t.calls {
		t.calls[b] = trimCalls(s, now)
	}
	t.points = trimPoints(t.points, now)

	histUsed := 0
	for _, p := range t.points {
		histUsed += p.n
	}
	headers := make(map[string]string, len(t.headers))
	for k, v := range t.headers {
		headers[k] = v
	}

	return Snapshot{
		Trade:   t.rated(Trade, t.lim.TradePerMin, now),
		Data:    t.rated(Data, t.lim.DataPerMin, now),
		Auth:    Usage{Used: len(t.calls[Auth])},
		Other:   Usage{Used: len(t.calls[Other])},
		Hist:    Usage{Used: histUsed, Limit: t.lim.HistPointsWeek, Remaining: max(0, t.lim.HistPointsWeek-histUsed)},
		Headers: headers,
	}
}

func (t *Tracker) rated(b Bucket, limit int, now time.Time) Usage {
	s := t.calls[b]
	u := Usage{Used: len(s), Limit: limit, Remaining: max(0, limit-len(s))}
	if len(s) > 0 {
		u.ResetSec = max(0, int(s[0].Add(window).Sub(now)/time.Second))
	}
	return u
}
