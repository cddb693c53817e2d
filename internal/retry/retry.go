// Package retry runs broker calls under named retry policies.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustyeddy/scalper/broker"
)

var metricRetries = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "scalper_retries_total", Help: "Broker calls repeated after a failure, by policy"}, []string{"policy"})

func init() {
	prometheus.MustRegister(metricRetries)
}

// Policy describes how often and how patiently a call is repeated.
type Policy struct {
	Name string
	// Attempts is the total number of tries; 0 retries until ctx is done.
	Attempts int
	// Backoff grows linearly: the n-th wait is n*Backoff.
	Backoff time.Duration
	// Retryable decides whether an error is worth another try. Nil retries
	// every error.
	Retryable func(error) bool
	// Ignore reports errors that count as success.
	Ignore func(error) bool
}

// Policies groups the policy used at each call site.
type Policies struct {
	Auth       Policy
	MarketData Policy
	Submit     Policy
	Amend      Policy
	Close      Policy
}

// Defaults returns the standard policies with the given base backoff.
// Order submission and amendments are tried once; the surrounding loop
// decides when to try again.
func Defaults(backoff time.Duration) Policies {
	return Policies{
		Auth:       Policy{Name: "auth", Attempts: 3, Backoff: 2 * backoff, Retryable: broker.IsTransient},
		MarketData: Policy{Name: "market_data", Attempts: 3, Backoff: backoff, Retryable: broker.IsTransient},
		Submit:     Policy{Name: "submit", Attempts: 1},
		Amend:      Policy{Name: "amend", Attempts: 1},
		Close: Policy{
			Name:      "close",
			Attempts:  3,
			Backoff:   backoff,
			Retryable: broker.IsTransient,
			Ignore:    func(err error) bool { return errors.Is(err, broker.ErrNotFound) },
		},
	}
}

// Do calls fn until it succeeds, the error is not retryable, the attempts
// are used up or ctx is done. It returns the last error.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || (p.Ignore != nil && p.Ignore(err)) {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if p.Attempts > 0 && attempt >= p.Attempts {
			return err
		}
		metricRetries.WithLabelValues(p.Name).Inc()
		if serr := Sleep(ctx, time.Duration(attempt)*p.Backoff); serr != nil {
			return errors.Join(err, serr)
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
