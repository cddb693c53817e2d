package quota

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// MinReportInterval is the shortest interval a Reporter will log at.
const MinReportInterval = 5 * time.Second

// Reporter periodically logs and publishes a tracker snapshot. It only reads
// the tracker.
type Reporter struct {
	t        *Tracker
	log      *zap.Logger
	interval time.Duration
}

// NewReporter returns a reporter for t. Intervals below MinReportInterval are
// raised to it.
func NewReporter(t *Tracker, interval time.Duration, log *zap.Logger) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{t: t, log: log, interval: max(MinReportInterval, interval)}
}

// Interval returns the effective reporting interval.
func (r *Reporter) Interval() time.Duration { return r.interval }

// Run reports immediately and then once per interval until ctx is done.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.Report()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Report logs one snapshot line and updates the quota gauges.
func (r *Reporter) Report() Snapshot {
	s := r.t.Snapshot()
	publish(s)
	r.log.Info(Line(s),
		zap.Int("trade_used", s.Trade.Used),
		zap.Int("data_used", s.Data.Used),
		zap.Int("hist_remaining", s.Hist.Remaining),
	)
	return s
}

// Line renders a snapshot as a single human-readable line.
func Line(s Snapshot) string {
	line := fmt.Sprintf("Quota | trade %d/%d (rem %d, %ds) | data %d/%d (rem %d, %ds) | hist %d/%d (rem %d)",
		s.Trade.Used, s.Trade.Limit, s.Trade.Remaining, s.Trade.ResetSec,
		s.Data.Used, s.Data.Limit, s.Data.Remaining, s.Data.ResetSec,
		s.Hist.Used, s.Hist.Limit, s.Hist.Remaining,
	)
	if rem, ok := s.Headers["X-RateLimit-Remaining"]; ok {
		line += " | hdr rem=" + rem
	}
	return line
}
