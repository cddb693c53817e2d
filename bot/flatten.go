package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/internal/retry"
)

// ErrStillOpen is returned by Flatten when positions survive every round.
var ErrStillOpen = errors.New("positions still open")

// Flatten closes every open position, or only those on epic when it is
// non-empty. Each round lists the positions afresh and sends one close per
// deal, so a close that already went through is never repeated. It returns
// the number of close instructions accepted.
func Flatten(ctx context.Context, b broker.Broker, epic string, p retry.Policy, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rounds := max(p.Attempts, 1)
	closed := 0

	for round := 1; ; round++ {
		if round > 1 {
			if err := retry.Sleep(ctx, p.Backoff); err != nil {
				return closed, err
			}
		}
		positions, err := b.Positions(ctx)
		if err != nil {
			return closed, fmt.Errorf("list positions: %w", err)
		}
		var open []broker.Position
		for _, pos := range positions {
			if epic == "" || pos.Epic == epic {
				open = append(open, pos)
			}
		}
		if len(open) == 0 {
			return closed, nil
		}
		if round > rounds {
			return closed, fmt.Errorf("%w: %d after %d rounds", ErrStillOpen, len(open), rounds)
		}

		for _, pos := range open {
			ref, err := b.ClosePosition(ctx, broker.CloseFor(pos))
			switch {
			case err == nil:
				closed++
				log.Info("position closed",
					zap.String("deal_id", pos.DealID),
					zap.String("epic", pos.Epic),
					zap.String("deal_ref", ref))
			case p.Ignore != nil && p.Ignore(err):
				log.Info("position already closed", zap.String("deal_id", pos.DealID))
			default:
				log.Error("close failed", zap.String("deal_id", pos.DealID), zap.Error(err))
			}
		}
	}
}
