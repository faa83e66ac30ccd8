package cooldown

import (
	"context"
	"time"
)

// RunJanitor prunes expired cooldowns every interval until ctx is done.
// Failures are logged and retried on the next tick.
func (e *Engine) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := e.Prune(ctx)
			if err != nil {
				e.cfg.Logger.Error().Err(err).Msg("clearing expired cooldowns")
				continue
			}
			if n > 0 {
				e.cfg.Logger.Debug().Int("removed", n).Msg("expired cooldowns cleared")
			}
		}
	}
}
