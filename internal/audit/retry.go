package audit

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"drainReversal/internal/chain"
)

const defaultBackoff = 100 * time.Millisecond

// readBalance calls the reader until it answers, the retries run out, or the
// failure is one a repeat cannot fix. The delay doubles after every failure.
func (a *Auditor) readBalance(ctx context.Context, token, holder common.Address, read func(context.Context) error) error {
	maxRetries := a.opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := a.opts.RetryBackoff
	if delay <= 0 {
		delay = defaultBackoff
	}

	for attempt := 1; ; attempt++ {
		err := read(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt > maxRetries {
			return err
		}

		a.logger.Warn("balance read failed, retrying",
			zap.String("token", token.Hex()),
			zap.String("holder", holder.Hex()),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, chain.ErrMalformedResult):
		return false
	}
	return true
}
