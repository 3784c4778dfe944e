package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultRetryBackoff = 100 * time.Millisecond

// errPermanent marks failures that another attempt cannot fix, such as a
// contract that does not answer decimals().
var errPermanent = errors.New("permanent failure")

type permanentError struct {
	err error
}

func (e permanentError) Error() string {
	return e.err.Error()
}

func (e permanentError) Unwrap() []error {
	return []error{e.err, errPermanent}
}

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// retry runs fn until it succeeds, fails permanently or the attempt budget is
// spent. Only transport and RPC errors are retried; the delay doubles after
// each failed attempt.
func (c *Client) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := c.opts.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	delay := c.opts.RetryBackoff
	if delay <= 0 {
		delay = defaultRetryBackoff
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, errPermanent) || ctx.Err() != nil {
			return err
		}
		if attempt >= attempts {
			return fmt.Errorf("%s: %d attempts: %w", op, attempt, err)
		}
		c.opts.Logger.Warn("rpc call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
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
