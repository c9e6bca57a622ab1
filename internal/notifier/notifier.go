// Package notifier delivers alert reports to chat webhooks, bots and brokers.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Notifier sends one text message to a sink.
type Notifier interface {
	Send(ctx context.Context, text string) error
	Name() string
}

// Multi fans a message out to every sink. A failing sink does not stop the others.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Send(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, text); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

type retrying struct {
	next       Notifier
	maxRetries uint64
	maxElapsed time.Duration
	initial    time.Duration
}

// WithRetry retries failed sends with exponential backoff, at most maxRetries extra
// attempts. maxRetries 0 returns n unchanged.
func WithRetry(n Notifier, maxRetries int, maxElapsed time.Duration) Notifier {
	if maxRetries <= 0 {
		return n
	}
	return &retrying{next: n, maxRetries: uint64(maxRetries), maxElapsed: maxElapsed, initial: time.Second}
}

func (r *retrying) Name() string { return r.next.Name() }

func (r *retrying) Send(ctx context.Context, text string) error {
	attempt := 0
	op := func() error {
		attempt++
		err := r.next.Send(ctx, text)
		if err != nil {
			log.Warn().Err(err).Str("component", "notifier").Str("sink", r.next.Name()).
				Int("attempt", attempt).Msg("send failed")
		}
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	if r.maxElapsed > 0 {
		b.MaxElapsedTime = r.maxElapsed
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("after %d attempts: %w", attempt, err)
	}
	return nil
}
