package aws

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerPublisher trips after consecutive SNS failures so a relay stops hammering an
// unavailable topic. While open, Publish fails fast with an error matched by IsCircuitOpen.
type BreakerPublisher struct {
	next SNSPublisher
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerPublisher wraps next. The breaker opens after failures consecutive errors and
// lets one trial request through after cooldown.
func NewBreakerPublisher(next SNSPublisher, failures uint32, cooldown time.Duration, logger *zap.Logger) *BreakerPublisher {
	if failures == 0 {
		failures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &BreakerPublisher{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "sns-publish",
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
}

func (b *BreakerPublisher) Publish(ctx context.Context, topicArn, eventType string, message []byte) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Publish(ctx, topicArn, eventType, message)
	})
	return err
}

// IsCircuitOpen reports whether err came from a breaker refusing the call.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
