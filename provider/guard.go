// Package provider holds the external embedding and chat backends and the
// guard they share.
package provider

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/flarexio/copilot"
)

// Guard wraps every provider call with a rate limiter, a timeout and a
// circuit breaker.
type Guard struct {
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	timeout time.Duration
}

func NewGuard(name string, cfg copilot.ProviderConfig) *Guard {
	log := zap.L().With(
		zap.String("component", "guard"),
		zap.String("name", name),
	)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}

		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Guard{
		breaker: breaker,
		limiter: limiter,
		timeout: cfg.Timeout.Duration(),
	}
}

// Do runs fn once the limiter admits it. An open breaker fails fast with
// gobreaker.ErrOpenState.
func Do[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, err
		}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	result, err := g.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}

	return result.(T), nil
}
