// Package breaker wraps sony/gobreaker with the settings used for every
// external collaborator call. A tripped breaker fails fast with
// ports.ErrUnavailable instead of piling timed-out requests onto a struggling
// dependency.
package breaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/quickbite/orderflow/internal/core/ports"
)

// Breaker guards calls returning a value of type T.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// New builds a breaker that opens after 5 consecutive failures and probes
// again after 10 seconds.
func New[T any](name string) *Breaker[T] {
	return &Breaker[T]{
		cb: gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// Do executes fn behind the breaker. An open breaker yields
// ports.ErrUnavailable so callers see a single retryable error kind.
func (b *Breaker[T]) Do(fn func() (T, error)) (T, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return v, ports.ErrUnavailable
	}
	return v, err
}
