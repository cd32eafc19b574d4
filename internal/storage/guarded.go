package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ecoterra/siteapi/internal/domain"
	"github.com/ecoterra/siteapi/internal/reliability/circuitbreaker"
)

// GuardedStore fails uploads fast while the wrapped backend is erroring,
// so requests do not each wait out a dead bucket's timeouts.
type GuardedStore struct {
	next    Store
	breaker *circuitbreaker.CircuitBreaker
}

func NewGuardedStore(next Store, settings circuitbreaker.Settings, logger *slog.Logger) *GuardedStore {
	if logger == nil {
		logger = slog.Default()
	}
	notify := settings.OnStateChange
	settings.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("storage circuit state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
		if notify != nil {
			notify(from, to)
		}
	}
	return &GuardedStore{next: next, breaker: circuitbreaker.New(settings)}
}

func (g *GuardedStore) Put(ctx context.Context, obj Object) (string, error) {
	var url string
	err := g.breaker.Execute(func() error {
		var err error
		url, err = g.next.Put(ctx, obj)
		return err
	}, isCallerError)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return "", fmt.Errorf("%w: upload storage: %v", domain.ErrUnavailable, err)
	}
	return url, err
}

// Ping goes straight to the backend, ignoring the breaker
func (g *GuardedStore) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}

func (g *GuardedStore) State() circuitbreaker.State {
	return g.breaker.State()
}

// Check reports readiness: it fails while the circuit is open, then pings the backend
func (g *GuardedStore) Check(ctx context.Context) error {
	if state := g.breaker.State(); state == circuitbreaker.StateOpen {
		return fmt.Errorf("upload storage circuit is %s", state)
	}
	return g.next.Ping(ctx)
}

func isCallerError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, domain.ErrPayloadTooLarge) ||
		errors.Is(err, domain.ErrValidation)
}
