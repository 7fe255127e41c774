package breaker

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Registry holds one circuit breaker per upstream provider so a failing
// provider cannot take down calls to the others.
type Registry struct {
	breakers map[string]*gobreaker.CircuitBreaker
	logger   *logrus.Logger
}

// NewRegistry creates breakers for the named upstream providers.
func NewRegistry(providers []string, timeout time.Duration, logger *logrus.Logger) *Registry {
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(providers))
	for _, name := range providers {
		settings := gobreaker.Settings{
			Name:    name,
			Timeout: timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"component": "circuit_breaker",
					"provider":  name,
					"from":      from.String(),
					"to":        to.String(),
				}).Info("Circuit breaker state changed")
			},
		}
		breakers[name] = gobreaker.NewCircuitBreaker(settings)
	}

	return &Registry{breakers: breakers, logger: logger}
}

// Execute wraps a call with the named provider's breaker. Unknown providers
// execute without protection.
func (r *Registry) Execute(provider string, fn func() (interface{}, error)) (interface{}, error) {
	cb, ok := r.breakers[provider]
	if !ok {
		r.logger.WithFields(logrus.Fields{
			"component": "circuit_breaker",
			"provider":  provider,
		}).Warn("No circuit breaker for provider, executing without protection")
		return fn()
	}
	return cb.Execute(fn)
}

// State returns the current state of the named provider's breaker.
func (r *Registry) State(provider string) gobreaker.State {
	if cb, ok := r.breakers[provider]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}
