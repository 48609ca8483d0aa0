// Package resilience keeps the companion responsive when a model backend
// degrades.
//
// [ModelFailover] chains several [llm.Provider] implementations behind one
// provider interface. Each backend gets its own [CircuitBreaker]; a request
// goes to the first backend whose breaker allows it, and falls through to the
// next on failure. The analyzer's rule-based responder remains the final
// backstop above this package, so even [ErrAllFailed] never reaches the user.
package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/mindmate-app/mindmate/internal/observe"
	"github.com/mindmate-app/mindmate/pkg/provider/llm"
)

// ErrAllFailed is returned when every backend fails or has an open breaker.
var ErrAllFailed = errors.New("all model backends failed")

// FallbackConfig configures the circuit breaker created for each backend.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type backend struct {
	name     string
	provider llm.Provider
	breaker  *CircuitBreaker
}

// ModelFailover implements [llm.Provider] across an ordered list of model
// backends. Backends are registered at startup; Complete may then be called
// concurrently.
type ModelFailover struct {
	backends []backend
	cfg      FallbackConfig
}

var _ llm.Provider = (*ModelFailover)(nil)

// NewModelFailover creates a [ModelFailover] with primary as the preferred
// backend. Further backends are added with [ModelFailover.AddFallback].
func NewModelFailover(primary llm.Provider, primaryName string, cfg FallbackConfig) *ModelFailover {
	f := &ModelFailover{cfg: cfg}
	f.add(primaryName, primary)
	return f
}

// AddFallback registers an additional backend. Backends are tried in
// registration order.
func (f *ModelFailover) AddFallback(name string, provider llm.Provider) {
	f.add(name, provider)
}

func (f *ModelFailover) add(name string, provider llm.Provider) {
	cbCfg := f.cfg.CircuitBreaker
	cbCfg.Name = name
	f.backends = append(f.backends, backend{
		name:     name,
		provider: provider,
		breaker:  NewCircuitBreaker(cbCfg),
	})
}

// Complete forwards req to the first healthy backend and returns its
// response. Backends with open breakers are skipped without being called.
func (f *ModelFailover) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	log := observe.Logger(ctx)

	var lastErr error
	for i := range f.backends {
		b := &f.backends[i]

		var resp *llm.CompletionResponse
		err := b.breaker.Execute(func() error {
			var callErr error
			resp, callErr = b.provider.Complete(ctx, req)
			return callErr
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, ErrCircuitOpen) {
			log.Debug("skipping model backend, circuit open", "backend", b.name)
		} else {
			log.Warn("model backend failed, trying next", "backend", b.name, "error", err)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
