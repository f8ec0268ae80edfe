package llm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// Router fans a Generate call out across providers in insertion order,
// skipping unavailable ones and ones whose circuit is open. After enough
// consecutive failures a provider's circuit opens and it is bypassed for a
// cool-down window, so a dead upstream fails fast instead of hanging every
// run.
type Router struct {
	mu        sync.RWMutex
	providers []Provider
	stats     map[string]*providerStats
	breakers  map[string]*CircuitBreaker
	logger    *zap.Logger
}

// providerStats tracks per-provider performance metrics.
type providerStats struct {
	TotalCalls   int64
	FailureCount int64
	LastLatency  time.Duration
}

// NewRouter creates an empty router.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		stats:    make(map[string]*providerStats),
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger.With(zap.String("component", "llm-router")),
	}
}

// AddProvider appends a provider. Providers are tried in insertion order:
// add the primary first, fallbacks after.
func (r *Router) AddProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
	r.stats[p.Name()] = &providerStats{}
	r.breakers[p.Name()] = NewCircuitBreaker(5, 30*time.Second)
	r.logger.Info("LLM provider added", zap.String("name", p.Name()))
}

// Generate routes to the first healthy provider and records the outcome in
// that provider's stats and circuit breaker.
func (r *Router) Generate(ctx context.Context, req valueobject.LLMRequest) (valueobject.LLMResponse, error) {
	r.mu.RLock()
	providers := make([]Provider, len(r.providers))
	copy(providers, r.providers)
	r.mu.RUnlock()

	var lastErr error

	for _, p := range providers {
		if !p.IsAvailable(ctx) {
			r.logger.Debug("Provider unavailable, skipping", zap.String("provider", p.Name()))
			continue
		}
		if cb := r.breaker(p.Name()); cb != nil && !cb.Allow() {
			r.logger.Debug("Provider circuit open, skipping", zap.String("provider", p.Name()))
			continue
		}

		start := time.Now()
		resp, err := p.Generate(ctx, req)
		latency := time.Since(start)
		r.recordCall(p.Name(), latency, err)

		if err != nil {
			lastErr = err
			r.logger.Warn("Provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.Duration("latency", latency),
				zap.Error(err),
			)
			continue
		}

		r.logger.Debug("Provider succeeded",
			zap.String("provider", p.Name()),
			zap.Duration("latency", latency),
			zap.Int("tokens", resp.TokensUsed),
		)
		return resp, nil
	}

	if lastErr != nil {
		return valueobject.LLMResponse{}, apperrors.NewUpstreamError("all LLM providers failed", lastErr)
	}
	return valueobject.LLMResponse{}, apperrors.NewUpstreamError("no LLM provider available", nil)
}

func (r *Router) breaker(name string) *CircuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[name]
}

func (r *Router) recordCall(name string, latency time.Duration, err error) {
	r.mu.Lock()
	if s, ok := r.stats[name]; ok {
		s.TotalCalls++
		s.LastLatency = latency
		if err != nil {
			s.FailureCount++
		}
	}
	cb := r.breakers[name]
	r.mu.Unlock()

	if cb != nil {
		if err != nil {
			cb.RecordFailure()
		} else {
			cb.RecordSuccess()
		}
	}
}

// ProviderStatus describes a provider's current state and performance.
type ProviderStatus struct {
	Name          string  `json:"name"`
	Available     bool    `json:"available"`
	TotalCalls    int64   `json:"total_calls"`
	FailureCount  int64   `json:"failure_count"`
	LastLatencyMs float64 `json:"last_latency_ms"`
	CircuitState  string  `json:"circuit_state"`
}

// ListProviders reports every registered provider's health and stats.
func (r *Router) ListProviders(ctx context.Context) []ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []ProviderStatus
	for _, p := range r.providers {
		ps := ProviderStatus{
			Name:      p.Name(),
			Available: p.IsAvailable(ctx),
		}
		if s, ok := r.stats[p.Name()]; ok {
			ps.TotalCalls = s.TotalCalls
			ps.FailureCount = s.FailureCount
			ps.LastLatencyMs = float64(s.LastLatency) / float64(time.Millisecond)
		}
		if cb, ok := r.breakers[p.Name()]; ok {
			ps.CircuitState = cb.State().String()
		}
		result = append(result, ps)
	}
	return result
}
