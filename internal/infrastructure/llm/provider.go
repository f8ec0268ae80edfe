// Package llm holds the provider-agnostic LLM client contract the cognitive
// cycle queries, plus the failover router and circuit breaker wrapped around
// it. Concrete provider adapters are external collaborators; this package
// ships a deterministic stub for tests and dry runs.
package llm

import (
	"context"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

// Provider is one LLM backend the router can dispatch to.
type Provider interface {
	// Name returns the provider identifier.
	Name() string
	// Generate produces a completion for the request.
	Generate(ctx context.Context, req valueobject.LLMRequest) (valueobject.LLMResponse, error)
	// IsAvailable checks if the provider is reachable.
	IsAvailable(ctx context.Context) bool
}

// StubProvider replays scripted responses, for tests and offline dry runs.
type StubProvider struct {
	ProviderName string
	Responses    []valueobject.LLMResponse
	Err          error
	calls        int
}

// Name implements Provider.
func (s *StubProvider) Name() string {
	if s.ProviderName == "" {
		return "stub"
	}
	return s.ProviderName
}

// Generate returns the next scripted response, repeating the last one once
// the script is exhausted.
func (s *StubProvider) Generate(_ context.Context, _ valueobject.LLMRequest) (valueobject.LLMResponse, error) {
	if s.Err != nil {
		return valueobject.LLMResponse{}, s.Err
	}
	if len(s.Responses) == 0 {
		return valueobject.LLMResponse{Text: `{"actionType":"pursue_goal","actionPayload":{}}`}, nil
	}
	idx := s.calls
	if idx >= len(s.Responses) {
		idx = len(s.Responses) - 1
	}
	s.calls++
	return s.Responses[idx], nil
}

// IsAvailable implements Provider.
func (s *StubProvider) IsAvailable(context.Context) bool { return true }
