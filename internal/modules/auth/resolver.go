package auth

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/alphaview/alphaview/internal/domain"
)

// StaticResolver resolves credentials from an in-memory table. Suits
// single-tenant deployments where operators are provisioned out of band;
// anything larger should wrap its identity provider in its own resolver.
type StaticResolver struct {
	mu         sync.RWMutex
	principals map[string]domain.Principal // keyed by token
}

// NewStaticResolver creates an empty static resolver
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		principals: make(map[string]domain.Principal),
	}
}

// Register associates a token with a principal
func (r *StaticResolver) Register(token string, principal domain.Principal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.principals[token] = principal
}

// Resolve looks up the token. Comparison is constant-time to avoid leaking
// token prefixes through timing.
func (r *StaticResolver) Resolve(_ context.Context, token string) (*domain.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for candidate, principal := range r.principals {
		if len(candidate) == len(token) &&
			subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			p := principal
			return &p, nil
		}
	}

	return nil, nil
}
