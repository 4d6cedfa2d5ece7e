package identity

import (
	"context"
	"fmt"
	"sync"
)

// StaticProvider resolves identities from a fixed token table. Used in tests
// and local development where no identity platform is reachable.
type StaticProvider struct {
	mu     sync.RWMutex
	tokens map[string]Identity
}

// NewStaticProvider builds an empty static provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{tokens: make(map[string]Identity)}
}

// Add registers a token for the given identity.
func (p *StaticProvider) Add(token string, id Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[token] = id
}

// Resolve looks the token up in the table.
func (p *StaticProvider) Resolve(_ context.Context, token string) (Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.tokens[token]
	if !ok {
		return Identity{}, fmt.Errorf("%w: unknown token", ErrUnauthenticated)
	}
	return id, nil
}
