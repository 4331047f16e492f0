package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Provider is one LLM backend. Stream sends req upstream and returns once the
// backend has accepted it; rejection is reported as *ProviderError.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (*Stream, error)
}

// ProviderFactory builds a Provider for one caller. It runs the credential
// gate and must not touch the network.
type ProviderFactory func(ctx context.Context, creds Credentials) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// ErrUnknownProvider is wrapped by Get for unregistered names.
var ErrUnknownProvider = errors.New("unknown ai provider")

func (r *Registry) Get(ctx context.Context, name string, creds Credentials) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return f(ctx, creds)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}
