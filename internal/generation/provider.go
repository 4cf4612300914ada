// Package generation adapts hosted text-generation services for the
// analysis pipeline. Providers are plain completion backends; Client layers
// structured binding and freeform completion on top of one.
package generation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Request is a single completion call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	JSON        bool // ask the backend for JSON-only output
}

// Provider is a hosted completion backend.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// Providers is the set of configured backends keyed by name. It is built once
// at process start and passed to whatever needs a backend.
type Providers map[string]Provider

// Get returns the provider registered under name.
func (p Providers) Get(name string) (Provider, error) {
	if prov, ok := p[name]; ok {
		return prov, nil
	}
	return nil, fmt.Errorf("unknown generation provider %q (configured: %s)", name, strings.Join(p.Names(), ", "))
}

// Names lists the registered provider names, sorted.
func (p Providers) Names() []string {
	out := make([]string, 0, len(p))
	for name := range p {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// StatusError is a non-2xx answer from a provider's HTTP API.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (string, error)

func (f ProviderFunc) Complete(ctx context.Context, req Request) (string, error) { return f(ctx, req) }
func (f ProviderFunc) Name() string                                               { return "func" }
