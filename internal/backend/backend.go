// Package backend defines the generation backends bitrag can run on. Every
// variant (native, subprocess, isolated worker, OpenAI-compatible) serves the
// same Backend interface, so callers and tests can swap them freely.
package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/LiboWorks/bitrag/internal/inference"
)

// DefaultMaxTokens is used when a request does not set a token budget.
const DefaultMaxTokens = 512

// Backend is the uniform generation interface.
type Backend interface {
	// Generate produces a completion for prompt.
	// maxTokens limits the response length (0 means DefaultMaxTokens).
	Generate(ctx context.Context, prompt string, maxTokens int, cfg inference.SamplerConfig) (string, error)

	// GenerateStreaming is Generate that also hands every produced piece to
	// onToken, in order, on the calling goroutine.
	GenerateStreaming(ctx context.Context, prompt string, maxTokens int, cfg inference.SamplerConfig, onToken inference.TokenFunc) (string, error)

	// Chat formats a system and user message into a role-tagged prompt and
	// generates the assistant reply.
	Chat(ctx context.Context, system, user string, maxTokens int, cfg inference.SamplerConfig) (string, error)

	// Name returns a short identifier for the backend.
	Name() string

	// IsReady reports whether a request could be served right now.
	IsReady() bool

	// Version describes the engine behind the backend.
	Version() (string, error)

	// Close releases any resources held by the backend.
	Close() error
}

// ChatStreamer is implemented by backends whose wire format carries chat
// roles itself, so streamed chat does not go through the role-tagged prompt.
type ChatStreamer interface {
	ChatStreaming(ctx context.Context, system, user string, maxTokens int, cfg inference.SamplerConfig, onToken inference.TokenFunc) (string, error)
}

// Type selects a backend variant.
type Type string

const (
	TypeNative     Type = "native"
	TypeSubprocess Type = "subprocess"
	TypeAuto       Type = "auto"
	TypeOpenAI     Type = "openai"
)

// ParseType accepts the canonical names and their aliases.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "native", "ffi":
		return TypeNative, nil
	case "subprocess", "cli", "process":
		return TypeSubprocess, nil
	case "", "auto", "default":
		return TypeAuto, nil
	case "openai":
		return TypeOpenAI, nil
	default:
		return "", fmt.Errorf("%w: unknown backend type %q", inference.ErrInvalidConfig, s)
	}
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return DefaultMaxTokens
	}
	return n
}

// Registry manages available backends and allows lookup by name.
type Registry struct {
	mu         sync.RWMutex
	backends   map[string]Backend
	defaultKey string
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

// Register adds a backend under name. The first one registered becomes the
// default.
func (r *Registry) Register(name string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = b
	if r.defaultKey == "" {
		r.defaultKey = name
	}
}

// SetDefault sets which backend to use when none is specified.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultKey = name
}

// Get returns a backend by name, or the default if name is empty.
func (r *Registry) Get(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultKey
	}
	b, ok := r.backends[name]
	return b, ok
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close releases all backend resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, b := range r.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	r.backends = make(map[string]Backend)
	r.defaultKey = ""
	return errors.Join(errs...)
}
