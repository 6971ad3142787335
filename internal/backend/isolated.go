package backend

import (
	"context"
	"fmt"

	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/logging"
	"github.com/LiboWorks/bitrag/internal/worker"
)

// IsolatedName is the Name() of the worker-process backend.
const IsolatedName = "native (isolated)"

// Workers is what the isolated backend needs from a worker pool.
type Workers interface {
	Do(ctx context.Context, req worker.Request, onToken inference.TokenFunc) (string, error)
	Size() int
	Close() error
}

// Isolated runs the native backend inside `bitrag worker` child processes,
// so a crash in the native engine takes down a worker rather than the
// caller. Each worker loads its own model and context pool.
type Isolated struct {
	workers Workers
	version string
	log     logging.Logger
}

// NewIsolated spawns size workers.
func NewIsolated(size int, log logging.Logger) (*Isolated, error) {
	pool, err := worker.NewPool(size, log)
	if err != nil {
		return nil, fmt.Errorf("%w: start workers: %w", inference.ErrBackendInit, err)
	}
	return NewIsolatedWithWorkers(pool, log), nil
}

// NewIsolatedWithWorkers wraps an existing worker pool.
func NewIsolatedWithWorkers(w Workers, log logging.Logger) *Isolated {
	return &Isolated{
		workers: w,
		version: fmt.Sprintf("Native FFI in %d worker process(es)", w.Size()),
		log:     logging.OrDiscard(log).With("backend", IsolatedName),
	}
}

// Generate implements Backend.
func (b *Isolated) Generate(ctx context.Context, prompt string, maxTokens int, cfg inference.SamplerConfig) (string, error) {
	return b.GenerateStreaming(ctx, prompt, maxTokens, cfg, nil)
}

// GenerateStreaming implements Backend.
func (b *Isolated) GenerateStreaming(ctx context.Context, prompt string, maxTokens int, cfg inference.SamplerConfig, onToken inference.TokenFunc) (string, error) {
	return b.workers.Do(ctx, worker.Request{
		Prompt:    prompt,
		MaxTokens: maxTokensOrDefault(maxTokens),
		Sampler:   &cfg,
	}, onToken)
}

// Chat implements Backend.
func (b *Isolated) Chat(ctx context.Context, system, user string, maxTokens int, cfg inference.SamplerConfig) (string, error) {
	return b.Generate(ctx, inference.FormatChatPrompt(system, user), maxTokens, cfg)
}

// Name implements Backend.
func (b *Isolated) Name() string { return IsolatedName }

// IsReady implements Backend.
func (b *Isolated) IsReady() bool { return b.workers.Size() > 0 }

// Version implements Backend.
func (b *Isolated) Version() (string, error) { return b.version, nil }

// Close stops every worker.
func (b *Isolated) Close() error { return b.workers.Close() }
