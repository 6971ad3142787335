package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/llama"
	"github.com/LiboWorks/bitrag/internal/logging"
)

// NativeName is the Name() of the in-process backend.
const NativeName = "native"

// windowMargin keeps generation this many positions short of the window.
const windowMargin = 4

// NativeConfig holds configuration for the in-process backend.
type NativeConfig struct {
	ModelPath string

	// Engine overrides the native binding; nil opens it from LibraryDir.
	Engine     llama.Engine
	LibraryDir string

	Model   inference.ModelParams
	Context inference.ContextParams
	Pool    inference.PoolConfig
	Logger  logging.Logger
}

// DefaultNativeConfig returns the default model, context and pool settings
// for path.
func DefaultNativeConfig(path string) NativeConfig {
	return NativeConfig{
		ModelPath: path,
		Model:     inference.DefaultModelParams(),
		Context:   inference.DefaultContextParams(),
		Pool:      inference.DefaultPoolConfig(),
	}
}

// Native runs the model in-process. One model is shared by a pool of
// execution contexts, so concurrent requests decode in parallel without
// sharing mutable state.
type Native struct {
	model *inference.Model
	pool  *inference.Pool
	log   logging.Logger

	closeOnce sync.Once
}

// NewNative opens the binding, loads the model and pre-warms the pool. Every
// failure is reported as an initialization error the caller can fall back on.
func NewNative(cfg NativeConfig) (*Native, error) {
	log := logging.OrDiscard(cfg.Logger).With("backend", NativeName)

	eng, model, err := loadNativeModel(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Context.NCtx == 0 {
		cfg.Context = inference.DefaultContextParams()
	}
	if cfg.Pool.MaxSize == 0 {
		logger := cfg.Pool.Logger
		cfg.Pool = inference.DefaultPoolConfig()
		cfg.Pool.Logger = logger
	}
	if cfg.Pool.Logger == nil {
		cfg.Pool.Logger = log
	}
	pool, err := inference.NewPool(model, cfg.Context, cfg.Pool)
	if err != nil {
		_ = model.Close()
		return nil, fmt.Errorf("%w: %w", inference.ErrBackendInit, err)
	}

	log.Info("native backend ready",
		"engine", eng.Name(),
		"model", cfg.ModelPath,
		"desc", model.Desc(),
		"n_ctx", cfg.Context.NCtx,
		"pool_max", cfg.Pool.MaxSize)

	return &Native{model: model, pool: pool, log: log}, nil
}

// LoadModel opens the native binding and loads cfg.ModelPath without
// building a pool. The embedder uses it for its own model instance.
func LoadModel(cfg NativeConfig) (*inference.Model, error) {
	_, model, err := loadNativeModel(cfg)
	return model, err
}

func loadNativeModel(cfg NativeConfig) (llama.Engine, *inference.Model, error) {
	eng := cfg.Engine
	if eng == nil {
		var err error
		if eng, err = llama.Open(cfg.LibraryDir); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", inference.ErrBackendInit, err)
		}
	}
	if cfg.ModelPath == "" {
		return nil, nil, fmt.Errorf("%w: no model path configured", inference.ErrBackendInit)
	}

	model, err := inference.LoadModel(eng, cfg.ModelPath, cfg.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", inference.ErrBackendInit, err)
	}
	return eng, model, nil
}

// Generate implements Backend.
func (n *Native) Generate(ctx context.Context, prompt string, maxTokens int, cfg inference.SamplerConfig) (string, error) {
	return n.GenerateStreaming(ctx, prompt, maxTokens, cfg, nil)
}

// GenerateStreaming implements Backend. The pooled context is released with
// a cleared cache on every return path.
func (n *Native) GenerateStreaming(ctx context.Context, prompt string, maxTokens int, cfg inference.SamplerConfig, onToken inference.TokenFunc) (string, error) {
	maxTokens = maxTokensOrDefault(maxTokens)

	tokens, err := n.model.Tokenize(prompt, true, true)
	if err != nil {
		return "", err
	}
	if len(tokens) == 0 {
		return "", fmt.Errorf("%w: prompt produced no tokens", inference.ErrTokenization)
	}

	guard, err := n.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer guard.Release()
	c := guard.Context()

	limit := c.NCtx() - windowMargin
	if len(tokens) >= limit {
		return "", fmt.Errorf("%w: prompt has %d tokens, window allows %d", inference.ErrTokenization, len(tokens), limit)
	}

	batch, err := inference.NewBatch(c.NBatch(), 1)
	if err != nil {
		return "", err
	}
	for start := 0; start < len(tokens); start += c.NBatch() {
		end := min(start+c.NBatch(), len(tokens))
		batch.Clear()
		if err := batch.AddSequence(tokens[start:end], llama.Pos(start), 0, true); err != nil {
			return "", err
		}
		if err := c.Decode(batch); err != nil {
			return "", fmt.Errorf("decode prompt: %w", err)
		}
	}

	sampler, err := inference.BuildSampler(cfg, n.model.NVocab())
	if err != nil {
		return "", err
	}

	var (
		out     strings.Builder
		runes   inference.RuneBuffer
		stopped bool
	)
	emit := func(text string) error {
		if onToken == nil || text == "" || stopped {
			return nil
		}
		if err := onToken(text); err != nil {
			if errors.Is(err, inference.ErrStopGeneration) {
				stopped = true
				return nil
			}
			return err
		}
		return nil
	}

	seq := []llama.SeqID{0}
	pos := len(tokens)
	for i := 0; i < maxTokens; i++ {
		if err := ctx.Err(); err != nil {
			return out.String(), fmt.Errorf("%w: %w", inference.ErrInterrupted, err)
		}

		tok, err := sampler.Sample(c, -1)
		if err != nil {
			return out.String(), err
		}
		sampler.Accept(tok)
		if n.model.IsEndOfGeneration(tok) {
			break
		}

		piece, err := n.model.TokenToText(tok)
		if err != nil {
			return out.String(), err
		}
		out.WriteString(piece)
		if err := emit(runes.Push(piece)); err != nil {
			return out.String(), err
		}
		if stopped {
			break
		}

		if i == maxTokens-1 || pos+1 > limit {
			break
		}
		batch.Clear()
		if err := batch.Add(tok, llama.Pos(pos), seq, true); err != nil {
			return out.String(), err
		}
		if err := c.Decode(batch); err != nil {
			return out.String(), err
		}
		pos++
	}
	if err := emit(runes.Flush()); err != nil {
		return out.String(), err
	}
	return out.String(), nil
}

// Chat implements Backend.
func (n *Native) Chat(ctx context.Context, system, user string, maxTokens int, cfg inference.SamplerConfig) (string, error) {
	return n.Generate(ctx, inference.FormatChatPrompt(system, user), maxTokens, cfg)
}

// Name implements Backend.
func (n *Native) Name() string { return NativeName }

// IsReady reports whether a context is idle or the pool may still grow.
func (n *Native) IsReady() bool {
	return n.pool.Available() > 0 || n.pool.CanGrow()
}

// Version implements Backend.
func (n *Native) Version() (string, error) {
	return fmt.Sprintf("Native FFI (%s) - vocab:%d, embd:%d", n.model.Desc(), n.model.NVocab(), n.model.NEmbd()), nil
}

// Model returns the loaded model.
func (n *Native) Model() *inference.Model { return n.model }

// Stats returns a snapshot of the context pool.
func (n *Native) Stats() inference.PoolStats { return n.pool.Stats() }

// Close frees the pool and drops the backend's model reference.
func (n *Native) Close() error {
	n.closeOnce.Do(func() {
		n.pool.Close()
		_ = n.model.Close()
		n.log.Debug("native backend closed")
	})
	return nil
}
