// Package generator is the entry point for text generation. It selects a
// backend once at construction, applies stop sequences to every result and
// offers buffered, streaming, chat and translated variants on top of it.
package generator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/LiboWorks/bitrag/internal/backend"
	"github.com/LiboWorks/bitrag/internal/config"
	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/logging"
)

// Options selects and configures the backend.
type Options struct {
	Type      backend.Type
	ModelPath string

	Native     backend.NativeConfig
	Subprocess backend.SubprocessConfig
	OpenAI     backend.OpenAIConfig

	// Isolate runs the native backend in Workers child processes.
	Isolate bool
	Workers int

	// Defaults for requests that leave them unset.
	MaxTokens     int
	Sampler       inference.SamplerConfig
	StopSequences []string

	Logger logging.Logger
}

// DefaultOptions returns auto selection for the model at path.
func DefaultOptions(path string) Options {
	return Options{
		Type:      backend.TypeAuto,
		ModelPath: path,
		Native:    backend.DefaultNativeConfig(path),
		Sampler:   inference.DefaultSamplerConfig(),
		Workers:   1,
	}
}

// OptionsFromConfig maps the application configuration onto Options.
func OptionsFromConfig(cfg *config.Config, log logging.Logger) (Options, error) {
	typ, err := backend.ParseType(cfg.Backend)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Type:      typ,
		ModelPath: cfg.ModelPath,
		Native: backend.NativeConfig{
			ModelPath:  cfg.ModelPath,
			LibraryDir: cfg.LlamaLibDir,
			Model:      cfg.ModelParams(),
			Context:    cfg.ContextParams(),
			Pool:       cfg.PoolConfig(),
		},
		Subprocess: backend.SubprocessConfig{
			ModelPath:  cfg.ModelPath,
			BinaryPath: cfg.CLIPath,
			NCtx:       cfg.CtxSize,
			Threads:    cfg.Threads,
		},
		OpenAI: backend.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		},
		Isolate:   cfg.Isolate,
		Workers:   cfg.Workers,
		MaxTokens: cfg.MaxTokens,
		Sampler:   cfg.SamplerConfig(),
		Logger:    log,
	}, nil
}

// Request is one generation call.
type Request struct {
	Prompt    string
	MaxTokens int                      // 0 = Options.MaxTokens
	Sampler   *inference.SamplerConfig // nil = Options.Sampler
	Stop      []string                 // added to Options.StopSequences
}

// ChatRequest is one chat call. An empty System uses the default prompt.
type ChatRequest struct {
	System    string
	User      string
	MaxTokens int
	Sampler   *inference.SamplerConfig
	Stop      []string
}

// Info describes the selected backend.
type Info struct {
	Backend   string `json:"backend"`
	Type      string `json:"type"`
	Version   string `json:"version"`
	ModelPath string `json:"model_path,omitempty"`
	Ready     bool   `json:"ready"`
}

// Generator owns one backend for its whole lifetime.
type Generator struct {
	backend   backend.Backend
	typ       backend.Type
	modelPath string
	maxTokens int
	sampler   inference.SamplerConfig
	stops     []string
	log       logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// New builds the backend opts asks for. Under auto selection a native
// initialization failure is logged and the subprocess backend is tried next;
// if that fails too the error names both attempts.
func New(opts Options) (*Generator, error) {
	log := logging.OrDiscard(opts.Logger)
	typ := opts.Type
	if typ == "" {
		typ = backend.TypeAuto
	}

	var (
		b   backend.Backend
		err error
	)
	switch typ {
	case backend.TypeNative:
		b, err = newNative(opts, log)
	case backend.TypeSubprocess:
		b, err = newSubprocess(opts, log)
	case backend.TypeOpenAI:
		oc := opts.OpenAI
		if oc.Logger == nil {
			oc.Logger = log
		}
		b, err = backend.NewOpenAIBackend(oc)
	case backend.TypeAuto:
		var nativeErr error
		b, nativeErr = newNative(opts, log)
		if nativeErr != nil {
			log.Warn("native backend unavailable, trying subprocess", "error", nativeErr)
			var subErr error
			b, subErr = newSubprocess(opts, log)
			if subErr != nil {
				err = &inference.StageError{Stage: "config", Err: fmt.Errorf(
					"%w: no backend available: native: %w; subprocess: %w",
					inference.ErrInvalidConfig, nativeErr, subErr)}
			}
		}
	default:
		err = fmt.Errorf("%w: unknown backend type %q", inference.ErrInvalidConfig, typ)
	}
	if err != nil {
		return nil, err
	}

	log.Info("loaded model", "backend", b.Name(), "requested", string(typ))
	return newGenerator(b, typ, opts, log), nil
}

// NewWithBackend wraps an already constructed backend.
func NewWithBackend(b backend.Backend, opts Options) *Generator {
	return newGenerator(b, opts.Type, opts, logging.OrDiscard(opts.Logger))
}

func newGenerator(b backend.Backend, typ backend.Type, opts Options, log logging.Logger) *Generator {
	sampler := opts.Sampler
	if sampler == (inference.SamplerConfig{}) {
		sampler = inference.DefaultSamplerConfig()
	}
	modelPath := opts.ModelPath
	if modelPath == "" {
		modelPath = opts.Native.ModelPath
	}
	return &Generator{
		backend:   b,
		typ:       typ,
		modelPath: modelPath,
		maxTokens: opts.MaxTokens,
		sampler:   sampler,
		stops:     slices.Clone(opts.StopSequences),
		log:       log.With("component", "generator"),
	}
}

func newNative(opts Options, log logging.Logger) (backend.Backend, error) {
	if opts.Isolate {
		return backend.NewIsolated(opts.Workers, log)
	}
	cfg := opts.Native
	if cfg.ModelPath == "" {
		cfg.ModelPath = opts.ModelPath
	}
	if cfg.Logger == nil {
		cfg.Logger = log
	}
	return backend.NewNative(cfg)
}

func newSubprocess(opts Options, log logging.Logger) (backend.Backend, error) {
	cfg := opts.Subprocess
	if cfg.ModelPath == "" {
		cfg.ModelPath = opts.ModelPath
	}
	if cfg.NCtx == 0 {
		cfg.NCtx = opts.Native.Context.NCtx
	}
	if cfg.Logger == nil {
		cfg.Logger = log
	}
	return backend.NewSubprocess(cfg)
}

func (g *Generator) params(maxTokens int, sampler *inference.SamplerConfig, stop []string) (int, inference.SamplerConfig, []string) {
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}
	cfg := g.sampler
	if sampler != nil {
		cfg = *sampler
	}
	stops := g.stops
	if len(stop) > 0 {
		stops = append(slices.Clone(g.stops), stop...)
	}
	return maxTokens, cfg, stops
}

// Generate returns the completion for req.Prompt cut at the earliest stop
// sequence.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	maxTokens, cfg, stops := g.params(req.MaxTokens, req.Sampler, req.Stop)
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	raw, err := g.backend.Generate(ctx, req.Prompt, maxTokens, cfg)
	if err != nil {
		return "", err
	}
	return inference.ApplyStopSequences(raw, stops), nil
}

// GenerateStreaming is Generate that forwards pieces to onToken as they are
// produced. Text that could begin a stop sequence is withheld until it is
// known not to, and generation halts at the first stop sequence, so the
// caller never sees any part of one. The returned text is exactly what was
// streamed.
func (g *Generator) GenerateStreaming(ctx context.Context, req Request, onToken inference.TokenFunc) (string, error) {
	maxTokens, cfg, stops := g.params(req.MaxTokens, req.Sampler, req.Stop)
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	return g.stream(stops, onToken, func(emit inference.TokenFunc) (string, error) {
		return g.backend.GenerateStreaming(ctx, req.Prompt, maxTokens, cfg, emit)
	})
}

func (g *Generator) stream(stops []string, onToken inference.TokenFunc, run func(inference.TokenFunc) (string, error)) (string, error) {
	callerStopped := false
	emit := func(piece string) error {
		if onToken == nil {
			return nil
		}
		err := onToken(piece)
		if errors.Is(err, inference.ErrStopGeneration) {
			callerStopped = true
		}
		return err
	}

	s := inference.NewStopStreamer(stops, emit)
	if _, err := run(s.Write); err != nil {
		return s.Text(), err
	}
	if !callerStopped {
		if err := s.Flush(); err != nil && !errors.Is(err, inference.ErrStopGeneration) {
			return s.Text(), err
		}
	}
	return s.Text(), nil
}

func (g *Generator) chatParams(req ChatRequest) (int, inference.SamplerConfig, []string) {
	return g.params(req.MaxTokens, req.Sampler, append(slices.Clone(inference.ChatStopSequences), req.Stop...))
}

// Chat formats a role-tagged prompt, generates the assistant turn and cuts it
// where the model starts a new turn.
func (g *Generator) Chat(ctx context.Context, req ChatRequest) (string, error) {
	maxTokens, cfg, stops := g.chatParams(req)
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	raw, err := g.backend.Chat(ctx, req.System, req.User, maxTokens, cfg)
	if err != nil {
		return "", err
	}
	return inference.ApplyStopSequences(raw, stops), nil
}

// ChatStreaming is Chat with streamed output.
func (g *Generator) ChatStreaming(ctx context.Context, req ChatRequest, onToken inference.TokenFunc) (string, error) {
	maxTokens, cfg, stops := g.chatParams(req)
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	return g.stream(stops, onToken, func(emit inference.TokenFunc) (string, error) {
		if cs, ok := g.backend.(backend.ChatStreamer); ok {
			return cs.ChatStreaming(ctx, req.System, req.User, maxTokens, cfg, emit)
		}
		prompt := inference.FormatChatPrompt(req.System, req.User)
		return g.backend.GenerateStreaming(ctx, prompt, maxTokens, cfg, emit)
	})
}

// Info describes the selected backend.
func (g *Generator) Info() Info {
	version, err := g.backend.Version()
	if err != nil {
		g.log.Debug("backend version unavailable", "error", err)
		version = "unknown"
	}
	typ := string(g.typ)
	if typ == "" {
		typ = g.backend.Name()
	}
	return Info{
		Backend:   g.backend.Name(),
		Type:      typ,
		Version:   version,
		ModelPath: g.modelPath,
		Ready:     g.backend.IsReady(),
	}
}

// Backend returns the selected backend.
func (g *Generator) Backend() backend.Backend { return g.backend }

// Name returns the selected backend's name.
func (g *Generator) Name() string { return g.backend.Name() }

// Close releases the backend. It is safe to call more than once.
func (g *Generator) Close() error {
	g.closeOnce.Do(func() {
		g.closeErr = g.backend.Close()
	})
	return g.closeErr
}
