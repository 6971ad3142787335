package bitrag

import (
	"time"

	"github.com/LiboWorks/bitrag/internal/logging"
)

// Version information for bitrag.
const (
	// Version is the current version of the bitrag library.
	Version = "0.1.0"

	// MinGoVersion is the minimum required Go version.
	MinGoVersion = "1.25"
)

// Options configures an Engine.
type Options struct {
	// ModelPath is a GGUF file. When empty, ModelID is looked up in the
	// model cache under ModelsDir.
	ModelPath string
	ModelID   string
	ModelsDir string

	// Backend is native, subprocess, auto or openai.
	Backend string

	// Isolate runs native inference in Workers child processes. The host
	// binary must dispatch the "worker" subcommand, as cmd/bitrag does.
	Isolate bool
	Workers int

	// Pool bounds for the native backend. Zero keeps the defaults.
	PoolMin     int
	PoolMax     int
	PoolTimeout time.Duration
	ContextSize int
	Threads     int

	MaxTokens int
	// Preset names the default sampler: default, balanced, greedy,
	// precise or creative.
	Preset string

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	// StoreDir persists documents with badger. Empty keeps them in memory.
	StoreDir string

	// WebSearch lets Ask fall back to Wikipedia.
	WebSearch     bool
	WikipediaLang string

	Logger logging.Logger
}

// DefaultOptions returns a new Options with default values.
func DefaultOptions() *Options {
	return &Options{
		Backend:   "auto",
		Workers:   1,
		MaxTokens: 512,
		Preset:    "default",
	}
}

// Option is a functional option for configuring an Engine.
type Option func(*Options)

// WithModelPath loads the GGUF file at path.
func WithModelPath(path string) Option {
	return func(o *Options) {
		o.ModelPath = path
	}
}

// WithModel selects a catalogue model by id or alias.
func WithModel(id string) Option {
	return func(o *Options) {
		o.ModelID = id
	}
}

// WithModelsDir sets the model cache directory.
func WithModelsDir(dir string) Option {
	return func(o *Options) {
		o.ModelsDir = dir
	}
}

// WithBackend selects the backend kind.
func WithBackend(kind string) Option {
	return func(o *Options) {
		o.Backend = kind
	}
}

// WithIsolation runs native inference in n worker processes.
func WithIsolation(n int) Option {
	return func(o *Options) {
		o.Isolate = true
		o.Workers = n
	}
}

// WithPool bounds the number of pooled execution contexts.
func WithPool(minSize, maxSize int, timeout time.Duration) Option {
	return func(o *Options) {
		o.PoolMin = minSize
		o.PoolMax = maxSize
		o.PoolTimeout = timeout
	}
}

// WithContextSize sets the execution window in tokens.
func WithContextSize(n int) Option {
	return func(o *Options) {
		o.ContextSize = n
	}
}

// WithThreads sets the decode thread count.
func WithThreads(n int) Option {
	return func(o *Options) {
		o.Threads = n
	}
}

// WithMaxTokens sets the default generation length.
func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// WithPreset sets the default sampler preset.
func WithPreset(name string) Option {
	return func(o *Options) {
		o.Preset = name
	}
}

// WithOpenAI uses an OpenAI-compatible server instead of a local model.
func WithOpenAI(apiKey, baseURL, model string) Option {
	return func(o *Options) {
		o.Backend = "openai"
		o.OpenAIKey = apiKey
		o.OpenAIBaseURL = baseURL
		o.OpenAIModel = model
	}
}

// WithStoreDir persists documents in a badger database at dir.
func WithStoreDir(dir string) Option {
	return func(o *Options) {
		o.StoreDir = dir
	}
}

// WithWebSearch enables Wikipedia lookups for lang ("en" when empty).
func WithWebSearch(lang string) Option {
	return func(o *Options) {
		o.WebSearch = true
		o.WikipediaLang = lang
	}
}

// WithLogger sets the logger. Engines log nothing by default.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// ApplyOptions applies functional options to the defaults.
func ApplyOptions(opts ...Option) *Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}
