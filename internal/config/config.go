// Package config provides centralized configuration management for bitrag.
// It handles environment variables, an optional YAML file, default values,
// and configuration validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LiboWorks/bitrag/internal/inference"
)

// Config holds all configuration settings for bitrag
type Config struct {
	// Model settings
	ModelPath        string `yaml:"model_path"`
	ModelID          string `yaml:"model"`
	ModelsDir        string `yaml:"models_dir"`
	HuggingFaceToken string `yaml:"-"`

	// Backend settings
	Backend     string `yaml:"backend"`
	LlamaLibDir string `yaml:"llama_lib"`
	CLIPath     string `yaml:"cli_path"`
	Isolate     bool   `yaml:"isolate"`
	Workers     int    `yaml:"workers"`

	// Inference settings
	CtxSize      int    `yaml:"ctx_size"`
	BatchSize    int    `yaml:"batch_size"`
	Threads      int    `yaml:"threads"`
	ThreadsBatch int    `yaml:"threads_batch"`
	GPULayers    int    `yaml:"gpu_layers"`
	UseMmap      bool   `yaml:"mmap"`
	UseMlock     bool   `yaml:"mlock"`
	MaxTokens    int    `yaml:"max_tokens"`
	Sampler      string `yaml:"sampler"`

	// Context pool settings
	PoolMin     int           `yaml:"pool_min"`
	PoolMax     int           `yaml:"pool_max"`
	PoolTimeout time.Duration `yaml:"pool_timeout"`

	// OpenAI settings
	OpenAIAPIKey  string `yaml:"-"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`

	// Server settings
	Addr string `yaml:"addr"`

	// Retrieval settings
	Store         string `yaml:"store"`
	StoreDir      string `yaml:"store_dir"`
	WebSearch     bool   `yaml:"web_search"`
	WikipediaLang string `yaml:"wikipedia_lang"`
	Embedder      string `yaml:"embedder"`
	EmbeddingPath string `yaml:"embedding_model"`

	// Logging settings
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// Default values
const (
	DefaultBackend       = "auto"
	DefaultCtxSize       = 2048
	DefaultBatchSize     = 512
	DefaultMaxTokens     = 512
	DefaultSampler       = "default"
	DefaultPoolMin       = 2
	DefaultPoolTimeout   = 30 * time.Second
	DefaultWorkers       = 1
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultAddr          = "127.0.0.1:8080"
	DefaultStore         = "memory"
	DefaultWikipediaLang = "en"
	DefaultEmbedder      = "hash"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

var (
	backendKinds = map[string]bool{
		"native": true, "ffi": true,
		"subprocess": true, "cli": true, "process": true,
		"auto": true, "default": true,
		"openai": true,
	}
	storeKinds    = map[string]bool{"memory": true, "badger": true}
	embedderKinds = map[string]bool{"hash": true, "model": true}
)

// Get returns the global configuration, loading from environment if not already loaded
func Get() *Config {
	configOnce.Do(func() {
		globalConfig = loadFromEnv()
	})
	return globalConfig
}

// Reset clears the global configuration, forcing reload on next Get()
// This is primarily useful for testing
func Reset() {
	configOnce = sync.Once{}
	globalConfig = nil
}

// Load reads the environment, overlays the YAML file at path when given,
// validates the result and installs it as the global configuration.
func Load(path string) (*Config, error) {
	cfg := loadFromEnv()
	if path != "" {
		if err := cfg.Overlay(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	configOnce.Do(func() {})
	globalConfig = cfg
	return cfg, nil
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv() *Config {
	threads := inference.DefaultThreads()
	poolMax := inference.DefaultPoolConfig().MaxSize
	return &Config{
		// Model settings
		ModelPath:        getEnv("BITRAG_MODEL_PATH", ""),
		ModelID:          getEnv("BITRAG_MODEL", ""),
		ModelsDir:        getEnv("BITRAG_MODELS_DIR", ""),
		HuggingFaceToken: getEnv("HUGGINGFACE_TOKEN", ""),

		// Backend settings
		Backend:     getEnv("BITRAG_BACKEND", DefaultBackend),
		LlamaLibDir: getEnv("BITRAG_LLAMA_LIB", ""),
		CLIPath:     getEnv("BITNET_CLI_PATH", ""),
		Isolate:     getEnvBool("BITRAG_ISOLATE", false),
		Workers:     getEnvInt("BITRAG_WORKERS", DefaultWorkers),

		// Inference settings
		CtxSize:      getEnvInt("BITRAG_CTX_SIZE", DefaultCtxSize),
		BatchSize:    getEnvInt("BITRAG_BATCH_SIZE", DefaultBatchSize),
		Threads:      getEnvInt("BITRAG_THREADS", threads),
		ThreadsBatch: getEnvInt("BITRAG_THREADS_BATCH", threads),
		GPULayers:    getEnvInt("BITRAG_GPU_LAYERS", 0),
		UseMmap:      getEnvBool("BITRAG_MMAP", true),
		UseMlock:     getEnvBool("BITRAG_MLOCK", false),
		MaxTokens:    getEnvInt("BITRAG_MAX_TOKENS", DefaultMaxTokens),
		Sampler:      getEnv("BITRAG_SAMPLER", DefaultSampler),

		// Context pool settings
		PoolMin:     getEnvInt("BITRAG_POOL_MIN", min(DefaultPoolMin, poolMax)),
		PoolMax:     getEnvInt("BITRAG_POOL_MAX", poolMax),
		PoolTimeout: getEnvDuration("BITRAG_POOL_TIMEOUT", DefaultPoolTimeout),

		// OpenAI settings
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", DefaultOpenAIBaseURL),
		OpenAIModel:   getEnv("OPENAI_MODEL", DefaultOpenAIModel),

		// Server settings
		Addr: getEnv("BITRAG_ADDR", DefaultAddr),

		// Retrieval settings
		Store:         getEnv("BITRAG_STORE", DefaultStore),
		StoreDir:      getEnv("BITRAG_STORE_DIR", ""),
		WebSearch:     getEnvBool("BITRAG_WEB_SEARCH", true),
		WikipediaLang: getEnv("BITRAG_WIKIPEDIA_LANG", DefaultWikipediaLang),
		Embedder:      getEnv("BITRAG_EMBEDDER", DefaultEmbedder),
		EmbeddingPath: getEnv("BITRAG_EMBEDDING_MODEL", ""),

		// Logging settings
		LogLevel:  getEnv("BITRAG_LOG_LEVEL", DefaultLogLevel),
		LogFormat: getEnv("BITRAG_LOG_FORMAT", DefaultLogFormat),
	}
}

// NewConfig creates a new configuration with custom values
// This is useful for testing or programmatic configuration
func NewConfig() *Config {
	threads := inference.DefaultThreads()
	poolMax := inference.DefaultPoolConfig().MaxSize
	return &Config{
		Backend:       DefaultBackend,
		Workers:       DefaultWorkers,
		CtxSize:       DefaultCtxSize,
		BatchSize:     DefaultBatchSize,
		Threads:       threads,
		ThreadsBatch:  threads,
		UseMmap:       true,
		MaxTokens:     DefaultMaxTokens,
		Sampler:       DefaultSampler,
		PoolMin:       min(DefaultPoolMin, poolMax),
		PoolMax:       poolMax,
		PoolTimeout:   DefaultPoolTimeout,
		OpenAIBaseURL: DefaultOpenAIBaseURL,
		OpenAIModel:   DefaultOpenAIModel,
		Addr:          DefaultAddr,
		Store:         DefaultStore,
		WebSearch:     true,
		WikipediaLang: DefaultWikipediaLang,
		Embedder:      DefaultEmbedder,
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
	}
}

// Overlay reads a YAML file and replaces every field it sets.
func (c *Config) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// WithModel configures the model file or catalogue id
func (c *Config) WithModel(path, id string) *Config {
	c.ModelPath = path
	if id != "" {
		c.ModelID = id
	}
	return c
}

// WithBackend selects the backend kind
func (c *Config) WithBackend(kind string) *Config {
	if kind != "" {
		c.Backend = kind
	}
	return c
}

// WithPool configures the context pool
func (c *Config) WithPool(minSize, maxSize int, timeout time.Duration) *Config {
	c.PoolMin = minSize
	c.PoolMax = maxSize
	if timeout > 0 {
		c.PoolTimeout = timeout
	}
	return c
}

// WithContext configures the execution window and thread count
func (c *Config) WithContext(ctxSize, threads int) *Config {
	if ctxSize > 0 {
		c.CtxSize = ctxSize
	}
	if threads > 0 {
		c.Threads = threads
		c.ThreadsBatch = threads
	}
	return c
}

// WithOpenAI configures OpenAI settings
func (c *Config) WithOpenAI(apiKey, baseURL, model string) *Config {
	c.OpenAIAPIKey = apiKey
	if baseURL != "" {
		c.OpenAIBaseURL = baseURL
	}
	if model != "" {
		c.OpenAIModel = model
	}
	return c
}

// WithServer sets the listen address
func (c *Config) WithServer(addr string) *Config {
	if addr != "" {
		c.Addr = addr
	}
	return c
}

// WithStore selects the document store
func (c *Config) WithStore(kind, dir string) *Config {
	if kind != "" {
		c.Store = kind
	}
	c.StoreDir = dir
	return c
}

// WithLogging sets level and format
func (c *Config) WithLogging(level, format string) *Config {
	if level != "" {
		c.LogLevel = level
	}
	if format != "" {
		c.LogFormat = format
	}
	return c
}

// Validate checks if the configuration is valid for the intended use
func (c *Config) Validate() error {
	if !backendKinds[strings.ToLower(c.Backend)] {
		return fmt.Errorf("%w: unknown backend %q (want native, subprocess, auto or openai)", inference.ErrInvalidConfig, c.Backend)
	}
	if !storeKinds[strings.ToLower(c.Store)] {
		return fmt.Errorf("%w: unknown store %q (want memory or badger)", inference.ErrInvalidConfig, c.Store)
	}
	if strings.EqualFold(c.Store, "badger") && c.StoreDir == "" {
		return fmt.Errorf("%w: badger store needs BITRAG_STORE_DIR", inference.ErrInvalidConfig)
	}
	if !embedderKinds[strings.ToLower(c.Embedder)] {
		return fmt.Errorf("%w: unknown embedder %q (want hash or model)", inference.ErrInvalidConfig, c.Embedder)
	}
	if c.CtxSize <= 0 {
		return fmt.Errorf("%w: context size must be positive, got %d", inference.ErrInvalidConfig, c.CtxSize)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be positive, got %d", inference.ErrInvalidConfig, c.MaxTokens)
	}
	if _, ok := inference.SamplerPreset(c.Sampler); !ok {
		return fmt.Errorf("%w: unknown sampler preset %q", inference.ErrInvalidConfig, c.Sampler)
	}
	return c.PoolConfig().Validate()
}

// EmbeddingModel returns the weights used for model embeddings: the
// dedicated embedding model when set, the generation model otherwise.
func (c *Config) EmbeddingModel() string {
	if c.EmbeddingPath != "" {
		return c.EmbeddingPath
	}
	return c.ModelPath
}

// ModelParams returns the model loading parameters.
func (c *Config) ModelParams() inference.ModelParams {
	return inference.ModelParams{
		GPULayers: c.GPULayers,
		UseMmap:   c.UseMmap,
		UseMlock:  c.UseMlock,
	}
}

// ContextParams returns the execution context parameters.
func (c *Config) ContextParams() inference.ContextParams {
	p := inference.DefaultContextParams()
	p.NCtx = c.CtxSize
	if c.BatchSize > 0 {
		p.NBatch = c.BatchSize
	}
	if c.Threads > 0 {
		p.Threads = c.Threads
	}
	if c.ThreadsBatch > 0 {
		p.ThreadsBatch = c.ThreadsBatch
	}
	return p
}

// PoolConfig returns the context pool bounds.
func (c *Config) PoolConfig() inference.PoolConfig {
	return inference.PoolConfig{
		MinSize:        c.PoolMin,
		MaxSize:        c.PoolMax,
		AcquireTimeout: c.PoolTimeout,
	}
}

// SamplerConfig returns the configured preset, falling back to the default.
func (c *Config) SamplerConfig() inference.SamplerConfig {
	if sc, ok := inference.SamplerPreset(c.Sampler); ok {
		return sc
	}
	return inference.DefaultSamplerConfig()
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		// Also accept "yes"/"on" as true
		switch strings.ToLower(value) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or plain seconds ("45").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
