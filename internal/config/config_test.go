package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LiboWorks/bitrag/internal/config"
	"github.com/LiboWorks/bitrag/internal/inference"
)

func TestGetConfig(t *testing.T) {
	// Reset to get fresh config
	config.Reset()

	cfg := config.Get()
	if cfg == nil {
		t.Fatal("config should not be nil")
	}

	// Check defaults
	if cfg.Backend != config.DefaultBackend {
		t.Errorf("expected default backend %q, got %q", config.DefaultBackend, cfg.Backend)
	}

	if cfg.CtxSize != config.DefaultCtxSize {
		t.Errorf("expected default ctx size %d, got %d", config.DefaultCtxSize, cfg.CtxSize)
	}

	if cfg.PoolTimeout != config.DefaultPoolTimeout {
		t.Errorf("expected default pool timeout %v, got %v", config.DefaultPoolTimeout, cfg.PoolTimeout)
	}

	if !cfg.UseMmap {
		t.Error("expected mmap to be enabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	// Reset and set env vars
	config.Reset()

	os.Setenv("BITRAG_BACKEND", "subprocess")
	os.Setenv("BITRAG_ISOLATE", "1")
	os.Setenv("BITRAG_MLOCK", "on")
	os.Setenv("BITRAG_POOL_TIMEOUT", "5")
	os.Setenv("BITRAG_CTX_SIZE", "4096")
	defer func() {
		os.Unsetenv("BITRAG_BACKEND")
		os.Unsetenv("BITRAG_ISOLATE")
		os.Unsetenv("BITRAG_MLOCK")
		os.Unsetenv("BITRAG_POOL_TIMEOUT")
		os.Unsetenv("BITRAG_CTX_SIZE")
		config.Reset()
	}()

	cfg := config.Get()

	if cfg.Backend != "subprocess" {
		t.Errorf("expected backend subprocess, got %q", cfg.Backend)
	}

	if !cfg.Isolate {
		t.Error("expected Isolate to be true")
	}

	if !cfg.UseMlock {
		t.Error("expected UseMlock to be true")
	}

	if cfg.PoolTimeout != 5*time.Second {
		t.Errorf("expected pool timeout 5s, got %v", cfg.PoolTimeout)
	}

	if got := cfg.ContextParams().NCtx; got != 4096 {
		t.Errorf("expected context window 4096, got %d", got)
	}
}

func TestNewConfigBuilder(t *testing.T) {
	cfg := config.NewConfig().
		WithOpenAI("test-key", "https://custom.api", "gpt-4").
		WithModel("/path/to/model.gguf", "bitnet-b1.58-2b-4t").
		WithBackend("native").
		WithPool(1, 3, 10*time.Second).
		WithContext(1024, 6).
		WithServer(":9000").
		WithStore("badger", "/tmp/store").
		WithLogging("debug", "json")

	if cfg.OpenAIAPIKey != "test-key" {
		t.Errorf("expected API key 'test-key', got %q", cfg.OpenAIAPIKey)
	}

	if cfg.OpenAIBaseURL != "https://custom.api" {
		t.Errorf("expected base URL 'https://custom.api', got %q", cfg.OpenAIBaseURL)
	}

	if cfg.ModelPath != "/path/to/model.gguf" || cfg.ModelID != "bitnet-b1.58-2b-4t" {
		t.Errorf("unexpected model settings %q / %q", cfg.ModelPath, cfg.ModelID)
	}

	pool := cfg.PoolConfig()
	if pool.MinSize != 1 || pool.MaxSize != 3 || pool.AcquireTimeout != 10*time.Second {
		t.Errorf("unexpected pool config %+v", pool)
	}

	ctx := cfg.ContextParams()
	if ctx.NCtx != 1024 || ctx.Threads != 6 || ctx.ThreadsBatch != 6 {
		t.Errorf("unexpected context params %+v", ctx)
	}

	if cfg.Addr != ":9000" {
		t.Errorf("expected addr ':9000', got %q", cfg.Addr)
	}

	if cfg.Store != "badger" || cfg.StoreDir != "/tmp/store" {
		t.Errorf("unexpected store %q at %q", cfg.Store, cfg.StoreDir)
	}

	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("unexpected logging %q/%q", cfg.LogLevel, cfg.LogFormat)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("builder config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown backend", func(c *config.Config) { c.Backend = "gpu" }},
		{"unknown store", func(c *config.Config) { c.Store = "redis" }},
		{"badger without dir", func(c *config.Config) { c.Store = "badger"; c.StoreDir = "" }},
		{"zero ctx", func(c *config.Config) { c.CtxSize = 0 }},
		{"pool min above max", func(c *config.Config) { c.PoolMin = 5; c.PoolMax = 2 }},
		{"pool max zero", func(c *config.Config) { c.PoolMin = 0; c.PoolMax = 0 }},
		{"unknown sampler", func(c *config.Config) { c.Sampler = "wild" }},
		{"unknown embedder", func(c *config.Config) { c.Embedder = "bert" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, inference.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	for _, alias := range []string{"ffi", "cli", "process", "default", "OpenAI"} {
		cfg := config.NewConfig().WithBackend(alias)
		if err := cfg.Validate(); err != nil {
			t.Errorf("backend alias %q rejected: %v", alias, err)
		}
	}
}

func TestEmbeddingModel(t *testing.T) {
	cfg := config.NewConfig().WithModel("/models/chat.gguf", "")
	if got := cfg.EmbeddingModel(); got != "/models/chat.gguf" {
		t.Errorf("EmbeddingModel() = %q, want the generation model", got)
	}
	cfg.EmbeddingPath = "/models/embed.gguf"
	if got := cfg.EmbeddingModel(); got != "/models/embed.gguf" {
		t.Errorf("EmbeddingModel() = %q, want the dedicated model", got)
	}
	if cfg.Embedder != config.DefaultEmbedder {
		t.Errorf("Embedder = %q, want %q", cfg.Embedder, config.DefaultEmbedder)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	config.Reset()
	defer config.Reset()

	path := filepath.Join(t.TempDir(), "bitrag.yaml")
	data := []byte("backend: native\nctx_size: 1024\npool_timeout: 2s\nsampler: greedy\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend != "native" || cfg.CtxSize != 1024 || cfg.PoolTimeout != 2*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}

	if cfg.SamplerConfig() != inference.GreedySamplerConfig() {
		t.Errorf("expected greedy sampler, got %+v", cfg.SamplerConfig())
	}

	if config.Get() != cfg {
		t.Error("Load() should install the global config")
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	config.Reset()
	defer config.Reset()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("backend: quantum\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := config.Load(path); !errors.Is(err, inference.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConfigSingleton(t *testing.T) {
	config.Reset()

	cfg1 := config.Get()
	cfg2 := config.Get()

	if cfg1 != cfg2 {
		t.Error("Get() should return the same instance")
	}
}
