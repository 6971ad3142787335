package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/LiboWorks/bitrag/internal/backend"
	"github.com/LiboWorks/bitrag/internal/config"
	"github.com/LiboWorks/bitrag/internal/downloader"
	"github.com/LiboWorks/bitrag/internal/generator"
	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/logging"
	"github.com/LiboWorks/bitrag/internal/rag"
)

// signalContext is cancelled on Ctrl-C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// resolveModel fills cfg.ModelPath from the model cache when only an id is
// configured. The resolved path is exported so worker processes reuse it.
func resolveModel(cfg *config.Config, log logging.Logger) error {
	if cfg.ModelPath != "" || strings.EqualFold(cfg.Backend, "openai") {
		return nil
	}
	path, err := downloader.NewCache(cfg.ModelsDir, log).Resolve(cfg.ModelID)
	if err != nil {
		return err
	}
	cfg.ModelPath = path
	return os.Setenv("BITRAG_MODEL_PATH", path)
}

func newGenerator(cfg *config.Config, log logging.Logger) (*generator.Generator, error) {
	if err := resolveModel(cfg, log); err != nil {
		return nil, err
	}
	opts, err := generator.OptionsFromConfig(cfg, log)
	if err != nil {
		return nil, err
	}
	return generator.New(opts)
}

func openStore(cfg *config.Config, log logging.Logger) (rag.Store, error) {
	if strings.EqualFold(cfg.Store, "badger") {
		return rag.OpenBadgerStore(rag.BadgerOptions{Dir: cfg.StoreDir, Logger: log})
	}
	return rag.NewMemoryStore(), nil
}

func newWebSearcher(cfg *config.Config, log logging.Logger) rag.WebSearcher {
	if !cfg.WebSearch {
		return nil
	}
	wc := rag.DefaultWikipediaConfig()
	wc.Language = cfg.WikipediaLang
	wc.Logger = log
	return rag.NewWikipediaSearcher(wc)
}

// newEmbedder returns the configured embedder. The model embedder falls back
// to the hash embedder when its weights cannot be loaded.
func newEmbedder(cfg *config.Config, log logging.Logger) rag.Embedder {
	if !strings.EqualFold(cfg.Embedder, "model") {
		return rag.NewHashEmbedder(rag.DefaultDimension)
	}
	load := func() (*inference.Model, error) {
		if cfg.EmbeddingPath == "" {
			if err := resolveModel(cfg, log); err != nil {
				return nil, err
			}
		}
		return backend.LoadModel(backend.NativeConfig{
			ModelPath:  cfg.EmbeddingModel(),
			LibraryDir: cfg.LlamaLibDir,
			Model:      cfg.ModelParams(),
			Logger:     log,
		})
	}
	return rag.OpenEmbedder(load, cfg.ContextParams(), log)
}
