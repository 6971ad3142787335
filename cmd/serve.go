package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/LiboWorks/bitrag/internal/downloader"
	"github.com/LiboWorks/bitrag/internal/rag"
	"github.com/LiboWorks/bitrag/internal/server"
)

var (
	addr        string
	readTimeout time.Duration
)

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generation and retrieval HTTP API",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log := loadConfig()
		cfg.WithServer(addr)
		ctx, cancel := signalContext()
		defer cancel()

		store, err := openStore(cfg, log)
		if err != nil {
			fail("Failed to open store: %v", err)
		}
		defer store.Close()
		emb := newEmbedder(cfg, log)
		defer rag.CloseEmbedder(emb)

		if corpusFile != "" {
			docs, err := rag.LoadCorpusFile(corpusFile)
			if err != nil {
				fail("Failed to read corpus: %v", err)
			}
			if _, err := rag.Ingest(ctx, store, emb, docs); err != nil {
				fail("Failed to index corpus: %v", err)
			}
			fmt.Fprintf(os.Stderr, "📚 Indexed %d documents from %s\n", len(docs), corpusFile)
		}

		fmt.Fprintln(os.Stderr, "🔧 Loading model...")
		gen, err := newGenerator(cfg, log)
		if err != nil {
			fail("Failed to load model: %v", err)
		}
		defer gen.Close()

		assistant, err := rag.NewAssistant(rag.AssistantConfig{
			Generator: gen,
			Store:     store,
			Embedder:  emb,
			Web:       newWebSearcher(cfg, log),
			Logger:    log,
		})
		if err != nil {
			fail("%v", err)
		}
		srv, err := server.New(server.Config{
			Generator: gen,
			Assistant: assistant,
			Store:     store,
			Embedder:  emb,
			ModelName: modelName(cfg.ModelPath, cfg.OpenAIModel, cfg.Backend),
			Logger:    log,
		})
		if err != nil {
			fail("%v", err)
		}

		fmt.Fprintf(os.Stderr, "🚀 Listening on http://%s (backend %s)\n", cfg.Addr, gen.Name())
		if err := srv.Start(ctx, cfg.Addr, readTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fail("Server stopped: %v", err)
		}
		fmt.Fprintln(os.Stderr, "👋 Server stopped")
	},
}

// modelName picks the id reported by /v1/models.
func modelName(path, openaiModel, backend string) string {
	if strings.EqualFold(backend, "openai") {
		return openaiModel
	}
	if m, ok := downloader.FromPath(path); ok {
		return m.ID
	}
	if path != "" {
		return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return ""
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config, 127.0.0.1:8080)")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "Request header read timeout")
	serveCmd.Flags().StringVar(&corpusFile, "corpus", "", "YAML corpus to index at startup")
}
