package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/rag"
)

var (
	corpusFile  string
	topK        int
	noWeb       bool
	showContext bool
)

// askCmd answers a question with retrieved context
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question using the document store and Wikipedia",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log := loadConfig()
		ctx, cancel := signalContext()
		defer cancel()
		if noWeb {
			cfg.WebSearch = false
		}

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
			n, err := rag.Ingest(ctx, store, emb, docs)
			if err != nil {
				fail("Indexed %d of %d documents: %v", n, len(docs), err)
			}
			fmt.Fprintf(os.Stderr, "📚 Indexed %d documents from %s\n", n, corpusFile)
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
			TopK:      topK,
			MaxTokens: maxTokens,
			Logger:    log,
		})
		if err != nil {
			fail("%v", err)
		}

		question := strings.Join(args, " ")
		var ans rag.Answer
		if stream {
			ans, err = assistant.AskStreaming(ctx, question, func(piece string) error {
				fmt.Print(piece)
				return nil
			})
			fmt.Println()
		} else {
			ans, err = assistant.Ask(ctx, question)
			if err == nil {
				fmt.Println(ans.Text)
			}
		}
		if err != nil {
			fail("Answer failed (%s): %v", inference.Stage(err), err)
		}
		printAnswerDetails(ans)
	},
}

func printAnswerDetails(ans rag.Answer) {
	c := ans.Classification
	fmt.Fprintf(os.Stderr, "\n🧭 %s → %s (confidence %.2f)\n", c.Category, c.Strategy, c.Confidence)
	if ans.Asked != ans.Question {
		fmt.Fprintf(os.Stderr, "🌐 %s → English: %s\n", ans.Language, ans.Asked)
	}
	for _, s := range ans.Sources {
		fmt.Fprintf(os.Stderr, "📄 [%.2f] %s\n", s.Score, preview(s.Document.Content, 72))
	}
	for _, w := range ans.Web {
		fmt.Fprintf(os.Stderr, "🔗 %s %s\n", w.Title, w.URL)
	}
	if showContext && ans.Context != "" {
		fmt.Fprintf(os.Stderr, "\n--- context ---\n%s\n---------------\n", ans.Context)
	}
	fmt.Fprintf(os.Stderr, "⏱️  retrieve %s, generate %s\n", ans.Timing.Retrieve, ans.Timing.Generate)
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&corpusFile, "corpus", "", "YAML corpus to index before answering")
	askCmd.Flags().IntVarP(&topK, "top-k", "k", 3, "Local documents to retrieve")
	askCmd.Flags().BoolVar(&noWeb, "no-web", false, "Disable Wikipedia lookups")
	askCmd.Flags().BoolVar(&showContext, "show-context", false, "Print the context passed to the model")
	askCmd.Flags().IntVarP(&maxTokens, "max-tokens", "n", 0, "Maximum tokens to generate (0 uses the config)")
	askCmd.Flags().BoolVarP(&stream, "stream", "s", false, "Print tokens as they are generated")
}
