package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LiboWorks/bitrag/internal/rag"
)

var (
	clearStore   bool
	indexOptions = rag.DefaultIndexOptions()
)

// indexCmd loads corpus files and source trees into the store
var indexCmd = &cobra.Command{
	Use:   "index <path>...",
	Short: "Index source files, directories and YAML corpus files",
	Long: `index cuts source files into symbol chunks (functions, classes, types),
embeds them and stores them. Directories are walked; dependency, build and
hidden directories are skipped. Arguments ending in .yaml or .yml are read as
corpus files instead.

Use it with the badger store (BITRAG_STORE=badger, BITRAG_STORE_DIR=...) so the
documents survive for later ask and serve runs.`,
	Example: `  bitrag index ./src
  bitrag index . --include '*.go' --exclude '*_test.go'
  bitrag index docs/corpus.yaml --clear`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log := loadConfig()
		ctx, cancel := signalContext()
		defer cancel()

		store, err := openStore(cfg, log)
		if err != nil {
			fail("Failed to open store: %v", err)
		}
		defer store.Close()
		if cfg.Store == "memory" {
			fmt.Println("⚠️  Using the memory store, documents are discarded on exit")
		}
		if clearStore {
			if err := store.Clear(ctx); err != nil {
				fail("Failed to clear store: %v", err)
			}
			fmt.Println("🧹 Store cleared")
		}

		emb := newEmbedder(cfg, log)
		defer rag.CloseEmbedder(emb)

		var sources []string
		for _, path := range args {
			if !isCorpusFile(path) {
				sources = append(sources, path)
				continue
			}
			docs, err := rag.LoadCorpusFile(path)
			if err != nil {
				fail("Failed to read corpus: %v", err)
			}
			n, err := rag.Ingest(ctx, store, emb, docs)
			if err != nil {
				fail("Indexed %d of %d documents from %s: %v", n, len(docs), path, err)
			}
			fmt.Printf("✅ %s: %d documents\n", path, n)
		}

		if len(sources) > 0 {
			opts := indexOptions
			opts.Logger = log
			stats, err := rag.IndexPaths(ctx, store, emb, sources, opts)
			if err != nil {
				fail("Indexing failed after %d files: %v", stats.Files, err)
			}
			printIndexStats(stats)
		}

		st, err := store.Stats(ctx)
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("📚 Store holds %d documents (%d bytes, %d users)\n", st.Documents, st.TotalContentBytes, st.UniqueUsers)
	},
}

func isCorpusFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func printIndexStats(s rag.IndexStats) {
	fmt.Printf("✅ Indexed %d files: %d chunks, %d lines\n", s.Files, s.Chunks, s.Lines)
	if s.Skipped > 0 || s.Failed > 0 {
		fmt.Printf("   skipped %d oversized, %d unreadable\n", s.Skipped, s.Failed)
	}
	if len(s.ByLanguage) > 0 {
		fmt.Printf("   languages: %s\n", countsLine(s.ByLanguage))
	}
	if len(s.ByKind) > 0 {
		fmt.Printf("   kinds: %s\n", countsLine(s.ByKind))
	}
}

// countsLine renders counts as "a=3 b=1", largest first.
func countsLine[K ~string](counts map[K]int) string {
	keys := make([]K, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}

func init() {
	rootCmd.AddCommand(indexCmd)
	f := indexCmd.Flags()
	f.BoolVar(&clearStore, "clear", false, "Remove all documents before indexing")
	f.BoolVarP(&indexOptions.Recursive, "recursive", "r", true, "Descend into subdirectories")
	f.StringSliceVar(&indexOptions.Include, "include", nil, "Only index files matching these globs")
	f.StringSliceVar(&indexOptions.Exclude, "exclude", nil, "Skip files and directories matching these globs")
	f.Int64Var(&indexOptions.MaxFileSize, "max-file-size", rag.DefaultMaxFileSize, "Skip files larger than this many bytes")
	f.IntVar(&indexOptions.ChunkLines, "chunk-lines", rag.DefaultChunkLines, "Window size for files without symbols")
}
