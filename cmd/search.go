package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LiboWorks/bitrag/internal/rag"
)

var searchTopK int

// searchCmd queries the store without generating an answer
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the stored documents closest to a query",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log := loadConfig()
		ctx, cancel := signalContext()
		defer cancel()

		store, err := openStore(cfg, log)
		if err != nil {
			fail("Failed to open store: %v", err)
		}
		defer store.Close()
		emb := newEmbedder(cfg, log)
		defer rag.CloseEmbedder(emb)

		vec, err := emb.Embed(ctx, strings.Join(args, " "))
		if err != nil {
			fail("Failed to embed query: %v", err)
		}
		results, err := store.Search(ctx, vec, searchTopK)
		if err != nil {
			fail("Search failed: %v", err)
		}
		if len(results) == 0 {
			fmt.Println("No documents found")
			return
		}
		for _, r := range results {
			fmt.Printf("%d. [%.3f] %s\n", r.Rank+1, r.Score, documentLabel(r.Document))
			fmt.Printf("   %s\n", preview(r.Document.Content, 120))
		}
	},
}

// documentLabel names a document by its source location when it has one.
// Line numbers may come back from the badger store as any integer type.
func documentLabel(d rag.Document) string {
	path, ok := d.Metadata["path"].(string)
	if !ok {
		return fmt.Sprintf("%s (%s)", d.ID, d.Source)
	}
	switch start := d.Metadata["start_line"].(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%s:%d", path, start)
	}
	return path
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 5, "Number of results")
}
