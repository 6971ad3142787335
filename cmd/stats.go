package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statsCmd prints store statistics
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document store statistics",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log := loadConfig()
		ctx, cancel := signalContext()
		defer cancel()

		store, err := openStore(cfg, log)
		if err != nil {
			fail("Failed to open store: %v", err)
		}
		defer store.Close()

		st, err := store.Stats(ctx)
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("Store:      %s\n", cfg.Store)
		fmt.Printf("Documents:  %d\n", st.Documents)
		fmt.Printf("Dimension:  %d\n", st.Dimension)
		fmt.Printf("Content:    %d bytes\n", st.TotalContentBytes)
		fmt.Printf("Users:      %d\n", st.UniqueUsers)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
