package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/LiboWorks/bitrag/internal/rag"
)

var classifyJSON bool

// classifyCmd shows how ask would route a question
var classifyCmd = &cobra.Command{
	Use:   "classify <question>",
	Short: "Show the category and retrieval strategy for a question",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := rag.Classify(strings.Join(args, " "))
		if classifyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(c); err != nil {
				fail("%v", err)
			}
			return
		}
		fmt.Printf("Category:   %s\n", c.Category)
		fmt.Printf("Strategy:   %s\n", c.Strategy)
		fmt.Printf("Confidence: %.2f (score %.2f)\n", c.Confidence, c.Score)
		for _, r := range c.Reasons {
			fmt.Printf("  • %s\n", r)
		}
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Print the classification as JSON")
}
