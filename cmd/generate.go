package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/LiboWorks/bitrag/internal/generator"
	"github.com/LiboWorks/bitrag/internal/inference"
)

var (
	maxTokens  int
	stream     bool
	translated bool
	preset     string
	systemMsg  string
)

// generateCmd runs a raw completion
var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Complete a prompt with the local model",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runGeneration(strings.Join(args, " "), false)
	},
}

// chatCmd wraps the message in the chat template
var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send one chat message to the local model",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runGeneration(strings.Join(args, " "), true)
	},
}

func runGeneration(text string, chat bool) {
	cfg, log := loadConfig()
	ctx, cancel := signalContext()
	defer cancel()

	sampler, err := presetSampler(preset)
	if err != nil {
		fail("%v", err)
	}

	fmt.Fprintln(os.Stderr, "🔧 Loading model...")
	gen, err := newGenerator(cfg, log)
	if err != nil {
		fail("Failed to load model: %v", err)
	}
	defer gen.Close()
	fmt.Fprintf(os.Stderr, "✅ Backend: %s\n", gen.Name())

	start := time.Now()
	req := generator.Request{Prompt: text, MaxTokens: maxTokens, Sampler: sampler}
	creq := generator.ChatRequest{System: systemMsg, User: text, MaxTokens: maxTokens, Sampler: sampler}

	switch {
	case translated:
		var out generator.Translated
		if chat {
			out, err = gen.ChatTranslated(ctx, creq)
		} else {
			out, err = gen.GenerateTranslated(ctx, req)
		}
		if err == nil {
			if out.Translated {
				fmt.Fprintf(os.Stderr, "🌐 %s → English: %s\n", out.Language, out.Question)
			}
			fmt.Println(out.Text)
		}
	case stream:
		printToken := func(piece string) error {
			fmt.Print(piece)
			return nil
		}
		if chat {
			_, err = gen.ChatStreaming(ctx, creq, printToken)
		} else {
			_, err = gen.GenerateStreaming(ctx, req, printToken)
		}
		fmt.Println()
	default:
		var out string
		if chat {
			out, err = gen.Chat(ctx, creq)
		} else {
			out, err = gen.Generate(ctx, req)
		}
		if err == nil {
			fmt.Println(out)
		}
	}
	if err != nil {
		fail("Generation failed (%s): %v", inference.Stage(err), err)
	}
	fmt.Fprintf(os.Stderr, "⏱️  %s\n", time.Since(start).Round(time.Millisecond))
}

// presetSampler returns nil for an empty name so the configured sampler applies.
func presetSampler(name string) (*inference.SamplerConfig, error) {
	if name == "" {
		return nil, nil
	}
	sc, ok := inference.SamplerPreset(name)
	if !ok {
		return nil, fmt.Errorf("unknown sampler preset %q (want default, balanced, greedy, precise or creative)", name)
	}
	return &sc, nil
}

func addGenerationFlags(c *cobra.Command) {
	c.Flags().IntVarP(&maxTokens, "max-tokens", "n", 0, "Maximum tokens to generate (0 uses the config)")
	c.Flags().BoolVarP(&stream, "stream", "s", false, "Print tokens as they are generated")
	c.Flags().BoolVarP(&translated, "translate", "t", false, "Translate a non-English prompt before generating")
	c.Flags().StringVarP(&preset, "preset", "p", "", "Sampler preset")
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(chatCmd)
	addGenerationFlags(generateCmd)
	addGenerationFlags(chatCmd)
	chatCmd.Flags().StringVar(&systemMsg, "system", "", "System prompt (defaults to the built-in assistant prompt)")
}
