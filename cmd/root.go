package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LiboWorks/bitrag/internal/config"
	"github.com/LiboWorks/bitrag/internal/logging"
)

// configEnv carries --config into spawned workers.
const configEnv = "BITRAG_CONFIG"

var (
	configFile string
	logLevel   string
	backendArg string
	modelArg   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bitrag",
	Short: "Local retrieval-augmented assistant on 1-bit LLMs",
	Long: `bitrag runs BitNet and other GGUF models locally and answers questions
with context retrieved from a document store or the web.

Features:
  - In-process inference through llama.cpp with a pooled set of contexts
  - Falls back to the bitnet CLI when the native library is missing
  - Optional worker processes isolate native crashes from the server
  - HTTP API with streaming and OpenAI-compatible chat completions
  - Model catalogue with downloads from Hugging Face`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv(configEnv), "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVarP(&backendArg, "backend", "b", "", "native, subprocess, auto or openai")
	rootCmd.PersistentFlags().StringVarP(&modelArg, "model", "m", "", "model file or catalogue id")
}

// loadConfig reads the environment and --config, applies the global flags
// and sets up logging on stderr so stdout stays free for answers.
func loadConfig() (*config.Config, logging.Logger) {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if configFile != "" {
		_ = os.Setenv(configEnv, configFile)
	}
	cfg.WithBackend(backendArg).WithLogging(logLevel, "")
	if modelArg != "" {
		if info, err := os.Stat(modelArg); err == nil && info.Mode().IsRegular() {
			cfg.WithModel(modelArg, "")
		} else {
			cfg.WithModel("", modelArg)
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg, logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}

// fail prints a status line and exits.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "❌ "+format+"\n", args...)
	os.Exit(1)
}
