package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/LiboWorks/bitrag/internal/backend"
	"github.com/LiboWorks/bitrag/internal/generator"
	"github.com/LiboWorks/bitrag/internal/output"
	"github.com/LiboWorks/bitrag/internal/worker"
)

// workerCmd is the child side of isolated mode. It loads the native backend
// and serves requests from the parent over stdin and stdout.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run as an inference worker (spawned by isolated mode)",
	Hidden: true,
	Args:   cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if !worker.IsWorkerProcess() {
			fail("worker is started by bitrag itself, set %s=1 to run it by hand", worker.WorkerEnv)
		}
		cfg, log := loadConfig()
		ctx, cancel := signalContext()
		defer cancel()

		// The protocol owns stdout. Anything else printed there, llama.cpp
		// included, goes to stderr.
		redir, err := output.RedirectStdout(os.Stderr)
		if err != nil {
			fail("%v", err)
		}
		defer redir.Restore()

		if err := resolveModel(cfg, log); err != nil {
			fail("%v", err)
		}
		opts, err := generator.OptionsFromConfig(cfg, log)
		if err != nil {
			fail("%v", err)
		}
		native := opts.Native
		native.Logger = log
		b, err := backend.NewNative(native)
		if err != nil {
			fail("Failed to load model: %v", err)
		}
		defer b.Close()

		if err := worker.NewServer(b, log).Run(ctx, os.Stdin, redir.Stdout()); err != nil {
			fail("%v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
