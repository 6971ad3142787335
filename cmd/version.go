package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/LiboWorks/bitrag/internal/backend"
)

// Version is set at build time with -ldflags "-X github.com/LiboWorks/bitrag/cmd.Version=...".
var Version = "0.1.0-dev"

var probeBackends bool

// versionCmd prints build information and optionally probes every backend
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and backend information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bitrag %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		if !probeBackends {
			return
		}
		cfg, log := loadConfig()

		reg := backend.NewRegistry()
		defer reg.Close()
		for _, kind := range []backend.Type{backend.TypeNative, backend.TypeSubprocess, backend.TypeOpenAI} {
			c := *cfg
			c.Backend = string(kind)
			gen, err := newGenerator(&c, log)
			if err != nil {
				fmt.Printf("   %-10s ❌ %v\n", kind, err)
				continue
			}
			reg.Register(gen.Name(), gen.Backend())
		}
		if preferred, err := backend.ParseType(cfg.Backend); err == nil && preferred != backend.TypeAuto {
			reg.SetDefault(string(preferred))
		}

		def, _ := reg.Get("")
		for _, name := range reg.List() {
			b, _ := reg.Get(name)
			v, err := b.Version()
			if err != nil {
				v = err.Error()
			}
			mark := "  "
			if b == def {
				mark = "→ "
			}
			fmt.Printf(" %s%-10s ✅ %s (ready %t)\n", mark, name, v, b.IsReady())
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&probeBackends, "probe", false, "Try to load every backend and report which work")
}
