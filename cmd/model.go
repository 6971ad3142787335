package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/LiboWorks/bitrag/internal/downloader"
)

var (
	forceDownload bool
	skipVerify    bool
)

// modelCmd groups the model cache commands
var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "List, download and remove models",
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogue models and which are downloaded",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log := loadConfig()
		cache := downloader.NewCache(cfg.ModelsDir, log)
		for _, m := range downloader.Models() {
			mark := "  "
			if cache.IsDownloaded(m) {
				mark = "✅"
			}
			fmt.Printf("%s %-22s %5.1fB  %9s  %s\n", mark, m.ID, m.Params, downloader.HumanSize(m.Size), m.Description)
		}
		total, err := cache.TotalSize()
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("\n📦 %s in %s\n", downloader.HumanSize(total), cache.Dir)
	},
}

var modelPathCmd = &cobra.Command{
	Use:   "path [model]",
	Short: "Print the local path of a downloaded model",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log := loadConfig()
		name := cfg.ModelID
		if len(args) == 1 {
			name = args[0]
		}
		path, err := downloader.NewCache(cfg.ModelsDir, log).Resolve(name)
		if err != nil {
			fail("%v", err)
		}
		fmt.Println(path)
	},
}

var modelDownloadCmd = &cobra.Command{
	Use:   "download [model]",
	Short: "Download a model from Hugging Face",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log := loadConfig()
		ctx, cancel := signalContext()
		defer cancel()

		name := cfg.ModelID
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			name = downloader.DefaultModelID
		}
		m, err := downloader.Lookup(name)
		if err != nil {
			fail("%v", err)
		}

		fmt.Printf("⬇️  %s (%s)\n", m.Name, downloader.HumanSize(m.Size))
		cache := downloader.NewCache(cfg.ModelsDir, log)
		var last time.Time
		path, err := cache.Download(ctx, m, downloader.DownloadOptions{
			Force:  forceDownload,
			Verify: !skipVerify,
			Token:  cfg.HuggingFaceToken,
			Progress: func(done, total int64) {
				if time.Since(last) < 250*time.Millisecond && done != total {
					return
				}
				last = time.Now()
				if total > 0 {
					fmt.Printf("\r   %s / %s (%.0f%%)", downloader.HumanSize(done), downloader.HumanSize(total), 100*float64(done)/float64(total))
				} else {
					fmt.Printf("\r   %s", downloader.HumanSize(done))
				}
			},
		})
		fmt.Println()
		if err != nil {
			fail("Download failed: %v", err)
		}
		fmt.Printf("✅ Saved to %s\n", path)
	},
}

var modelDeleteCmd = &cobra.Command{
	Use:   "delete <model>",
	Short: "Remove a downloaded model",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log := loadConfig()
		m, err := downloader.Lookup(args[0])
		if err != nil {
			fail("%v", err)
		}
		if err := downloader.NewCache(cfg.ModelsDir, log).Delete(m); err != nil {
			fail("%v", err)
		}
		fmt.Printf("🗑️  Deleted %s\n", m.ID)
	},
}

func init() {
	rootCmd.AddCommand(modelCmd)
	modelCmd.AddCommand(modelListCmd, modelPathCmd, modelDownloadCmd, modelDeleteCmd)
	modelDownloadCmd.Flags().BoolVarP(&forceDownload, "force", "f", false, "Download even when a copy exists")
	modelDownloadCmd.Flags().BoolVar(&skipVerify, "no-verify", false, "Skip the SHA-256 check")
}
