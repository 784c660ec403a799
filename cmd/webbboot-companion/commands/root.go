package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/webbboot/companion/internal/config"
	"github.com/webbboot/companion/pkg/errors"
)

var (
	logLevel *slog.LevelVar
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "webbboot-companion",
	Short: "webbboot companion - bootable USB media from the browser",
	Long: `Runs the local control plane for webbboot: enumerates USB mass-storage
devices, formats them and writes disk images while streaming progress to
the web controller.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command. level is the process-wide log level.
func Execute(level *slog.LevelVar) {
	logLevel = level
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("listen-addr", "127.0.0.1:8080", "Control channel listen address")
	rootCmd.PersistentFlags().String("sqlite-path", ".artifacts/jobs.db", "SQLite job history path")
	rootCmd.PersistentFlags().String("fsm-db-path", ".artifacts/fsm", "FSM BoltDB directory")
	rootCmd.PersistentFlags().String("image-cache-dir", ".artifacts/images", "Directory for downloaded images")
	rootCmd.PersistentFlags().String("s3-region", "us-east-1", "S3 region for s3:// images")
	rootCmd.PersistentFlags().Duration("write-tick", config.DefaultWriteTick, "Interval between write progress updates")
	rootCmd.PersistentFlags().Duration("settle-delay", config.DefaultSettleDelay, "Delay after writing before completion")
	rootCmd.PersistentFlags().Duration("descriptor-timeout", config.DefaultDescriptorTimeout, "Timeout for USB descriptor string reads")
	rootCmd.PersistentFlags().Bool("recheck-before-format", true, "Re-check mount state immediately before formatting")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	for _, name := range []string{
		"listen-addr", "sqlite-path", "fsm-db-path", "image-cache-dir", "s3-region",
		"write-tick", "settle-delay", "descriptor-timeout", "recheck-before-format", "log-level",
	} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}
	if err := loaded.Validate(); err != nil {
		return errors.Wrap(err, "config invalid")
	}

	level, _ := loaded.SlogLevel()
	if logLevel != nil {
		logLevel.Set(level)
	}
	cfg = loaded
	return nil
}
