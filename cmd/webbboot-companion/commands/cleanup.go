package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/webbboot/companion/pkg/errors"
)

var (
	cleanupCache   bool
	cleanupHistory bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove downloaded images and finished job history",
	Long: `Clean up local state:
  --cache     Remove images downloaded from S3
  --history   Remove finished jobs from the history`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupCache, "cache", false, "Remove downloaded images")
	cleanupCmd.Flags().BoolVar(&cleanupHistory, "history", false, "Remove finished jobs")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if !cleanupCache && !cleanupHistory {
		return fmt.Errorf("must specify --cache or --history")
	}

	if cleanupCache {
		entries, err := os.ReadDir(cfg.ImageCacheDir)
		if err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "failed to read image cache")
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(cfg.ImageCacheDir, e.Name())); err != nil {
				return errors.Wrapf(err, "failed to remove cached image %s", e.Name())
			}
		}
		fmt.Printf("Removed %d cached entries from %s\n", len(entries), cfg.ImageCacheDir)
	}

	if cleanupHistory {
		repo, err := openHistory()
		if err != nil {
			return err
		}
		defer repo.Close()

		n, err := repo.DeleteFinished()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d finished jobs\n", n)
	}

	return nil
}
