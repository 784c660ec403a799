package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/webbboot/companion/pkg/job"
	"github.com/webbboot/companion/pkg/platform"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <device>",
	Short: "Show size, filesystem and mount state of a device",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	info, err := newVerifier(platform.New()).Verify(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("%s", job.Status(err))
	}

	fmt.Println(headerStyle.Render(info.Path))
	fmt.Printf("  size:        %s\n", formatBytes(info.SizeBytes))
	filesystem := info.Filesystem
	if filesystem == "" {
		filesystem = "-"
	}
	fmt.Printf("  filesystem:  %s\n", filesystem)
	if info.IsMounted() {
		fmt.Printf("  mounted:     %s\n", warningStyle.Render(strings.Join(info.MountPoints, ", ")))
	} else {
		fmt.Printf("  mounted:     %s\n", successStyle.Render("no"))
	}
	return nil
}
