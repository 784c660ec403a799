package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webbboot/companion/pkg/errors"
	"github.com/webbboot/companion/pkg/usb"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List USB mass-storage devices",
	Args:  cobra.NoArgs,
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	devices, err := usb.NewEnumerator(cfg.DescriptorTimeout).List(context.Background())
	if err != nil {
		return errors.Wrap(err, "enumeration failed")
	}

	if len(devices) == 0 {
		fmt.Println("No USB mass-storage devices found")
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-20s %-12s %s", "DEVICE", "SIZE", "NAME")))
	for _, d := range devices {
		size := "-"
		if d.SizeBytes != nil {
			size = formatBytes(*d.SizeBytes)
		}
		fmt.Printf("%-20s %-12s %s\n", d.ID, size, d.DisplayName)
	}
	return nil
}
