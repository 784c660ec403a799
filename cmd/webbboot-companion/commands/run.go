package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/webbboot/companion/pkg/job"
	"github.com/webbboot/companion/pkg/progress"
)

var (
	runAction     string
	runImage      string
	runFilesystem string
	runScheme     string
	runYes        bool
)

var runCmd = &cobra.Command{
	Use:   "run <device>",
	Short: "Format a device and optionally write an image to it",
	Long: `Runs one job locally, printing progress as it goes.

  --action create   format the device and write --image onto it
  --action format   only format the device

--image may be a local path or an s3://bucket/key URI.`,
	Args: cobra.ExactArgs(1),
	RunE: runJob,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runAction, "action", "create", "Job action (create, format)")
	runCmd.Flags().StringVar(&runImage, "image", "", "Disk image to write")
	runCmd.Flags().StringVar(&runFilesystem, "filesystem", "FAT32", "Filesystem to create")
	runCmd.Flags().StringVar(&runScheme, "scheme", "MBR", "Partition scheme")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Do not ask for confirmation")
}

func runJob(cmd *cobra.Command, args []string) error {
	j := job.Job{
		Action:          job.ParseAction(runAction),
		Image:           runImage,
		Filesystem:      runFilesystem,
		PartitionScheme: runScheme,
		Device:          args[0],
	}

	if !runYes {
		ok, err := confirm(j)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted")
			return nil
		}
	}

	ctx := context.Background()
	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	sink := progress.SinkFunc(func(ev progress.Event) error {
		fmt.Println(progressLine(ev))
		return nil
	})
	result := eng.executor.Run(ctx, j, sink)
	if result.Err != nil {
		return fmt.Errorf("job %s failed: %s", result.JobID, result.Final.Status)
	}
	return nil
}

// confirm asks before erasing a device. Without a terminal there is nobody
// to ask, so --yes is required.
func confirm(j job.Job) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("refusing to erase %s without a terminal; pass --yes", j.Device)
	}

	fmt.Println(warningStyle.Render(fmt.Sprintf("All data on %s will be erased.", j.Device)))
	fmt.Print("Continue? [y/N] ")

	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, nil
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
