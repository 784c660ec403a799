package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webbboot/companion/pkg/errors"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent jobs and their outcome",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of jobs to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	repo, err := openHistory()
	if err != nil {
		return err
	}
	defer repo.Close()

	jobs, err := repo.List(historyLimit)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-36s %-8s %-16s %-10s %-5s %s", "JOB", "ACTION", "DEVICE", "STATUS", "PCT", "STARTED")))
	for _, j := range jobs {
		fmt.Printf("%-36s %-8s %-16s %s %-5s %s\n",
			j.ID, j.Action, j.Device,
			statusStyle(j.Status).Render(fmt.Sprintf("%-10s", j.Status)),
			fmt.Sprintf("%d%%", j.Progress), j.CreatedAt)
		if j.ErrorMessage != "" {
			fmt.Println(dimStyle.Render("    " + j.ErrorMessage))
		}
	}

	return nil
}
