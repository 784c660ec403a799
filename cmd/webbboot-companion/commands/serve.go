package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/webbboot/companion/pkg/server"
	"github.com/webbboot/companion/pkg/usb"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control channel for the web controller",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	srv := server.New(usb.NewEnumerator(cfg.DescriptorTimeout), eng.executor)
	return srv.ListenAndServe(ctx, cfg.ListenAddr)
}
