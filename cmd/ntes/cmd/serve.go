package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ntes/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the site and the edge cache",
	Long:  "Start the origin app server and the offline edge in front of it, plus the scheduled sync and reconcile jobs.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return a.Serve(ctx)
}
