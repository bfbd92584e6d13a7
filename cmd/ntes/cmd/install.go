package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ntes/internal/app"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Precache the static files and activate the cache",
	Long:  "Fetch every static file from the origin into the static cache set, then evict outdated sets. Fails without changes if any file cannot be fetched.",
	Args:  cobra.NoArgs,
	RunE:  runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctrl, store, err := app.OpenEdge(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	defer ctrl.Close()

	if err := ctrl.Install(commandContext(cmd)); err != nil {
		return fmt.Errorf("install: %w", err)
	}
	if err := ctrl.Activate(); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	fmt.Printf("installed %s from %s\n", cfg.Offline.StaticCache, cfg.Server.Origin)
	return nil
}
