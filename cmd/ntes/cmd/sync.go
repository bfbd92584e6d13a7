package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ntes/internal/app"
	"ntes/internal/offline"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued contact forms",
	Long:  "Run one contact-form-sync pass: replay every queued submission to the origin and drop the ones it accepts.",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) (err error) {
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

	before := ctrl.Queue().Len()
	if err := ctrl.Sync(commandContext(cmd), offline.SyncTag); err != nil {
		return err
	}
	fmt.Printf("replayed %d of %d queued requests\n", before-ctrl.Queue().Len(), before)
	return nil
}
