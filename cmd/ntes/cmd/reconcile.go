package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ntes/internal/app"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Finish pending gallery deletions",
	Long:  "Run one gallery reconciliation pass: finish interrupted image deletions and remove orphaned blobs.",
	Args:  cobra.NoArgs,
	RunE:  runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	rep, err := a.Reconcile(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("tombstones=%d orphans=%d failed=%d\n", rep.Tombstones, rep.Orphans, rep.Failed)
	return nil
}
