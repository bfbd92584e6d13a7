package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ntes/internal/app"
	"ntes/internal/apperr"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin account",
	Args:  cobra.NoArgs,
	RunE:  runAdminCreate,
}

func init() {
	adminCreateCmd.Flags().String("email", "", "account email")
	adminCreateCmd.Flags().String("password", "", "account password (at least 6 characters)")
	adminCreateCmd.MarkFlagRequired("email")
	adminCreateCmd.MarkFlagRequired("password")

	adminCmd.AddCommand(adminCreateCmd)
	rootCmd.AddCommand(adminCmd)
}

func runAdminCreate(cmd *cobra.Command, args []string) (err error) {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")

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

	user, err := a.Backend.Auth.CreateUser(ctx, email, password)
	if err != nil {
		return fmt.Errorf("%s (%s)", apperr.UserMessage(err), apperr.CodeOf(err))
	}
	fmt.Printf("created admin %s\n", user.Email)
	return nil
}
