package cli

import (
	"diggin-checkout/internal/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp("migrate")
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.openDatabase(ctx); err != nil {
			return err
		}
		if err := database.Migrate(ctx, a.db); err != nil {
			return err
		}
		a.log.Info("schema applied")
		return nil
	},
}
