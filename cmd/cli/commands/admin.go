package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// MigrateCmd creates the migrate command
func MigrateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Postgres == nil {
				return fmt.Errorf("migrate needs the postgres store, configured store is %s", app.Cfg.Store)
			}
			if err := app.Postgres.RunMigrations(app.Ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Database is up to date")
			return nil
		},
	}
}

// SetRelationshipCmd creates the setRelationship command
func SetRelationshipCmd(app *AppContext) *cobra.Command {
	var inactive bool

	cmd := &cobra.Command{
		Use:   "setRelationship <agency_id> <facility_id>",
		Short: "Link an agency to a facility, or unlink it with --inactive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := app.Viewer()
			if err != nil {
				return err
			}
			if !viewer.CanManage(args[1]) {
				return fmt.Errorf("%s may not manage relationships of facility %s", viewer.UserID, args[1])
			}

			if err := app.Directory.SetRelationship(app.Ctx, args[0], args[1], !inactive); err != nil {
				return err
			}

			app.Logger.Info("Relationship updated",
				zap.String("agency_id", args[0]),
				zap.String("facility_id", args[1]),
				zap.Bool("active", !inactive))

			state := "active"
			if inactive {
				state = "inactive"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s -> %s is now %s\n", args[0], args[1], state)
			return nil
		},
	}

	cmd.Flags().BoolVar(&inactive, "inactive", false, "Mark the relationship inactive")

	return cmd
}
