package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-bridge/pkg/core/services"
)

// CreateRecurringShiftsCmd creates the createRecurringShifts command
func CreateRecurringShiftsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "createRecurringShifts <template_name> <from> <until>",
		Short: "Post every shift of a configured recurring template between two dates",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := app.Viewer()
			if err != nil {
				return err
			}

			tmpl, err := app.Cfg.Template(args[0])
			if err != nil {
				return err
			}
			from, err := parseDay(args[1])
			if err != nil {
				return err
			}
			until, err := parseDay(args[2])
			if err != nil {
				return err
			}

			app.Logger.Debug("createRecurringShifts command",
				zap.String("template", tmpl.Name),
				zap.Time("from", from),
				zap.Time("until", until))

			shifts, err := services.CreateRecurringShifts(app.Ctx, app.Store, app.Logger, viewer, tmpl, from, until, app.Clock())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Created %d shifts from template %s\n", len(shifts), tmpl.Name)
			printShifts(cmd.OutOrStdout(), shifts)
			return nil
		},
	}
}
