package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-bridge/pkg/core/model"
	"github.com/jakechorley/shift-bridge/pkg/core/services"
	"github.com/jakechorley/shift-bridge/pkg/db"
)

// CreateShiftCmd creates the createShift command
func CreateShiftCmd(app *AppContext) *cobra.Command {
	var (
		visibility   string
		releaseAt    string
		notes        string
		premium      bool
		premiumNotes string
	)

	cmd := &cobra.Command{
		Use:   "createShift <facility_id> <date> <start> <end> <role>",
		Short: "Post a new open shift",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := app.Viewer()
			if err != nil {
				return err
			}

			date, err := parseDate(args[1])
			if err != nil {
				return err
			}
			start, end, err := parseTimeRange(args[2], args[3])
			if err != nil {
				return err
			}
			vis, err := parseVisibility(visibility)
			if err != nil {
				return err
			}

			spec := model.ShiftSpec{
				FacilityID:   args[0],
				Date:         date,
				Start:        start,
				End:          end,
				Role:         args[4],
				Visibility:   vis,
				Notes:        notes,
				IsPremium:    premium,
				PremiumNotes: premiumNotes,
			}
			if releaseAt != "" {
				r, err := parseInstant(releaseAt)
				if err != nil {
					return err
				}
				spec.ReleaseAt = &r
			}

			shift, err := services.CreateShift(app.Ctx, app.Store, app.Logger, viewer, spec, app.Clock())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Shift created\n\n")
			printShift(cmd.OutOrStdout(), *shift)
			return nil
		},
	}

	cmd.Flags().StringVar(&visibility, "visibility", string(model.VisibilityAgency), "internal, agency, all or tiered")
	cmd.Flags().StringVar(&releaseAt, "release-at", "", "Release moment for tiered shifts (RFC3339)")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-text notes")
	cmd.Flags().BoolVar(&premium, "premium", false, "Mark the shift as premium")
	cmd.Flags().StringVar(&premiumNotes, "premium-notes", "", "Premium details")

	return cmd
}

// UpdateShiftCmd creates the updateShift command
func UpdateShiftCmd(app *AppContext) *cobra.Command {
	var (
		role         string
		notes        string
		premium      bool
		premiumNotes string
		visibility   string
		releaseAt    string
	)

	cmd := &cobra.Command{
		Use:   "updateShift <shift_id>",
		Short: "Change a shift's role, notes, premium flag or visibility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := app.Viewer()
			if err != nil {
				return err
			}

			update := services.ShiftUpdate{}
			flags := cmd.Flags()
			if flags.Changed("role") {
				update.Role = &role
			}
			if flags.Changed("notes") {
				update.Notes = &notes
			}
			if flags.Changed("premium") {
				update.IsPremium = &premium
			}
			if flags.Changed("premium-notes") {
				update.PremiumNotes = &premiumNotes
			}
			if flags.Changed("visibility") {
				vis, err := parseVisibility(visibility)
				if err != nil {
					return err
				}
				update.Visibility = &vis
			}
			if flags.Changed("release-at") {
				r, err := parseInstant(releaseAt)
				if err != nil {
					return err
				}
				update.ReleaseAt = &r
			}

			shift, err := services.UpdateShift(app.Ctx, app.Store, app.Logger, viewer, args[0], update)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Shift updated\n\n")
			printShift(cmd.OutOrStdout(), *shift)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "New role")
	cmd.Flags().StringVar(&notes, "notes", "", "New notes")
	cmd.Flags().BoolVar(&premium, "premium", false, "Premium flag")
	cmd.Flags().StringVar(&premiumNotes, "premium-notes", "", "New premium details")
	cmd.Flags().StringVar(&visibility, "visibility", "", "internal, agency, all or tiered")
	cmd.Flags().StringVar(&releaseAt, "release-at", "", "New release moment (RFC3339)")

	return cmd
}

// ListShiftsCmd creates the listShifts command
func ListShiftsCmd(app *AppContext) *cobra.Command {
	var (
		facility string
		status   string
		from     string
		to       string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "listShifts",
		Short: "List the shifts visible to the caller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := app.Viewer()
			if err != nil {
				return err
			}

			filter := db.ShiftFilter{FacilityID: facility, Role: role}
			if status != "" {
				if filter.Status, err = parseShiftStatus(status); err != nil {
					return err
				}
			}
			if from != "" {
				if filter.FromDate, err = parseDate(from); err != nil {
					return err
				}
			}
			if to != "" {
				if filter.ToDate, err = parseDate(to); err != nil {
					return err
				}
			}

			app.Logger.Debug("listShifts command", zap.Any("filter", filter))

			shifts, err := services.ListShifts(app.Ctx, app.Store, app.Logger, viewer, filter, app.Clock())
			if err != nil {
				return err
			}

			printShifts(cmd.OutOrStdout(), shifts)
			return nil
		},
	}

	cmd.Flags().StringVar(&facility, "facility", "", "Only shifts of this facility")
	cmd.Flags().StringVar(&status, "status", "", "Only shifts in this status")
	cmd.Flags().StringVar(&from, "from", "", "Earliest date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Latest date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&role, "role", "", "Role substring, case-insensitive")

	return cmd
}

// CancelShiftCmd creates the cancelShift command
func CancelShiftCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancelShift <shift_id>",
		Short: "Cancel a shift and deny its pending claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := app.Viewer()
			if err != nil {
				return err
			}

			out, err := services.CancelShift(app.Ctx, app.Store, app.Emitter, app.Arbiter, app.Logger, viewer, args[0], app.Clock())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Shift %s cancelled\n", out.Shift.ID)
			if len(out.Denied) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Denied %d pending claims:\n", len(out.Denied))
				printClaims(cmd.OutOrStdout(), out.Denied)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}
