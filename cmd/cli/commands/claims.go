package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jakechorley/shift-bridge/pkg/core/conflicts"
	"github.com/jakechorley/shift-bridge/pkg/core/services"
)

// ClaimShiftCmd creates the claimShift command
func ClaimShiftCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "claimShift <shift_id>",
		Short: "Claim a shift as the caller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := app.Viewer()
			if err != nil {
				return err
			}

			out, err := services.ClaimShift(app.Ctx, app.Store, app.Emitter, app.Arbiter, app.Logger, viewer, args[0], app.Clock())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Claim %s submitted, shift is %s\n\n", out.Claim.ID, out.Shift.Status)
			printConflicts(cmd.OutOrStdout(), out.Conflicts)
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

// ListClaimsCmd creates the listClaims command
func ListClaimsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "listClaims <shift_id>",
		Short: "List every claim on a shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := app.Viewer()
			if err != nil {
				return err
			}

			claims, err := services.ListClaims(app.Ctx, app.Store, app.Logger, viewer, args[0])
			if err != nil {
				return err
			}

			printClaims(cmd.OutOrStdout(), claims)
			return nil
		},
	}
}

// MyClaimsCmd creates the myClaims command
func MyClaimsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "myClaims",
		Short: "List the caller's claims, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := app.Viewer()
			if err != nil {
				return err
			}

			claims, err := services.ListPersonClaims(app.Ctx, app.Store, app.Logger, viewer.UserID)
			if err != nil {
				return err
			}

			printClaims(cmd.OutOrStdout(), claims)
			return nil
		},
	}
}

// ApproveClaimCmd creates the approveClaim command
func ApproveClaimCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approveClaim <shift_id> <claim_id>",
		Short: "Approve a claim and deny its competitors",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := app.Viewer()
			if err != nil {
				return err
			}

			out, err := services.ApproveClaim(app.Ctx, app.Store, app.Emitter, app.Arbiter, app.Logger, viewer, args[0], args[1], app.Clock())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Claim %s approved for %s\n", out.Approved.ID, out.Approved.PersonID)
			if len(out.AutoDenied) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Auto-denied %d competing claims\n", len(out.AutoDenied))
			}
			if out.Conflicts.HasBlocking() {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s⚠ %s already has overlapping commitments:%s\n", colorYellow, out.Approved.PersonID, colorReset)
				printConflicts(cmd.OutOrStdout(), out.Conflicts)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			printClaims(cmd.OutOrStdout(), out.Claims)
			return nil
		},
	}
}

// DenyClaimCmd creates the denyClaim command
func DenyClaimCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "denyClaim <shift_id> <claim_id> [reason...]",
		Short: "Deny a pending claim",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := app.Viewer()
			if err != nil {
				return err
			}

			reason := strings.Join(args[2:], " ")

			out, err := services.DenyClaim(app.Ctx, app.Store, app.Emitter, app.Arbiter, app.Logger, viewer, args[0], args[1], reason, app.Clock())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Claim %s denied\n", out.Claim.ID)
			if out.Reopened {
				fmt.Fprintf(cmd.OutOrStdout(), "Shift %s is open again\n", out.Shift.ID)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

// CheckConflictsCmd creates the checkConflicts command
func CheckConflictsCmd(app *AppContext) *cobra.Command {
	var excludeClaim string

	cmd := &cobra.Command{
		Use:   "checkConflicts <person_id> <date> <start> <end>",
		Short: "Report a person's commitments overlapping or close to a window",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(args[1])
			if err != nil {
				return err
			}
			start, end, err := parseTimeRange(args[2], args[3])
			if err != nil {
				return err
			}

			window := conflicts.Window{Date: date, Start: start, End: end}
			result, err := services.CheckConflicts(app.Ctx, app.Store, app.Arbiter, app.Logger, args[0], window, excludeClaim)
			if err != nil {
				return err
			}

			printConflicts(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&excludeClaim, "exclude-claim", "", "Ignore this claim when checking")

	return cmd
}
