package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jakechorley/shift-bridge/pkg/core/conflicts"
	"github.com/jakechorley/shift-bridge/pkg/core/model"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorDim    = "\033[2m"
)

// statusColor covers both shift and claim statuses; "pending" is shared
func statusColor(status string) string {
	switch status {
	case string(model.ShiftOpen), string(model.ClaimApproved):
		return colorGreen
	case string(model.ShiftPending):
		return colorYellow
	case string(model.ShiftCancelled), string(model.ClaimDenied):
		return colorRed
	default:
		return ""
	}
}

func printShift(w io.Writer, s model.Shift) {
	fmt.Fprintf(w, "%s  %s %s-%s  %-20s %s%-9s%s %-8s %s\n",
		s.ID, s.Date, s.Start, s.End, s.Role,
		statusColor(string(s.Status)), s.Status, colorReset,
		s.Visibility, s.FacilityID)

	if s.ReleaseAt != nil {
		fmt.Fprintf(w, "    %sreleases %s%s\n", colorDim, s.ReleaseAt.Format(time.RFC3339), colorReset)
	}
	if s.IsPremium {
		fmt.Fprintf(w, "    premium %s\n", s.PremiumNotes)
	}
	if s.Notes != "" {
		fmt.Fprintf(w, "    %s\n", s.Notes)
	}
}

func printShifts(w io.Writer, shifts []model.Shift) {
	if len(shifts) == 0 {
		fmt.Fprintln(w, "No shifts found.")
		return
	}
	fmt.Fprintf(w, "\nFound %d shifts:\n\n", len(shifts))
	for _, s := range shifts {
		printShift(w, s)
	}
	fmt.Fprintln(w)
}

func printClaim(w io.Writer, c model.Claim) {
	fmt.Fprintf(w, "%s  shift %s  %-12s %s%-8s%s %s",
		c.ID, c.ShiftID, c.PersonID,
		statusColor(string(c.Status)), c.Status, colorReset,
		c.ClaimedAt.Format(time.RFC3339))
	if c.DenialReason != "" {
		fmt.Fprintf(w, "  (%s)", c.DenialReason)
	}
	fmt.Fprintln(w)
}

func printClaims(w io.Writer, claims []model.Claim) {
	if len(claims) == 0 {
		fmt.Fprintln(w, "No claims found.")
		return
	}
	for _, c := range claims {
		printClaim(w, c)
	}
}

func printConflicts(w io.Writer, result conflicts.Result) {
	if len(result.Blocking) == 0 && len(result.Warnings) == 0 {
		fmt.Fprintf(w, "%sNo conflicts%s\n", colorGreen, colorReset)
		return
	}
	for _, c := range result.Blocking {
		fmt.Fprintf(w, "%s✗ overlaps%s  %s %s-%s  shift %s (claim %s)\n", colorRed, colorReset, c.Date, c.Start, c.End, c.ShiftID, c.ClaimID)
	}
	for _, c := range result.Warnings {
		fmt.Fprintf(w, "%s⚠ close to%s  %s %s-%s  shift %s (claim %s)\n", colorYellow, colorReset, c.Date, c.Start, c.End, c.ShiftID, c.ClaimID)
	}
}
