package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/shift-bridge/pkg/core/arbiter"
	"github.com/jakechorley/shift-bridge/pkg/core/conflicts"
	"github.com/jakechorley/shift-bridge/pkg/core/model"
	"github.com/jakechorley/shift-bridge/pkg/db"
	"github.com/jakechorley/shift-bridge/pkg/events"
)

// ClaimShift records the viewer's claim on a shift.
// Conflicts found against the viewer's commitments are returned alongside the claim.
func ClaimShift(ctx context.Context, store db.Store, emitter events.Emitter, arb *arbiter.Arbiter, logger *zap.Logger, viewer model.Viewer, shiftID string, now time.Time) (*arbiter.ClaimOutcome, error) {
	logger.Debug("Claiming shift", zap.String("shift_id", shiftID), zap.String("person_id", viewer.UserID))

	var out *arbiter.ClaimOutcome
	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		out, err = arb.Claim(ctx, tx, viewer, shiftID, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim shift %s: %w", shiftID, err)
	}

	logger.Info("Shift claimed",
		zap.String("shift_id", shiftID),
		zap.String("claim_id", out.Claim.ID),
		zap.Int("blocking_conflicts", len(out.Conflicts.Blocking)),
		zap.Int("warnings", len(out.Conflicts.Warnings)))

	events.Dispatch(ctx, emitter, logger, out.Events)
	return out, nil
}

// ListClaims returns every claim on a shift in the order they were made.
// Only managers of the owning facility may see them.
func ListClaims(ctx context.Context, store db.Store, logger *zap.Logger, viewer model.Viewer, shiftID string) ([]model.Claim, error) {
	shift, err := store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get shift %s: %w", shiftID, err)
	}

	if !viewer.CanManage(shift.FacilityID) {
		return nil, model.Errorf(model.KindForbidden, "%s may not view claims for facility %s", viewer.UserID, shift.FacilityID)
	}

	claims, err := store.ListClaimsByShift(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}

	logger.Debug("Listed claims", zap.String("shift_id", shiftID), zap.Int("count", len(claims)))
	return claims, nil
}

// ListPersonClaims returns a person's claims, newest first
func ListPersonClaims(ctx context.Context, store db.Store, logger *zap.Logger, personID string) ([]model.Claim, error) {
	claims, err := store.ListClaimsByPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims for %s: %w", personID, err)
	}

	logger.Debug("Listed person claims", zap.String("person_id", personID), zap.Int("count", len(claims)))
	return claims, nil
}

// ApproveClaim approves a pending claim and auto-denies its siblings in one transaction
func ApproveClaim(ctx context.Context, store db.Store, emitter events.Emitter, arb *arbiter.Arbiter, logger *zap.Logger, approver model.Viewer, shiftID, claimID string, now time.Time) (*arbiter.ApproveOutcome, error) {
	logger.Debug("Approving claim",
		zap.String("shift_id", shiftID),
		zap.String("claim_id", claimID),
		zap.String("approver", approver.UserID))

	var out *arbiter.ApproveOutcome
	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		out, err = arb.Approve(ctx, tx, approver, shiftID, claimID, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to approve claim %s: %w", claimID, err)
	}

	if out.Conflicts.HasBlocking() {
		logger.Warn("Approved claim overlaps existing commitments",
			zap.String("claim_id", claimID),
			zap.String("person_id", out.Approved.PersonID),
			zap.Int("blocking_conflicts", len(out.Conflicts.Blocking)))
	}

	logger.Info("Claim approved",
		zap.String("shift_id", shiftID),
		zap.String("claim_id", claimID),
		zap.Int("auto_denied", len(out.AutoDenied)))

	events.Dispatch(ctx, emitter, logger, out.Events)
	return out, nil
}

// DenyClaim denies a pending claim, reopening the shift if it was the last pending one
func DenyClaim(ctx context.Context, store db.Store, emitter events.Emitter, arb *arbiter.Arbiter, logger *zap.Logger, approver model.Viewer, shiftID, claimID, reason string, now time.Time) (*arbiter.DenyOutcome, error) {
	logger.Debug("Denying claim",
		zap.String("shift_id", shiftID),
		zap.String("claim_id", claimID),
		zap.String("reason", reason))

	var out *arbiter.DenyOutcome
	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		out, err = arb.Deny(ctx, tx, approver, shiftID, claimID, reason, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deny claim %s: %w", claimID, err)
	}

	logger.Info("Claim denied",
		zap.String("shift_id", shiftID),
		zap.String("claim_id", claimID),
		zap.Bool("shift_reopened", out.Reopened))

	events.Dispatch(ctx, emitter, logger, out.Events)
	return out, nil
}

// CheckConflicts reports a person's commitments that overlap or nearly overlap the window
func CheckConflicts(ctx context.Context, store db.Store, arb *arbiter.Arbiter, logger *zap.Logger, personID string, window conflicts.Window, excludeClaimID string) (conflicts.Result, error) {
	var result conflicts.Result
	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		result, err = arb.Check(ctx, tx, personID, window, excludeClaimID)
		return err
	})
	if err != nil {
		return conflicts.Result{}, fmt.Errorf("failed to check conflicts for %s: %w", personID, err)
	}

	logger.Debug("Checked conflicts",
		zap.String("person_id", personID),
		zap.String("date", window.Date),
		zap.Int("blocking", len(result.Blocking)),
		zap.Int("warnings", len(result.Warnings)))

	return result, nil
}
