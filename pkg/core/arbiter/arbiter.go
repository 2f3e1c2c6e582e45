// Package arbiter enforces the claim and shift state machine.
//
// Every method runs inside a caller-supplied db.Tx and locks the shift row first, so two
// operations on the same shift are serialized by the store. The returned events must only be
// dispatched once the transaction has committed.
package arbiter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jakechorley/shift-bridge/pkg/core/conflicts"
	"github.com/jakechorley/shift-bridge/pkg/core/model"
	"github.com/jakechorley/shift-bridge/pkg/core/visibility"
	"github.com/jakechorley/shift-bridge/pkg/db"
	"github.com/jakechorley/shift-bridge/pkg/events"
)

// Policy holds the configurable conflict rules
type Policy struct {
	// BlockOnClaimConflict rejects a claim that overlaps an existing commitment
	BlockOnClaimConflict bool
	// BlockOnApprovalConflict rejects an approval that overlaps an existing commitment
	BlockOnApprovalConflict bool
	// IncludePendingCommitments counts pending claims as commitments, not just approved ones
	IncludePendingCommitments bool
}

type Arbiter struct {
	checker conflicts.Checker
	policy  Policy
	newID   func() string
}

func New(checker conflicts.Checker, policy Policy) *Arbiter {
	return &Arbiter{checker: checker, policy: policy, newID: uuid.NewString}
}

func (a *Arbiter) Policy() Policy {
	return a.policy
}

// ClaimOutcome is the committed result of a claim
type ClaimOutcome struct {
	Shift     model.Shift
	Claim     model.Claim
	Conflicts conflicts.Result
	Events    []events.Event
}

// ApproveOutcome is the committed result of an approval
type ApproveOutcome struct {
	Shift      model.Shift
	Approved   model.Claim
	AutoDenied []model.Claim
	Claims     []model.Claim // every claim on the shift after the approval
	Conflicts  conflicts.Result
	Events     []events.Event
}

// DenyOutcome is the committed result of a denial
type DenyOutcome struct {
	Shift    model.Shift
	Claim    model.Claim
	Reopened bool
	Events   []events.Event
}

// CancelOutcome is the committed result of a cancellation
type CancelOutcome struct {
	Shift  model.Shift
	Denied []model.Claim
	Events []events.Event
}

// Claim records the viewer's claim on a shift.
// Shifts the viewer cannot see are reported as not found.
func (a *Arbiter) Claim(ctx context.Context, tx db.Tx, viewer model.Viewer, shiftID string, now time.Time) (*ClaimOutcome, error) {
	if viewer.UserID == "" {
		return nil, model.Errorf(model.KindValidation, "claimant is required")
	}

	shift, err := tx.GetShiftForUpdate(ctx, shiftID)
	if err != nil {
		return nil, err
	}

	if !visibility.ResolveVisible(shift, viewer, now) {
		return nil, model.Errorf(model.KindNotFound, "shift %s not found", shiftID)
	}

	if shift.Status == model.ShiftApproved || shift.Status == model.ShiftCancelled {
		return nil, model.Errorf(model.KindConflict, "shift %s is %s and cannot be claimed", shift.ID, shift.Status)
	}

	result, err := a.checkPerson(ctx, tx, viewer.UserID, shift, "")
	if err != nil {
		return nil, err
	}
	if a.policy.BlockOnClaimConflict && result.HasBlocking() {
		return nil, model.Errorf(model.KindConflict, "shift %s overlaps %d existing commitment(s)", shift.ID, len(result.Blocking))
	}

	claim := model.Claim{
		ID:        a.newID(),
		ShiftID:   shift.ID,
		PersonID:  viewer.UserID,
		Status:    model.ClaimPending,
		ClaimedAt: now.UTC(),
	}
	if err := tx.InsertClaim(ctx, claim); err != nil {
		return nil, err
	}

	if shift.Status == model.ShiftOpen {
		if err := model.TransitionShift(&shift, model.ShiftPending); err != nil {
			return nil, err
		}
		if err := tx.UpdateShift(ctx, shift); err != nil {
			return nil, fmt.Errorf("failed to mark shift pending: %w", err)
		}
	}

	return &ClaimOutcome{
		Shift:     shift,
		Claim:     claim,
		Conflicts: result,
		Events:    []events.Event{events.ClaimCreated(shift, claim, now)},
	}, nil
}

// Approve approves one pending claim and denies every other pending claim on the shift
func (a *Arbiter) Approve(ctx context.Context, tx db.Tx, approver model.Viewer, shiftID, claimID string, now time.Time) (*ApproveOutcome, error) {
	shift, claim, err := a.lockClaim(ctx, tx, approver, shiftID, claimID)
	if err != nil {
		return nil, err
	}

	if claim.Status != model.ClaimPending {
		return nil, model.Errorf(model.KindStaleState, "claim %s is already %s", claim.ID, claim.Status)
	}
	if shift.Status != model.ShiftPending {
		return nil, model.Errorf(model.KindStaleState, "shift %s is %s, not pending", shift.ID, shift.Status)
	}

	result, err := a.checkPerson(ctx, tx, claim.PersonID, shift, claim.ID)
	if err != nil {
		return nil, err
	}
	if a.policy.BlockOnApprovalConflict && result.HasBlocking() {
		return nil, model.Errorf(model.KindConflict, "claimant %s has %d overlapping commitment(s)", claim.PersonID, len(result.Blocking))
	}

	if err := model.TransitionClaim(&claim, model.ClaimApproved); err != nil {
		return nil, err
	}
	claim.ApproverID = approver.UserID
	if err := tx.UpdateClaim(ctx, claim); err != nil {
		return nil, fmt.Errorf("failed to approve claim %s: %w", claim.ID, err)
	}

	evts := []events.Event{events.ClaimApproved(shift, claim, now)}

	siblings, err := tx.ListClaimsByShift(ctx, shift.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sibling claims: %w", err)
	}

	denied := []model.Claim{}
	for _, sibling := range siblings {
		if sibling.ID == claim.ID || sibling.Status != model.ClaimPending {
			continue
		}
		if err := denyClaim(ctx, tx, &sibling, "", model.ReasonAutoDenied); err != nil {
			return nil, err
		}
		denied = append(denied, sibling)
		evts = append(evts, events.ClaimDenied(shift, sibling, now))
	}

	if err := model.TransitionShift(&shift, model.ShiftApproved); err != nil {
		return nil, err
	}
	if err := tx.UpdateShift(ctx, shift); err != nil {
		return nil, fmt.Errorf("failed to mark shift approved: %w", err)
	}

	claims, err := tx.ListClaimsByShift(ctx, shift.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}

	return &ApproveOutcome{
		Shift:      shift,
		Approved:   claim,
		AutoDenied: denied,
		Claims:     claims,
		Conflicts:  result,
		Events:     evts,
	}, nil
}

// Deny denies a pending claim. The shift reopens when no pending claims remain.
func (a *Arbiter) Deny(ctx context.Context, tx db.Tx, approver model.Viewer, shiftID, claimID, reason string, now time.Time) (*DenyOutcome, error) {
	shift, claim, err := a.lockClaim(ctx, tx, approver, shiftID, claimID)
	if err != nil {
		return nil, err
	}

	if claim.Status != model.ClaimPending {
		return nil, model.Errorf(model.KindStaleState, "claim %s is already %s", claim.ID, claim.Status)
	}

	if err := denyClaim(ctx, tx, &claim, approver.UserID, reason); err != nil {
		return nil, err
	}

	claims, err := tx.ListClaimsByShift(ctx, shift.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}

	reopened := false
	if shift.Status == model.ShiftPending && !anyPending(claims) {
		if err := model.TransitionShift(&shift, model.ShiftOpen); err != nil {
			return nil, err
		}
		if err := tx.UpdateShift(ctx, shift); err != nil {
			return nil, fmt.Errorf("failed to reopen shift: %w", err)
		}
		reopened = true
	}

	return &DenyOutcome{
		Shift:    shift,
		Claim:    claim,
		Reopened: reopened,
		Events:   []events.Event{events.ClaimDenied(shift, claim, now)},
	}, nil
}

// Cancel cancels the shift and denies its pending claims. Approved and denied claims are kept as they are.
func (a *Arbiter) Cancel(ctx context.Context, tx db.Tx, actor model.Viewer, shiftID string, now time.Time) (*CancelOutcome, error) {
	shift, err := tx.GetShiftForUpdate(ctx, shiftID)
	if err != nil {
		return nil, err
	}

	if !actor.CanManage(shift.FacilityID) {
		return nil, model.Errorf(model.KindForbidden, "%s may not cancel shifts of facility %s", actor.UserID, shift.FacilityID)
	}

	if shift.Status == model.ShiftCancelled {
		return nil, model.Wrap(model.KindConflict, model.ErrAlreadyCancelled, "cannot cancel shift %s", shift.ID)
	}

	if err := model.TransitionShift(&shift, model.ShiftCancelled); err != nil {
		return nil, err
	}
	if err := tx.UpdateShift(ctx, shift); err != nil {
		return nil, fmt.Errorf("failed to cancel shift: %w", err)
	}

	evts := []events.Event{events.ShiftCancelled(shift, now)}

	claims, err := tx.ListClaimsByShift(ctx, shift.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}

	denied := []model.Claim{}
	for _, c := range claims {
		if c.Status != model.ClaimPending {
			continue
		}
		if err := denyClaim(ctx, tx, &c, "", model.ReasonShiftCancelled); err != nil {
			return nil, err
		}
		denied = append(denied, c)
		evts = append(evts, events.ClaimDenied(shift, c, now))
	}

	return &CancelOutcome{Shift: shift, Denied: denied, Events: evts}, nil
}

// Check runs the conflict checker for a person against a candidate window
func (a *Arbiter) Check(ctx context.Context, tx db.Tx, personID string, window conflicts.Window, excludeClaimID string) (conflicts.Result, error) {
	commitments, err := a.commitments(ctx, tx, personID, window.Date)
	if err != nil {
		return conflicts.Result{}, err
	}
	return a.checker.Check(window, commitments, excludeClaimID)
}

func (a *Arbiter) checkPerson(ctx context.Context, tx db.Tx, personID string, shift model.Shift, excludeClaimID string) (conflicts.Result, error) {
	commitments, err := a.commitments(ctx, tx, personID, shift.Date)
	if err != nil {
		return conflicts.Result{}, err
	}

	// A person's claims on this same shift are not commitments against it
	others := make([]conflicts.Commitment, 0, len(commitments))
	for _, cm := range commitments {
		if cm.ShiftID != shift.ID {
			others = append(others, cm)
		}
	}

	return a.checker.Check(conflicts.WindowOf(shift), others, excludeClaimID)
}

func (a *Arbiter) commitments(ctx context.Context, tx db.Tx, personID, date string) ([]conflicts.Commitment, error) {
	dates, err := conflicts.NeighbourDates(date, a.checker.Span())
	if err != nil {
		return nil, err
	}

	commitments, err := tx.ListCommitments(ctx, personID, dates, a.commitmentStatuses())
	if err != nil {
		return nil, fmt.Errorf("failed to list commitments: %w", err)
	}
	return commitments, nil
}

func (a *Arbiter) commitmentStatuses() []model.ClaimStatus {
	if a.policy.IncludePendingCommitments {
		return []model.ClaimStatus{model.ClaimApproved, model.ClaimPending}
	}
	return []model.ClaimStatus{model.ClaimApproved}
}

// lockClaim locks the shift, loads the claim and checks the actor may decide it
func (a *Arbiter) lockClaim(ctx context.Context, tx db.Tx, actor model.Viewer, shiftID, claimID string) (model.Shift, model.Claim, error) {
	shift, err := tx.GetShiftForUpdate(ctx, shiftID)
	if err != nil {
		return model.Shift{}, model.Claim{}, err
	}

	claim, err := tx.GetClaim(ctx, claimID)
	if err != nil {
		return model.Shift{}, model.Claim{}, err
	}
	if claim.ShiftID != shift.ID {
		return model.Shift{}, model.Claim{}, model.Errorf(model.KindNotFound, "claim %s not found on shift %s", claimID, shiftID)
	}

	if !actor.CanManage(shift.FacilityID) {
		return model.Shift{}, model.Claim{}, model.Errorf(model.KindForbidden, "%s may not decide claims for facility %s", actor.UserID, shift.FacilityID)
	}

	return shift, claim, nil
}

func denyClaim(ctx context.Context, tx db.Tx, claim *model.Claim, approverID, reason string) error {
	if err := model.TransitionClaim(claim, model.ClaimDenied); err != nil {
		return err
	}
	claim.ApproverID = approverID
	claim.DenialReason = reason
	if err := tx.UpdateClaim(ctx, *claim); err != nil {
		return fmt.Errorf("failed to deny claim %s: %w", claim.ID, err)
	}
	return nil
}

func anyPending(claims []model.Claim) bool {
	for _, c := range claims {
		if c.Status == model.ClaimPending {
			return true
		}
	}
	return false
}
