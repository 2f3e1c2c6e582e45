package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-bridge/pkg/core/arbiter"
	"github.com/jakechorley/shift-bridge/pkg/core/model"
	"github.com/jakechorley/shift-bridge/pkg/core/visibility"
	"github.com/jakechorley/shift-bridge/pkg/db"
	"github.com/jakechorley/shift-bridge/pkg/events"
)

// CreateShift validates the spec and stores a new open shift.
// Only the facility's admins (or a platform admin) may post shifts for it.
func CreateShift(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Viewer, spec model.ShiftSpec, now time.Time) (*model.Shift, error) {
	if spec.PostedByID == "" {
		spec.PostedByID = actor.UserID
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if !actor.CanManage(spec.FacilityID) {
		return nil, model.Errorf(model.KindForbidden, "%s may not post shifts for facility %s", actor.UserID, spec.FacilityID)
	}

	shift := model.NewShift(uuid.NewString(), spec, now)

	logger.Debug("Creating shift",
		zap.String("id", shift.ID),
		zap.String("facility_id", shift.FacilityID),
		zap.String("date", shift.Date),
		zap.Stringer("start", shift.Start),
		zap.Stringer("end", shift.End),
		zap.String("visibility", string(shift.Visibility)))

	err := store.WithTx(ctx, func(tx db.Tx) error {
		return tx.InsertShift(ctx, shift)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create shift: %w", err)
	}

	logger.Info("Shift created", zap.String("id", shift.ID), zap.String("date", shift.Date))
	return &shift, nil
}

// ShiftUpdate lists the metadata fields to change. Nil fields are left alone.
type ShiftUpdate struct {
	Role         *string
	Notes        *string
	IsPremium    *bool
	PremiumNotes *string
	Visibility   *model.Visibility
	// ReleaseAt replaces the release moment of a tiered shift
	ReleaseAt *time.Time
}

func (u ShiftUpdate) apply(s *model.Shift) {
	if u.Role != nil {
		s.Role = *u.Role
	}
	if u.Notes != nil {
		s.Notes = *u.Notes
	}
	if u.IsPremium != nil {
		s.IsPremium = *u.IsPremium
	}
	if u.PremiumNotes != nil {
		s.PremiumNotes = *u.PremiumNotes
	}
	if u.Visibility != nil {
		s.Visibility = *u.Visibility
		if s.Visibility != model.VisibilityTiered {
			s.ReleaseAt = nil
		}
	}
	if u.ReleaseAt != nil {
		r := u.ReleaseAt.UTC()
		s.ReleaseAt = &r
	}
}

// UpdateShift changes a shift's metadata. Status is never touched here and cancelled shifts are frozen.
func UpdateShift(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Viewer, shiftID string, update ShiftUpdate) (*model.Shift, error) {
	logger.Debug("Updating shift", zap.String("id", shiftID))

	var updated model.Shift
	err := store.WithTx(ctx, func(tx db.Tx) error {
		shift, err := tx.GetShiftForUpdate(ctx, shiftID)
		if err != nil {
			return err
		}

		if !actor.CanManage(shift.FacilityID) {
			return model.Errorf(model.KindForbidden, "%s may not edit shifts of facility %s", actor.UserID, shift.FacilityID)
		}
		if shift.Status == model.ShiftCancelled {
			return model.Errorf(model.KindConflict, "shift %s is cancelled", shift.ID)
		}

		update.apply(&shift)
		if err := model.ValidateShift(shift); err != nil {
			return err
		}

		if err := tx.UpdateShift(ctx, shift); err != nil {
			return err
		}
		updated = shift
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update shift %s: %w", shiftID, err)
	}

	logger.Info("Shift updated", zap.String("id", updated.ID))
	return &updated, nil
}

// ListShifts returns the shifts matching the filter that the viewer may currently see,
// ordered by date then start time
func ListShifts(ctx context.Context, store db.Store, logger *zap.Logger, viewer model.Viewer, filter db.ShiftFilter, now time.Time) ([]model.Shift, error) {
	shifts, err := store.ListShifts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}

	visible := visibility.Filter(shifts, viewer, now)

	logger.Debug("Listed shifts",
		zap.String("viewer", viewer.UserID),
		zap.Int("matched", len(shifts)),
		zap.Int("visible", len(visible)))

	return visible, nil
}

// CancelShift cancels a shift and denies its pending claims in one transaction
func CancelShift(ctx context.Context, store db.Store, emitter events.Emitter, arb *arbiter.Arbiter, logger *zap.Logger, actor model.Viewer, shiftID string, now time.Time) (*arbiter.CancelOutcome, error) {
	logger.Debug("Cancelling shift", zap.String("id", shiftID), zap.String("actor", actor.UserID))

	var out *arbiter.CancelOutcome
	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		out, err = arb.Cancel(ctx, tx, actor, shiftID, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel shift %s: %w", shiftID, err)
	}

	logger.Info("Shift cancelled",
		zap.String("id", shiftID),
		zap.Int("claims_denied", len(out.Denied)))

	events.Dispatch(ctx, emitter, logger, out.Events)
	return out, nil
}
