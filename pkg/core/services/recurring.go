package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-bridge/pkg/core/model"
	"github.com/jakechorley/shift-bridge/pkg/db"
)

// RecurringTemplate describes a shift posted on every date of an RRULE
type RecurringTemplate struct {
	Name         string
	FacilityID   string
	RRule        string
	Start        model.TimeOfDay
	End          model.TimeOfDay
	Role         string
	Visibility   model.Visibility
	Notes        string
	IsPremium    bool
	PremiumNotes string
	// ReleaseLead sets release_at to the shift start minus the lead for tiered templates
	ReleaseLead time.Duration
}

// ExpandDates returns every date in [from, until] matched by the template's rule
func (t RecurringTemplate) ExpandDates(from, until time.Time) ([]string, error) {
	rule, err := rrule.StrToRRule(t.RRule)
	if err != nil {
		return nil, model.Wrap(model.KindValidation, err, "invalid rrule for template %s", t.Name)
	}

	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(until.Year(), until.Month(), until.Day(), 0, 0, 0, 0, time.UTC)
	if end.Before(start) {
		return nil, model.Errorf(model.KindValidation, "until %s is before from %s", end.Format(model.DateLayout), start.Format(model.DateLayout))
	}

	rule.DTStart(start)

	dates := []string{}
	for _, occurrence := range rule.Between(start, end, true) {
		dates = append(dates, occurrence.Format(model.DateLayout))
	}
	return dates, nil
}

func (t RecurringTemplate) spec(date string, postedBy string) (model.ShiftSpec, error) {
	spec := model.ShiftSpec{
		FacilityID:          t.FacilityID,
		PostedByID:          postedBy,
		Date:                date,
		Start:               t.Start,
		End:                 t.End,
		Role:                t.Role,
		Visibility:          t.Visibility,
		Notes:               t.Notes,
		IsPremium:           t.IsPremium,
		PremiumNotes:        t.PremiumNotes,
		RecurringTemplateID: t.Name,
	}

	if t.Visibility == model.VisibilityTiered {
		startsAt, err := model.Shift{Date: date, Start: t.Start}.StartsAt()
		if err != nil {
			return model.ShiftSpec{}, model.Wrap(model.KindValidation, err, "invalid date %s", date)
		}
		releaseAt := startsAt.Add(-t.ReleaseLead)
		spec.ReleaseAt = &releaseAt
	}

	return spec, nil
}

// CreateRecurringShifts posts one shift per date of the template between from and until.
// Either every shift is created or none are.
func CreateRecurringShifts(ctx context.Context, store db.Store, logger *zap.Logger, actor model.Viewer, tmpl RecurringTemplate, from, until, now time.Time) ([]model.Shift, error) {
	if !actor.CanManage(tmpl.FacilityID) {
		return nil, model.Errorf(model.KindForbidden, "%s may not post shifts for facility %s", actor.UserID, tmpl.FacilityID)
	}

	dates, err := tmpl.ExpandDates(from, until)
	if err != nil {
		return nil, err
	}

	logger.Debug("Expanded recurring template",
		zap.String("template", tmpl.Name),
		zap.String("rrule", tmpl.RRule),
		zap.Int("dates", len(dates)))

	// Validate everything before touching the store
	shifts := make([]model.Shift, 0, len(dates))
	for _, date := range dates {
		spec, err := tmpl.spec(date, actor.UserID)
		if err != nil {
			return nil, err
		}
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("template %s on %s: %w", tmpl.Name, date, err)
		}
		shifts = append(shifts, model.NewShift(uuid.NewString(), spec, now))
	}

	err = store.WithTx(ctx, func(tx db.Tx) error {
		for _, s := range shifts {
			if err := tx.InsertShift(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create recurring shifts: %w", err)
	}

	logger.Info("Recurring shifts created", zap.String("template", tmpl.Name), zap.Int("count", len(shifts)))
	return shifts, nil
}
