package model

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ShiftSpec is the input for creating a shift
type ShiftSpec struct {
	FacilityID   string     `validate:"required"`
	PostedByID   string     `validate:"required"`
	Date         string     `validate:"required,datetime=2006-01-02"`
	Start        TimeOfDay  `validate:"min=0,max=1439"`
	End          TimeOfDay  `validate:"min=1,max=1440"`
	Role         string     `validate:"required"`
	Visibility   Visibility `validate:"required,oneof=internal agency all tiered"`
	ReleaseAt    *time.Time
	Notes        string
	IsPremium    bool
	PremiumNotes string

	RecurringTemplateID string
}

var validate = validator.New()

// Validate checks the spec and returns a Validation error describing the first problem found
func (s ShiftSpec) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
			}
			return Errorf(KindValidation, "invalid shift: %s", strings.Join(fields, ", "))
		}
		return Wrap(KindValidation, err, "invalid shift")
	}
	return checkShiftRules(s.Start, s.End, s.Visibility, s.ReleaseAt)
}

// ValidateShift re-checks the invariants of an existing shift after a metadata update
func ValidateShift(s Shift) error {
	if s.Role == "" {
		return Errorf(KindValidation, "invalid shift: role is required")
	}
	if !s.Visibility.IsValid() {
		return Errorf(KindValidation, "invalid shift: unknown visibility %q", s.Visibility)
	}
	return checkShiftRules(s.Start, s.End, s.Visibility, s.ReleaseAt)
}

func checkShiftRules(start, end TimeOfDay, visibility Visibility, releaseAt *time.Time) error {
	if start >= end {
		return Errorf(KindValidation, "invalid shift: start %s must be before end %s", start, end)
	}
	if visibility == VisibilityTiered && releaseAt == nil {
		return Errorf(KindValidation, "invalid shift: tiered visibility requires release_at")
	}
	if visibility != VisibilityTiered && releaseAt != nil {
		return Errorf(KindValidation, "invalid shift: release_at is only allowed for tiered visibility")
	}
	return nil
}

// NewShift builds an open shift from a validated spec
func NewShift(id string, spec ShiftSpec, postedAt time.Time) Shift {
	var releaseAt *time.Time
	if spec.ReleaseAt != nil {
		r := spec.ReleaseAt.UTC()
		releaseAt = &r
	}
	return Shift{
		ID:                  id,
		FacilityID:          spec.FacilityID,
		PostedByID:          spec.PostedByID,
		Date:                spec.Date,
		Start:               spec.Start,
		End:                 spec.End,
		Role:                spec.Role,
		Status:              ShiftOpen,
		Visibility:          spec.Visibility,
		ReleaseAt:           releaseAt,
		Notes:               spec.Notes,
		IsPremium:           spec.IsPremium,
		PremiumNotes:        spec.PremiumNotes,
		RecurringTemplateID: spec.RecurringTemplateID,
		PostedAt:            postedAt.UTC(),
	}
}
