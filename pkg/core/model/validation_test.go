package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpec() ShiftSpec {
	return ShiftSpec{
		FacilityID: "fac-1",
		PostedByID: "admin-1",
		Date:       "2025-01-10",
		Start:      540,
		End:        1020,
		Role:       "RN",
		Visibility: VisibilityInternal,
	}
}

func TestShiftSpec_Validate_Valid(t *testing.T) {
	assert.NoError(t, validSpec().Validate())

	release := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	tiered := validSpec()
	tiered.Visibility = VisibilityTiered
	tiered.ReleaseAt = &release
	assert.NoError(t, tiered.Validate())
}

func TestShiftSpec_Validate_Rejections(t *testing.T) {
	release := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(s *ShiftSpec)
		msg    string
	}{
		{"start equals end", func(s *ShiftSpec) { s.End = s.Start }, "must be before end"},
		{"start after end", func(s *ShiftSpec) { s.Start, s.End = 1020, 540 }, "must be before end"},
		{"tiered without release", func(s *ShiftSpec) { s.Visibility = VisibilityTiered }, "requires release_at"},
		{"release on non-tiered", func(s *ShiftSpec) { s.ReleaseAt = &release }, "only allowed for tiered"},
		{"missing role", func(s *ShiftSpec) { s.Role = "" }, "Role"},
		{"missing facility", func(s *ShiftSpec) { s.FacilityID = "" }, "FacilityID"},
		{"bad date", func(s *ShiftSpec) { s.Date = "10/01/2025" }, "Date"},
		{"unknown visibility", func(s *ShiftSpec) { s.Visibility = "tier_1" }, "Visibility"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(&spec)

			err := spec.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestNewShift(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	release := time.Date(2025, 1, 10, 3, 0, 0, 0, loc)
	spec := validSpec()
	spec.Visibility = VisibilityTiered
	spec.ReleaseAt = &release

	s := NewShift("shift-1", spec, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "shift-1", s.ID)
	assert.Equal(t, ShiftOpen, s.Status)
	require.NotNil(t, s.ReleaseAt)
	assert.Equal(t, time.UTC, s.ReleaseAt.Location())
	assert.True(t, s.ReleaseAt.Equal(release))
}

func TestValidateShift(t *testing.T) {
	s := NewShift("shift-1", validSpec(), time.Now())
	assert.NoError(t, ValidateShift(s))

	s.Visibility = VisibilityTiered
	assert.ErrorIs(t, ValidateShift(s), ErrValidation)
}
