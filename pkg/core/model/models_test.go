package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input    string
		expected TimeOfDay
		wantErr  bool
	}{
		{"09:00", 540, false},
		{"17:30", 1050, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{" 08:15 ", 495, false},
		{"24:00", 0, true},
		{"9am", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTimeOfDay_String(t *testing.T) {
	assert.Equal(t, "09:05", TimeOfDay(545).String())
	assert.Equal(t, "00:00", TimeOfDay(0).String())
}

func TestShift_Window(t *testing.T) {
	s := Shift{Date: "2025-01-10", Start: 540, End: 1020}

	start, end, err := s.Window()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 10, 17, 0, 0, 0, time.UTC), end)

	_, _, err = Shift{Date: "10/01/2025"}.Window()
	assert.Error(t, err)
}

func TestShiftTransitions(t *testing.T) {
	allowed := []struct{ from, to ShiftStatus }{
		{ShiftOpen, ShiftPending},
		{ShiftOpen, ShiftCancelled},
		{ShiftPending, ShiftApproved},
		{ShiftPending, ShiftOpen},
		{ShiftPending, ShiftCancelled},
		{ShiftApproved, ShiftCancelled},
	}
	for _, tt := range allowed {
		assert.True(t, CanTransitionShift(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}

	rejected := []struct{ from, to ShiftStatus }{
		{ShiftOpen, ShiftApproved},
		{ShiftOpen, ShiftOpen},
		{ShiftApproved, ShiftOpen},
		{ShiftApproved, ShiftPending},
		{ShiftCancelled, ShiftOpen},
		{ShiftCancelled, ShiftCancelled},
	}
	for _, tt := range rejected {
		assert.False(t, CanTransitionShift(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}

	assert.True(t, ShiftCancelled.IsTerminal())
	assert.False(t, ShiftApproved.IsTerminal())
}

func TestClaimTransitions(t *testing.T) {
	assert.True(t, CanTransitionClaim(ClaimPending, ClaimApproved))
	assert.True(t, CanTransitionClaim(ClaimPending, ClaimDenied))
	assert.False(t, CanTransitionClaim(ClaimApproved, ClaimDenied))
	assert.False(t, CanTransitionClaim(ClaimDenied, ClaimApproved))
	assert.False(t, CanTransitionClaim(ClaimDenied, ClaimPending))
}

func TestTransitionClaim_StaleState(t *testing.T) {
	c := &Claim{ID: "claim-1", Status: ClaimDenied}

	err := TransitionClaim(c, ClaimApproved)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaleState)
	assert.Equal(t, ClaimDenied, c.Status)
}

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("failed to approve: %w", Errorf(KindNotFound, "claim %s not found", "c-1"))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Contains(t, err.Error(), "not_found: claim c-1 not found")
}

func TestViewer_Permissions(t *testing.T) {
	admin := Viewer{UserID: "u1", Role: RoleFacilityAdmin, CompanyID: "fac-1"}
	staff := Viewer{UserID: "u2", Role: RoleFacilityStaff, CompanyID: "fac-1"}
	agency := Viewer{UserID: "u3", Role: RoleAgencyAdmin, CompanyID: "ag-1", Relationships: map[string]bool{"fac-1": true}}
	platform := Viewer{UserID: "root", Role: RolePlatformAdmin}

	assert.True(t, admin.CanManage("fac-1"))
	assert.False(t, admin.CanManage("fac-2"))
	assert.False(t, staff.CanManage("fac-1"))
	assert.False(t, agency.CanManage("fac-1"))
	assert.True(t, platform.CanManage("fac-2"))

	assert.True(t, staff.MemberOf("fac-1"))
	assert.False(t, agency.MemberOf("ag-1"))
	assert.True(t, agency.HasActiveRelationship("fac-1"))
	assert.False(t, agency.HasActiveRelationship("fac-2"))
}
