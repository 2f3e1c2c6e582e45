package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for shift dates
const DateLayout = "2006-01-02"

type ShiftStatus string

const (
	ShiftOpen      ShiftStatus = "open"
	ShiftPending   ShiftStatus = "pending"
	ShiftApproved  ShiftStatus = "approved"
	ShiftCancelled ShiftStatus = "cancelled"
)

func (s ShiftStatus) IsValid() bool {
	switch s {
	case ShiftOpen, ShiftPending, ShiftApproved, ShiftCancelled:
		return true
	}
	return false
}

type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimDenied   ClaimStatus = "denied"
)

func (s ClaimStatus) IsValid() bool {
	return s == ClaimPending || s == ClaimApproved || s == ClaimDenied
}

type Visibility string

const (
	VisibilityInternal Visibility = "internal"
	VisibilityAgency   Visibility = "agency"
	VisibilityAll      Visibility = "all"
	VisibilityTiered   Visibility = "tiered"
)

func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityInternal, VisibilityAgency, VisibilityAll, VisibilityTiered:
		return true
	}
	return false
}

// Denial reasons written by the system rather than an approver
const (
	ReasonAutoDenied     = "auto-denied: another claim approved"
	ReasonShiftCancelled = "system: shift cancelled"
)

// TimeOfDay is a wall-clock time within a day, stored as minutes after midnight
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" (24 hour clock)
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Duration returns the offset of t from midnight
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Minute
}

// Shift is a bounded work assignment posted by a facility
type Shift struct {
	ID                  string
	FacilityID          string
	PostedByID          string
	Date                string // DateLayout
	Start               TimeOfDay
	End                 TimeOfDay
	Role                string
	Status              ShiftStatus
	Visibility          Visibility
	ReleaseAt           *time.Time // set iff Visibility == VisibilityTiered
	Notes               string
	IsPremium           bool
	PremiumNotes        string
	RecurringTemplateID string // empty unless created from a recurring template
	PostedAt            time.Time
}

// StartsAt returns the absolute start of the shift, treating the date as UTC
func (s Shift) StartsAt() (time.Time, error) {
	return instant(s.Date, s.Start)
}

// Window returns the half-open interval [start, end) the shift occupies
func (s Shift) Window() (start, end time.Time, err error) {
	start, err = instant(s.Date, s.Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = instant(s.Date, s.End)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func instant(date string, tod TimeOfDay) (time.Time, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return d.Add(tod.Duration()), nil
}

// Claim is a person's request to work a specific shift
type Claim struct {
	ID           string
	ShiftID      string
	PersonID     string
	Status       ClaimStatus
	ClaimedAt    time.Time
	ApproverID   string // empty until decided by a person
	DenialReason string
}

// Role is the caller's role as resolved by the identity layer
type Role string

const (
	RolePlatformAdmin Role = "platform_admin"
	RoleFacilityAdmin Role = "admin"
	RoleFacilityStaff Role = "staff"
	RoleAgencyAdmin   Role = "agency_admin"
	RoleAgencyStaff   Role = "agency_staff"
)

func (r Role) IsValid() bool {
	switch r {
	case RolePlatformAdmin, RoleFacilityAdmin, RoleFacilityStaff, RoleAgencyAdmin, RoleAgencyStaff:
		return true
	}
	return false
}

func (r Role) IsFacility() bool {
	return r == RoleFacilityAdmin || r == RoleFacilityStaff
}

func (r Role) IsAgency() bool {
	return r == RoleAgencyAdmin || r == RoleAgencyStaff
}

// Viewer describes the caller of an operation.
// Relationships holds the IDs of facilities the viewer's agency is actively linked to.
type Viewer struct {
	UserID        string
	Role          Role
	CompanyID     string
	Relationships map[string]bool
}

// HasActiveRelationship reports whether the viewer's agency is actively linked to the facility
func (v Viewer) HasActiveRelationship(facilityID string) bool {
	return v.Relationships[facilityID]
}

// MemberOf reports whether the viewer belongs to the given facility
func (v Viewer) MemberOf(facilityID string) bool {
	return v.Role.IsFacility() && v.CompanyID != "" && v.CompanyID == facilityID
}

// CanManage reports whether the viewer may approve, deny, cancel or edit the facility's shifts
func (v Viewer) CanManage(facilityID string) bool {
	if v.Role == RolePlatformAdmin {
		return true
	}
	return v.Role == RoleFacilityAdmin && v.CompanyID == facilityID
}
