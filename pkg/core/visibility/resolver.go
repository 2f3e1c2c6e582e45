// Package visibility decides which shifts a viewer may see at a given moment.
//
// Tiered shifts are evaluated from (release_at, now) on every read. Nothing is stored when a
// tiered shift is released, so a background release tick and a concurrent read cannot disagree.
package visibility

import (
	"time"

	"github.com/jakechorley/shift-bridge/pkg/core/model"
)

// IsReleased reports whether a tiered shift is past its release moment (inclusive)
func IsReleased(s model.Shift, now time.Time) bool {
	if s.Visibility != model.VisibilityTiered || s.ReleaseAt == nil {
		return false
	}
	return !now.Before(*s.ReleaseAt)
}

// Effective returns the visibility the shift behaves as at the given moment
func Effective(s model.Shift, now time.Time) model.Visibility {
	if s.Visibility != model.VisibilityTiered {
		return s.Visibility
	}
	if IsReleased(s, now) {
		return model.VisibilityAgency
	}
	return model.VisibilityInternal
}

// ResolveVisible reports whether the viewer may see the shift at the given moment
func ResolveVisible(s model.Shift, viewer model.Viewer, now time.Time) bool {
	if viewer.Role == model.RolePlatformAdmin {
		return true
	}
	if viewer.MemberOf(s.FacilityID) {
		return true
	}
	if !viewer.Role.IsAgency() {
		return false
	}

	switch Effective(s, now) {
	case model.VisibilityAll:
		return true
	case model.VisibilityAgency:
		return viewer.HasActiveRelationship(s.FacilityID)
	default:
		return false
	}
}

// Filter keeps only the shifts the viewer may see, preserving order
func Filter(shifts []model.Shift, viewer model.Viewer, now time.Time) []model.Shift {
	visible := make([]model.Shift, 0, len(shifts))
	for _, s := range shifts {
		if ResolveVisible(s, viewer, now) {
			visible = append(visible, s)
		}
	}
	return visible
}
