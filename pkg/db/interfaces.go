package db

import (
	"context"
	"time"

	"github.com/jakechorley/shift-bridge/pkg/core/conflicts"
	"github.com/jakechorley/shift-bridge/pkg/core/model"
)

// ShiftFilter narrows ListShifts. Zero values mean "no constraint".
type ShiftFilter struct {
	FacilityID string
	Status     model.ShiftStatus
	FromDate   string // inclusive, model.DateLayout
	ToDate     string // inclusive, model.DateLayout
	Role       string // case-insensitive substring match
}

// Store is the durable record of shifts and claims.
// Both the in-memory MemoryStore and postgres.DB implement this interface.
type Store interface {
	// WithTx runs fn as one serializable unit of work. If fn returns an error,
	// every write made through tx is discarded.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetShift(ctx context.Context, shiftID string) (model.Shift, error)
	// ListShifts returns matching shifts ordered by date then start time
	ListShifts(ctx context.Context, filter ShiftFilter) ([]model.Shift, error)
	// ListClaimsByShift returns the shift's claims in the order they were made
	ListClaimsByShift(ctx context.Context, shiftID string) ([]model.Claim, error)
	// ListClaimsByPerson returns the person's claims, newest first
	ListClaimsByPerson(ctx context.Context, personID string) ([]model.Claim, error)
}

// Tx is the write interface available inside Store.WithTx
type Tx interface {
	// GetShiftForUpdate reads the shift and holds it against concurrent writers until the tx ends
	GetShiftForUpdate(ctx context.Context, shiftID string) (model.Shift, error)
	InsertShift(ctx context.Context, shift model.Shift) error
	UpdateShift(ctx context.Context, shift model.Shift) error

	GetClaim(ctx context.Context, claimID string) (model.Claim, error)
	// InsertClaim fails with a Conflict error if the person already claimed the shift
	InsertClaim(ctx context.Context, claim model.Claim) error
	UpdateClaim(ctx context.Context, claim model.Claim) error
	ListClaimsByShift(ctx context.Context, shiftID string) ([]model.Claim, error)

	// ListCommitments returns the person's claims with one of the given statuses on the given dates
	ListCommitments(ctx context.Context, personID string, dates []string, statuses []model.ClaimStatus) ([]conflicts.Commitment, error)

	// ListDueTieredShifts returns tiered shifts whose release_at <= now and whose release
	// marker is absent or older than release_at
	ListDueTieredShifts(ctx context.Context, now time.Time) ([]model.Shift, error)
	// MarkReleaseEvaluated advances the shift's release marker; it never moves backwards
	MarkReleaseEvaluated(ctx context.Context, shiftID string, at time.Time) error

	// ListUnremindedOpenShifts returns open shifts dated within [fromDate, toDate] that have no reminder marker
	ListUnremindedOpenShifts(ctx context.Context, fromDate, toDate string) ([]model.Shift, error)
	MarkReminderSent(ctx context.Context, shiftID string, at time.Time) error
}

// Directory resolves agency to facility relationships for building a model.Viewer
type Directory interface {
	// ActiveFacilities returns the IDs of facilities the agency has an active relationship with
	ActiveFacilities(ctx context.Context, agencyID string) (map[string]bool, error)
	// SetRelationship activates or deactivates the link between an agency and a facility
	SetRelationship(ctx context.Context, agencyID, facilityID string, active bool) error
}
