// Package events defines the notifications produced by shift and claim transitions
// and the sinks that deliver them.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-bridge/pkg/core/model"
)

type Type string

const (
	TypeClaimCreated          Type = "claim_created"
	TypeClaimApproved         Type = "claim_approved"
	TypeClaimDenied           Type = "claim_denied"
	TypeShiftCancelled        Type = "shift_cancelled"
	TypeTierReleased          Type = "tier_released"
	TypeShiftUnfilledReminder Type = "shift_unfilled_reminder"
)

// Event is a single notification. Consumers must tolerate duplicates.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	ShiftID    string    `json:"shiftId"`
	FacilityID string    `json:"facilityId"`
	ClaimID    string    `json:"claimId,omitempty"`
	PersonID   string    `json:"personId,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Emitter delivers events to a destination
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

func newEvent(t Type, shift model.Shift, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		ShiftID:    shift.ID,
		FacilityID: shift.FacilityID,
		OccurredAt: at.UTC(),
	}
}

func claimEvent(t Type, shift model.Shift, claim model.Claim, at time.Time) Event {
	e := newEvent(t, shift, at)
	e.ClaimID = claim.ID
	e.PersonID = claim.PersonID
	return e
}

func ClaimCreated(shift model.Shift, claim model.Claim, at time.Time) Event {
	return claimEvent(TypeClaimCreated, shift, claim, at)
}

func ClaimApproved(shift model.Shift, claim model.Claim, at time.Time) Event {
	return claimEvent(TypeClaimApproved, shift, claim, at)
}

// ClaimDenied carries the claim's denial reason
func ClaimDenied(shift model.Shift, claim model.Claim, at time.Time) Event {
	e := claimEvent(TypeClaimDenied, shift, claim, at)
	e.Reason = claim.DenialReason
	return e
}

func ShiftCancelled(shift model.Shift, at time.Time) Event {
	return newEvent(TypeShiftCancelled, shift, at)
}

func TierReleased(shift model.Shift, at time.Time) Event {
	return newEvent(TypeTierReleased, shift, at)
}

func ShiftUnfilledReminder(shift model.Shift, at time.Time) Event {
	return newEvent(TypeShiftUnfilledReminder, shift, at)
}

// Dispatch emits events in order after their transaction has committed.
// Delivery failures are logged and do not stop the remaining events.
// Returns the number of events delivered.
func Dispatch(ctx context.Context, emitter Emitter, logger *zap.Logger, evts []Event) int {
	delivered := 0
	for _, e := range evts {
		if err := emitter.Emit(ctx, e); err != nil {
			logger.Warn("Failed to emit event",
				zap.String("event_id", e.ID),
				zap.String("type", string(e.Type)),
				zap.String("shift_id", e.ShiftID),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

// Multi fans each event out to every sink
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }
