package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/shift-bridge/pkg/core/model"
)

func seedShift(t *testing.T, store *MemoryStore, s model.Shift) {
	t.Helper()
	err := store.WithTx(context.Background(), func(tx Tx) error {
		return tx.InsertShift(context.Background(), s)
	})
	require.NoError(t, err)
}

func TestMemoryStore_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedShift(t, store, model.Shift{ID: "s1", FacilityID: "fac-1", Date: "2025-01-10", Start: 540, End: 1020, Status: model.ShiftOpen})

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx Tx) error {
		s, err := tx.GetShiftForUpdate(ctx, "s1")
		require.NoError(t, err)
		s.Status = model.ShiftPending
		require.NoError(t, tx.UpdateShift(ctx, s))
		require.NoError(t, tx.InsertClaim(ctx, model.Claim{ID: "c1", ShiftID: "s1", PersonID: "p1", Status: model.ClaimPending}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	s, err := store.GetShift(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.ShiftOpen, s.Status)

	claims, err := store.ListClaimsByShift(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestMemoryStore_DuplicateClaim(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedShift(t, store, model.Shift{ID: "s1", FacilityID: "fac-1", Date: "2025-01-10", Start: 540, End: 1020})

	err := store.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertClaim(ctx, model.Claim{ID: "c1", ShiftID: "s1", PersonID: "p1"}); err != nil {
			return err
		}
		return tx.InsertClaim(ctx, model.Claim{ID: "c2", ShiftID: "s1", PersonID: "p1"})
	})
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestMemoryStore_SecondApprovalIsStale(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedShift(t, store, model.Shift{ID: "s1", FacilityID: "fac-1", Date: "2025-01-10", Start: 540, End: 1020})

	err := store.WithTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.InsertClaim(ctx, model.Claim{ID: "c1", ShiftID: "s1", PersonID: "p1", Status: model.ClaimPending}))
		require.NoError(t, tx.InsertClaim(ctx, model.Claim{ID: "c2", ShiftID: "s1", PersonID: "p2", Status: model.ClaimPending}))
		return nil
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx Tx) error {
		if err := tx.UpdateClaim(ctx, model.Claim{ID: "c1", ShiftID: "s1", PersonID: "p1", Status: model.ClaimApproved}); err != nil {
			return err
		}
		return tx.UpdateClaim(ctx, model.Claim{ID: "c2", ShiftID: "s1", PersonID: "p2", Status: model.ClaimApproved})
	})
	assert.ErrorIs(t, err, model.ErrStaleState)

	claims, err := store.ListClaimsByShift(ctx, "s1")
	require.NoError(t, err)
	for _, c := range claims {
		assert.Equal(t, model.ClaimPending, c.Status)
	}

	// re-saving the approved claim itself is fine
	err = store.WithTx(ctx, func(tx Tx) error {
		approved := model.Claim{ID: "c1", ShiftID: "s1", PersonID: "p1", Status: model.ClaimApproved}
		if err := tx.UpdateClaim(ctx, approved); err != nil {
			return err
		}
		return tx.UpdateClaim(ctx, approved)
	})
	require.NoError(t, err)
}

func TestMemoryStore_GetShiftNotFound(t *testing.T) {
	_, err := NewMemoryStore().GetShift(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryStore_ListShiftsFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedShift(t, store, model.Shift{ID: "late", FacilityID: "fac-1", Date: "2025-01-11", Start: 600, End: 700, Role: "Registered Nurse", Status: model.ShiftOpen})
	seedShift(t, store, model.Shift{ID: "early", FacilityID: "fac-1", Date: "2025-01-10", Start: 480, End: 700, Role: "Nurse", Status: model.ShiftOpen})
	seedShift(t, store, model.Shift{ID: "mid", FacilityID: "fac-1", Date: "2025-01-10", Start: 600, End: 700, Role: "Porter", Status: model.ShiftCancelled})
	seedShift(t, store, model.Shift{ID: "other", FacilityID: "fac-2", Date: "2025-01-10", Start: 600, End: 700, Role: "nurse", Status: model.ShiftOpen})

	all, err := store.ListShifts(ctx, ShiftFilter{FacilityID: "fac-1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "early", all[0].ID)
	assert.Equal(t, "mid", all[1].ID)
	assert.Equal(t, "late", all[2].ID)

	nurses, err := store.ListShifts(ctx, ShiftFilter{Role: "NURSE", Status: model.ShiftOpen})
	require.NoError(t, err)
	assert.Len(t, nurses, 3)

	ranged, err := store.ListShifts(ctx, ShiftFilter{FromDate: "2025-01-11", ToDate: "2025-01-11"})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "late", ranged[0].ID)
}

func TestMemoryStore_ReturnedShiftsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	release := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	seedShift(t, store, model.Shift{ID: "s1", Date: "2025-01-10", Visibility: model.VisibilityTiered, ReleaseAt: &release})

	s, err := store.GetShift(ctx, "s1")
	require.NoError(t, err)
	*s.ReleaseAt = release.Add(time.Hour)

	again, err := store.GetShift(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, again.ReleaseAt.Equal(release))
}

func TestMemoryStore_ListCommitments(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedShift(t, store, model.Shift{ID: "s1", FacilityID: "fac-1", Date: "2025-01-10", Start: 540, End: 1020, Status: model.ShiftApproved})
	seedShift(t, store, model.Shift{ID: "s2", FacilityID: "fac-1", Date: "2025-01-20", Start: 540, End: 1020, Status: model.ShiftApproved})
	seedShift(t, store, model.Shift{ID: "s3", FacilityID: "fac-2", Date: "2025-01-10", Start: 1080, End: 1200, Status: model.ShiftPending})

	err := store.WithTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.InsertClaim(ctx, model.Claim{ID: "c1", ShiftID: "s1", PersonID: "p1", Status: model.ClaimApproved}))
		require.NoError(t, tx.InsertClaim(ctx, model.Claim{ID: "c2", ShiftID: "s2", PersonID: "p1", Status: model.ClaimApproved}))
		require.NoError(t, tx.InsertClaim(ctx, model.Claim{ID: "c3", ShiftID: "s3", PersonID: "p1", Status: model.ClaimPending}))

		approved, err := tx.ListCommitments(ctx, "p1", []string{"2025-01-09", "2025-01-10", "2025-01-11"}, []model.ClaimStatus{model.ClaimApproved})
		require.NoError(t, err)
		require.Len(t, approved, 1)
		assert.Equal(t, "c1", approved[0].ClaimID)
		assert.Equal(t, model.TimeOfDay(540), approved[0].Start)

		both, err := tx.ListCommitments(ctx, "p1", []string{"2025-01-10"}, []model.ClaimStatus{model.ClaimApproved, model.ClaimPending})
		require.NoError(t, err)
		assert.Len(t, both, 2)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_ReleaseMarkers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	release := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	seedShift(t, store, model.Shift{ID: "s1", Date: "2025-01-10", Visibility: model.VisibilityTiered, ReleaseAt: &release, Status: model.ShiftOpen})

	err := store.WithTx(ctx, func(tx Tx) error {
		due, err := tx.ListDueTieredShifts(ctx, release.Add(-time.Second))
		require.NoError(t, err)
		assert.Empty(t, due)

		due, err = tx.ListDueTieredShifts(ctx, release)
		require.NoError(t, err)
		require.Len(t, due, 1)

		require.NoError(t, tx.MarkReleaseEvaluated(ctx, "s1", release.Add(time.Minute)))
		// Never moves backwards
		require.NoError(t, tx.MarkReleaseEvaluated(ctx, "s1", release.Add(-time.Hour)))

		due, err = tx.ListDueTieredShifts(ctx, release.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, due)
		return nil
	})
	require.NoError(t, err)

	// Moving the release past the marker makes the shift due again once reached
	later := release.Add(24 * time.Hour)
	err = store.WithTx(ctx, func(tx Tx) error {
		s, err := tx.GetShiftForUpdate(ctx, "s1")
		require.NoError(t, err)
		s.ReleaseAt = &later
		require.NoError(t, tx.UpdateShift(ctx, s))

		due, err := tx.ListDueTieredShifts(ctx, later)
		require.NoError(t, err)
		assert.Len(t, due, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_ReminderMarkers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedShift(t, store, model.Shift{ID: "s1", Date: "2025-01-10", Status: model.ShiftOpen})
	seedShift(t, store, model.Shift{ID: "s2", Date: "2025-01-10", Status: model.ShiftApproved})

	err := store.WithTx(ctx, func(tx Tx) error {
		shifts, err := tx.ListUnremindedOpenShifts(ctx, "2025-01-09", "2025-01-10")
		require.NoError(t, err)
		require.Len(t, shifts, 1)
		assert.Equal(t, "s1", shifts[0].ID)

		require.NoError(t, tx.MarkReminderSent(ctx, "s1", time.Now()))

		shifts, err = tx.ListUnremindedOpenShifts(ctx, "2025-01-09", "2025-01-10")
		require.NoError(t, err)
		assert.Empty(t, shifts)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_ListClaimsByPersonNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	err := store.WithTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.InsertClaim(ctx, model.Claim{ID: "old", ShiftID: "s1", PersonID: "p1", ClaimedAt: base}))
		require.NoError(t, tx.InsertClaim(ctx, model.Claim{ID: "new", ShiftID: "s2", PersonID: "p1", ClaimedAt: base.Add(time.Hour)}))
		require.NoError(t, tx.InsertClaim(ctx, model.Claim{ID: "theirs", ShiftID: "s1", PersonID: "p2", ClaimedAt: base}))
		return nil
	})
	require.NoError(t, err)

	claims, err := store.ListClaimsByPerson(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, "new", claims[0].ID)
	assert.Equal(t, "old", claims[1].ID)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewMemoryStore().WithTx(ctx, func(tx Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
