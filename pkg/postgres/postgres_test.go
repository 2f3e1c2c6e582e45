package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/shift-bridge/pkg/core/model"
	"github.com/jakechorley/shift-bridge/pkg/db"
)

var shiftRowColumns = []string{
	"id", "facility_id", "posted_by_id", "date", "start_minute", "end_minute", "role", "status",
	"visibility", "release_at", "notes", "is_premium", "premium_notes", "recurring_template_id", "posted_at",
}

var claimRowColumns = []string{"id", "shift_id", "person_id", "status", "claimed_at", "approver_id", "denial_reason"}

func setupMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return New(conn), mock
}

func TestGetShift_Success(t *testing.T) {
	d, mock := setupMockDB(t)
	postedAt := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	release := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(shiftRowColumns).AddRow(
		"s1", "fac-1", "u1", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), 540, 1020, "Nurse", "open",
		"tiered", release, "bring badge", true, "time and a half", "", postedAt,
	)
	mock.ExpectQuery(`FROM shifts s WHERE s.id = \$1`).WithArgs("s1").WillReturnRows(rows)

	s, err := d.GetShift(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, "2025-01-10", s.Date)
	assert.Equal(t, model.TimeOfDay(540), s.Start)
	assert.Equal(t, model.TimeOfDay(1020), s.End)
	assert.Equal(t, model.ShiftOpen, s.Status)
	assert.Equal(t, model.VisibilityTiered, s.Visibility)
	require.NotNil(t, s.ReleaseAt)
	assert.True(t, s.ReleaseAt.Equal(release))
	assert.True(t, s.IsPremium)
	assert.Equal(t, "time and a half", s.PremiumNotes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetShift_NotFound(t *testing.T) {
	d, mock := setupMockDB(t)
	mock.ExpectQuery(`FROM shifts s WHERE s.id = \$1`).WithArgs("missing").WillReturnRows(sqlmock.NewRows(shiftRowColumns))

	_, err := d.GetShift(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListShifts_BuildsFilter(t *testing.T) {
	d, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`WHERE s.facility_id = $1 AND s.status = $2 AND s.date >= $3 AND strpos(lower(s.role), lower($4)) > 0 ORDER BY s.date, s.start_minute, s.id`,
	)).WithArgs("fac-1", "open", "2025-01-01", "nurse").WillReturnRows(sqlmock.NewRows(shiftRowColumns))

	shifts, err := d.ListShifts(context.Background(), db.ShiftFilter{
		FacilityID: "fac-1",
		Status:     model.ShiftOpen,
		FromDate:   "2025-01-01",
		Role:       "nurse",
	})
	require.NoError(t, err)
	assert.Empty(t, shifts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	d, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM shifts s WHERE s.id = \$1 FOR UPDATE`).WithArgs("s1").WillReturnRows(
		sqlmock.NewRows(shiftRowColumns).AddRow(
			"s1", "fac-1", "u1", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), 540, 1020, "Nurse", "open",
			"internal", nil, "", false, "", "", time.Now(),
		),
	)
	mock.ExpectExec(`INSERT INTO claims`).
		WithArgs("c1", "s1", "p1", "pending", sqlmock.AnyArg(), "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE shifts SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := d.WithTx(context.Background(), func(tx db.Tx) error {
		s, err := tx.GetShiftForUpdate(context.Background(), "s1")
		if err != nil {
			return err
		}
		if err := tx.InsertClaim(context.Background(), model.Claim{ID: "c1", ShiftID: "s1", PersonID: "p1", Status: model.ClaimPending, ClaimedAt: time.Now()}); err != nil {
			return err
		}
		s.Status = model.ShiftPending
		return tx.UpdateShift(context.Background(), s)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	d, mock := setupMockDB(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO shifts`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := d.WithTx(context.Background(), func(tx db.Tx) error {
		if err := tx.InsertShift(context.Background(), model.Shift{ID: "s1", Date: "2025-01-10", Start: 540, End: 600, Status: model.ShiftOpen, Visibility: model.VisibilityInternal}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertClaim_DuplicateIsConflict(t *testing.T) {
	d, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO claims`).WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	err := d.WithTx(context.Background(), func(tx db.Tx) error {
		return tx.InsertClaim(context.Background(), model.Claim{ID: "c2", ShiftID: "s1", PersonID: "p1", Status: model.ClaimPending})
	})
	assert.ErrorIs(t, err, model.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateClaim_SecondApprovalIsStale(t *testing.T) {
	d, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE claims SET`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := d.WithTx(context.Background(), func(tx db.Tx) error {
		return tx.UpdateClaim(context.Background(), model.Claim{ID: "c2", ShiftID: "s1", Status: model.ClaimApproved})
	})
	assert.ErrorIs(t, err, model.ErrStaleState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateShift_MissingRowIsNotFound(t *testing.T) {
	d, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE shifts SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := d.WithTx(context.Background(), func(tx db.Tx) error {
		return tx.UpdateShift(context.Background(), model.Shift{ID: "gone", Status: model.ShiftCancelled})
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListCommitments(t *testing.T) {
	d, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`c.status IN ($2)`)).
		WithArgs("p1", "approved", "2025-01-09", "2025-01-10", "2025-01-11").
		WillReturnRows(sqlmock.NewRows([]string{"id", "id", "facility_id", "date", "start_minute", "end_minute"}).
			AddRow("c1", "s1", "fac-1", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), 540, 1020))
	mock.ExpectCommit()

	err := d.WithTx(context.Background(), func(tx db.Tx) error {
		commitments, err := tx.ListCommitments(context.Background(), "p1",
			[]string{"2025-01-09", "2025-01-10", "2025-01-11"}, []model.ClaimStatus{model.ClaimApproved})
		require.NoError(t, err)
		require.Len(t, commitments, 1)
		assert.Equal(t, "c1", commitments[0].ClaimID)
		assert.Equal(t, "2025-01-10", commitments[0].Date)
		assert.Equal(t, model.TimeOfDay(1020), commitments[0].End)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListClaimsByPerson(t *testing.T) {
	d, mock := setupMockDB(t)
	claimedAt := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM claims WHERE person_id = \$1 ORDER BY claimed_at DESC`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(claimRowColumns).AddRow("c1", "s1", "p1", "denied", claimedAt, "u9", "full"))

	claims, err := d.ListClaimsByPerson(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, model.ClaimDenied, claims[0].Status)
	assert.Equal(t, "full", claims[0].DenialReason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkers(t *testing.T) {
	d, mock := setupMockDB(t)
	at := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`LEFT JOIN tier_release_markers`).WithArgs(at).WillReturnRows(sqlmock.NewRows(shiftRowColumns))
	mock.ExpectExec(`INSERT INTO tier_release_markers`).WithArgs("s1", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO reminder_markers`).WithArgs("s1", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := d.WithTx(context.Background(), func(tx db.Tx) error {
		due, err := tx.ListDueTieredShifts(context.Background(), at)
		require.NoError(t, err)
		assert.Empty(t, due)
		require.NoError(t, tx.MarkReleaseEvaluated(context.Background(), "s1", at))
		return tx.MarkReminderSent(context.Background(), "s1", at)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveFacilities(t *testing.T) {
	d, mock := setupMockDB(t)

	mock.ExpectQuery(`FROM agency_relationships WHERE agency_id = \$1 AND active`).
		WithArgs("ag-1").
		WillReturnRows(sqlmock.NewRows([]string{"facility_id"}).AddRow("fac-1").AddRow("fac-3"))

	facilities, err := d.ActiveFacilities(context.Background(), "ag-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"fac-1": true, "fac-3": true}, facilities)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_AppliesPending(t *testing.T) {
	d, mock := setupMockDB(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT filename FROM schema_migrations`).WillReturnRows(sqlmock.NewRows([]string{"filename"}))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS shifts`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("001_init.sql").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, d.RunMigrations(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SkipsApplied(t *testing.T) {
	d, mock := setupMockDB(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT filename FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"filename"}).AddRow("001_init.sql"))

	require.NoError(t, d.RunMigrations(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$2, $3, $4", placeholders(2, 3))
	assert.Equal(t, "", placeholders(1, 0))
}
