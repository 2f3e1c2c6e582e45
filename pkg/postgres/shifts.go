package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jakechorley/shift-bridge/pkg/core/model"
	"github.com/jakechorley/shift-bridge/pkg/db"
)

const shiftColumns = `s.id, s.facility_id, s.posted_by_id, s.date, s.start_minute, s.end_minute, s.role, s.status,
	s.visibility, s.release_at, s.notes, s.is_premium, s.premium_notes, s.recurring_template_id, s.posted_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanShift(row scanner) (model.Shift, error) {
	var s model.Shift
	var date, postedAt time.Time
	var releaseAt *time.Time
	var start, end int
	var status, visibility string
	err := row.Scan(&s.ID, &s.FacilityID, &s.PostedByID, &date, &start, &end, &s.Role, &status,
		&visibility, &releaseAt, &s.Notes, &s.IsPremium, &s.PremiumNotes, &s.RecurringTemplateID, &postedAt)
	if err != nil {
		return model.Shift{}, err
	}
	s.Date = date.Format(model.DateLayout)
	s.Start = model.TimeOfDay(start)
	s.End = model.TimeOfDay(end)
	s.Status = model.ShiftStatus(status)
	s.Visibility = model.Visibility(visibility)
	if releaseAt != nil {
		r := releaseAt.UTC()
		s.ReleaseAt = &r
	}
	s.PostedAt = postedAt.UTC()
	return s, nil
}

func queryShifts(ctx context.Context, q querier, query string, args ...any) ([]model.Shift, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	shifts := []model.Shift{}
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shifts: %w", err)
	}

	return shifts, nil
}

func getShift(ctx context.Context, q querier, shiftID string, forUpdate bool) (model.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts s WHERE s.id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	s, err := scanShift(q.QueryRowContext(ctx, query, shiftID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Shift{}, model.Errorf(model.KindNotFound, "shift %s not found", shiftID)
	}
	if err != nil {
		return model.Shift{}, fmt.Errorf("failed to get shift %s: %w", shiftID, err)
	}
	return s, nil
}

// GetShift retrieves a single shift
func (d *DB) GetShift(ctx context.Context, shiftID string) (model.Shift, error) {
	return getShift(ctx, d.conn, shiftID, false)
}

// ListShifts retrieves shifts matching the filter, ordered by date and start time
func (d *DB) ListShifts(ctx context.Context, filter db.ShiftFilter) ([]model.Shift, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.FacilityID != "" {
		add("s.facility_id = $%d", filter.FacilityID)
	}
	if filter.Status != "" {
		add("s.status = $%d", string(filter.Status))
	}
	if filter.FromDate != "" {
		add("s.date >= $%d", filter.FromDate)
	}
	if filter.ToDate != "" {
		add("s.date <= $%d", filter.ToDate)
	}
	if filter.Role != "" {
		add("strpos(lower(s.role), lower($%d)) > 0", filter.Role)
	}

	query := `SELECT ` + shiftColumns + ` FROM shifts s`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY s.date, s.start_minute, s.id`

	return queryShifts(ctx, d.conn, query, args...)
}

func (t *pgTx) GetShiftForUpdate(ctx context.Context, shiftID string) (model.Shift, error) {
	return getShift(ctx, t.q, shiftID, true)
}

func (t *pgTx) InsertShift(ctx context.Context, s model.Shift) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO shifts (id, facility_id, posted_by_id, date, start_minute, end_minute, role, status,
			visibility, release_at, notes, is_premium, premium_notes, recurring_template_id, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, s.ID, s.FacilityID, s.PostedByID, s.Date, int(s.Start), int(s.End), s.Role, string(s.Status),
		string(s.Visibility), nullableTime(s.ReleaseAt), s.Notes, s.IsPremium, s.PremiumNotes, s.RecurringTemplateID, s.PostedAt.UTC())
	if isUniqueViolation(err) {
		return model.Wrap(model.KindConflict, err, "shift %s already exists", s.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert shift: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateShift(ctx context.Context, s model.Shift) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE shifts SET date = $2, start_minute = $3, end_minute = $4, role = $5, status = $6,
			visibility = $7, release_at = $8, notes = $9, is_premium = $10, premium_notes = $11
		WHERE id = $1
	`, s.ID, s.Date, int(s.Start), int(s.End), s.Role, string(s.Status),
		string(s.Visibility), nullableTime(s.ReleaseAt), s.Notes, s.IsPremium, s.PremiumNotes)
	if err != nil {
		return fmt.Errorf("failed to update shift %s: %w", s.ID, err)
	}
	return expectOneRow(res, "shift", s.ID)
}

func (t *pgTx) ListDueTieredShifts(ctx context.Context, now time.Time) ([]model.Shift, error) {
	return queryShifts(ctx, t.q, `
		SELECT `+shiftColumns+`
		FROM shifts s
		LEFT JOIN tier_release_markers m ON m.shift_id = s.id
		WHERE s.visibility = 'tiered'
			AND s.release_at <= $1
			AND (m.evaluated_at IS NULL OR m.evaluated_at < s.release_at)
		ORDER BY s.date, s.start_minute, s.id
		FOR UPDATE OF s
	`, now.UTC())
}

func (t *pgTx) ListUnremindedOpenShifts(ctx context.Context, fromDate, toDate string) ([]model.Shift, error) {
	return queryShifts(ctx, t.q, `
		SELECT `+shiftColumns+`
		FROM shifts s
		WHERE s.status = 'open'
			AND s.date BETWEEN $1 AND $2
			AND NOT EXISTS (SELECT 1 FROM reminder_markers r WHERE r.shift_id = s.id)
		ORDER BY s.date, s.start_minute, s.id
		FOR UPDATE OF s
	`, fromDate, toDate)
}

func nullableTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func expectOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for %s %s: %w", entity, id, err)
	}
	if n == 0 {
		return model.Errorf(model.KindNotFound, "%s %s not found", entity, id)
	}
	return nil
}
