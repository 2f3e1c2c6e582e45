package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jakechorley/shift-bridge/pkg/core/conflicts"
	"github.com/jakechorley/shift-bridge/pkg/core/model"
)

const claimColumns = `id, shift_id, person_id, status, claimed_at, approver_id, denial_reason`

func scanClaim(row scanner) (model.Claim, error) {
	var c model.Claim
	var status string
	var claimedAt time.Time
	if err := row.Scan(&c.ID, &c.ShiftID, &c.PersonID, &status, &claimedAt, &c.ApproverID, &c.DenialReason); err != nil {
		return model.Claim{}, err
	}
	c.Status = model.ClaimStatus(status)
	c.ClaimedAt = claimedAt.UTC()
	return c, nil
}

func queryClaims(ctx context.Context, q querier, query string, args ...any) ([]model.Claim, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	claims := []model.Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claims: %w", err)
	}

	return claims, nil
}

// ListClaimsByShift retrieves the shift's claims in the order they were made
func (d *DB) ListClaimsByShift(ctx context.Context, shiftID string) ([]model.Claim, error) {
	return claimsByShift(ctx, d.conn, shiftID)
}

// ListClaimsByPerson retrieves the person's claims, newest first
func (d *DB) ListClaimsByPerson(ctx context.Context, personID string) ([]model.Claim, error) {
	return queryClaims(ctx, d.conn, `
		SELECT `+claimColumns+` FROM claims WHERE person_id = $1 ORDER BY claimed_at DESC, id
	`, personID)
}

func claimsByShift(ctx context.Context, q querier, shiftID string) ([]model.Claim, error) {
	return queryClaims(ctx, q, `
		SELECT `+claimColumns+` FROM claims WHERE shift_id = $1 ORDER BY claimed_at, id
	`, shiftID)
}

func (t *pgTx) ListClaimsByShift(ctx context.Context, shiftID string) ([]model.Claim, error) {
	return claimsByShift(ctx, t.q, shiftID)
}

func (t *pgTx) GetClaim(ctx context.Context, claimID string) (model.Claim, error) {
	c, err := scanClaim(t.q.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, claimID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Claim{}, model.Errorf(model.KindNotFound, "claim %s not found", claimID)
	}
	if err != nil {
		return model.Claim{}, fmt.Errorf("failed to get claim %s: %w", claimID, err)
	}
	return c, nil
}

func (t *pgTx) InsertClaim(ctx context.Context, c model.Claim) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO claims (id, shift_id, person_id, status, claimed_at, approver_id, denial_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.ShiftID, c.PersonID, string(c.Status), c.ClaimedAt.UTC(), c.ApproverID, c.DenialReason)
	if isUniqueViolation(err) {
		return model.Wrap(model.KindConflict, err, "person %s already claimed shift %s", c.PersonID, c.ShiftID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateClaim(ctx context.Context, c model.Claim) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE claims SET status = $2, approver_id = $3, denial_reason = $4 WHERE id = $1
	`, c.ID, string(c.Status), c.ApproverID, c.DenialReason)
	if isUniqueViolation(err) {
		return model.Wrap(model.KindStaleState, err, "shift %s already has an approved claim", c.ShiftID)
	}
	if err != nil {
		return fmt.Errorf("failed to update claim %s: %w", c.ID, err)
	}
	return expectOneRow(res, "claim", c.ID)
}

func (t *pgTx) ListCommitments(ctx context.Context, personID string, dates []string, statuses []model.ClaimStatus) ([]conflicts.Commitment, error) {
	if len(dates) == 0 || len(statuses) == 0 {
		return []conflicts.Commitment{}, nil
	}

	args := []any{personID}
	for _, s := range statuses {
		args = append(args, string(s))
	}
	for _, d := range dates {
		args = append(args, d)
	}

	query := fmt.Sprintf(`
		SELECT c.id, s.id, s.facility_id, s.date, s.start_minute, s.end_minute
		FROM claims c
		JOIN shifts s ON s.id = c.shift_id
		WHERE c.person_id = $1
			AND c.status IN (%s)
			AND s.date IN (%s)
			AND s.status <> 'cancelled'
		ORDER BY s.date, s.start_minute
	`, placeholders(2, len(statuses)), placeholders(2+len(statuses), len(dates)))

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commitments: %w", err)
	}
	defer rows.Close()

	commitments := []conflicts.Commitment{}
	for rows.Next() {
		var cm conflicts.Commitment
		var date time.Time
		var start, end int
		if err := rows.Scan(&cm.ClaimID, &cm.ShiftID, &cm.FacilityID, &date, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan commitment: %w", err)
		}
		cm.Date = date.Format(model.DateLayout)
		cm.Start = model.TimeOfDay(start)
		cm.End = model.TimeOfDay(end)
		commitments = append(commitments, cm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commitments: %w", err)
	}

	return commitments, nil
}
