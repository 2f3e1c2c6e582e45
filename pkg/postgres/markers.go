package postgres

import (
	"context"
	"fmt"
	"time"
)

// MarkReleaseEvaluated records that the shift's tier release was handled at the given moment.
// The stored marker only ever moves forward.
func (t *pgTx) MarkReleaseEvaluated(ctx context.Context, shiftID string, at time.Time) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO tier_release_markers (shift_id, evaluated_at)
		VALUES ($1, $2)
		ON CONFLICT (shift_id) DO UPDATE
		SET evaluated_at = GREATEST(tier_release_markers.evaluated_at, EXCLUDED.evaluated_at)
	`, shiftID, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to mark release evaluated for shift %s: %w", shiftID, err)
	}
	return nil
}

func (t *pgTx) MarkReminderSent(ctx context.Context, shiftID string, at time.Time) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO reminder_markers (shift_id, sent_at)
		VALUES ($1, $2)
		ON CONFLICT (shift_id) DO NOTHING
	`, shiftID, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent for shift %s: %w", shiftID, err)
	}
	return nil
}
