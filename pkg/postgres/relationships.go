package postgres

import (
	"context"
	"fmt"
)

// ActiveFacilities returns the facilities the agency is actively linked to
func (d *DB) ActiveFacilities(ctx context.Context, agencyID string) (map[string]bool, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT facility_id FROM agency_relationships WHERE agency_id = $1 AND active
	`, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query agency relationships: %w", err)
	}
	defer rows.Close()

	facilities := make(map[string]bool)
	for rows.Next() {
		var facilityID string
		if err := rows.Scan(&facilityID); err != nil {
			return nil, fmt.Errorf("failed to scan agency relationship: %w", err)
		}
		facilities[facilityID] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agency relationships: %w", err)
	}

	return facilities, nil
}

// SetRelationship activates or deactivates the link between an agency and a facility
func (d *DB) SetRelationship(ctx context.Context, agencyID, facilityID string, active bool) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO agency_relationships (agency_id, facility_id, active, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (agency_id, facility_id) DO UPDATE
		SET active = EXCLUDED.active, updated_at = NOW()
	`, agencyID, facilityID, active)
	if err != nil {
		return fmt.Errorf("failed to set agency relationship: %w", err)
	}
	return nil
}
