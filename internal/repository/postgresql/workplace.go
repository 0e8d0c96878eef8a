package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/workplace"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/database"
)

type workplaceRepository struct {
	db database.Querier
}

func NewWorkplaceRepository(db database.Querier) workplace.WorkplaceRepository {
	return &workplaceRepository{db: db}
}

// GetByID implements workplace.WorkplaceRepository.
func (w *workplaceRepository) GetByID(ctx context.Context, id string) (workplace.Workplace, error) {
	q := GetQuerier(ctx, w.db)

	query := `
		SELECT id, name, timezone, enforce_geofence, created_at, updated_at
		FROM workplaces
		WHERE id = $1
	`

	var wp workplace.Workplace
	err := q.QueryRow(ctx, query, id).Scan(
		&wp.ID, &wp.Name, &wp.Timezone, &wp.EnforceGeofence,
		&wp.CreatedAt, &wp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return workplace.Workplace{}, workplace.ErrWorkplaceNotFound
		}
		return workplace.Workplace{}, fmt.Errorf("failed to get workplace: %w", err)
	}

	return wp, nil
}

// ListActiveZones implements workplace.WorkplaceRepository.
func (w *workplaceRepository) ListActiveZones(ctx context.Context, workplaceID string) ([]workplace.GeofenceZone, error) {
	q := GetQuerier(ctx, w.db)

	query := `
		SELECT id, workplace_id, name, latitude, longitude, radius_meters, active,
		       created_at, updated_at
		FROM geofence_zones
		WHERE workplace_id = $1
		  AND active = TRUE
		ORDER BY radius_meters ASC
	`

	rows, err := q.Query(ctx, query, workplaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query geofence zones: %w", err)
	}
	defer rows.Close()

	var zones []workplace.GeofenceZone
	for rows.Next() {
		var z workplace.GeofenceZone
		err := rows.Scan(
			&z.ID, &z.WorkplaceID, &z.Name, &z.Latitude, &z.Longitude, &z.RadiusMeters,
			&z.Active, &z.CreatedAt, &z.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan geofence zone: %w", err)
		}
		zones = append(zones, z)
	}

	return zones, nil
}

// GetShift implements workplace.WorkplaceRepository.
func (w *workplaceRepository) GetShift(ctx context.Context, id string) (workplace.Shift, error) {
	q := GetQuerier(ctx, w.db)

	query := `
		SELECT id, workplace_id, name, start_time, end_time, ends_next_day,
		       grace_period_minutes, standard_minutes, created_at, updated_at
		FROM shifts
		WHERE id = $1
	`

	var sh workplace.Shift
	err := q.QueryRow(ctx, query, id).Scan(
		&sh.ID, &sh.WorkplaceID, &sh.Name, &sh.StartTime, &sh.EndTime, &sh.EndsNextDay,
		&sh.GracePeriodMinutes, &sh.StandardMinutes, &sh.CreatedAt, &sh.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return workplace.Shift{}, workplace.ErrShiftNotFound
		}
		return workplace.Shift{}, fmt.Errorf("failed to get shift: %w", err)
	}

	return sh, nil
}
