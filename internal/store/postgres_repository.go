package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mister-10k/laps-routes-generator/internal/geo"
	"github.com/mister-10k/laps-routes-generator/internal/quality"
	"github.com/mister-10k/laps-routes-generator/internal/route"
)

// PostgresRepository is a PostgreSQL implementation of Repository. Leg
// geometry is stored as encoded polylines to keep rows compact.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL route repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// LoadRoutes retrieves the retained route set for a city.
func (r *PostgresRepository) LoadRoutes(ctx context.Context, city string) ([]*route.Route, error) {
	query := `
		SELECT
			route_id, name,
			start_id, start_name, start_lat, start_lon, start_category, start_priority,
			turn_id, turn_name, turn_lat, turn_lon, turn_category, turn_priority,
			total_miles, distance_band, outbound_polyline, return_polyline
		FROM city_routes
		WHERE city = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, city)
	if err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}
	defer rows.Close()

	var routes []*route.Route
	for rows.Next() {
		var (
			rt              route.Route
			outbound, retrn string
		)
		err := rows.Scan(
			&rt.ID,
			&rt.Name,
			&rt.Start.ID,
			&rt.Start.Name,
			&rt.Start.Coord.Lat,
			&rt.Start.Coord.Lon,
			&rt.Start.Category,
			&rt.Start.Priority,
			&rt.Turnaround.ID,
			&rt.Turnaround.Name,
			&rt.Turnaround.Coord.Lat,
			&rt.Turnaround.Coord.Lon,
			&rt.Turnaround.Category,
			&rt.Turnaround.Priority,
			&rt.TotalMiles,
			&rt.DistanceBand,
			&outbound,
			&retrn,
		)
		if err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}

		rt.OutboundPath = geo.DecodePolyline(outbound)
		rt.ReturnPath = geo.DecodePolyline(retrn)
		// Session times are derived state; recompute rather than store.
		rt.RecomputeSessionTimes()
		routes = append(routes, &rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}

	return routes, nil
}

// SaveRoutes replaces the city's retained route set in one transaction.
func (r *PostgresRepository) SaveRoutes(ctx context.Context, city string, routes []*route.Route) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save routes: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM city_routes WHERE city = $1`, city); err != nil {
		return fmt.Errorf("clear routes: %w", err)
	}

	insert := `
		INSERT INTO city_routes (
			city, route_id, name,
			start_id, start_name, start_lat, start_lon, start_category, start_priority,
			turn_id, turn_name, turn_lat, turn_lon, turn_category, turn_priority,
			total_miles, distance_band, outbound_polyline, return_polyline, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, now())
	`

	for _, rt := range routes {
		_, err := tx.Exec(ctx, insert,
			city,
			rt.ID,
			rt.Name,
			rt.Start.ID,
			rt.Start.Name,
			rt.Start.Coord.Lat,
			rt.Start.Coord.Lon,
			rt.Start.Category,
			rt.Start.Priority,
			rt.Turnaround.ID,
			rt.Turnaround.Name,
			rt.Turnaround.Coord.Lat,
			rt.Turnaround.Coord.Lon,
			rt.Turnaround.Category,
			rt.Turnaround.Priority,
			rt.TotalMiles,
			rt.DistanceBand,
			geo.EncodePolyline(rt.OutboundPath),
			geo.EncodePolyline(rt.ReturnPath),
		)
		if err != nil {
			return fmt.Errorf("insert route %s: %w", rt.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// ClearRoutes drops the city's retained route set.
func (r *PostgresRepository) ClearRoutes(ctx context.Context, city string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM city_routes WHERE city = $1`, city)
	return err
}

// ManualBlacklist returns the user-maintained exclusions for a city.
func (r *PostgresRepository) ManualBlacklist(ctx context.Context, city string) ([]string, error) {
	return r.queryNames(ctx, `SELECT poi_name FROM manual_blacklist WHERE city = $1`, city)
}

// AddManualBlacklist records a permanent POI name exclusion.
func (r *PostgresRepository) AddManualBlacklist(ctx context.Context, city, name string) error {
	query := `
		INSERT INTO manual_blacklist (city, poi_name)
		VALUES ($1, $2)
		ON CONFLICT (city, poi_name) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, city, name)
	return err
}

// RemoveManualBlacklist clears a manual exclusion.
func (r *PostgresRepository) RemoveManualBlacklist(ctx context.Context, city, name string) error {
	query := `DELETE FROM manual_blacklist WHERE city = $1 AND poi_name = $2`
	_, err := r.pool.Exec(ctx, query, city, name)
	return err
}

// ThresholdBlacklist returns names proven unusable for one threshold.
func (r *PostgresRepository) ThresholdBlacklist(ctx context.Context, city string, threshold route.TimeThreshold) ([]string, error) {
	query := `SELECT poi_name FROM threshold_blacklist WHERE city = $1 AND threshold_minutes = $2`

	rows, err := r.pool.Query(ctx, query, city, threshold.Minutes())
	if err != nil {
		return nil, fmt.Errorf("threshold blacklist: %w", err)
	}
	defer rows.Close()

	return scanNames(rows)
}

// AddThresholdBlacklist records a name as unusable for one threshold.
func (r *PostgresRepository) AddThresholdBlacklist(ctx context.Context, city string, threshold route.TimeThreshold, name string) error {
	query := `
		INSERT INTO threshold_blacklist (city, threshold_minutes, poi_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (city, threshold_minutes, poi_name) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, city, threshold.Minutes(), name)
	return err
}

// ForbiddenGeometry returns the city's forbidden zones and drawn paths.
func (r *PostgresRepository) ForbiddenGeometry(ctx context.Context, city string) (quality.Snapshot, error) {
	var snapshot quality.Snapshot

	zoneQuery := `
		SELECT name, min_lat, max_lat, min_lon, max_lon
		FROM forbidden_zones
		WHERE city = $1
	`
	zoneRows, err := r.pool.Query(ctx, zoneQuery, city)
	if err != nil {
		return snapshot, fmt.Errorf("forbidden zones: %w", err)
	}
	defer zoneRows.Close()

	for zoneRows.Next() {
		var z quality.ForbiddenZone
		if err := zoneRows.Scan(&z.Name, &z.MinLat, &z.MaxLat, &z.MinLon, &z.MaxLon); err != nil {
			return snapshot, fmt.Errorf("scan forbidden zone: %w", err)
		}
		snapshot.Zones = append(snapshot.Zones, z)
	}
	if err := zoneRows.Err(); err != nil {
		return snapshot, fmt.Errorf("forbidden zones: %w", err)
	}

	pathQuery := `SELECT name, polyline FROM forbidden_paths WHERE city = $1`
	pathRows, err := r.pool.Query(ctx, pathQuery, city)
	if err != nil {
		return snapshot, fmt.Errorf("forbidden paths: %w", err)
	}
	defer pathRows.Close()

	for pathRows.Next() {
		var (
			name    string
			encoded string
		)
		if err := pathRows.Scan(&name, &encoded); err != nil {
			return snapshot, fmt.Errorf("scan forbidden path: %w", err)
		}
		snapshot.Paths = append(snapshot.Paths, quality.ForbiddenPath{
			Name:   name,
			Points: geo.DecodePolyline(encoded),
		})
	}
	if err := pathRows.Err(); err != nil {
		return snapshot, fmt.Errorf("forbidden paths: %w", err)
	}

	return snapshot, nil
}

func (r *PostgresRepository) queryNames(ctx context.Context, query, city string) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, city)
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	defer rows.Close()

	return scanNames(rows)
}

func scanNames(rows pgx.Rows) ([]string, error) {
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
