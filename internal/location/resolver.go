package location

import (
	"context"
	"fmt"
	"log/slog"

	"backend-journitag/internal/apperr"
	"backend-journitag/internal/db"
	"backend-journitag/internal/geocode"
	"backend-journitag/internal/logger"
	"backend-journitag/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const addressUnavailable = "Address not available"

// Resolver finds the location a point belongs to within a trip, or creates
// one named by the geocoder.
//
// The search and the insert are separate statements, so two concurrent
// resolves of the same new point can both create a row.
type Resolver struct {
	db       db.Querier
	geocoder geocode.ReverseGeocoder
	log      *slog.Logger
}

func NewResolver(q db.Querier, g geocode.ReverseGeocoder, log *slog.Logger) *Resolver {
	return &Resolver{db: q, geocoder: g, log: logger.OrDefault(log)}
}

// Resolve returns the existing location within geo.DedupTolerance of the
// input point, with reused set, or inserts a new one.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (Location, bool, error) {
	if in.TripID == "" {
		return Location{}, false, apperr.Validation("trip_id is required")
	}

	hasGPS := in.Coordinates != nil && !in.Coordinates.IsZero()
	if hasGPS && !in.Coordinates.Valid() {
		return Location{}, false, apperr.Validation("coordinates out of range")
	}

	if hasGPS {
		c := *in.Coordinates
		existing, ok, err := r.findNearby(ctx, in.TripID, c)
		if err != nil {
			return Location{}, false, err
		}
		if ok {
			r.log.Info("reusing nearby location", "trip_id", in.TripID, "location_id", existing.ID, "lat", c.Latitude, "lon", c.Longitude)
			return existing, true, nil
		}
		in = r.describe(ctx, in, c)
	}

	if in.Name == "" {
		return Location{}, false, apperr.Validation("name or coordinates required")
	}

	loc, err := r.insert(ctx, in)
	if err != nil {
		return Location{}, false, err
	}
	r.log.Info("location created", "trip_id", loc.TripID, "location_id", loc.ID, "name", loc.Name)
	return loc, false, nil
}

func (r *Resolver) findNearby(ctx context.Context, tripID string, c geo.Coordinates) (Location, bool, error) {
	minLat, maxLat, minLon, maxLon := geo.Box(c, geo.DedupTolerance)
	rows, err := r.db.Query(ctx, selectLocations+`
		WHERE l.trip_id=$1 AND l.y BETWEEN $2 AND $3 AND l.x BETWEEN $4 AND $5
		  AND NOT (l.x=0 AND l.y=0)
		GROUP BY l.id
		ORDER BY l.created_at, l.id
	`, tripID, minLat, maxLat, minLon, maxLon)
	if err != nil {
		return Location{}, false, err
	}
	candidates, err := collectLocations(rows)
	if err != nil {
		return Location{}, false, err
	}
	for _, cand := range candidates {
		// Rows without GPS sit at (0,0) and are never dedup targets.
		if cand.Coordinates().IsZero() {
			continue
		}
		if geo.WithinBox(c, cand.Coordinates(), geo.DedupTolerance) {
			return cand, true, nil
		}
	}
	return Location{}, false, nil
}

// describe fills name and address for a new point. A geocoder answer
// replaces whatever the caller sent.
func (r *Resolver) describe(ctx context.Context, in ResolveInput, c geo.Coordinates) ResolveInput {
	if r.geocoder != nil {
		place, err := r.geocoder.Reverse(ctx, c.Latitude, c.Longitude)
		if err == nil {
			in.Name = place.Name
			in.Address = place.Address
			return in
		}
		r.log.Warn("reverse geocode failed, using fallback", "lat", c.Latitude, "lon", c.Longitude, "error", err)
	}
	if in.Name == "" {
		in.Name = fmt.Sprintf("Location at (%.4f, %.4f)", c.Latitude, c.Longitude)
	}
	if in.Address == "" {
		in.Address = addressUnavailable
	}
	return in
}

func (r *Resolver) insert(ctx context.Context, in ResolveInput) (Location, error) {
	loc := Location{
		ID:              uuid.NewString(),
		TripID:          in.TripID,
		Name:            in.Name,
		Address:         in.Address,
		Rating:          in.Rating,
		CostLevel:       in.CostLevel,
		Notes:           in.Notes,
		TimeNeeded:      in.TimeNeeded,
		BestTimeToVisit: in.BestTimeToVisit,
		Tags:            NormalizeTags(in.Tags),
	}
	if in.Coordinates != nil {
		loc.X, loc.Y = in.Coordinates.Longitude, in.Coordinates.Latitude
	}
	if loc.CostLevel == "" {
		loc.CostLevel = defaultCostLevel
	}

	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO locations (id, trip_id, x, y, name, address, rating, cost_level, notes, time_needed, best_time_to_visit)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			RETURNING created_at
		`, loc.ID, loc.TripID, loc.X, loc.Y, loc.Name, loc.Address, loc.Rating, loc.CostLevel, loc.Notes, loc.TimeNeeded, loc.BestTimeToVisit).
			Scan(&loc.CreatedAt)
		if err != nil {
			return err
		}
		return linkTags(ctx, tx, loc.ID, loc.Tags)
	})
	if err != nil {
		return Location{}, err
	}
	return loc, nil
}

// linkTags gets or creates each tag by name and links it to the location.
func linkTags(ctx context.Context, q db.Querier, locationID string, tags []string) error {
	for _, name := range tags {
		var tagID string
		err := q.QueryRow(ctx, `
			INSERT INTO tags (id, name) VALUES ($1,$2)
			ON CONFLICT (name) DO UPDATE SET name=EXCLUDED.name
			RETURNING id
		`, uuid.NewString(), name).Scan(&tagID)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx, `
			INSERT INTO location_tags (location_id, tag_id) VALUES ($1,$2)
			ON CONFLICT DO NOTHING
		`, locationID, tagID)
		if err != nil {
			return err
		}
	}
	return nil
}

const selectLocations = `
	SELECT l.id, l.trip_id, l.x, l.y, l.name, l.address, l.rating, l.cost_level, l.notes,
	       l.time_needed, l.best_time_to_visit, l.created_at,
	       COALESCE(array_agg(t.name ORDER BY t.name) FILTER (WHERE t.name IS NOT NULL), '{}')
	FROM locations l
	LEFT JOIN location_tags lt ON lt.location_id = l.id
	LEFT JOIN tags t ON t.id = lt.tag_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanLocation(row scanner) (Location, error) {
	var l Location
	err := row.Scan(&l.ID, &l.TripID, &l.X, &l.Y, &l.Name, &l.Address, &l.Rating, &l.CostLevel, &l.Notes,
		&l.TimeNeeded, &l.BestTimeToVisit, &l.CreatedAt, &l.Tags)
	if l.Tags == nil {
		l.Tags = []string{}
	}
	return l, err
}

func collectLocations(rows pgx.Rows) ([]Location, error) {
	defer rows.Close()
	locations := []Location{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}
