package location

import (
	"context"
	"log/slog"
	"sort"

	"backend-journitag/internal/access"
	"backend-journitag/internal/apperr"
	"backend-journitag/internal/db"
	"backend-journitag/internal/geocode"
	"backend-journitag/internal/logger"
	"backend-journitag/internal/photo"
	"backend-journitag/internal/shared/geo"
	"backend-journitag/internal/stream"

	"github.com/jackc/pgx/v5"
)

type Deps struct {
	Access   *access.Evaluator
	Geocoder geocode.ReverseGeocoder
	Photos   *photo.Service
	Events   stream.Publisher
	Logger   *slog.Logger
}

type Service struct {
	db       db.Querier
	access   *access.Evaluator
	resolver *Resolver
	photos   *photo.Service
	events   stream.Publisher
	log      *slog.Logger
}

func NewService(q db.Querier, deps Deps) *Service {
	log := logger.OrDefault(deps.Logger)
	s := &Service{
		db:       q,
		access:   deps.Access,
		resolver: NewResolver(q, deps.Geocoder, log),
		photos:   deps.Photos,
		events:   deps.Events,
		log:      log,
	}
	if s.events == nil {
		s.events = stream.Nop{}
	}
	return s
}

// Create resolves a location for a trip the user may edit.
func (s *Service) Create(ctx context.Context, userID string, in ResolveInput) (Location, bool, error) {
	if in.TripID == "" {
		return Location{}, false, apperr.Validation("trip_id is required")
	}
	if _, err := s.access.Require(ctx, in.TripID, userID, true); err != nil {
		return Location{}, false, err
	}

	loc, reused, err := s.resolver.Resolve(ctx, in)
	if err != nil {
		return Location{}, false, err
	}
	if !reused {
		s.events.Publish(ctx, loc.TripID, stream.Event{Type: "location.created", Data: loc})
	}
	return loc, reused, nil
}

// Get returns a location with its tags and photos.
func (s *Service) Get(ctx context.Context, id string) (Location, error) {
	loc, err := s.find(ctx, id)
	if err != nil {
		return Location{}, err
	}
	if s.photos != nil {
		photos, err := s.photos.ListByLocation(ctx, id)
		if err != nil {
			return Location{}, err
		}
		loc.Photos = photos
	}
	return loc, nil
}

func (s *Service) find(ctx context.Context, id string) (Location, error) {
	row := s.db.QueryRow(ctx, selectLocations+`
		WHERE l.id=$1
		GROUP BY l.id
	`, id)
	loc, err := scanLocation(row)
	if err != nil {
		return Location{}, apperr.NotFoundOr(err, "location not found")
	}
	return loc, nil
}

// ListByTrip returns the trip's locations in creation order, with tags.
func (s *Service) ListByTrip(ctx context.Context, tripID string) ([]Location, error) {
	rows, err := s.db.Query(ctx, selectLocations+`
		WHERE l.trip_id=$1
		GROUP BY l.id
		ORDER BY l.created_at, l.id
	`, tripID)
	if err != nil {
		return nil, err
	}
	return collectLocations(rows)
}

func (s *Service) Update(ctx context.Context, id, userID string, patch Patch) (Location, error) {
	loc, err := s.find(ctx, id)
	if err != nil {
		return Location{}, err
	}
	if _, err := s.access.Require(ctx, loc.TripID, userID, true); err != nil {
		return Location{}, err
	}

	apply(&loc, patch)
	if !loc.Coordinates().IsZero() && !loc.Coordinates().Valid() {
		return Location{}, apperr.Validation("coordinates out of range")
	}

	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE locations
			SET name=$2, address=$3, x=$4, y=$5, rating=$6, cost_level=$7, notes=$8,
			    time_needed=$9, best_time_to_visit=$10
			WHERE id=$1
		`, loc.ID, loc.Name, loc.Address, loc.X, loc.Y, loc.Rating, loc.CostLevel, loc.Notes, loc.TimeNeeded, loc.BestTimeToVisit)
		if err != nil {
			return err
		}
		if patch.Tags == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM location_tags WHERE location_id=$1`, loc.ID); err != nil {
			return err
		}
		return linkTags(ctx, tx, loc.ID, loc.Tags)
	})
	if err != nil {
		return Location{}, err
	}

	s.events.Publish(ctx, loc.TripID, stream.Event{Type: "location.updated", Data: loc})
	return loc, nil
}

func apply(loc *Location, p Patch) {
	if p.Name != nil {
		loc.Name = *p.Name
	}
	if p.Address != nil {
		loc.Address = *p.Address
	}
	if p.X != nil {
		loc.X = *p.X
	}
	if p.Y != nil {
		loc.Y = *p.Y
	}
	if p.Rating != nil {
		loc.Rating = *p.Rating
	}
	if p.CostLevel != nil {
		loc.CostLevel = *p.CostLevel
	}
	if p.Notes != nil {
		loc.Notes = *p.Notes
	}
	if p.TimeNeeded != nil {
		loc.TimeNeeded = *p.TimeNeeded
	}
	if p.BestTimeToVisit != nil {
		loc.BestTimeToVisit = *p.BestTimeToVisit
	}
	if p.Tags != nil {
		loc.Tags = NormalizeTags(*p.Tags)
	}
}

// Delete removes a location and its photos. Stored files are removed after
// the rows are gone; failures there are only logged.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	loc, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.access.Require(ctx, loc.TripID, userID, true); err != nil {
		return err
	}

	var urls []string
	if s.photos != nil {
		if urls, err = s.photos.FileURLsByLocation(ctx, id); err != nil {
			return err
		}
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM locations WHERE id=$1`, id); err != nil {
		return err
	}
	if s.photos != nil {
		s.photos.RemoveFiles(urls)
	}

	s.events.Publish(ctx, loc.TripID, stream.Event{Type: "location.deleted", Data: map[string]string{"id": id}})
	return nil
}

// Nearby lists the trip's locations within radiusKm of a point, nearest
// first. Locations without coordinates are left out.
func (s *Service) Nearby(ctx context.Context, tripID string, c geo.Coordinates, radiusKm float64) ([]Nearby, error) {
	if radiusKm <= 0 {
		return nil, apperr.Validation("radius_km must be positive")
	}
	locations, err := s.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	out := []Nearby{}
	for _, l := range locations {
		if l.Coordinates().IsZero() {
			continue
		}
		d := geo.DistanceKm(c, l.Coordinates())
		if d <= radiusKm {
			out = append(out, Nearby{Location: l, DistanceKm: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}
