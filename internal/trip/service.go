package trip

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"backend-journitag/internal/access"
	"backend-journitag/internal/apperr"
	"backend-journitag/internal/db"
	"backend-journitag/internal/location"
	"backend-journitag/internal/logger"
	"backend-journitag/internal/photo"
	"backend-journitag/internal/stream"

	"github.com/google/uuid"
)

// FriendChecker reports whether two users are friends.
type FriendChecker interface {
	AreFriends(ctx context.Context, userID, otherID string) (bool, error)
}

type Deps struct {
	Access    *access.Evaluator
	Locations *location.Service
	Photos    *photo.Service
	Friends   FriendChecker
	Events    stream.Publisher
	Logger    *slog.Logger
}

type Service struct {
	db        db.Querier
	access    *access.Evaluator
	locations *location.Service
	photos    *photo.Service
	friends   FriendChecker
	events    stream.Publisher
	log       *slog.Logger
	now       func() time.Time
}

func NewService(q db.Querier, deps Deps) *Service {
	s := &Service{
		db:        q,
		access:    deps.Access,
		locations: deps.Locations,
		photos:    deps.Photos,
		friends:   deps.Friends,
		events:    deps.Events,
		log:       logger.OrDefault(deps.Logger),
		now:       time.Now,
	}
	if s.events == nil {
		s.events = stream.Nop{}
	}
	return s
}

const tripColumns = `t.id, t.user_id, t.title, t.city, t.country, t.start_date, t.end_date, t.created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrip(row scanner, extra ...any) (Trip, error) {
	var t Trip
	dest := append([]any{&t.ID, &t.UserID, &t.Title, &t.City, &t.Country, &t.StartDate, &t.EndDate, &t.CreatedAt}, extra...)
	err := row.Scan(dest...)
	return t, err
}

func checkDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return apperr.Validation("end_date must not be before start_date")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, userID string, in Input) (Trip, error) {
	t := Trip{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     strings.TrimSpace(in.Title),
		City:      strings.TrimSpace(in.City),
		Country:   strings.TrimSpace(in.Country),
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
	}
	if t.Title == "" {
		return Trip{}, apperr.Validation("title is required")
	}
	if err := checkDates(t.StartDate, t.EndDate); err != nil {
		return Trip{}, err
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO trips (id, user_id, title, city, country, start_date, end_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, t.ID, t.UserID, t.Title, t.City, t.Country, t.StartDate, t.EndDate).Scan(&t.CreatedAt)
	if err != nil {
		return Trip{}, err
	}
	s.log.Info("trip created", "trip_id", t.ID, "user_id", userID)
	return t, nil
}

func (s *Service) find(ctx context.Context, id string) (Trip, error) {
	t, err := scanTrip(s.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips t WHERE t.id=$1`, id))
	if err != nil {
		return Trip{}, apperr.NotFoundOr(err, "trip not found")
	}
	return t, nil
}

// Get returns a trip with its locations, every photo and the cover photo.
// Any caller may read a trip by id.
func (s *Service) Get(ctx context.Context, id string) (Detail, error) {
	t, err := s.find(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	locs, err := s.locations.ListByTrip(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	photos, err := s.photos.ListByTrip(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	byLocation := make(map[string][]photo.Photo, len(locs))
	var cover *photo.Photo
	for i, p := range photos {
		byLocation[p.LocationID] = append(byLocation[p.LocationID], p)
		if cover == nil && p.IsCoverPhoto {
			cover = &photos[i]
		}
	}
	for i := range locs {
		locs[i].Photos = byLocation[locs[i].ID]
		if locs[i].Photos == nil {
			locs[i].Photos = []photo.Photo{}
		}
	}
	return Detail{Trip: t, CoverPhoto: cover, Locations: locs, Photos: photos}, nil
}

// Locations lists the locations of an existing trip.
func (s *Service) Locations(ctx context.Context, id string) ([]location.Location, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	return s.locations.ListByTrip(ctx, id)
}

// List returns the user's own trips, newest first. Rating is the average of
// rated locations and stays nil when none is rated.
func (s *Service) List(ctx context.Context, userID string) ([]Summary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+tripColumns+`,
		       (SELECT AVG(l.rating)::float8 FROM locations l WHERE l.trip_id = t.id AND l.rating > 0),
		       (SELECT COUNT(*) FROM photos p JOIN locations l ON l.id = p.location_id WHERE l.trip_id = t.id)
		FROM trips t
		WHERE t.user_id=$1
		ORDER BY t.created_at DESC, t.id
	`, userID)
	if err != nil {
		return nil, err
	}

	trips := []Summary{}
	for rows.Next() {
		var sum Summary
		sum.Trip, err = scanTrip(rows, &sum.Rating, &sum.PhotoCount)
		if err != nil {
			rows.Close()
			return nil, err
		}
		trips = append(trips, sum)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range trips {
		cover, err := s.photos.TripCover(ctx, trips[i].ID)
		if err != nil {
			return nil, err
		}
		trips[i].CoverPhoto = cover
	}
	return trips, nil
}

// ListShared returns trips other users shared with userID and that have not
// expired, most recently shared first.
func (s *Service) ListShared(ctx context.Context, userID string) ([]SharedTrip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+tripColumns+`, s.access_level, s.created_at, s.expires_at, u.id, u.username, u.name
		FROM shared_trips s
		JOIN trips t ON t.id = s.trip_id
		JOIN users u ON u.id = s.shared_by_user_id
		WHERE s.shared_with_user_id=$1
		  AND (s.expires_at IS NULL OR s.expires_at > now())
		ORDER BY s.created_at DESC, t.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trips := []SharedTrip{}
	for rows.Next() {
		var st SharedTrip
		var level string
		st.Trip, err = scanTrip(rows, &level, &st.SharedAt, &st.ExpiresAt, &st.SharedBy.ID, &st.SharedBy.Username, &st.SharedBy.Name)
		if err != nil {
			return nil, err
		}
		st.AccessLevel = access.ParseLevel(level)
		trips = append(trips, st)
	}
	return trips, rows.Err()
}

func (s *Service) Update(ctx context.Context, id, userID string, ch Changes) (Trip, error) {
	if _, err := s.access.Require(ctx, id, userID, true); err != nil {
		return Trip{}, err
	}
	t, err := s.find(ctx, id)
	if err != nil {
		return Trip{}, err
	}

	if ch.Title != nil {
		title := strings.TrimSpace(*ch.Title)
		if title == "" {
			return Trip{}, apperr.Validation("title must not be empty")
		}
		t.Title = title
	}
	if ch.City != nil {
		t.City = strings.TrimSpace(*ch.City)
	}
	if ch.Country != nil {
		t.Country = strings.TrimSpace(*ch.Country)
	}
	if ch.StartDate != nil {
		t.StartDate = ch.StartDate
	}
	if ch.EndDate != nil {
		t.EndDate = ch.EndDate
	}
	if err := checkDates(t.StartDate, t.EndDate); err != nil {
		return Trip{}, err
	}

	_, err = s.db.Exec(ctx, `
		UPDATE trips
		SET title=$2, city=$3, country=$4, start_date=$5, end_date=$6
		WHERE id=$1
	`, t.ID, t.Title, t.City, t.Country, t.StartDate, t.EndDate)
	if err != nil {
		return Trip{}, err
	}
	s.events.Publish(ctx, t.ID, stream.Event{Type: "trip.updated", Data: t})
	return t, nil
}

// Delete removes an owned trip. Locations, photos and shares go with it in
// the store; photo files are removed afterwards on a best-effort basis.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if err := s.access.RequireOwner(ctx, id, userID); err != nil {
		return err
	}
	urls, err := s.photos.FileURLsByTrip(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM trips WHERE id=$1`, id); err != nil {
		return err
	}
	s.photos.RemoveFiles(urls)
	s.events.Publish(ctx, id, stream.Event{Type: "trip.deleted"})
	return nil
}

type recipient struct {
	ID, Username, Email, Name string
}

func (s *Service) recipient(ctx context.Context, in ShareInput) (recipient, error) {
	const q = `SELECT id, username, email, name FROM users WHERE `
	var r recipient
	var err error
	switch {
	case in.FriendID != "":
		err = s.db.QueryRow(ctx, q+`id=$1`, in.FriendID).Scan(&r.ID, &r.Username, &r.Email, &r.Name)
	case strings.TrimSpace(in.Email) != "":
		err = s.db.QueryRow(ctx, q+`email=lower($1)`, strings.TrimSpace(in.Email)).Scan(&r.ID, &r.Username, &r.Email, &r.Name)
	default:
		return recipient{}, apperr.Validation("friend_id or email is required")
	}
	if err != nil {
		return recipient{}, apperr.NotFoundOr(err, "user not found")
	}
	return r, nil
}

// Share grants a friend read or edit access to an owned trip. A trip is
// shared at most once with the same user while the share is live.
func (s *Service) Share(ctx context.Context, tripID, ownerID string, in ShareInput) (Share, error) {
	if err := s.access.RequireOwner(ctx, tripID, ownerID); err != nil {
		return Share{}, err
	}

	level := in.Level
	if level == "" {
		level = string(access.LevelRead)
	}
	if !access.ValidShareLevel(level) {
		return Share{}, apperr.Validation("access_level must be read or edit")
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return Share{}, apperr.Validation("expires_at must be in the future")
	}

	r, err := s.recipient(ctx, in)
	if err != nil {
		return Share{}, err
	}
	if r.ID == ownerID {
		return Share{}, apperr.Validation("cannot share a trip with yourself")
	}
	friends, err := s.friends.AreFriends(ctx, ownerID, r.ID)
	if err != nil {
		return Share{}, err
	}
	if !friends {
		return Share{}, apperr.Forbidden("trips can only be shared with friends")
	}

	var exists bool
	err = s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM shared_trips
			WHERE trip_id=$1 AND shared_with_user_id=$2
			  AND (expires_at IS NULL OR expires_at > now())
		)
	`, tripID, r.ID).Scan(&exists)
	if err != nil {
		return Share{}, err
	}
	if exists {
		return Share{}, apperr.Conflict("trip already shared with this user")
	}

	sh := Share{
		ID:               uuid.NewString(),
		TripID:           tripID,
		SharedByUserID:   ownerID,
		SharedWithUserID: r.ID,
		SharedWithEmail:  r.Email,
		ShareToken:       uuid.NewString(),
		AccessLevel:      access.Level(level),
		ExpiresAt:        in.ExpiresAt,
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO shared_trips (id, trip_id, shared_by_user_id, shared_with_user_id, shared_with_email, share_token, access_level, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, sh.ID, sh.TripID, sh.SharedByUserID, sh.SharedWithUserID, sh.SharedWithEmail, sh.ShareToken, level, sh.ExpiresAt).Scan(&sh.CreatedAt)
	if err != nil {
		return Share{}, err
	}
	s.log.Info("trip shared", "trip_id", tripID, "with", r.ID, "level", level)
	// Stream subscribers are anonymous; keep the recipient's email and the
	// token off the wire.
	s.events.Publish(ctx, tripID, stream.Event{Type: "trip.shared", Data: map[string]string{
		"user_id":      r.ID,
		"access_level": level,
	}})
	return sh, nil
}

// Unshare revokes every share of the trip with friendID. Revoking a share
// that does not exist succeeds.
func (s *Service) Unshare(ctx context.Context, tripID, ownerID, friendID string) error {
	if friendID == "" {
		return apperr.Validation("friend_id is required")
	}
	if err := s.access.RequireOwner(ctx, tripID, ownerID); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `DELETE FROM shared_trips WHERE trip_id=$1 AND shared_with_user_id=$2`, tripID, friendID)
	if err != nil {
		return err
	}
	s.events.Publish(ctx, tripID, stream.Event{Type: "trip.unshared", Data: map[string]string{"user_id": friendID}})
	return nil
}

// SharedWith lists who a trip is shared with. The caller needs read access.
func (s *Service) SharedWith(ctx context.Context, tripID, userID string) ([]Recipient, error) {
	if _, err := s.access.Require(ctx, tripID, userID, false); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.username, u.name, s.shared_with_email, s.access_level, s.created_at, s.expires_at
		FROM shared_trips s
		JOIN users u ON u.id = s.shared_with_user_id
		WHERE s.trip_id=$1
		ORDER BY s.created_at, u.id
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Recipient{}
	for rows.Next() {
		var r Recipient
		var level string
		if err := rows.Scan(&r.ID, &r.Username, &r.Name, &r.Email, &level, &r.SharedAt, &r.ExpiresAt); err != nil {
			return nil, err
		}
		r.AccessLevel = access.ParseLevel(level)
		out = append(out, r)
	}
	return out, rows.Err()
}
