package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"backend-journitag/internal/access"
	"backend-journitag/internal/apperr"
	"backend-journitag/internal/db"
	"backend-journitag/internal/logger"
	"backend-journitag/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".heic": true, ".heif": true, ".gif": true,
}

// AllowedFile reports whether name has an accepted image extension.
func AllowedFile(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// FileStore persists photo bytes and hands back a public URL.
type FileStore interface {
	Save(originalName string, data []byte) (string, error)
	Remove(url string) error
}

type Deps struct {
	Access    *access.Evaluator
	Files     FileStore
	Extractor Extractor
	Events    stream.Publisher
	Logger    *slog.Logger
}

type Service struct {
	db     db.Querier
	access *access.Evaluator
	files  FileStore
	exif   Extractor
	events stream.Publisher
	log    *slog.Logger
	now    func() time.Time
}

func NewService(q db.Querier, deps Deps) *Service {
	s := &Service{
		db:     q,
		access: deps.Access,
		files:  deps.Files,
		exif:   deps.Extractor,
		events: deps.Events,
		log:    logger.OrDefault(deps.Logger),
		now:    time.Now,
	}
	if s.exif == nil {
		s.exif = ExifExtractor{}
	}
	if s.events == nil {
		s.events = stream.Nop{}
	}
	return s
}

const photoColumns = `p.id, p.location_id, p.user_id, p.x, p.y, p.file_url, p.original_filename, p.taken_at, p.is_cover_photo`

type scanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row scanner, extra ...any) (Photo, error) {
	var p Photo
	dest := append([]any{&p.ID, &p.LocationID, &p.UserID, &p.X, &p.Y, &p.FileURL, &p.OriginalFilename, &p.TakenAt, &p.IsCoverPhoto}, extra...)
	err := row.Scan(dest...)
	return p, err
}

type locationRef struct {
	TripID string
	X, Y   float64
}

func (s *Service) location(ctx context.Context, locationID string) (locationRef, error) {
	var ref locationRef
	err := s.db.QueryRow(ctx, `SELECT trip_id, x, y FROM locations WHERE id=$1`, locationID).
		Scan(&ref.TripID, &ref.X, &ref.Y)
	if err != nil {
		return locationRef{}, apperr.NotFoundOr(err, "location not found")
	}
	return ref, nil
}

// Upload stores a batch of photos for a location. Files that cannot be
// processed are reported as skipped and do not fail the batch. When the
// location has no cover afterwards, the first new photo becomes the cover.
func (s *Service) Upload(ctx context.Context, locationID, userID string, files []File) (UploadResult, error) {
	if locationID == "" {
		return UploadResult{}, apperr.Validation("location_id is required")
	}
	if len(files) == 0 {
		return UploadResult{}, apperr.Validation("no files uploaded")
	}

	loc, err := s.location(ctx, locationID)
	if err != nil {
		return UploadResult{}, err
	}
	if _, err := s.access.Require(ctx, loc.TripID, userID, true); err != nil {
		return UploadResult{}, err
	}

	result := UploadResult{FilesSubmitted: len(files), Photos: []Photo{}, Skipped: []SkippedFile{}}
	for _, f := range files {
		p, err := s.uploadOne(ctx, locationID, userID, loc, f)
		if err != nil {
			s.log.Warn("photo skipped", "location_id", locationID, "file", f.Name, "error", err)
			result.Skipped = append(result.Skipped, SkippedFile{Filename: f.Name, Reason: err.Error()})
			continue
		}
		result.Photos = append(result.Photos, p)
	}
	result.PhotosUploaded = len(result.Photos)

	if len(result.Photos) > 0 {
		tag, err := s.db.Exec(ctx, `
			UPDATE photos SET is_cover_photo=TRUE
			WHERE id=$1
			  AND NOT EXISTS (SELECT 1 FROM photos WHERE location_id=$2 AND is_cover_photo)
		`, result.Photos[0].ID, locationID)
		if err != nil {
			return UploadResult{}, err
		}
		if tag.RowsAffected() == 1 {
			result.Photos[0].IsCoverPhoto = true
		}

		s.events.Publish(ctx, loc.TripID, stream.Event{
			Type: "photo.uploaded",
			Data: map[string]any{"location_id": locationID, "count": result.PhotosUploaded},
		})
	}

	s.log.Info("photos uploaded", "location_id", locationID, "uploaded", result.PhotosUploaded, "submitted", result.FilesSubmitted)
	return result, nil
}

func (s *Service) uploadOne(ctx context.Context, locationID, userID string, loc locationRef, f File) (Photo, error) {
	if !AllowedFile(f.Name) {
		return Photo{}, errors.New("unsupported file type")
	}
	data, err := readFile(f)
	if err != nil {
		return Photo{}, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return Photo{}, errors.New("empty file")
	}

	p := Photo{
		ID:               uuid.NewString(),
		LocationID:       locationID,
		UserID:           userID,
		X:                loc.X,
		Y:                loc.Y,
		OriginalFilename: f.Name,
		TakenAt:          s.now().UTC(),
	}
	if md, err := s.exif.Extract(data); err == nil {
		if md.Coordinates != nil {
			p.X, p.Y = md.Coordinates.Longitude, md.Coordinates.Latitude
		}
		if md.TakenAt != nil {
			p.TakenAt = *md.TakenAt
		}
	}

	url, err := s.files.Save(f.Name, data)
	if err != nil {
		return Photo{}, fmt.Errorf("save file: %w", err)
	}
	p.FileURL = url

	_, err = s.db.Exec(ctx, `
		INSERT INTO photos (id, location_id, user_id, x, y, file_url, original_filename, taken_at, is_cover_photo)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,FALSE)
	`, p.ID, p.LocationID, p.UserID, p.X, p.Y, p.FileURL, p.OriginalFilename, p.TakenAt)
	if err != nil {
		s.removeFile(url)
		return Photo{}, fmt.Errorf("insert photo: %w", err)
	}
	return p, nil
}

func readFile(f File) ([]byte, error) {
	if f.Open == nil {
		return nil, errors.New("no content")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// removeFile deletes a stored file, logging instead of failing.
func (s *Service) removeFile(url string) {
	if s.files == nil || url == "" {
		return
	}
	if err := s.files.Remove(url); err != nil {
		s.log.Warn("photo file cleanup failed", "file_url", url, "error", err)
	}
}

// RemoveFiles deletes stored files for rows that are already gone.
func (s *Service) RemoveFiles(urls []string) {
	for _, u := range urls {
		s.removeFile(u)
	}
}

type photoRef struct {
	Photo
	TripID string
}

func (s *Service) get(ctx context.Context, photoID string) (photoRef, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+photoColumns+`, l.trip_id
		FROM photos p JOIN locations l ON l.id = p.location_id
		WHERE p.id=$1
	`, photoID)
	var ref photoRef
	p, err := scanPhoto(row, &ref.TripID)
	if err != nil {
		return photoRef{}, apperr.NotFoundOr(err, "photo not found")
	}
	ref.Photo = p
	return ref, nil
}

// SetCover makes photoID the only cover of its location.
func (s *Service) SetCover(ctx context.Context, photoID, userID string) error {
	ref, err := s.get(ctx, photoID)
	if err != nil {
		return err
	}
	if _, err := s.access.Require(ctx, ref.TripID, userID, true); err != nil {
		return err
	}

	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE photos SET is_cover_photo=FALSE WHERE location_id=$1`, ref.LocationID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE photos SET is_cover_photo=TRUE WHERE id=$1`, photoID)
		return err
	})
	if err != nil {
		return err
	}

	s.events.Publish(ctx, ref.TripID, stream.Event{
		Type: "photo.cover_changed",
		Data: map[string]string{"location_id": ref.LocationID, "photo_id": photoID},
	})
	return nil
}

// Delete removes a photo uploaded by userID. If it was the cover, the most
// recent remaining photo of the location takes over.
func (s *Service) Delete(ctx context.Context, photoID, userID string) error {
	ref, err := s.get(ctx, photoID)
	if err != nil {
		return err
	}
	if ref.UserID != userID {
		return apperr.Forbidden("only the uploader can delete this photo")
	}

	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM photos WHERE id=$1`, photoID); err != nil {
			return err
		}
		if !ref.IsCoverPhoto {
			return nil
		}
		_, err := tx.Exec(ctx, `
			UPDATE photos SET is_cover_photo=TRUE
			WHERE id = (
				SELECT id FROM photos WHERE location_id=$1
				ORDER BY taken_at DESC, id DESC
				LIMIT 1
			)
		`, ref.LocationID)
		return err
	})
	if err != nil {
		return err
	}

	s.removeFile(ref.FileURL)
	s.events.Publish(ctx, ref.TripID, stream.Event{
		Type: "photo.deleted",
		Data: map[string]string{"location_id": ref.LocationID, "photo_id": photoID},
	})
	return nil
}

func (s *Service) ListByLocation(ctx context.Context, locationID string) ([]Photo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+photoColumns+`
		FROM photos p WHERE p.location_id=$1
		ORDER BY p.taken_at, p.id
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []Photo{}
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// ListByTrip returns every photo of every location of a trip.
func (s *Service) ListByTrip(ctx context.Context, tripID string) ([]Photo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+photoColumns+`, l.name, l.trip_id
		FROM photos p JOIN locations l ON l.id = p.location_id
		WHERE l.trip_id=$1
		ORDER BY p.taken_at, p.id
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWithLocation(rows)
}

// TripCover picks the photo that represents a trip: a location cover when
// one exists, otherwise the most recently taken photo. Nil when the trip
// has no photos.
func (s *Service) TripCover(ctx context.Context, tripID string) (*Photo, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+photoColumns+`
		FROM photos p JOIN locations l ON l.id = p.location_id
		WHERE l.trip_id=$1
		ORDER BY p.is_cover_photo DESC, p.taken_at DESC, p.id
		LIMIT 1
	`, tripID)
	p, err := scanPhoto(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByUser returns the user's uploads, newest taken first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Photo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+photoColumns+`, COALESCE(l.name, ''), COALESCE(l.trip_id, '')
		FROM photos p LEFT JOIN locations l ON l.id = p.location_id
		WHERE p.user_id=$1
		ORDER BY p.taken_at DESC, p.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWithLocation(rows)
}

func collectWithLocation(rows pgx.Rows) ([]Photo, error) {
	photos := []Photo{}
	for rows.Next() {
		var name, tripID string
		p, err := scanPhoto(rows, &name, &tripID)
		if err != nil {
			return nil, err
		}
		p.LocationName, p.TripID = name, tripID
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// FileURLsByLocation lists stored files of a location, for cleanup after
// the location is deleted.
func (s *Service) FileURLsByLocation(ctx context.Context, locationID string) ([]string, error) {
	return s.fileURLs(ctx, `SELECT file_url FROM photos WHERE location_id=$1`, locationID)
}

// FileURLsByTrip lists stored files of a trip, for cleanup after the trip is
// deleted.
func (s *Service) FileURLsByTrip(ctx context.Context, tripID string) ([]string, error) {
	return s.fileURLs(ctx, `
		SELECT p.file_url FROM photos p JOIN locations l ON l.id = p.location_id
		WHERE l.trip_id=$1
	`, tripID)
}

func (s *Service) fileURLs(ctx context.Context, query, id string) ([]string, error) {
	rows, err := s.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// ExtractMetadata inspects files without storing anything.
func (s *Service) ExtractMetadata(files []File) []Preview {
	previews := make([]Preview, 0, len(files))
	for _, f := range files {
		pv := Preview{Filename: f.Name}
		data, err := readFile(f)
		if err != nil {
			pv.Error = err.Error()
			previews = append(previews, pv)
			continue
		}
		md, err := s.exif.Extract(data)
		if err != nil {
			pv.Error = err.Error()
			previews = append(previews, pv)
			continue
		}
		pv.Coordinates = md.Coordinates
		pv.HasGPS = md.Coordinates != nil
		pv.TakenAt = md.TakenAt
		previews = append(previews, pv)
	}
	return previews
}
