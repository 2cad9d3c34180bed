package photo

import (
	"bytes"
	"errors"
	"time"

	"backend-journitag/internal/shared/geo"

	"github.com/rwcarlsen/goexif/exif"
)

// Metadata is what an image file says about itself. Nil fields are absent.
type Metadata struct {
	Coordinates *geo.Coordinates
	TakenAt     *time.Time
}

var ErrNoMetadata = errors.New("photo: no exif metadata")

// Extractor reads GPS position and capture time from image bytes.
type Extractor interface {
	Extract(data []byte) (Metadata, error)
}

// ExifExtractor reads EXIF blocks from JPEG and TIFF based files.
type ExifExtractor struct{}

func (ExifExtractor) Extract(data []byte) (Metadata, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, ErrNoMetadata
	}

	var md Metadata
	if lat, lon, err := x.LatLong(); err == nil {
		c := geo.Coordinates{Latitude: lat, Longitude: lon}
		// A 0,0 fix is what cameras write when they have no position.
		if !c.IsZero() && c.Valid() {
			md.Coordinates = &c
		}
	}
	if t, err := x.DateTime(); err == nil {
		md.TakenAt = &t
	}
	return md, nil
}
