package photo

import (
	"io"
	"time"

	"backend-journitag/internal/shared/geo"
)

type Photo struct {
	ID               string    `json:"id"`
	LocationID       string    `json:"location_id"`
	UserID           string    `json:"user_id"`
	X                float64   `json:"x"`
	Y                float64   `json:"y"`
	FileURL          string    `json:"file_url"`
	OriginalFilename string    `json:"original_filename"`
	TakenAt          time.Time `json:"taken_at"`
	IsCoverPhoto     bool      `json:"is_cover_photo"`

	// Set by ListByUser.
	LocationName string `json:"location_name,omitempty"`
	TripID       string `json:"trip_id,omitempty"`
}

// File is one uploaded file. Open is called once.
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

type SkippedFile struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

type UploadResult struct {
	PhotosUploaded int           `json:"photos_uploaded"`
	FilesSubmitted int           `json:"files_submitted"`
	Photos         []Photo       `json:"photos"`
	Skipped        []SkippedFile `json:"skipped"`
}

// Preview is the metadata of a file inspected without saving it.
type Preview struct {
	Filename    string           `json:"filename"`
	HasGPS      bool             `json:"has_gps"`
	Coordinates *geo.Coordinates `json:"coordinates"`
	TakenAt     *time.Time       `json:"taken_at"`
	Error       string           `json:"error,omitempty"`
}
