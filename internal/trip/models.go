package trip

import (
	"strings"
	"time"

	"backend-journitag/internal/access"
	"backend-journitag/internal/apperr"
	"backend-journitag/internal/location"
	"backend-journitag/internal/photo"
)

type Trip struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	City      string     `json:"city"`
	Country   string     `json:"country"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	CreatedAt time.Time  `json:"created_at"`
}

// Summary is a trip as shown in the owner's list.
type Summary struct {
	Trip
	CoverPhoto *photo.Photo `json:"cover_photo"`
	Rating     *float64     `json:"rating"`
	PhotoCount int          `json:"photo_count"`
}

type Detail struct {
	Trip       Trip                `json:"trip"`
	CoverPhoto *photo.Photo        `json:"cover_photo"`
	Locations  []location.Location `json:"locations"`
	Photos     []photo.Photo       `json:"photos"`
}

type Person struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// SharedTrip is a trip someone else shared with the caller.
type SharedTrip struct {
	Trip
	AccessLevel access.Level `json:"access_level"`
	SharedBy    Person       `json:"shared_by"`
	SharedAt    time.Time    `json:"shared_at"`
	ExpiresAt   *time.Time   `json:"expires_at"`
}

type Share struct {
	ID               string       `json:"id"`
	TripID           string       `json:"trip_id"`
	SharedByUserID   string       `json:"shared_by_user_id"`
	SharedWithUserID string       `json:"shared_with_user_id"`
	SharedWithEmail  string       `json:"shared_with_email"`
	ShareToken       string       `json:"-"`
	AccessLevel      access.Level `json:"access_level"`
	CreatedAt        time.Time    `json:"created_at"`
	ExpiresAt        *time.Time   `json:"expires_at"`
}

// Recipient is one user a trip is shared with.
type Recipient struct {
	Person
	Email       string       `json:"email"`
	AccessLevel access.Level `json:"access_level"`
	SharedAt    time.Time    `json:"shared_at"`
	ExpiresAt   *time.Time   `json:"expires_at"`
}

// Input is a new trip.
type Input struct {
	Title     string
	City      string
	Country   string
	StartDate *time.Time
	EndDate   *time.Time
}

// Changes holds the fields of a trip update. Nil fields keep their value.
type Changes struct {
	Title     *string
	City      *string
	Country   *string
	StartDate *time.Time
	EndDate   *time.Time
}

// ShareInput names the recipient by user id or, failing that, by email.
type ShareInput struct {
	FriendID  string
	Email     string
	Level     string
	ExpiresAt *time.Time
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates. An
// empty string is no date.
func ParseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validation(field + " must be a date (YYYY-MM-DD)")
}
