// Package access decides what a user may do with a trip.
//
// Owners may do everything. Other users get the access level of their
// newest unexpired share, if any: read or edit.
package access

import (
	"context"
	"errors"

	"backend-journitag/internal/apperr"
	"backend-journitag/internal/db"

	"github.com/jackc/pgx/v5"
)

type Level string

const (
	LevelNone  Level = ""
	LevelRead  Level = "read"
	LevelEdit  Level = "edit"
	LevelOwner Level = "owner"

	// legacyView is what older share rows store for read access.
	legacyView = "view"
)

// ParseLevel normalizes a stored access level. Unknown values grant the
// weaker read level.
func ParseLevel(s string) Level {
	switch s {
	case string(LevelRead), legacyView:
		return LevelRead
	case string(LevelEdit):
		return LevelEdit
	case string(LevelOwner):
		return LevelOwner
	default:
		return LevelRead
	}
}

// ValidShareLevel reports whether s may be stored on a new share.
func ValidShareLevel(s string) bool {
	return s == string(LevelRead) || s == string(LevelEdit)
}

type Access struct {
	HasAccess bool  `json:"has_access"`
	IsOwner   bool  `json:"is_owner"`
	Level     Level `json:"access_level"`
}

type Evaluator struct {
	db db.Querier
}

func NewEvaluator(db db.Querier) *Evaluator {
	return &Evaluator{db: db}
}

// Check evaluates userID's access to tripID. With requireEdit a read share
// yields HasAccess false. An unknown trip is a not-found error.
func (e *Evaluator) Check(ctx context.Context, tripID, userID string, requireEdit bool) (Access, error) {
	owner, err := e.owner(ctx, tripID)
	if err != nil {
		return Access{}, err
	}
	if owner == userID {
		return Access{HasAccess: true, IsOwner: true, Level: LevelOwner}, nil
	}

	var stored string
	err = e.db.QueryRow(ctx, `
		SELECT access_level FROM shared_trips
		WHERE trip_id=$1 AND shared_with_user_id=$2
		  AND (expires_at IS NULL OR expires_at > now())
		ORDER BY created_at DESC
		LIMIT 1
	`, tripID, userID).Scan(&stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Access{Level: LevelNone}, nil
		}
		return Access{}, err
	}

	level := ParseLevel(stored)
	switch level {
	case LevelEdit:
		return Access{HasAccess: true, Level: LevelEdit}, nil
	default:
		return Access{HasAccess: !requireEdit, Level: LevelRead}, nil
	}
}

// Require is Check that turns a denial into a forbidden error.
func (e *Evaluator) Require(ctx context.Context, tripID, userID string, requireEdit bool) (Access, error) {
	a, err := e.Check(ctx, tripID, userID, requireEdit)
	if err != nil {
		return Access{}, err
	}
	if !a.HasAccess {
		if requireEdit {
			return a, apperr.Forbidden("you don't have permission to modify this trip")
		}
		return a, apperr.Forbidden("you don't have access to this trip")
	}
	return a, nil
}

// RequireOwner fails with forbidden unless userID owns tripID.
func (e *Evaluator) RequireOwner(ctx context.Context, tripID, userID string) error {
	owner, err := e.owner(ctx, tripID)
	if err != nil {
		return err
	}
	if owner != userID {
		return apperr.Forbidden("only the trip owner can do this")
	}
	return nil
}

func (e *Evaluator) owner(ctx context.Context, tripID string) (string, error) {
	var owner string
	err := e.db.QueryRow(ctx, `SELECT user_id FROM trips WHERE id=$1`, tripID).Scan(&owner)
	if err != nil {
		return "", apperr.NotFoundOr(err, "trip not found")
	}
	return owner, nil
}
