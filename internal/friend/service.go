// Package friend implements friend requests and the symmetric friendship
// relation.
//
// A friendship is stored as two rows, A→B and B→A, so listing a user's
// friends is a single lookup on user_id. A request is a pending row in
// friend_requests; accepting it swaps it for the two friendship rows in one
// transaction.
package friend

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"backend-journitag/internal/apperr"
	"backend-journitag/internal/db"
	"backend-journitag/internal/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const searchLimit = 20

type Service struct {
	db  db.Querier
	log *slog.Logger
}

func NewService(q db.Querier, log *slog.Logger) *Service {
	return &Service{db: q, log: logger.OrDefault(log)}
}

// SendRequest asks toID to be friends with fromID. If toID already asked
// fromID, both become friends right away.
func (s *Service) SendRequest(ctx context.Context, fromID, toID string) (SendResult, error) {
	if toID == "" {
		return SendResult{}, apperr.Validation("friend_id is required")
	}
	if fromID == toID {
		return SendResult{}, apperr.Validation("you cannot send a friend request to yourself")
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, toID).Scan(&exists); err != nil {
		return SendResult{}, err
	}
	if !exists {
		return SendResult{}, apperr.NotFound("user not found")
	}

	friends, err := s.AreFriends(ctx, fromID, toID)
	if err != nil {
		return SendResult{}, err
	}
	if friends {
		return SendResult{}, apperr.Conflict("you are already friends")
	}

	incoming, err := s.pendingID(ctx, toID, fromID)
	if err != nil {
		return SendResult{}, err
	}
	if incoming != "" {
		if err := s.makeFriends(ctx, incoming, fromID, toID); err != nil {
			return SendResult{}, err
		}
		s.log.Info("friend request auto-accepted", "user_id", fromID, "friend_id", toID)
		return SendResult{Status: StatusFriends}, nil
	}

	outgoing, err := s.pendingID(ctx, fromID, toID)
	if err != nil {
		return SendResult{}, err
	}
	if outgoing != "" {
		return SendResult{}, apperr.Conflict("friend request already sent")
	}

	id := uuid.NewString()
	_, err = s.db.Exec(ctx, `
		INSERT INTO friend_requests (id, from_user_id, to_user_id)
		VALUES ($1,$2,$3)
	`, id, fromID, toID)
	if err != nil {
		return SendResult{}, err
	}
	return SendResult{Status: StatusPendingOutgoing, RequestID: id}, nil
}

// Accept turns a request addressed to userID into a friendship.
func (s *Service) Accept(ctx context.Context, requestID, userID string) error {
	from, to, err := s.request(ctx, requestID)
	if err != nil {
		return err
	}
	if to != userID {
		return apperr.Forbidden("only the recipient can accept this request")
	}
	if err := s.makeFriends(ctx, requestID, from, to); err != nil {
		return err
	}
	s.log.Info("friend request accepted", "user_id", to, "friend_id", from)
	return nil
}

// Decline deletes a request. The sender cancels it, the recipient declines
// it; nobody else may touch it.
func (s *Service) Decline(ctx context.Context, requestID, userID string) error {
	from, to, err := s.request(ctx, requestID)
	if err != nil {
		return err
	}
	if userID != from && userID != to {
		return apperr.Forbidden("this request is not yours")
	}
	_, err = s.db.Exec(ctx, `DELETE FROM friend_requests WHERE id=$1`, requestID)
	return err
}

// Unfriend removes both directions of a friendship. It succeeds when the
// two users were not friends.
func (s *Service) Unfriend(ctx context.Context, userID, friendID string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM friendships
		WHERE (user_id=$1 AND friend_id=$2) OR (user_id=$2 AND friend_id=$1)
	`, userID, friendID)
	return err
}

func (s *Service) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM friendships WHERE user_id=$1 AND friend_id=$2)
	`, userID, otherID).Scan(&ok)
	return ok, err
}

// Status reports how userID relates to otherID.
func (s *Service) Status(ctx context.Context, userID, otherID string) (Relation, error) {
	friends, err := s.AreFriends(ctx, userID, otherID)
	if err != nil {
		return Relation{}, err
	}
	if friends {
		return Relation{Status: StatusFriends}, nil
	}

	if id, err := s.pendingID(ctx, userID, otherID); err != nil {
		return Relation{}, err
	} else if id != "" {
		return Relation{Status: StatusPendingOutgoing, RequestID: id}, nil
	}

	if id, err := s.pendingID(ctx, otherID, userID); err != nil {
		return Relation{}, err
	} else if id != "" {
		return Relation{Status: StatusPendingIncoming, RequestID: id}, nil
	}
	return Relation{Status: StatusNone}, nil
}

func (s *Service) Friends(ctx context.Context, userID string) ([]Friend, error) {
	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.username, u.name, u.email, u.profile_photo_url, f.created_at
		FROM friendships f JOIN users u ON u.id = f.friend_id
		WHERE f.user_id=$1
		ORDER BY u.username
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	friends := []Friend{}
	for rows.Next() {
		var f Friend
		if err := rows.Scan(&f.ID, &f.Username, &f.Name, &f.Email, &f.ProfilePhotoURL, &f.Since); err != nil {
			return nil, err
		}
		friends = append(friends, f)
	}
	return friends, rows.Err()
}

// Requests lists the user's pending requests in both directions, newest
// first.
func (s *Service) Requests(ctx context.Context, userID string) (Requests, error) {
	incoming, err := s.listRequests(ctx, `r.to_user_id=$1`, `r.from_user_id`, userID)
	if err != nil {
		return Requests{}, err
	}
	outgoing, err := s.listRequests(ctx, `r.from_user_id=$1`, `r.to_user_id`, userID)
	if err != nil {
		return Requests{}, err
	}
	return Requests{Incoming: incoming, Outgoing: outgoing}, nil
}

func (s *Service) listRequests(ctx context.Context, where, otherCol, userID string) ([]Request, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.from_user_id, r.to_user_id, r.created_at,
		       u.id, u.username, u.name, u.email, u.profile_photo_url
		FROM friend_requests r JOIN users u ON u.id = `+otherCol+`
		WHERE `+where+`
		ORDER BY r.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []Request{}
	for rows.Next() {
		var r Request
		if err := rows.Scan(&r.ID, &r.FromUserID, &r.ToUserID, &r.CreatedAt,
			&r.User.ID, &r.User.Username, &r.User.Name, &r.User.Email, &r.User.ProfilePhotoURL); err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// Search finds other users by username, name or email.
func (s *Service) Search(ctx context.Context, userID, query string) ([]User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("query is required")
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, username, name, email, profile_photo_url
		FROM users
		WHERE id <> $1 AND (username ILIKE $2 OR name ILIKE $2 OR email ILIKE $2)
		ORDER BY username
		LIMIT $3
	`, userID, "%"+escapeLike(query)+"%", searchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.ProfilePhotoURL); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *Service) request(ctx context.Context, requestID string) (from, to string, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT from_user_id, to_user_id FROM friend_requests WHERE id=$1
	`, requestID).Scan(&from, &to)
	if err != nil {
		return "", "", apperr.NotFoundOr(err, "friend request not found")
	}
	return from, to, nil
}

// pendingID returns the id of the request from fromID to toID, or "".
func (s *Service) pendingID(ctx context.Context, fromID, toID string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		SELECT id FROM friend_requests WHERE from_user_id=$1 AND to_user_id=$2
		ORDER BY created_at
		LIMIT 1
	`, fromID, toID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// makeFriends writes both friendship rows and drops the request together.
func (s *Service) makeFriends(ctx context.Context, requestID, a, b string) error {
	return db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO friendships (user_id, friend_id)
			VALUES ($1,$2), ($2,$1)
			ON CONFLICT DO NOTHING
		`, a, b)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM friend_requests WHERE id=$1`, requestID)
		return err
	})
}
