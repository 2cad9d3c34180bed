package friend

import "time"

// Status describes how two users relate, seen from the first of them.
type Status string

const (
	StatusNone            Status = "none"
	StatusPendingOutgoing Status = "pending_outgoing"
	StatusPendingIncoming Status = "pending_incoming"
	StatusFriends         Status = "friends"
)

// User is the public profile shown in friend lists and search results.
type User struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	ProfilePhotoURL string `json:"profile_photo_url"`
}

type Friend struct {
	User
	Since time.Time `json:"friends_since"`
}

// Request is a pending friend request. User is the other party: the sender
// for incoming requests, the recipient for outgoing ones.
type Request struct {
	ID         string    `json:"id"`
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	CreatedAt  time.Time `json:"created_at"`
	User       User      `json:"user"`
}

type Requests struct {
	Incoming []Request `json:"incoming"`
	Outgoing []Request `json:"outgoing"`
}

// SendResult reports what a friend request did: Pending with the new
// request, or Friends when it accepted a request going the other way.
type SendResult struct {
	Status    Status `json:"status"`
	RequestID string `json:"request_id,omitempty"`
}

// Relation is the answer to a status lookup. RequestID is set while a
// request is pending.
type Relation struct {
	Status    Status `json:"status"`
	RequestID string `json:"request_id,omitempty"`
}
