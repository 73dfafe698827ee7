package api

import (
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/edgeee/dailychallenge/chat"
)

// ErrConflict is returned by a DB when a unique value, such as a username, is
// already taken.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned by a DB when the record to change does not exist.
var ErrNotFound = errors.New("not found")

// A Message represents a persisted message.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Text           string     `json:"text"`
	UserID         string     `json:"user_id"`
	CreatedAt      time.Time  `json:"created_at"`
	Reactions      []Reaction `json:"reactions"`
	ReactionCount  int        `json:"reaction_count"`
}

// A Reaction represents a reaction to a message such as a like.
type Reaction struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	Type      string    `json:"type"`
	Score     int       `json:"score"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// A User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// A Score is a user's result for one daily challenge.
type Score struct {
	UserID        string     `json:"user_id"`
	Username      string     `json:"username"`
	ChallengeDate civil.Date `json:"challenge_date"`
	Score         int        `json:"score"`
}

// A Post is a user's submission for the challenge of one date.
type Post struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	ChallengeDate civil.Date `json:"challenge_date"`
	Caption       string     `json:"caption"`
	Score         int        `json:"score"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Friend request states.
const (
	FriendRequestPending  = "pending"
	FriendRequestAccepted = "accepted"
)

// A FriendRequest is an invitation from SenderID to RecipientID. Sender is
// only set when listing a recipient's requests.
type FriendRequest struct {
	SenderID    string       `json:"sender_id"`
	RecipientID string       `json:"recipient_id"`
	Status      string       `json:"status"`
	Sender      *chat.Friend `json:"sender,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
