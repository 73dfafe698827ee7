package redis

import (
	"time"

	"github.com/edgeee/dailychallenge/api"
)

// A message represents a cached message.
type message struct {
	ID             string `redis:"id"`
	ConversationID string `redis:"conversation_id"`
	Text           string `redis:"text"`
	UserID         string `redis:"user_id"`
	CreatedAt      int64  `redis:"created_at"` // unix nanoseconds
	Reactions      []reaction
}

// reaction represents a cached reaction to a message.
type reaction struct {
	ID        string `redis:"id"`
	MessageID string `redis:"message_id"`
	UserID    string `redis:"user_id"`
	Type      string `redis:"type"`
	Score     int    `redis:"score"`
	CreatedAt int64  `redis:"created_at"` // unix nanoseconds
}

func (m message) APIMessage() api.Message {
	apiMsg := api.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Text:           m.Text,
		UserID:         m.UserID,
		CreatedAt:      fromNanos(m.CreatedAt),
		Reactions:      make([]api.Reaction, len(m.Reactions)),
		ReactionCount:  len(m.Reactions),
	}

	for i, r := range m.Reactions {
		apiMsg.Reactions[i] = r.APIReaction()
	}

	return apiMsg
}

func (r reaction) APIReaction() api.Reaction {
	return api.Reaction{
		ID:        r.ID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Type:      r.Type,
		Score:     r.Score,
		CreatedAt: fromNanos(r.CreatedAt),
	}
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
