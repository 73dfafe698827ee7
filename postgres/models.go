package postgres

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/edgeee/dailychallenge/api"
	"github.com/edgeee/dailychallenge/chat"
	"github.com/uptrace/bun"
)

// A message represents a message in the database.
type message struct {
	ID             string     `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	ConversationID string     `bun:",notnull"`
	MessageText    string     `bun:"message_text,notnull"`
	UserID         string     `bun:",notnull"`
	CreatedAt      time.Time  `bun:",nullzero,notnull,default:now()"`
	Reactions      []reaction `bun:"rel:has-many,join:id=message_id"`
}

type reaction struct {
	ID        string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	MessageID string    `bun:",notnull,type:uuid"`
	UserID    string    `bun:",notnull"`
	Type      string    `bun:",notnull"`
	Score     int       `bun:",notnull,default:1"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:now()"`
}

type user struct {
	ID           string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	Name         string    `bun:",notnull"`
	Email        string    `bun:",notnull,unique"`
	Username     string    `bun:",notnull,unique"`
	PasswordHash string    `bun:",notnull"`
	CreatedAt    time.Time `bun:",nullzero,notnull,default:now()"`
}

// A friendship is stored once per direction so a user's friends are a single
// lookup on user_id.
type friendship struct {
	UserID    string    `bun:",pk,type:uuid"`
	FriendID  string    `bun:",pk,type:uuid"`
	Friend    *user     `bun:"rel:belongs-to,join:friend_id=id"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:now()"`
}

// A friendRequest is pending until the recipient accepts or declines it, or
// the sender withdraws it.
type friendRequest struct {
	SenderID    string    `bun:",pk,type:uuid"`
	Sender      *user     `bun:"rel:belongs-to,join:sender_id=id"`
	RecipientID string    `bun:",pk,type:uuid"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:now()"`
}

// A post is a user's submission for a daily challenge and carries its score.
// Each user posts at most once per challenge date.
type post struct {
	bun.BaseModel `bun:"table:posts"`

	ID            string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	UserID        string    `bun:",notnull,type:uuid,unique:posts_user_date"`
	User          *user     `bun:"rel:belongs-to,join:user_id=id"`
	ChallengeDate time.Time `bun:",notnull,type:date,unique:posts_user_date"`
	Caption       string    `bun:",notnull"`
	Score         int       `bun:",notnull,default:0"`
	CreatedAt     time.Time `bun:",nullzero,notnull,default:now()"`
}

func (m message) APIMessage() api.Message {
	reactions := make([]api.Reaction, len(m.Reactions))
	for i, r := range m.Reactions {
		reactions[i] = r.APIReaction()
	}

	return api.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Text:           m.MessageText,
		UserID:         m.UserID,
		CreatedAt:      m.CreatedAt,
		Reactions:      reactions,
		ReactionCount:  len(m.Reactions),
	}
}

func (r reaction) APIReaction() api.Reaction {
	return api.Reaction{
		ID:        r.ID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Type:      r.Type,
		Score:     r.Score,
		CreatedAt: r.CreatedAt,
	}
}

func (u user) APIUser() api.User {
	return api.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func (u user) Friend() chat.Friend {
	return chat.Friend{
		UserID:   u.ID,
		Name:     u.Name,
		Username: u.Username,
	}
}

func (p post) APIScore() api.Score {
	s := api.Score{
		UserID:        p.UserID,
		ChallengeDate: civil.DateOf(p.ChallengeDate),
		Score:         p.Score,
	}
	if p.User != nil {
		s.Username = p.User.Username
	}
	return s
}

func (p post) APIPost() api.Post {
	return api.Post{
		ID:            p.ID,
		UserID:        p.UserID,
		ChallengeDate: civil.DateOf(p.ChallengeDate),
		Caption:       p.Caption,
		Score:         p.Score,
		CreatedAt:     p.CreatedAt,
	}
}

func (fr friendRequest) APIFriendRequest() api.FriendRequest {
	out := api.FriendRequest{
		SenderID:    fr.SenderID,
		RecipientID: fr.RecipientID,
		Status:      api.FriendRequestPending,
		CreatedAt:   fr.CreatedAt,
	}
	if fr.Sender != nil {
		f := fr.Sender.Friend()
		out.Sender = &f
	}
	return out
}
