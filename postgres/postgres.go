package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/edgeee/dailychallenge/api"
	"github.com/edgeee/dailychallenge/chat"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Postgres provides storage in PostgreSQL.
type Postgres struct {
	bun *bun.DB
}

// Connect connects to the database and ping the DB to ensure the connection is
// working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Postgres{
		bun: db,
	}, nil
}

// Close closes the underlying connection pool.
func (pg *Postgres) Close() error {
	return pg.bun.Close()
}

// CreateSchema creates every table the application uses when missing.
func (pg *Postgres) CreateSchema(ctx context.Context) error {
	if _, err := pg.bun.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`); err != nil {
		return fmt.Errorf("create extension: %w", err)
	}

	models := []any{
		(*user)(nil),
		(*message)(nil),
		(*reaction)(nil),
		(*friendship)(nil),
		(*friendRequest)(nil),
		(*post)(nil),
	}
	for _, model := range models {
		if _, err := pg.bun.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", model, err)
		}
	}

	_, err := pg.bun.NewCreateIndex().
		Model((*message)(nil)).
		Index("messages_conversation_created_idx").
		Column("conversation_id", "created_at").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// ListMessages returns a page of a conversation's messages, newest first.
func (pg *Postgres) ListMessages(ctx context.Context, conversationID string, limit, offset int, excludeMsgIDs ...string) ([]api.Message, error) {
	var msgs []message
	q := pg.bun.NewSelect().
		Model(&msgs).
		Relation("Reactions").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset)

	if len(excludeMsgIDs) > 0 {
		q = q.Where("id NOT IN (?)", bun.In(excludeMsgIDs))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]api.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.APIMessage()
	}

	return out, nil
}

// InsertMessage inserts a message into the database. The returned message
// holds auto generated fields, such as the message id.
func (pg *Postgres) InsertMessage(ctx context.Context, msg api.Message) (api.Message, error) {
	m := &message{
		ConversationID: msg.ConversationID,
		MessageText:    msg.Text,
		UserID:         msg.UserID,
		CreatedAt:      msg.CreatedAt,
	}
	if _, err := pg.bun.NewInsert().Model(m).Returning("*").Exec(ctx); err != nil {
		return api.Message{}, fmt.Errorf("insert: %w", err)
	}
	return m.APIMessage(), nil
}

// InsertReaction inserts a message reaction into the database.
func (pg *Postgres) InsertReaction(ctx context.Context, r api.Reaction) (api.Reaction, error) {
	rm := &reaction{
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Type:      r.Type,
		Score:     r.Score,
		CreatedAt: r.CreatedAt,
	}
	if _, err := pg.bun.NewInsert().Model(rm).Returning("*").Exec(ctx); err != nil {
		return api.Reaction{}, fmt.Errorf("insert: %w", err)
	}
	return rm.APIReaction(), nil
}

// InsertUser inserts a user. A taken username or email yields an error
// wrapping api.ErrConflict.
func (pg *Postgres) InsertUser(ctx context.Context, u api.User) (api.User, error) {
	um := &user{
		Name:         u.Name,
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
	if _, err := pg.bun.NewInsert().Model(um).Returning("*").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return api.User{}, fmt.Errorf("insert: %w", api.ErrConflict)
		}
		return api.User{}, fmt.Errorf("insert: %w", err)
	}
	return um.APIUser(), nil
}

// ListFriends returns the profiles of userID's friends in no particular order.
func (pg *Postgres) ListFriends(ctx context.Context, userID string) ([]chat.Friend, error) {
	var rows []friendship
	err := pg.bun.NewSelect().
		Model(&rows).
		Relation("Friend").
		Where("friendship.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]chat.Friend, 0, len(rows))
	for _, f := range rows {
		if f.Friend == nil {
			continue
		}
		out = append(out, f.Friend.Friend())
	}
	return out, nil
}

// ListScores returns every score posted for the challenge on date.
func (pg *Postgres) ListScores(ctx context.Context, date civil.Date) ([]api.Score, error) {
	var posts []post
	err := pg.bun.NewSelect().
		Model(&posts).
		Relation("User").
		Where("post.challenge_date = ?", date.String()).
		Order("post.score DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]api.Score, len(posts))
	for i, p := range posts {
		out[i] = p.APIScore()
	}
	return out, nil
}

// InsertPost stores a user's post for a challenge date. A second post by the
// same user for the same date yields an error wrapping api.ErrConflict.
func (pg *Postgres) InsertPost(ctx context.Context, p api.Post) (api.Post, error) {
	pm := &post{
		UserID:        p.UserID,
		ChallengeDate: p.ChallengeDate.In(time.UTC),
		Caption:       p.Caption,
		Score:         p.Score,
		CreatedAt:     p.CreatedAt,
	}
	if _, err := pg.bun.NewInsert().Model(pm).Returning("*").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return api.Post{}, fmt.Errorf("insert: %w", api.ErrConflict)
		}
		return api.Post{}, fmt.Errorf("insert: %w", err)
	}
	return pm.APIPost(), nil
}

// InsertFriendRequest records a request from req.SenderID to req.RecipientID.
// When the recipient has already asked the sender, that request is accepted
// instead and the result carries the accepted status. Existing friends or a
// duplicate request yield an error wrapping api.ErrConflict.
func (pg *Postgres) InsertFriendRequest(ctx context.Context, req api.FriendRequest) (api.FriendRequest, error) {
	fr := &friendRequest{
		SenderID:    req.SenderID,
		RecipientID: req.RecipientID,
		CreatedAt:   req.CreatedAt,
	}
	status := api.FriendRequestPending

	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		friends, err := tx.NewSelect().
			Model((*friendship)(nil)).
			Where("user_id = ? AND friend_id = ?", req.SenderID, req.RecipientID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("select friendship: %w", err)
		}
		if friends {
			return api.ErrConflict
		}

		accepted, err := acceptRequest(ctx, tx, req.RecipientID, req.SenderID)
		if err != nil {
			return err
		}
		if accepted {
			status = api.FriendRequestAccepted
			return nil
		}

		if _, err := tx.NewInsert().Model(fr).Returning("*").Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return api.ErrConflict
			}
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return api.FriendRequest{}, fmt.Errorf("friend request: %w", err)
	}

	out := fr.APIFriendRequest()
	out.Status = status
	return out, nil
}

// ListFriendRequests returns the pending requests sent to recipientID, newest
// first, with the senders' profiles.
func (pg *Postgres) ListFriendRequests(ctx context.Context, recipientID string) ([]api.FriendRequest, error) {
	var rows []friendRequest
	err := pg.bun.NewSelect().
		Model(&rows).
		Relation("Sender").
		Where("friend_request.recipient_id = ?", recipientID).
		Order("friend_request.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]api.FriendRequest, len(rows))
	for i, fr := range rows {
		out[i] = fr.APIFriendRequest()
	}
	return out, nil
}

// DeleteFriendRequest removes a pending request. It serves both the sender
// withdrawing it and the recipient declining it.
func (pg *Postgres) DeleteFriendRequest(ctx context.Context, senderID, recipientID string) error {
	res, err := pg.bun.NewDelete().
		Model((*friendRequest)(nil)).
		Where("sender_id = ? AND recipient_id = ?", senderID, recipientID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return affected(res)
}

// AcceptFriendRequest turns a pending request into a friendship in both
// directions.
func (pg *Postgres) AcceptFriendRequest(ctx context.Context, senderID, recipientID string) error {
	return pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		accepted, err := acceptRequest(ctx, tx, senderID, recipientID)
		if err != nil {
			return err
		}
		if !accepted {
			return fmt.Errorf("accept: %w", api.ErrNotFound)
		}
		return nil
	})
}

// DeleteFriendship removes the friendship between the two users in both
// directions.
func (pg *Postgres) DeleteFriendship(ctx context.Context, userID, friendID string) error {
	res, err := pg.bun.NewDelete().
		Model((*friendship)(nil)).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", userID, friendID, friendID, userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return affected(res)
}

// acceptRequest deletes the request from senderID to recipientID and, if it
// existed, writes both friendship rows. It reports whether a request existed.
func acceptRequest(ctx context.Context, tx bun.Tx, senderID, recipientID string) (bool, error) {
	res, err := tx.NewDelete().
		Model((*friendRequest)(nil)).
		Where("sender_id = ? AND recipient_id = ?", senderID, recipientID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete request: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}

	rows := []friendship{
		{UserID: senderID, FriendID: recipientID},
		{UserID: recipientID, FriendID: senderID},
	}
	if _, err := tx.NewInsert().Model(&rows).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
		return false, fmt.Errorf("insert friendships: %w", err)
	}
	return true, nil
}

// affected maps a statement that touched no rows to api.ErrNotFound.
func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return api.ErrNotFound
	}
	return nil
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}
