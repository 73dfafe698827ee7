package redis

import (
	"context"
	"fmt"

	"github.com/edgeee/dailychallenge/api"
	"github.com/redis/go-redis/v9"
)

// Redis provides caching in Redis.
type Redis struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings the server to ensure the
// connection is working.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		cli: cli,
	}, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.cli.Close()
}

const (
	conversationPrefix = "conversations"
	messagePrefix      = "messages"
	// maxSize is the number of messages kept per conversation.
	maxSize = 10
)

func conversationKey(conversationID string) string {
	return fmt.Sprintf("%s:%s:messages", conversationPrefix, conversationID)
}

func messageKey(messageID string) string {
	return fmt.Sprintf("%s:%s", messagePrefix, messageID)
}

func reactionsKey(messageID string) string {
	return fmt.Sprintf("%s:%s:reactions", messagePrefix, messageID)
}

// ListMessages returns the cached messages of a conversation, newest first.
func (r *Redis) ListMessages(ctx context.Context, conversationID string) ([]api.Message, error) {
	keys, err := r.cli.ZRevRange(ctx, conversationKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err = r.cli.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HGetAll(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hgetall: %w", err)
	}

	out := make([]api.Message, 0, len(keys))
	for _, cmd := range cmds {
		// Evicted between the range and the read.
		if len(cmd.Val()) == 0 {
			continue
		}

		var msg message
		if err := cmd.Scan(&msg); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		reactions, err := r.ListReactions(ctx, msg.ID)
		if err != nil {
			return nil, fmt.Errorf("list reactions: %w", err)
		}

		msg.Reactions = reactions
		out = append(out, msg.APIMessage())
	}

	return out, nil
}

// InsertMessage stores the message under messages:MESSAGE_ID and adds the key
// to its conversation's sorted set, then trims the conversation to maxSize.
func (r *Redis) InsertMessage(ctx context.Context, msg api.Message) error {
	m := &message{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Text:           msg.Text,
		UserID:         msg.UserID,
		CreatedAt:      toNanos(msg.CreatedAt),
	}

	key := messageKey(m.ID)
	_, err := r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, m)
		pipe.ZAdd(ctx, conversationKey(m.ConversationID), redis.Z{
			Score:  float64(m.CreatedAt),
			Member: key,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis insert message: %w", err)
	}

	if err := r.evictOldest(ctx, m.ConversationID); err != nil {
		return fmt.Errorf("evict oldest: %w", err)
	}
	return nil
}

// ListReactions fetches all reactions associated with a given message ID,
// oldest first.
func (r *Redis) ListReactions(ctx context.Context, msgID string) ([]reaction, error) {
	keys, err := r.cli.ZRange(ctx, reactionsKey(msgID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange: %w", err)
	}

	out := make([]reaction, 0, len(keys))
	for _, key := range keys {
		var rc reaction
		cmd := r.cli.HGetAll(ctx, key)
		if err := cmd.Scan(&rc); err != nil {
			return nil, fmt.Errorf("hgetall: %w", err)
		}
		if len(cmd.Val()) == 0 {
			continue
		}
		out = append(out, rc)
	}

	return out, nil
}

// InsertReaction adds a reaction to the cached message identified by msgID.
// Reactions to messages that are not cached are ignored.
func (r *Redis) InsertReaction(ctx context.Context, msgID string, mr api.Reaction) error {
	n, err := r.cli.Exists(ctx, messageKey(msgID)).Result()
	if err != nil {
		return fmt.Errorf("exists: %w", err)
	}
	if n == 0 {
		return nil
	}

	rc := &reaction{
		ID:        mr.ID,
		MessageID: msgID,
		UserID:    mr.UserID,
		Type:      mr.Type,
		Score:     mr.Score,
		CreatedAt: toNanos(mr.CreatedAt),
	}

	_, err = r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setKey := reactionsKey(msgID)
		key := fmt.Sprintf("%s:%s", setKey, rc.ID)
		pipe.HSet(ctx, key, rc)
		pipe.ZAdd(ctx, setKey, redis.Z{
			Score:  float64(rc.CreatedAt),
			Member: key,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not insert reaction: %w", err)
	}

	return nil
}

// evictOldest removes the oldest messages of a conversation beyond maxSize,
// along with their reactions.
func (r *Redis) evictOldest(ctx context.Context, conversationID string) error {
	convKey := conversationKey(conversationID)
	keys, err := r.cli.ZRange(ctx, convKey, 0, int64(-maxSize-1)).Result()
	if err != nil {
		return fmt.Errorf("zrange: %w", err)
	}

	for _, key := range keys {
		setKey := key + ":reactions"
		reactionKeys, err := r.cli.ZRange(ctx, setKey, 0, -1).Result()
		if err != nil {
			return fmt.Errorf("zrange reactions: %w", err)
		}

		_, err = r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, convKey, key)
			pipe.Del(ctx, append(reactionKeys, key, setKey)...)
			return nil
		})
		if err != nil {
			return fmt.Errorf("evict %s: %w", key, err)
		}
	}

	return nil
}
