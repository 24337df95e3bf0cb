package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mathlingo-core/server/internal/agent/model"
	errx "github.com/mathlingo-core/server/internal/core/error"
	logx "github.com/mathlingo-core/server/pkg/logger"
)

// ReplyStore is the subset of redis commands the reply repository uses.
type ReplyStore interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

type RedisReplyRepository struct {
	rdb ReplyStore
	ttl time.Duration
}

var _ model.ReplyRepository = (*RedisReplyRepository)(nil)

func NewRedisReplyRepository(rdb ReplyStore, ttl time.Duration) *RedisReplyRepository {
	return &RedisReplyRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisReplyRepository) replyKey(messageID string) string {
	return fmt.Sprintf("reply:%s", messageID)
}

func (r *RedisReplyRepository) SaveReply(ctx context.Context, messageID string, reply string) error {
	key := r.replyKey(messageID)
	if err := r.rdb.Set(ctx, key, reply, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save reply to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisReplyRepository) LoadReply(ctx context.Context, messageID string) (string, bool, error) {
	key := r.replyKey(messageID)
	reply, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load reply from redis")
		return "", false, errx.WrapRedis(err)
	}
	return reply, true, nil
}
