package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mathlingo-core/server/internal/agent/model"
	logx "github.com/mathlingo-core/server/pkg/logger"
)

// Config controls the redis stream consumer
type Config struct {
	Enabled        bool          `envconfig:"INGRESS_ENABLED" default:"false"`
	Stream         string        `envconfig:"INGRESS_STREAM" default:"msg:inbound"`
	Group          string        `envconfig:"INGRESS_GROUP" default:"mathlingo-group"`
	Consumer       string        `envconfig:"INGRESS_CONSUMER" default:"mathlingo-1"`
	ResponsePrefix string        `envconfig:"INGRESS_RESPONSE_PREFIX" default:"response:"`
	Block          time.Duration `envconfig:"INGRESS_BLOCK" default:"5s"`
	ReplyTTL       time.Duration `envconfig:"INGRESS_REPLY_TTL" default:"24h"`
}

// StreamClient is the subset of redis commands the consumer uses.
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// QueryHandler answers one message with a display-ready reply. On error the
// reply is the apology and must not be remembered.
type QueryHandler interface {
	Answer(ctx context.Context, text string) (string, error)
}

// Consumer reads envelopes from a stream consumer group, answers them and
// publishes the replies.
type Consumer struct {
	rdb      StreamClient
	pipeline QueryHandler
	replies  model.ReplyRepository
	cfg      Config
}

// NewConsumer creates a consumer. replies may be nil to disable redelivery
// deduplication.
func NewConsumer(rdb StreamClient, pipeline QueryHandler, replies model.ReplyRepository, cfg Config) *Consumer {
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	return &Consumer{rdb: rdb, pipeline: pipeline, replies: replies, cfg: cfg}
}

// EnsureGroup creates the stream and consumer group if missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	logx.Info().
		Str("stream", c.cfg.Stream).
		Str("group", c.cfg.Group).
		Str("consumer", c.cfg.Consumer).
		Msg("Starting stream consumer")

	for {
		if ctx.Err() != nil {
			logx.Info().Msg("Stream consumer stopped")
			return nil
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{c.cfg.Stream, ">"},
			Count:    1,
			Block:    c.cfg.Block,
		}).Result()
		if errors.Is(err, redis.Nil) || (err != nil && ctx.Err() != nil) {
			continue
		}
		if err != nil {
			logx.Error().Err(err).Msg("Error reading stream")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				c.HandleMessage(ctx, msg)
			}
		}
	}
}

// HandleMessage answers one stream entry and acknowledges it. Malformed
// entries are acknowledged and dropped.
func (c *Consumer) HandleMessage(ctx context.Context, msg redis.XMessage) {
	defer c.ack(ctx, msg.ID)

	env, err := decodeEnvelope(msg)
	if err != nil {
		logx.Warn().Err(err).Str("entry_id", msg.ID).Msg("Dropping malformed stream entry")
		return
	}

	if reply, ok := c.cachedReply(ctx, env.MessageID); ok {
		logx.Info().Str("message_id", env.MessageID).Msg("Redelivered message, reusing reply")
		c.publish(ctx, env, reply)
		return
	}

	logx.Debug().
		Str("message_id", env.MessageID).
		Str("session_id", env.SessionID).
		Msg("Processing message")

	reply, err := c.pipeline.Answer(ctx, env.Text)
	if err != nil {
		logx.Warn().Err(err).Str("message_id", env.MessageID).Msg("Answer failed, reply not remembered")
	} else if c.replies != nil {
		if err := c.replies.SaveReply(ctx, env.MessageID, reply); err != nil {
			logx.Warn().Err(err).Str("message_id", env.MessageID).Msg("Failed to remember reply")
		}
	}
	c.publish(ctx, env, reply)
}

func (c *Consumer) cachedReply(ctx context.Context, messageID string) (string, bool) {
	if c.replies == nil {
		return "", false
	}
	reply, ok, err := c.replies.LoadReply(ctx, messageID)
	if err != nil {
		logx.Warn().Err(err).Str("message_id", messageID).Msg("Reply lookup failed, answering again")
		return "", false
	}
	return reply, ok
}

func (c *Consumer) publish(ctx context.Context, env MessageEnvelope, reply string) {
	data, err := json.Marshal(ReplyMessage{
		Type:      "message",
		MessageID: env.MessageID,
		SessionID: env.SessionID,
		Text:      reply,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to marshal reply")
		return
	}
	channel := c.cfg.ResponsePrefix + env.SessionID
	if err := c.rdb.Publish(ctx, channel, string(data)).Err(); err != nil {
		logx.Error().Err(err).Str("channel", channel).Msg("Failed to publish reply")
	}
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.rdb.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		logx.Error().Err(err).Str("entry_id", id).Msg("Failed to ack stream entry")
	}
}
