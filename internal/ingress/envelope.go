package ingress

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// envelopeField is the stream entry field holding the JSON envelope.
const envelopeField = "envelope"

var (
	ErrMissingEnvelope = errors.New("stream entry has no envelope field")
	ErrMissingSession  = errors.New("envelope has no session_id")
)

// MessageEnvelope is one inbound user message.
type MessageEnvelope struct {
	MessageID string    `json:"message_id"`
	SessionID string    `json:"session_id"`
	Channel   string    `json:"channel,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Text      string    `json:"text"`
}

// ReplyMessage is published on response:<session_id>.
type ReplyMessage struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// decodeEnvelope reads the envelope of a stream entry. Entries without a
// message_id use the stream entry ID.
func decodeEnvelope(msg redis.XMessage) (MessageEnvelope, error) {
	raw, ok := msg.Values[envelopeField].(string)
	if !ok {
		return MessageEnvelope{}, ErrMissingEnvelope
	}

	var env MessageEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return MessageEnvelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if strings.TrimSpace(env.SessionID) == "" {
		return MessageEnvelope{}, ErrMissingSession
	}
	if strings.TrimSpace(env.MessageID) == "" {
		env.MessageID = msg.ID
	}
	return env, nil
}
