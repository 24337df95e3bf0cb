package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	payload string
}

type fakeStream struct {
	mu        sync.Mutex
	groupErr  error
	batches   [][]redis.XMessage
	reads     int
	onDrained func()
	acked     []string
	published []published
}

func (f *fakeStream) XGroupCreateMkStream(context.Context, string, string, string) *redis.StatusCmd {
	return redis.NewStatusResult("OK", f.groupErr)
}

func (f *fakeStream) XReadGroup(_ context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if len(f.batches) == 0 {
		if f.onDrained != nil {
			f.onDrained()
		}
		return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return redis.NewXStreamSliceCmdResult([]redis.XStream{{Stream: a.Streams[0], Messages: batch}}, nil)
}

func (f *fakeStream) XAck(_ context.Context, _, _ string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeStream) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{channel: channel, payload: message.(string)})
	return redis.NewIntResult(1, nil)
}

type countingPipeline struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (p *countingPipeline) Answer(_ context.Context, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, text)
	if p.err != nil {
		return "sorry", p.err
	}
	return "reply to " + text, nil
}

type memoryReplies struct {
	data    map[string]string
	loadErr error
}

func (m *memoryReplies) SaveReply(_ context.Context, id, reply string) error {
	m.data[id] = reply
	return nil
}

func (m *memoryReplies) LoadReply(_ context.Context, id string) (string, bool, error) {
	if m.loadErr != nil {
		return "", false, m.loadErr
	}
	r, ok := m.data[id]
	return r, ok, nil
}

func testConfig() Config {
	return Config{
		Stream:         "msg:inbound",
		Group:          "mathlingo-group",
		Consumer:       "test-1",
		ResponsePrefix: "response:",
		Block:          10 * time.Millisecond,
	}
}

func entry(id, envelope string) redis.XMessage {
	return redis.XMessage{ID: id, Values: map[string]any{"envelope": envelope}}
}

func decodeReply(t *testing.T, payload string) ReplyMessage {
	t.Helper()
	var r ReplyMessage
	require.NoError(t, json.Unmarshal([]byte(payload), &r))
	return r
}

func TestHandleMessage(t *testing.T) {
	rdb := &fakeStream{}
	p := &countingPipeline{}
	c := NewConsumer(rdb, p, nil, testConfig())

	c.HandleMessage(context.Background(),
		entry("1-0", `{"message_id":"m1","session_id":"s1","text":"what is 2+2?"}`))

	assert.Equal(t, []string{"what is 2+2?"}, p.texts)
	assert.Equal(t, []string{"1-0"}, rdb.acked)
	require.Len(t, rdb.published, 1)
	assert.Equal(t, "response:s1", rdb.published[0].channel)

	reply := decodeReply(t, rdb.published[0].payload)
	assert.Equal(t, ReplyMessage{Type: "message", MessageID: "m1", SessionID: "s1", Text: "reply to what is 2+2?"}, reply)
}

func TestHandleMessage_Malformed(t *testing.T) {
	tests := []struct {
		name string
		msg  redis.XMessage
	}{
		{"no envelope", redis.XMessage{ID: "1-0", Values: map[string]any{"text": "hi"}}},
		{"bad json", entry("1-0", `{"session_id":`)},
		{"no session", entry("1-0", `{"message_id":"m1","text":"hi"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rdb := &fakeStream{}
			p := &countingPipeline{}
			c := NewConsumer(rdb, p, nil, testConfig())

			c.HandleMessage(context.Background(), tt.msg)

			assert.Empty(t, p.texts)
			assert.Empty(t, rdb.published)
			assert.Equal(t, []string{"1-0"}, rdb.acked)
		})
	}
}

func TestHandleMessage_MessageIDDefaultsToEntryID(t *testing.T) {
	rdb := &fakeStream{}
	replies := &memoryReplies{data: map[string]string{}}
	c := NewConsumer(rdb, &countingPipeline{}, replies, testConfig())

	c.HandleMessage(context.Background(), entry("7-1", `{"session_id":"s1","text":"1+1"}`))

	assert.Equal(t, "reply to 1+1", replies.data["7-1"])
	assert.Equal(t, "7-1", decodeReply(t, rdb.published[0].payload).MessageID)
}

func TestHandleMessage_RedeliveryReusesReply(t *testing.T) {
	rdb := &fakeStream{}
	p := &countingPipeline{}
	replies := &memoryReplies{data: map[string]string{}}
	c := NewConsumer(rdb, p, replies, testConfig())

	env := `{"message_id":"m1","session_id":"s1","text":"what is 2+2?"}`
	c.HandleMessage(context.Background(), entry("1-0", env))
	c.HandleMessage(context.Background(), entry("2-0", env))

	assert.Len(t, p.texts, 1)
	assert.Equal(t, []string{"1-0", "2-0"}, rdb.acked)
	require.Len(t, rdb.published, 2)
	assert.Equal(t, rdb.published[0].payload, rdb.published[1].payload)
}

func TestHandleMessage_FailedAnswerIsNotRemembered(t *testing.T) {
	rdb := &fakeStream{}
	p := &countingPipeline{err: errors.New("completion service call failed")}
	replies := &memoryReplies{data: map[string]string{}}
	c := NewConsumer(rdb, p, replies, testConfig())

	env := `{"message_id":"m1","session_id":"s1","text":"what is 2+2?"}`
	c.HandleMessage(context.Background(), entry("1-0", env))

	assert.Empty(t, replies.data)
	require.Len(t, rdb.published, 1)
	assert.Equal(t, "sorry", decodeReply(t, rdb.published[0].payload).Text)

	// the redelivered message is answered again once the pipeline recovers
	p.err = nil
	c.HandleMessage(context.Background(), entry("2-0", env))

	assert.Len(t, p.texts, 2)
	assert.Equal(t, "reply to what is 2+2?", replies.data["m1"])
	assert.Equal(t, "reply to what is 2+2?", decodeReply(t, rdb.published[1].payload).Text)
}

func TestHandleMessage_ReplyLookupFailureAnswersAgain(t *testing.T) {
	rdb := &fakeStream{}
	p := &countingPipeline{}
	replies := &memoryReplies{data: map[string]string{"m1": "old"}, loadErr: errors.New("redis down")}
	c := NewConsumer(rdb, p, replies, testConfig())

	c.HandleMessage(context.Background(), entry("1-0", `{"message_id":"m1","session_id":"s1","text":"2+2"}`))

	assert.Equal(t, []string{"2+2"}, p.texts)
	assert.Equal(t, "reply to 2+2", decodeReply(t, rdb.published[0].payload).Text)
}

func TestEnsureGroup(t *testing.T) {
	c := NewConsumer(&fakeStream{}, &countingPipeline{}, nil, testConfig())
	assert.NoError(t, c.EnsureGroup(context.Background()))

	c = NewConsumer(&fakeStream{groupErr: errors.New("BUSYGROUP Consumer Group name already exists")}, &countingPipeline{}, nil, testConfig())
	assert.NoError(t, c.EnsureGroup(context.Background()))

	c = NewConsumer(&fakeStream{groupErr: errors.New("WRONGTYPE")}, &countingPipeline{}, nil, testConfig())
	assert.Error(t, c.EnsureGroup(context.Background()))
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := &fakeStream{
		batches: [][]redis.XMessage{
			{entry("1-0", `{"message_id":"m1","session_id":"s1","text":"a"}`)},
			{entry("2-0", `{"message_id":"m2","session_id":"s2","text":"b"}`)},
		},
		onDrained: cancel,
	}
	p := &countingPipeline{}
	c := NewConsumer(rdb, p, nil, testConfig())

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}

	assert.Equal(t, []string{"a", "b"}, p.texts)
	assert.Equal(t, []string{"1-0", "2-0"}, rdb.acked)
	assert.Len(t, rdb.published, 2)
}
