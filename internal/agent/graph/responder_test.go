package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathlingo-core/server/internal/agent/graph/tools"
	errx "github.com/mathlingo-core/server/internal/core/error"
)

func newTestResponder(t *testing.T, m *fakeToolModel, choice schema.ToolChoice) *Responder {
	t.Helper()
	r, err := BuildResponder(context.Background(), &ResponderConfig{
		Model:      m,
		ModelName:  "gpt-3.5-turbo",
		ToolChoice: choice,
	})
	require.NoError(t, err)
	return r
}

func TestResponder_TwoHopExchange(t *testing.T) {
	m := &fakeToolModel{command: "2+3*4", answer: "The output is %s."}
	r := newTestResponder(t, m, schema.ToolChoiceForced)

	out, err := r.Respond(context.Background(), "what is the output for 2+3*4?")
	require.NoError(t, err)
	assert.Equal(t, "The output is 14.", out)

	require.Len(t, m.bound, 1)
	assert.Equal(t, tools.ToolCalculator, m.bound[0].Name)

	assert.Equal(t, 2, m.calls)
	assert.Equal(t, []schema.ToolChoice{schema.ToolChoiceForced, schema.ToolChoiceForbidden}, m.choices)

	// second hop sees prompt, tool call and tool result
	second := m.inputs[1]
	require.GreaterOrEqual(t, len(second), 4)
	assert.Equal(t, schema.System, second[0].Role)
	assert.Equal(t, "what is the output for 2+3*4?", second[1].Content)
	assert.Equal(t, schema.Assistant, second[len(second)-2].Role)
	toolMsg := second[len(second)-1]
	assert.Equal(t, schema.Tool, toolMsg.Role)
	assert.Equal(t, "call_abc", toolMsg.ToolCallID)
	assert.Equal(t, "14", toolMsg.Content)
}

func TestResponder_MissingToolCallID(t *testing.T) {
	m := &fakeToolModel{command: "diff(x**3, x)", answer: "Derivative: %s", omitID: true}
	r := newTestResponder(t, m, schema.ToolChoiceForced)

	out, err := r.Respond(context.Background(), "differentiate x^3")
	require.NoError(t, err)
	assert.Equal(t, "Derivative: 3*x**2", out)

	second := m.inputs[1]
	assistant := second[len(second)-2]
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "call_1", assistant.ToolCalls[0].ID)
	assert.Equal(t, "call_1", second[len(second)-1].ToolCallID)
}

func TestResponder_EmptyAnswerFallsBackToToolResult(t *testing.T) {
	m := &fakeToolModel{command: "integrate(sin(x), x, 0, pi)"}
	r := newTestResponder(t, m, schema.ToolChoiceForced)

	out, err := r.Respond(context.Background(), "integrate sin from 0 to pi")
	require.NoError(t, err)
	assert.Equal(t, "2", out)
}

func TestResponder_ToolFailureIsText(t *testing.T) {
	m := &fakeToolModel{command: "2+*3", answer: "Calculator said: %s"}
	r := newTestResponder(t, m, schema.ToolChoiceForced)

	out, err := r.Respond(context.Background(), "what is 2+*3")
	require.NoError(t, err)
	assert.Contains(t, out, "❌")
}

func TestResponder_DirectTextWithoutToolCall(t *testing.T) {
	m := &fakeToolModel{noToolCall: true, answer: "It is 4."}
	r := newTestResponder(t, m, schema.ToolChoiceAllowed)

	out, err := r.Respond(context.Background(), "what is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "It is 4.", out)
	assert.Equal(t, 1, m.calls)
	assert.Equal(t, []schema.ToolChoice{schema.ToolChoiceAllowed}, m.choices)
}

func TestResponder_EmptyDirectText(t *testing.T) {
	m := &fakeToolModel{noToolCall: true}
	r := newTestResponder(t, m, schema.ToolChoiceForced)

	_, err := r.Respond(context.Background(), "what is 2+2?")
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestResponder_ModelFailure(t *testing.T) {
	m := &fakeToolModel{err: errors.New("503 service unavailable")}
	r := newTestResponder(t, m, schema.ToolChoiceForced)

	_, err := r.Respond(context.Background(), "what is 2+2?")
	require.Error(t, err)
	assert.True(t, errx.IsExternal(err))
}

func TestResponder_IndependentRuns(t *testing.T) {
	m := &fakeToolModel{command: "2**10", answer: "%s"}
	r := newTestResponder(t, m, "")

	for i := 0; i < 3; i++ {
		out, err := r.Respond(context.Background(), "two to the tenth")
		require.NoError(t, err)
		assert.Equal(t, "1024", out)
	}
	// each run starts a fresh history: prompt + query only
	assert.Len(t, m.inputs[4], 2)
}

func TestBuildResponder_Validation(t *testing.T) {
	_, err := BuildResponder(context.Background(), nil)
	assert.Error(t, err)
	_, err = BuildResponder(context.Background(), &ResponderConfig{})
	assert.Error(t, err)
}
