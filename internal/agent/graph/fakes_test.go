package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/mathlingo-core/server/internal/agent/graph/tools"
	"github.com/mathlingo-core/server/internal/agent/model"
)

// fakeToolModel asks for the calculator on the first call and answers with
// the tool result on the second.
type fakeToolModel struct {
	mu sync.Mutex

	command    string
	answer     string // formatted with the last tool result
	omitID     bool
	noToolCall bool
	err        error

	calls   int
	choices []schema.ToolChoice
	inputs  [][]*schema.Message
	bound   []*schema.ToolInfo
}

func (m *fakeToolModel) Generate(_ context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.inputs = append(m.inputs, input)
	o := einomodel.GetCommonOptions(&einomodel.Options{}, opts...)
	if o.ToolChoice != nil {
		m.choices = append(m.choices, *o.ToolChoice)
	}
	if m.err != nil {
		return nil, m.err
	}

	last := input[len(input)-1]
	if last.Role != schema.Tool {
		if m.noToolCall {
			return schema.AssistantMessage(m.answer, nil), nil
		}
		id := "call_abc"
		if m.omitID {
			id = ""
		}
		return schema.AssistantMessage("", []schema.ToolCall{{
			ID:   id,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      tools.ToolCalculator,
				Arguments: fmt.Sprintf(`{"command":%q}`, m.command),
			},
		}}), nil
	}

	if m.answer == "" {
		return schema.AssistantMessage("", nil), nil
	}
	return schema.AssistantMessage(fmt.Sprintf(m.answer, last.Content), nil), nil
}

func (m *fakeToolModel) Stream(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func (m *fakeToolModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bound = tools
	return m, nil
}

type stubDetector struct {
	lang model.Language
	err  error
}

func (s stubDetector) Detect(context.Context, string) (model.Language, error) {
	return s.lang, s.err
}

type stubClassifier struct {
	mu     sync.Mutex
	isMath bool
	err    error
	seen   []string
}

func (s *stubClassifier) IsMathRelated(_ context.Context, text string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, text)
	return s.isMath, s.err
}

// stubTranslator maps known texts and marks anything else with the target.
type stubTranslator struct {
	mu      sync.Mutex
	known   map[string]string
	err     error
	failOn  model.Language
	targets []model.Language
}

func (s *stubTranslator) Translate(_ context.Context, text string, target model.Language) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = append(s.targets, target)
	if s.err != nil && (s.failOn == "" || s.failOn == target) {
		return "", s.err
	}
	if out, ok := s.known[text]; ok {
		return out, nil
	}
	return "[" + string(target) + "] " + text, nil
}

type stubResponder struct {
	answer string
	err    error
	block  bool
}

func (s stubResponder) Respond(ctx context.Context, query string) (string, error) {
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.err != nil {
		return "", s.err
	}
	if s.answer != "" {
		return s.answer, nil
	}
	return "answer to " + strings.TrimSpace(query), nil
}
