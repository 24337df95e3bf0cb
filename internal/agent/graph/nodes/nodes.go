package nodes

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mathlingo-core/server/internal/agent/graph/prompts"
	"github.com/mathlingo-core/server/internal/agent/model"
	logx "github.com/mathlingo-core/server/pkg/logger"
)

// NewQueryAssemblerPreHandler resets the per-query state.
func NewQueryAssemblerPreHandler() func(context.Context, string, *model.ResponderState) (string, error) {
	return func(ctx context.Context, in string, s *model.ResponderState) (string, error) {
		s.Query = in
		s.History = nil
		s.Invocations = nil
		s.ToolCallIDSeq = 0
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewQueryAssemblerNode renders the responder prompt for the English query.
func NewQueryAssemblerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, query string) ([]*schema.Message, error) {
		return prompts.RenderResponder(ctx, query)
	})
}

// NewToolCallModelPreHandler starts the exchange history with the rendered prompt.
func NewToolCallModelPreHandler() func(context.Context, []*schema.Message, *model.ResponderState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.ResponderState) ([]*schema.Message, error) {
		state.History = append(state.History, in...)
		logx.Debug().Msg("AI thinking...")
		return state.History, nil
	}
}

// NewToolCallModelPostHandler records cost, fills missing tool call IDs and
// appends the assistant turn to the history.
func NewToolCallModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.ResponderState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.ResponderState) (*schema.Message, error) {
		accumulateCost(ctx, out, state, NodeToolCallModel, modelName)
		normalizeToolCallIDs(out, state)
		state.History = append(state.History, out)

		if out != nil && len(out.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
		} else {
			logx.Warn().Msg("Model answered without calling the calculator")
		}
		return out, nil
	}
}

// NewToolExecutorCondition routes to the tool executor when the model asked
// for a tool, otherwise the direct answer ends the exchange.
func NewToolExecutorCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		if input != nil && len(input.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(input.ToolCalls)).Msg("Routing to ToolExecutor")
			return NodeToolExecutor, nil
		}
		logx.Debug().Msg("No tool calls - continuing to end")
		return compose.END, nil
	}
}

// NewToolExecutorPostHandler repairs tool_call_id on results, records each
// invocation and appends the results to the history.
func NewToolExecutorPostHandler() func(context.Context, []*schema.Message, *model.ResponderState) ([]*schema.Message, error) {
	return func(ctx context.Context, out []*schema.Message, state *model.ResponderState) ([]*schema.Message, error) {
		var lastCallID string
		for i := len(state.History) - 1; i >= 0; i-- {
			msg := state.History[i]
			if msg != nil && msg.Role == schema.Assistant && len(msg.ToolCalls) > 0 {
				lastCallID = msg.ToolCalls[0].ID
				break
			}
		}

		for _, msg := range out {
			if msg == nil {
				continue
			}
			if strings.TrimSpace(msg.ToolCallID) == "" {
				msg.ToolCallID = lastCallID
			}
			inv := model.ToolInvocation{
				CallID:   msg.ToolCallID,
				ToolName: msg.ToolName,
				Result:   msg.Content,
			}
			if tc, ok := findToolCall(state.History, msg.ToolCallID); ok {
				inv.ToolName = tc.Function.Name
				inv.Argument = tc.Function.Arguments
			}
			state.Invocations = append(state.Invocations, inv)

			logx.Debug().
				Str("call_id", inv.CallID).
				Str("tool", inv.ToolName).
				Str("argument", inv.Argument).
				Str("result", inv.Result).
				Msg("Tool result")
		}

		state.History = append(state.History, out...)
		return out, nil
	}
}

// NewAnswerModelPreHandler feeds the full exchange to the answering model.
func NewAnswerModelPreHandler() func(context.Context, []*schema.Message, *model.ResponderState) ([]*schema.Message, error) {
	return func(ctx context.Context, _ []*schema.Message, state *model.ResponderState) ([]*schema.Message, error) {
		return state.History, nil
	}
}

// NewAnswerModelPostHandler records cost and falls back to the last tool
// result when the model returns no text.
func NewAnswerModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.ResponderState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.ResponderState) (*schema.Message, error) {
		if out == nil {
			out = schema.AssistantMessage("", nil)
		}
		accumulateCost(ctx, out, state, NodeAnswerModel, modelName)

		if strings.TrimSpace(out.Content) == "" {
			if result, ok := state.LastToolResult(); ok {
				logx.Warn().Msg("Empty final answer, returning the calculator result")
				out.Content = result
			}
		}
		// tools are not executed on this hop
		out.ToolCalls = nil

		state.History = append(state.History, out)
		logx.Debug().Float64("total_cost_usd", state.TotalCostUSD).Msg("AI response ready")
		return out, nil
	}
}

func accumulateCost(ctx context.Context, out *schema.Message, state *model.ResponderState, node, modelName string) {
	cost := RecordUsage(ctx, out, node, modelName)
	if cost == 0 {
		return
	}
	state.TotalCostUSD += cost
	out.Extra["usage_cost_total_usd"] = state.TotalCostUSD
}
