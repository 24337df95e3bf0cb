package model

import (
	"github.com/cloudwego/eino/schema"
)

// ResponderState stores per-invocation state for the responder graph.
// It is registered as graph local state via compose.WithGenLocalState and is
// read and written only inside state handlers or compose.ProcessState.
type ResponderState struct {
	Query         string
	History       []*schema.Message // tool-call exchange, appended in order
	ToolCallIDSeq int               // synthesises tool_call_id when the provider omits it
	Invocations   []ToolInvocation

	// Accumulated LLM cost (USD) across the model calls of this query
	TotalCostUSD float64
}

// LastToolResult returns the most recent tool result, if any.
func (s *ResponderState) LastToolResult() (string, bool) {
	if len(s.Invocations) == 0 {
		return "", false
	}
	return s.Invocations[len(s.Invocations)-1].Result, true
}

// ToolInvocation is one calculator call made while answering a query.
type ToolInvocation struct {
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name"`
	Argument string `json:"argument"`
	Result   string `json:"result"`
}
