package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	logx "github.com/mathlingo-core/server/pkg/logger"
)

// commandAliases are argument names models use instead of "command".
var commandAliases = []string{"expression", "expr", "query", "input"}

// SanitizeArguments normalises tool arguments before execution. It never
// fails; anything it cannot interpret is passed through unchanged.
func SanitizeArguments(_ context.Context, name, arguments string) (string, error) {
	if name != ToolCalculator {
		return arguments, nil
	}

	raw := strings.TrimSpace(arguments)
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		// bare expression instead of a JSON object
		if raw == "" || strings.HasPrefix(raw, "{") {
			return arguments, nil
		}
		return marshalCommand(cleanCommand(raw), arguments), nil
	}

	v, ok := m["command"]
	if !ok {
		for _, alias := range commandAliases {
			if v, ok = m[alias]; ok {
				break
			}
		}
	}
	if !ok || v == nil {
		return arguments, nil
	}

	var cmd string
	switch vv := v.(type) {
	case string:
		cmd = vv
	default:
		// numbers and other scalars arrive decoded as float64/bool
		cmd = fmt.Sprint(vv)
	}
	return marshalCommand(cleanCommand(cmd), arguments), nil
}

func marshalCommand(cmd, fallback string) string {
	b, err := json.Marshal(CalculatorInput{Command: cmd})
	if err != nil {
		return fallback
	}
	return string(b)
}

// cleanCommand strips code fences, surrounding quotes and whitespace.
func cleanCommand(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "()+-*/^") {
			s = s[i+1:] // language tag line
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.TrimSpace(s)
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '`' && last == '`') || (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}
	return s
}

// HandleUnknownTool answers hallucinated or malformed tool calls with a
// compact structured message so the model can proceed.
func HandleUnknownTool(_ context.Context, name, input string) (string, error) {
	logx.Warn().
		Str("tool_name", name).
		Str("arguments", input).
		Msg("Unknown or invalid tool call; returning fallback result")
	return fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"available\":[%q]}", name, ToolCalculator), nil
}
