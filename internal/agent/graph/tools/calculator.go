package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/mathlingo-core/server/internal/calculator"
	logx "github.com/mathlingo-core/server/pkg/logger"
)

// ===================================
// Calculator Tool
// ===================================

const calculatorDesc = `A tool to evaluate or simplify Python-style math expressions, perform symbolic differentiation and integration, and handle basic arithmetic and common functions (sin, cos, exp, log).

Supported usage examples:
  - "integrate(x**2 + 3*x, x)"
  - "integrate(sin(x), x, 0, pi)"
  - "diff(exp(x) * x, x)"
  - "2+3*4"
  - "sin(pi/4) + cos(pi/4)"`

type CalculatorInput struct {
	Command string `json:"command"`
}

// calculatorTool returns the evaluator's text verbatim, so it implements
// tool.InvokableTool directly instead of JSON-encoding a typed output.
type calculatorTool struct {
	info *schema.ToolInfo
}

func createCalculatorTool() tool.InvokableTool {
	return &calculatorTool{
		info: &schema.ToolInfo{
			Name: ToolCalculator,
			Desc: calculatorDesc,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"command": {
					Type:     "string",
					Desc:     "One math expression or a diff(...)/integrate(...) call, e.g. \"diff(sin(x)*cos(x), x)\".",
					Required: true,
				},
			}),
		},
	}
}

func (c *calculatorTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return c.info, nil
}

// InvokableRun never fails: malformed arguments are reported to the model
// with the calculator's failure marker.
func (c *calculatorTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in CalculatorInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &in); err != nil {
		logx.Warn().Err(err).Str("arguments", argumentsInJSON).Msg("calculator arguments are not valid JSON")
		return fmt.Sprintf("%s Invalid tool arguments: %v", calculator.FailureMarker, err), nil
	}

	res := calculator.EvaluateResult(in.Command)
	logx.Debug().
		Str("command", in.Command).
		Str("kind", res.Kind.String()).
		Str("result", res.Text).
		Msg("calculator evaluated")
	return res.Text, nil
}
