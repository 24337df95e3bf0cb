package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// ToolCalculator is the name the model uses to call the expression evaluator.
const ToolCalculator = "sympy_calculator"

// GetMathTools returns the tools registered with the responder model.
func GetMathTools() []tool.BaseTool {
	return []tool.BaseTool{
		createCalculatorTool(),
	}
}

// GetToolInfos collects the ToolInfo of every tool for model binding.
func GetToolInfos(ctx context.Context, tools []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
