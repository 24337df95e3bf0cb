package classifiers

import (
	"context"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/mathlingo-core/server/internal/agent/graph/prompts"
	"github.com/mathlingo-core/server/internal/agent/model"
)

// MathClassifier answers whether a message is a math question.
type MathClassifier struct {
	oracle *Oracle
}

var _ model.MathClassifier = (*MathClassifier)(nil)

func NewMathClassifier(ctx context.Context, cm einomodel.BaseChatModel, modelName string) (*MathClassifier, error) {
	oracle, err := NewOracle(ctx, "math_classifier", prompts.RenderMathClassification, cm, modelName)
	if err != nil {
		return nil, err
	}
	return &MathClassifier{oracle: oracle}, nil
}

// IsMathRelated is true when the answer contains "yes" in any case.
// Blank text is never math.
func (c *MathClassifier) IsMathRelated(ctx context.Context, text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}
	label, err := c.oracle.Ask(ctx, text)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(label), "yes"), nil
}
