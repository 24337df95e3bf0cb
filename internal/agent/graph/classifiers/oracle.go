package classifiers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mathlingo-core/server/internal/agent/graph/nodes"
	errx "github.com/mathlingo-core/server/internal/core/error"
	logx "github.com/mathlingo-core/server/pkg/logger"
)

// RenderFunc turns the text under classification into the prompt messages.
type RenderFunc func(ctx context.Context, text string) ([]*schema.Message, error)

// Oracle asks a chat model for a short label about a piece of text.
// Callers normalise the raw label into a closed set.
type Oracle struct {
	name      string
	modelName string
	runnable  compose.Runnable[string, *schema.Message]
}

// NewOracle compiles a prompt -> chat model chain.
func NewOracle(ctx context.Context, name string, render RenderFunc, cm einomodel.BaseChatModel, modelName string) (*Oracle, error) {
	if cm == nil {
		return nil, fmt.Errorf("%s: chat model is nil", name)
	}
	if render == nil {
		return nil, fmt.Errorf("%s: render func is nil", name)
	}

	chain := compose.NewChain[string, *schema.Message]()
	chain.
		AppendLambda(compose.InvokableLambda(func(ctx context.Context, text string) ([]*schema.Message, error) {
			return render(ctx, text)
		}), compose.WithNodeName(name+"_prompt")).
		AppendChatModel(cm, compose.WithNodeName(name+"_model"))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		logx.Error().Err(err).Str("oracle", name).Msg("Error compiling oracle chain")
		return nil, fmt.Errorf("compile %s chain: %w", name, err)
	}

	return &Oracle{name: name, modelName: modelName, runnable: runnable}, nil
}

// Ask returns the model's raw answer for text. Completion failures are
// returned as external-call errors.
func (o *Oracle) Ask(ctx context.Context, text string) (string, error) {
	out, err := o.runnable.Invoke(ctx, text)
	if err != nil {
		logx.Error().Err(err).Str("oracle", o.name).Msg("Completion call failed")
		return "", errx.WrapCompletion(err)
	}
	if out == nil {
		return "", errx.WrapCompletion(errors.New("empty completion"))
	}

	nodes.RecordUsage(ctx, out, o.name, o.modelName)

	label := strings.TrimSpace(out.Content)
	logx.Debug().Str("oracle", o.name).Str("label", label).Msg("Oracle answered")
	return label, nil
}
