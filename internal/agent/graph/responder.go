package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mathlingo-core/server/internal/agent/graph/nodes"
	"github.com/mathlingo-core/server/internal/agent/graph/tools"
	"github.com/mathlingo-core/server/internal/agent/model"
	errx "github.com/mathlingo-core/server/internal/core/error"
	logx "github.com/mathlingo-core/server/pkg/logger"
)

// ErrEmptyAnswer is returned when the model produced neither text nor a tool result.
var ErrEmptyAnswer = errors.New("responder produced an empty answer")

// ResponderConfig holds what the tool-augmented responder needs.
type ResponderConfig struct {
	// Model is the responder chat model before tools are bound.
	Model      einomodel.ToolCallingChatModel
	ModelName  string
	ToolChoice schema.ToolChoice
}

// ResponderBuilder handles the construction of the two-hop tool exchange graph
type ResponderBuilder struct {
	config *ResponderConfig
	bound  einomodel.ToolCallingChatModel
	graph  *compose.Graph[string, *schema.Message]
}

// Responder answers English math questions through the calculator tool.
type Responder struct {
	runnable   compose.Runnable[string, *schema.Message]
	toolChoice schema.ToolChoice
}

var _ model.Responder = (*Responder)(nil)

// BuildResponder binds the calculator to the model and compiles the exchange graph.
func BuildResponder(ctx context.Context, config *ResponderConfig) (*Responder, error) {
	if config == nil || config.Model == nil {
		return nil, fmt.Errorf("responder model is nil")
	}
	if config.ToolChoice == "" {
		config.ToolChoice = schema.ToolChoiceForced
	}

	builder := &ResponderBuilder{
		config: config,
		graph: compose.NewGraph[string, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.ResponderState {
				return &model.ResponderState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}
	builder.addNodes()
	builder.addEdges()
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}
	return &Responder{runnable: runnable, toolChoice: config.ToolChoice}, nil
}

// setupTools binds the math tools to the responder model and adds the tools node
func (b *ResponderBuilder) setupTools(ctx context.Context) error {
	mathTools := tools.GetMathTools()
	toolInfos, err := tools.GetToolInfos(ctx, mathTools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get tool infos")
		return fmt.Errorf("failed to get tool infos: %w", err)
	}

	bound, err := b.config.Model.WithTools(toolInfos)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to responder model")
		return fmt.Errorf("failed to bind tools to responder model: %w", err)
	}
	b.bound = bound

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:                mathTools,
		ExecuteSequentially:  true,
		UnknownToolsHandler:  tools.HandleUnknownTool,
		ToolArgumentsHandler: tools.SanitizeArguments,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	return b.graph.AddToolsNode(nodes.NodeToolExecutor, toolsNode,
		compose.WithStatePostHandler(nodes.NewToolExecutorPostHandler()),
	)
}

func (b *ResponderBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeQueryAssembler,
		nodes.NewQueryAssemblerNode(),
		compose.WithStatePreHandler(nodes.NewQueryAssemblerPreHandler()),
	)

	b.graph.AddChatModelNode(nodes.NodeToolCallModel, b.bound,
		compose.WithStatePreHandler(nodes.NewToolCallModelPreHandler()),
		compose.WithStatePostHandler(nodes.NewToolCallModelPostHandler(b.config.ModelName)),
	)

	b.graph.AddChatModelNode(nodes.NodeAnswerModel, b.bound,
		compose.WithStatePreHandler(nodes.NewAnswerModelPreHandler()),
		compose.WithStatePostHandler(nodes.NewAnswerModelPostHandler(b.config.ModelName)),
	)
}

func (b *ResponderBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeQueryAssembler},
		{nodes.NodeQueryAssembler, nodes.NodeToolCallModel},
		{nodes.NodeToolExecutor, nodes.NodeAnswerModel},
		{nodes.NodeAnswerModel, compose.END},
	}
	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

func (b *ResponderBuilder) addBranches() error {
	toolBranch := compose.NewGraphBranch(
		nodes.NewToolExecutorCondition(),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			compose.END:            true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeToolCallModel, toolBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding tool branch")
		return fmt.Errorf("error adding tool branch: %w", err)
	}
	return nil
}

func (b *ResponderBuilder) compile(ctx context.Context) (compose.Runnable[string, *schema.Message], error) {
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("responder"),
		compose.WithMaxRunSteps(10),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling responder graph")
		return nil, fmt.Errorf("error compiling responder graph: %w", err)
	}

	logx.Debug().Msg("Responder graph compiled successfully")
	return runnable, nil
}

// Respond runs the two-hop exchange. The first model call must use the
// calculator (per the configured tool choice); the answering call may not.
func (r *Responder) Respond(ctx context.Context, query string) (string, error) {
	out, err := r.runnable.Invoke(ctx, query,
		compose.WithChatModelOption(einomodel.WithToolChoice(r.toolChoice)).
			DesignateNode(nodes.NodeToolCallModel),
		compose.WithChatModelOption(einomodel.WithToolChoice(schema.ToolChoiceForbidden)).
			DesignateNode(nodes.NodeAnswerModel),
	)
	if err != nil {
		if errx.IsExternal(err) {
			return "", err
		}
		return "", errx.WrapCompletion(err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", ErrEmptyAnswer
	}
	return out.Content, nil
}
