package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mathlingo-core/server/internal/agent/graph/classifiers"
	"github.com/mathlingo-core/server/internal/agent/graph/nodes"
	"github.com/mathlingo-core/server/internal/agent/graph/observers"
	"github.com/mathlingo-core/server/internal/agent/model"
	"github.com/mathlingo-core/server/internal/translate"
	logx "github.com/mathlingo-core/server/pkg/logger"
)

// ErrNotFinalized is returned when a run ends without a final reply.
var ErrNotFinalized = errors.New("pipeline ended without a final reply")

// Runner answers one user message with a display-ready reply.
type Runner interface {
	HandleQuery(ctx context.Context, text string) string
	Answer(ctx context.Context, text string) (string, error)
}

// Config holds everything needed to compose the full pipeline end-to-end.
// This is a convenience layer over GraphConfig that also constructs the
// chat models, classifiers, translator and responder.
type Config struct {
	LLM        model.LLMConfig
	Classifier model.ClassifierModelConfig
	Responder  model.ResponderModelConfig
	Translator model.TranslatorConfig
	Pipeline   model.PipelineConfig
}

// GraphConfig holds the collaborators of the routing graph
type GraphConfig struct {
	Detector   model.LanguageDetector
	Classifier model.MathClassifier
	Translator model.Translator
	Responder  model.Responder
	Pipeline   model.PipelineConfig
}

// GraphBuilder handles the construction of the routing graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[*model.ConversationTurn, *model.ConversationTurn]
}

// Pipeline runs the routing state machine for one message at a time. It
// holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	runnable compose.Runnable[*model.ConversationTurn, *model.ConversationTurn]
	cfg      model.PipelineConfig
}

var _ Runner = (*Pipeline)(nil)

// Build composes chat models and every stage collaborator, then the graph.
func Build(ctx context.Context, cfg Config) (*Pipeline, error) {
	toolChoice, err := cfg.Responder.ToolChoiceMode()
	if err != nil {
		return nil, err
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		LLM:        &cfg.LLM,
		Classifier: &cfg.Classifier,
		Responder:  &cfg.Responder,
	})
	if err != nil {
		return nil, err
	}

	detector, err := classifiers.NewLanguageDetector(ctx, cms.Classifier, cms.ClassifierModelName)
	if err != nil {
		return nil, err
	}
	classifier, err := classifiers.NewMathClassifier(ctx, cms.Classifier, cms.ClassifierModelName)
	if err != nil {
		return nil, err
	}
	translator, err := translate.New(ctx, cfg.Translator, cms.Classifier, cms.ClassifierModelName)
	if err != nil {
		return nil, err
	}
	responder, err := BuildResponder(ctx, &ResponderConfig{
		Model:      cms.Responder,
		ModelName:  cms.ResponderModelName,
		ToolChoice: toolChoice,
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := BuildPipeline(ctx, &GraphConfig{
		Detector:   detector,
		Classifier: classifier,
		Translator: translator,
		Responder:  responder,
		Pipeline:   cfg.Pipeline,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Pipeline built successfully")
	return pipeline, nil
}

// BuildPipeline constructs and compiles the routing graph
func BuildPipeline(ctx context.Context, config *GraphConfig) (*Pipeline, error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Detector == nil || config.Classifier == nil || config.Translator == nil || config.Responder == nil {
		return nil, fmt.Errorf("pipeline collaborators are not properly initialized")
	}
	config.Pipeline = config.Pipeline.WithDefaults()

	builder := &GraphBuilder{
		config: config,
		graph:  compose.NewGraph[*model.ConversationTurn, *model.ConversationTurn](),
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
	return &Pipeline{runnable: runnable, cfg: config.Pipeline}, nil
}

// addNodes adds all stage nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeDetectLanguage, nodes.NewDetectLanguageNode(b.config.Detector))
	b.graph.AddLambdaNode(nodes.NodeTranslateInbound, nodes.NewTranslateInboundNode(b.config.Translator))
	b.graph.AddLambdaNode(nodes.NodeClassify, nodes.NewClassifyNode(b.config.Classifier))
	b.graph.AddLambdaNode(nodes.NodeEvaluate, nodes.NewEvaluateNode(b.config.Responder))
	b.graph.AddLambdaNode(nodes.NodeRefuse, nodes.NewRefuseNode(b.config.Pipeline))
	b.graph.AddLambdaNode(nodes.NodeTranslateBack, nodes.NewTranslateBackNode(b.config.Translator))
}

// addEdges creates the unconditional transitions
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeDetectLanguage},
		{nodes.NodeTranslateInbound, nodes.NodeClassify},
		{nodes.NodeRefuse, compose.END},
		{nodes.NodeTranslateBack, compose.END},
	}
	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates the language, math and translate-back routing
func (b *GraphBuilder) addBranches() error {
	branches := []struct {
		from string
		name string
		cond func(context.Context, *model.ConversationTurn) (string, error)
		ends map[string]bool
	}{
		{
			from: nodes.NodeDetectLanguage,
			name: "language",
			cond: nodes.NewLanguageCondition(),
			ends: map[string]bool{nodes.NodeTranslateInbound: true, nodes.NodeClassify: true},
		},
		{
			from: nodes.NodeClassify,
			name: "math",
			cond: nodes.NewMathCondition(),
			ends: map[string]bool{nodes.NodeEvaluate: true, nodes.NodeRefuse: true},
		},
		{
			from: nodes.NodeEvaluate,
			name: "translate back",
			cond: nodes.NewTranslateBackCondition(),
			ends: map[string]bool{nodes.NodeTranslateBack: true, compose.END: true},
		},
	}

	for _, br := range branches {
		if err := b.graph.AddBranch(br.from, compose.NewGraphBranch(br.cond, br.ends)); err != nil {
			logx.Error().Err(err).Str("branch", br.name).Msg("Error adding branch")
			return fmt.Errorf("error adding %s branch: %w", br.name, err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.ConversationTurn, *model.ConversationTurn], error) {
	// at most five stages run per request
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("pipeline"),
		compose.WithMaxRunSteps(10),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

// Run executes one pass of the state machine and returns the finished turn.
// On error the partially filled turn is returned with it.
func (p *Pipeline) Run(ctx context.Context, text string) (*model.ConversationTurn, error) {
	turn := model.NewConversationTurn(uuid.NewString(), text)

	ctx, span := otel.Tracer("github.com/mathlingo-core/server/internal/agent/graph").
		Start(ctx, "pipeline.handle_query")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline.turn_id", turn.ID))

	out, err := p.runnable.Invoke(ctx, turn, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err == nil && (out == nil || !out.Finalized()) {
		err = ErrNotFinalized
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return turn, err
	}

	span.SetAttributes(
		attribute.String("pipeline.language", string(out.DetectedLanguage)),
		attribute.Bool("pipeline.is_math", out.IsMath),
	)
	return out, nil
}

// HandleQuery always returns a display-ready reply: the answer, the
// localised refusal, or the apology when any stage failed.
func (p *Pipeline) HandleQuery(ctx context.Context, text string) string {
	reply, _ := p.Answer(ctx, text)
	return reply
}

// Answer is HandleQuery that also reports the error behind an apology, so
// callers can tell a failed run from a real reply.
func (p *Pipeline) Answer(ctx context.Context, text string) (string, error) {
	if p.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		defer cancel()
	}

	turn, err := p.Run(ctx, text)
	if err != nil {
		logx.Error().
			Err(err).
			Str("turn_id", turn.ID).
			Str("language", string(turn.DetectedLanguage)).
			Interface("stages", turn.Stages).
			Msg("Pipeline failed, replying with apology")
		return p.cfg.Apology, err
	}

	logx.Info().
		Str("turn_id", turn.ID).
		Str("language", string(turn.DetectedLanguage)).
		Bool("is_math", turn.IsMath).
		Interface("stages", turn.Stages).
		Msg("Query handled")
	return turn.FinalReply, nil
}
