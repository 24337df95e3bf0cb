package nodes

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mathlingo-core/server/internal/agent/model"
)

const tracerName = "github.com/mathlingo-core/server/internal/agent/graph"

// traced runs one pipeline stage inside its own span.
func traced(ctx context.Context, node string, turn *model.ConversationTurn, fn func(ctx context.Context) error) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline."+node,
		trace.WithAttributes(
			attribute.String("pipeline.node", node),
			attribute.String("pipeline.turn_id", turn.ID),
		),
	)
	defer span.End()

	err := fn(ctx)

	span.SetAttributes(
		attribute.String("pipeline.language", string(turn.DetectedLanguage)),
		attribute.Bool("pipeline.is_math", turn.IsMath),
		attribute.Bool("pipeline.translated", turn.NeedsTranslation()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
