package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/mathlingo-core/server/internal/agent/model"
	logx "github.com/mathlingo-core/server/pkg/logger"
)

type turnLambda func(ctx context.Context, turn *model.ConversationTurn) error

// stage wraps a pipeline step into a lambda node that passes the turn along.
func stage(node string, fn turnLambda) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, turn *model.ConversationTurn) (*model.ConversationTurn, error) {
		if turn == nil {
			return nil, fmt.Errorf("%s: nil conversation turn", node)
		}
		if err := traced(ctx, node, turn, func(ctx context.Context) error { return fn(ctx, turn) }); err != nil {
			return nil, err
		}
		return turn, nil
	})
}

// NewDetectLanguageNode detects the input language and records the branch.
func NewDetectLanguageNode(detector model.LanguageDetector) *compose.Lambda {
	return stage(NodeDetectLanguage, func(ctx context.Context, turn *model.ConversationTurn) error {
		if err := turn.Enter(model.StageDetectLanguage); err != nil {
			return err
		}
		lang, err := detector.Detect(ctx, turn.RawText)
		if err != nil {
			return fmt.Errorf("detect language: %w", err)
		}
		turn.DetectedLanguage = lang.Routed()

		branch := model.StageBranchDefault
		if turn.NeedsTranslation() {
			branch = model.StageBranchArabic
		} else {
			turn.EnglishText = turn.RawText
		}

		logx.Debug().
			Str("turn_id", turn.ID).
			Str("stage", string(model.StageDetectLanguage)).
			Str("language", string(turn.DetectedLanguage)).
			Msg("Language detected")
		return turn.Enter(branch)
	})
}

// NewLanguageCondition routes Arabic turns through inbound translation.
func NewLanguageCondition() func(context.Context, *model.ConversationTurn) (string, error) {
	return func(ctx context.Context, turn *model.ConversationTurn) (string, error) {
		if turn.NeedsTranslation() {
			return NodeTranslateInbound, nil
		}
		return NodeClassify, nil
	}
}

// NewTranslateInboundNode translates Arabic input to English.
func NewTranslateInboundNode(translator model.Translator) *compose.Lambda {
	return stage(NodeTranslateInbound, func(ctx context.Context, turn *model.ConversationTurn) error {
		english, err := translator.Translate(ctx, turn.RawText, model.LanguageEnglish)
		if err != nil {
			return fmt.Errorf("translate inbound: %w", err)
		}
		turn.EnglishText = english

		logx.Debug().
			Str("turn_id", turn.ID).
			Str("stage", string(model.StageBranchArabic)).
			Str("english_text", english).
			Msg("Input translated to English")
		return nil
	})
}

// NewClassifyNode asks whether the English text is a math question.
func NewClassifyNode(classifier model.MathClassifier) *compose.Lambda {
	return stage(NodeClassify, func(ctx context.Context, turn *model.ConversationTurn) error {
		if err := turn.Enter(model.StageClassify); err != nil {
			return err
		}
		isMath, err := classifier.IsMathRelated(ctx, turn.EnglishText)
		if err != nil {
			return fmt.Errorf("classify: %w", err)
		}
		turn.IsMath = isMath

		logx.Debug().
			Str("turn_id", turn.ID).
			Str("stage", string(model.StageClassify)).
			Bool("is_math", isMath).
			Msg("Math relevance classified")
		return nil
	})
}

// NewMathCondition routes math questions to the responder and the rest to the refusal.
func NewMathCondition() func(context.Context, *model.ConversationTurn) (string, error) {
	return func(ctx context.Context, turn *model.ConversationTurn) (string, error) {
		if turn.IsMath {
			return NodeEvaluate, nil
		}
		return NodeRefuse, nil
	}
}

// NewEvaluateNode answers the question with the tool-augmented responder.
// English turns are finished here.
func NewEvaluateNode(responder model.Responder) *compose.Lambda {
	return stage(NodeEvaluate, func(ctx context.Context, turn *model.ConversationTurn) error {
		if err := turn.Enter(model.StageEvaluate); err != nil {
			return err
		}
		answer, err := responder.Respond(ctx, turn.EnglishText)
		if err != nil {
			return fmt.Errorf("respond: %w", err)
		}
		if err := turn.SetAnswer(answer); err != nil {
			return err
		}

		logx.Debug().
			Str("turn_id", turn.ID).
			Str("stage", string(model.StageEvaluate)).
			Int("answer_len", len(answer)).
			Msg("Answer evaluated")

		if turn.NeedsTranslation() {
			return nil
		}
		return turn.Finalize(answer)
	})
}

// NewTranslateBackCondition sends Arabic turns to the back translation.
func NewTranslateBackCondition() func(context.Context, *model.ConversationTurn) (string, error) {
	return func(ctx context.Context, turn *model.ConversationTurn) (string, error) {
		if turn.Finalized() {
			return compose.END, nil
		}
		return NodeTranslateBack, nil
	}
}

// NewTranslateBackNode translates the English answer to Arabic.
func NewTranslateBackNode(translator model.Translator) *compose.Lambda {
	return stage(NodeTranslateBack, func(ctx context.Context, turn *model.ConversationTurn) error {
		if err := turn.Enter(model.StageTranslateBack); err != nil {
			return err
		}
		answer, ok := turn.Answer()
		if !ok {
			return fmt.Errorf("translate back: no evaluated answer")
		}
		arabic, err := translator.Translate(ctx, answer, model.LanguageArabic)
		if err != nil {
			return fmt.Errorf("translate back: %w", err)
		}

		logx.Debug().
			Str("turn_id", turn.ID).
			Str("stage", string(model.StageTranslateBack)).
			Msg("Answer translated to Arabic")
		return turn.Finalize(arabic)
	})
}

// NewRefuseNode finishes non-math turns with the localised refusal.
func NewRefuseNode(cfg model.PipelineConfig) *compose.Lambda {
	return stage(NodeRefuse, func(ctx context.Context, turn *model.ConversationTurn) error {
		if err := turn.Enter(model.StageRefuse); err != nil {
			return err
		}
		logx.Debug().
			Str("turn_id", turn.ID).
			Str("stage", string(model.StageRefuse)).
			Str("language", string(turn.DetectedLanguage)).
			Msg("Not a math question, refusing")
		return turn.Finalize(cfg.Refusal(turn.DetectedLanguage))
	})
}
