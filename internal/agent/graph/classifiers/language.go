package classifiers

import (
	"context"
	"strings"
	"unicode"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/mathlingo-core/server/internal/agent/graph/prompts"
	"github.com/mathlingo-core/server/internal/agent/model"
	logx "github.com/mathlingo-core/server/pkg/logger"
)

// LanguageDetector labels text as English or Arabic.
type LanguageDetector struct {
	oracle *Oracle
}

var _ model.LanguageDetector = (*LanguageDetector)(nil)

func NewLanguageDetector(ctx context.Context, cm einomodel.BaseChatModel, modelName string) (*LanguageDetector, error) {
	oracle, err := NewOracle(ctx, "language_detector", prompts.RenderLanguageDetection, cm, modelName)
	if err != nil {
		return nil, err
	}
	return &LanguageDetector{oracle: oracle}, nil
}

// Detect returns LanguageArabic only when the model answers "ar". Text
// without any letters is English and costs no model call.
func (d *LanguageDetector) Detect(ctx context.Context, text string) (model.Language, error) {
	if !hasLetters(text) {
		logx.Debug().Msg("No language signal, defaulting to English")
		return model.LanguageEnglish, nil
	}

	label, err := d.oracle.Ask(ctx, text)
	if err != nil {
		return "", err
	}

	lang := model.ParseLanguage(label)
	if lang == model.LanguageUnknown {
		logx.Debug().Str("label", label).Msg("Unrecognised language label, defaulting to English")
	}
	return lang.Routed(), nil
}

func hasLetters(text string) bool {
	return strings.IndexFunc(text, unicode.IsLetter) >= 0
}
