package translate

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/mathlingo-core/server/internal/agent/graph/classifiers"
	"github.com/mathlingo-core/server/internal/agent/graph/prompts"
	"github.com/mathlingo-core/server/internal/agent/model"
	errx "github.com/mathlingo-core/server/internal/core/error"
)

// LLMTranslator translates through the configured chat model.
type LLMTranslator struct {
	toEnglish *classifiers.Oracle
	toArabic  *classifiers.Oracle
}

var _ model.Translator = (*LLMTranslator)(nil)

func NewLLMTranslator(ctx context.Context, cm einomodel.BaseChatModel, modelName string) (*LLMTranslator, error) {
	toEnglish, err := classifiers.NewOracle(ctx, "translate_en", renderFor(model.LanguageEnglish), cm, modelName)
	if err != nil {
		return nil, err
	}
	toArabic, err := classifiers.NewOracle(ctx, "translate_ar", renderFor(model.LanguageArabic), cm, modelName)
	if err != nil {
		return nil, err
	}
	return &LLMTranslator{toEnglish: toEnglish, toArabic: toArabic}, nil
}

func renderFor(target model.Language) classifiers.RenderFunc {
	return func(ctx context.Context, text string) ([]*schema.Message, error) {
		return prompts.RenderTranslation(ctx, text, target)
	}
}

func (t *LLMTranslator) Translate(ctx context.Context, text string, target model.Language) (string, error) {
	oracle := t.toEnglish
	if target.Routed() == model.LanguageArabic {
		oracle = t.toArabic
	}

	out, err := oracle.Ask(ctx, text)
	if err != nil {
		return "", errx.WrapTranslation(err)
	}
	if strings.TrimSpace(out) == "" {
		return "", errx.WrapTranslation(fmt.Errorf("empty translation"))
	}
	return out, nil
}
