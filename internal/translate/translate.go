// Package translate provides the translators used on the Arabic branch.
package translate

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/mathlingo-core/server/internal/agent/model"
	logx "github.com/mathlingo-core/server/pkg/logger"
)

// New returns the translator selected by cfg.Provider. The chat model is
// only used by the llm provider.
func New(ctx context.Context, cfg model.TranslatorConfig, cm einomodel.BaseChatModel, modelName string) (model.Translator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case model.TranslatorOpenL, "":
		logx.Debug().Str("endpoint", cfg.Endpoint).Msg("Using OpenL translator")
		return NewOpenLClient(cfg)
	case model.TranslatorLLM:
		logx.Debug().Str("model", modelName).Msg("Using LLM translator")
		return NewLLMTranslator(ctx, cm, modelName)
	default:
		return nil, fmt.Errorf("unknown translator provider %q", cfg.Provider)
	}
}
