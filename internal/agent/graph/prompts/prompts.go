package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/mathlingo-core/server/internal/agent/graph/tools"
	"github.com/mathlingo-core/server/internal/agent/model"
	"github.com/mathlingo-core/server/internal/calculator"
)

var (
	//go:embed template/language_prompt.txt
	languageSystemPrompt string

	//go:embed template/classifier_prompt.txt
	classifierSystemPrompt string

	//go:embed template/responder_prompt.txt
	responderSystemPrompt string

	//go:embed template/translator_prompt.txt
	translatorSystemPrompt string
)

// RenderLanguageDetection renders the language detection messages via the
// Eino prompt component (emits prompt callbacks).
func RenderLanguageDetection(ctx context.Context, text string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(languageSystemPrompt),
		schema.UserMessage("What language is this text? '{text}'"),
	)
	return format(ctx, "language prompt", tpl, map[string]any{"text": text})
}

// RenderMathClassification renders the yes/no math relevance messages.
func RenderMathClassification(ctx context.Context, text string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(classifierSystemPrompt),
		schema.UserMessage("Is this message math-related? '{text}'"),
	)
	return format(ctx, "classifier prompt", tpl, map[string]any{"text": text})
}

// RenderResponder renders the system prompt describing the calculator tool
// followed by the user's query.
func RenderResponder(ctx context.Context, query string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(responderSystemPrompt),
		schema.UserMessage("{{.Query}}"),
	)
	vars := map[string]any{
		"ToolName":      tools.ToolCalculator,
		"Language":      model.LanguageEnglish.DisplayName(),
		"FailureMarker": calculator.FailureMarker,
		"Query":         query,
	}
	return format(ctx, "responder prompt", tpl, vars)
}

// RenderTranslation renders the instruction used by the LLM translator.
func RenderTranslation(ctx context.Context, text string, target model.Language) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(translatorSystemPrompt),
		schema.UserMessage("{{.Text}}"),
	)
	vars := map[string]any{
		"TargetLanguage": target.DisplayName(),
		"Text":           text,
	}
	return format(ctx, "translation prompt", tpl, vars)
}

func format(ctx context.Context, name string, tpl prompt.ChatTemplate, vars map[string]any) ([]*schema.Message, error) {
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("%s render: %w", name, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%s render: empty result", name)
	}
	return msgs, nil
}
