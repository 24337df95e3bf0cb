package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// ================ Config ================

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	TranslatorOpenL = "openl"
	TranslatorLLM   = "llm"
)

type LLMConfig struct {
	Provider string `envconfig:"LLM_PROVIDER" default:"openai"`
	APIKey   string `envconfig:"LLM_API_KEY" required:"true"`
	BaseURL  string `envconfig:"LLM_BASE_URL"`
}

// ClassifierModelConfig configures the model behind language detection,
// math classification and LLM translation.
type ClassifierModelConfig struct {
	Model       string  `envconfig:"CLASSIFIER_MODEL" default:"gpt-3.5-turbo"`
	MaxTokens   int     `envconfig:"CLASSIFIER_MAX_TOKENS" default:"256"`
	Temperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0"`
}

type ResponderModelConfig struct {
	Model       string  `envconfig:"RESPONDER_MODEL" default:"gpt-3.5-turbo"`
	MaxTokens   int     `envconfig:"RESPONDER_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"RESPONDER_TEMPERATURE" default:"0"`
	// ToolChoice is any (forced), auto or none.
	ToolChoice string `envconfig:"RESPONDER_TOOL_CHOICE" default:"any"`
}

// ToolChoiceMode maps the configured tool choice to eino's schema value.
func (c ResponderModelConfig) ToolChoiceMode() (schema.ToolChoice, error) {
	switch strings.ToLower(strings.TrimSpace(c.ToolChoice)) {
	case "", "any", "required", "forced":
		return schema.ToolChoiceForced, nil
	case "auto":
		return schema.ToolChoiceAllowed, nil
	case "none":
		return schema.ToolChoiceForbidden, nil
	}
	return "", fmt.Errorf("unknown tool choice %q (want any, auto or none)", c.ToolChoice)
}

type TranslatorConfig struct {
	Provider string        `envconfig:"TRANSLATOR_PROVIDER" default:"openl"`
	Endpoint string        `envconfig:"TRANSLATOR_ENDPOINT" default:"https://openl-translate.p.rapidapi.com/translate"`
	Host     string        `envconfig:"TRANSLATOR_HOST" default:"openl-translate.p.rapidapi.com"`
	APIKey   string        `envconfig:"TRANSLATOR_API_KEY"`
	Timeout  time.Duration `envconfig:"TRANSLATOR_TIMEOUT" default:"15s"`
}

type PipelineConfig struct {
	RequestTimeout time.Duration `envconfig:"PIPELINE_REQUEST_TIMEOUT" default:"60s"`
	RefusalEnglish string        `envconfig:"PIPELINE_REFUSAL_EN"`
	RefusalArabic  string        `envconfig:"PIPELINE_REFUSAL_AR"`
	Apology        string        `envconfig:"PIPELINE_APOLOGY"`
}

const (
	DefaultRefusalEnglish = "Hello! I'm here to assist with math-related questions only. Please let me know how I can help you with mathematics."
	DefaultRefusalArabic  = "مرحباً! أنا مساعد ذكاء اصطناعي متخصص في الرياضيات فقط. يسعدني مساعدتك في أي استفسار رياضي."
	DefaultApology        = "Sorry, something went wrong while processing your request. Please try again later.\nعذراً، حدث خطأ أثناء معالجة طلبك. يرجى المحاولة مرة أخرى لاحقاً."
)

// WithDefaults fills empty reply texts with the built-in ones.
func (c PipelineConfig) WithDefaults() PipelineConfig {
	if strings.TrimSpace(c.RefusalEnglish) == "" {
		c.RefusalEnglish = DefaultRefusalEnglish
	}
	if strings.TrimSpace(c.RefusalArabic) == "" {
		c.RefusalArabic = DefaultRefusalArabic
	}
	if strings.TrimSpace(c.Apology) == "" {
		c.Apology = DefaultApology
	}
	return c
}

// Refusal returns the pre-localised refusal for the routed language.
func (c PipelineConfig) Refusal(lang Language) string {
	if lang.Routed() == LanguageArabic {
		return c.RefusalArabic
	}
	return c.RefusalEnglish
}
