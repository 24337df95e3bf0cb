package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/mathlingo-core/server/internal/agent/model"
	logx "github.com/mathlingo-core/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	LLM        *model.LLMConfig
	Classifier *model.ClassifierModelConfig
	Responder  *model.ResponderModelConfig
}

// ChatModels holds the classifier and responder chat models
type ChatModels struct {
	Classifier          einomodel.ToolCallingChatModel
	Responder           einomodel.ToolCallingChatModel
	ClassifierModelName string
	ResponderModelName  string
}

// NewChatModels creates the classifier and responder models for the configured provider.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.LLM == nil || config.Classifier == nil || config.Responder == nil {
		return nil, fmt.Errorf("chat model config is incomplete")
	}

	var (
		classifier, responder einomodel.ToolCallingChatModel
		err                   error
	)
	switch strings.ToLower(config.LLM.Provider) {
	case model.ProviderGemini:
		classifier, responder, err = newGeminiModels(ctx, config)
	case model.ProviderOpenAI, "":
		classifier, responder, err = newOpenAIModels(ctx, config)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", config.LLM.Provider)
	}
	if err != nil {
		return nil, err
	}

	logx.Debug().
		Str("provider", config.LLM.Provider).
		Str("classifier_model", config.Classifier.Model).
		Str("responder_model", config.Responder.Model).
		Msg("Chat models created")

	return &ChatModels{
		Classifier:          classifier,
		Responder:           responder,
		ClassifierModelName: config.Classifier.Model,
		ResponderModelName:  config.Responder.Model,
	}, nil
}

func newGeminiModels(ctx context.Context, config ChatModelConfig) (einomodel.ToolCallingChatModel, einomodel.ToolCallingChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.LLM.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.LLM.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.LLM.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	// one-word labels do not need a thinking budget
	classifier, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Classifier.Model,
		Temperature: &config.Classifier.Temperature,
		MaxTokens:   &config.Classifier.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating classifier model")
		return nil, nil, fmt.Errorf("error creating classifier model: %w", err)
	}

	responder, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Responder.Model,
		Temperature: &config.Responder.Temperature,
		MaxTokens:   &config.Responder.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(1024)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating responder model")
		return nil, nil, fmt.Errorf("error creating responder model: %w", err)
	}

	return classifier, responder, nil
}

func newOpenAIModels(ctx context.Context, config ChatModelConfig) (einomodel.ToolCallingChatModel, einomodel.ToolCallingChatModel, error) {
	classifier, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      config.LLM.APIKey,
		BaseURL:     config.LLM.BaseURL,
		Model:       config.Classifier.Model,
		Temperature: &config.Classifier.Temperature,
		MaxTokens:   &config.Classifier.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating classifier model")
		return nil, nil, fmt.Errorf("error creating classifier model: %w", err)
	}

	responder, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      config.LLM.APIKey,
		BaseURL:     config.LLM.BaseURL,
		Model:       config.Responder.Model,
		Temperature: &config.Responder.Temperature,
		MaxTokens:   &config.Responder.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating responder model")
		return nil, nil, fmt.Errorf("error creating responder model: %w", err)
	}

	return classifier, responder, nil
}

// ResponderWithTools returns a responder model instance with the tools bound.
func (cm *ChatModels) ResponderWithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	bound, err := cm.Responder.WithTools(tools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}

	logx.Debug().Int("tools", len(tools)).Msg("Successfully bound tools to responder model")
	return bound, nil
}
