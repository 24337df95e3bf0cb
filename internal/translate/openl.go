package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mathlingo-core/server/internal/agent/model"
	errx "github.com/mathlingo-core/server/internal/core/error"
	logx "github.com/mathlingo-core/server/pkg/logger"
)

const (
	// DefaultTimeout bounds one translation call when the config leaves it unset
	DefaultTimeout = 15 * time.Second

	// maxResponseBytes caps how much of the response body is read
	maxResponseBytes = 1 << 20
)

// ErrMissingTranslation is returned when the response has no translatedText.
var ErrMissingTranslation = errors.New("translation response has no translatedText")

// OpenLClient calls the OpenL translate endpoint on RapidAPI.
type OpenLClient struct {
	endpoint string
	host     string
	apiKey   string
	client   *http.Client
}

var _ model.Translator = (*OpenLClient)(nil)

type openLRequest struct {
	TargetLang string `json:"target_lang"`
	Text       string `json:"text"`
}

type openLResponse struct {
	TranslatedText *string `json:"translatedText"`
}

// NewOpenLClient creates a client from the translator config.
func NewOpenLClient(cfg model.TranslatorConfig) (*OpenLClient, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("openl endpoint is empty")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openl api key is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenLClient{
		endpoint: cfg.Endpoint,
		host:     cfg.Host,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Translate returns the translated text. Every failure, including a
// response without translatedText, is a translation error.
func (c *OpenLClient) Translate(ctx context.Context, text string, target model.Language) (string, error) {
	body, err := json.Marshal(openLRequest{TargetLang: string(target.Routed()), Text: text})
	if err != nil {
		return "", errx.WrapTranslation(fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errx.WrapTranslation(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-rapidapi-key", c.apiKey)
	if c.host != "" {
		req.Header.Set("x-rapidapi-host", c.host)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		logx.Error().Err(err).Str("target", string(target)).Msg("Translation request failed")
		return "", errx.WrapTranslation(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errx.WrapTranslation(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		logx.Error().
			Int("status", resp.StatusCode).
			Str("body", truncate(string(raw), 200)).
			Msg("Translation service returned an error")
		return "", errx.WrapTranslation(fmt.Errorf("translation service status %d", resp.StatusCode))
	}

	var out openLResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errx.WrapTranslation(fmt.Errorf("decode response: %w", err))
	}
	if out.TranslatedText == nil {
		return "", errx.WrapTranslation(ErrMissingTranslation)
	}

	logx.Debug().
		Str("target", string(target)).
		Dur("latency", time.Since(start)).
		Msg("Text translated")
	return *out.TranslatedText, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
