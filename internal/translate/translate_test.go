package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathlingo-core/server/internal/agent/model"
	errx "github.com/mathlingo-core/server/internal/core/error"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenLClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewOpenLClient(model.TranslatorConfig{
		Endpoint: srv.URL,
		Host:     "openl-translate.p.rapidapi.com",
		APIKey:   "test-key",
		Timeout:  2 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestOpenLClient_Translate(t *testing.T) {
	var got openLRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("x-rapidapi-key"))
		assert.Equal(t, "openl-translate.p.rapidapi.com", r.Header.Get("x-rapidapi-host"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"translatedText":"what is 2+2?"}`))
	})

	out, err := c.Translate(context.Background(), "ما هو 2+2؟", model.LanguageEnglish)
	require.NoError(t, err)
	assert.Equal(t, "what is 2+2?", out)
	assert.Equal(t, "en", got.TargetLang)
	assert.Equal(t, "ما هو 2+2؟", got.Text)
}

func TestOpenLClient_TargetArabic(t *testing.T) {
	var got openLRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"translatedText":"الجواب هو 4"}`))
	})

	out, err := c.Translate(context.Background(), "The answer is 4", model.LanguageArabic)
	require.NoError(t, err)
	assert.Equal(t, "الجواب هو 4", out)
	assert.Equal(t, "ar", got.TargetLang)
}

func TestOpenLClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`, nil},
		{"rate limited", http.StatusTooManyRequests, `{}`, nil},
		{"missing field", http.StatusOK, `{"text":"x"}`, ErrMissingTranslation},
		{"malformed body", http.StatusOK, `not json`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			out, err := c.Translate(context.Background(), "hello", model.LanguageArabic)
			require.Error(t, err)
			assert.Empty(t, out)
			assert.True(t, errx.IsExternal(err))
			assert.Equal(t, errx.TranslationErrorMessage, errx.PublicMessage(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestOpenLClient_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Translate(ctx, "hello", model.LanguageArabic)
	require.Error(t, err)
	assert.True(t, errx.IsExternal(err))
	assert.Equal(t, http.StatusGatewayTimeout, errx.StatusOf(err))
}

func TestNewOpenLClient_Validation(t *testing.T) {
	_, err := NewOpenLClient(model.TranslatorConfig{Endpoint: "http://x"})
	assert.Error(t, err)
	_, err = NewOpenLClient(model.TranslatorConfig{APIKey: "k"})
	assert.Error(t, err)
}

type echoModel struct {
	reply string
	err   error
	last  []*schema.Message
}

func (m *echoModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.last = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *echoModel) Stream(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestLLMTranslator(t *testing.T) {
	cm := &echoModel{reply: " الجواب هو 4 "}
	tr, err := NewLLMTranslator(context.Background(), cm, "gpt-3.5-turbo")
	require.NoError(t, err)

	out, err := tr.Translate(context.Background(), "The answer is 4", model.LanguageArabic)
	require.NoError(t, err)
	assert.Equal(t, "الجواب هو 4", out)
	require.NotEmpty(t, cm.last)
	assert.Contains(t, cm.last[0].Content, "Arabic")
	assert.Equal(t, "The answer is 4", cm.last[len(cm.last)-1].Content)
}

func TestLLMTranslator_Failures(t *testing.T) {
	tr, err := NewLLMTranslator(context.Background(), &echoModel{reply: "  "}, "m")
	require.NoError(t, err)
	_, err = tr.Translate(context.Background(), "hello", model.LanguageEnglish)
	require.Error(t, err)
	assert.True(t, errx.IsExternal(err))

	tr, err = NewLLMTranslator(context.Background(), &echoModel{err: errors.New("down")}, "m")
	require.NoError(t, err)
	_, err = tr.Translate(context.Background(), "hello", model.LanguageEnglish)
	require.Error(t, err)
	assert.True(t, errx.IsExternal(err))
}

func TestNew_Providers(t *testing.T) {
	tr, err := New(context.Background(), model.TranslatorConfig{Provider: "openl", Endpoint: "http://x", APIKey: "k"}, nil, "")
	require.NoError(t, err)
	assert.IsType(t, &OpenLClient{}, tr)

	tr, err = New(context.Background(), model.TranslatorConfig{Provider: "LLM"}, &echoModel{}, "m")
	require.NoError(t, err)
	assert.IsType(t, &LLMTranslator{}, tr)

	_, err = New(context.Background(), model.TranslatorConfig{Provider: "deepl"}, nil, "")
	assert.Error(t, err)
}
