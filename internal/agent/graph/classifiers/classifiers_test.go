package classifiers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathlingo-core/server/internal/agent/model"
	errx "github.com/mathlingo-core/server/internal/core/error"
)

// scriptedModel answers every Generate call with the same content.
type scriptedModel struct {
	reply string
	err   error
	calls int
	last  []*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.calls++
	m.last = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *scriptedModel) Stream(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestLanguageDetector_Detect(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  model.Language
	}{
		{"arabic", "ar", model.LanguageArabic},
		{"arabic upper with punctuation", " AR. ", model.LanguageArabic},
		{"english", "en", model.LanguageEnglish},
		{"free text falls back to english", "The text is Arabic", model.LanguageEnglish},
		{"empty answer", "", model.LanguageEnglish},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := &scriptedModel{reply: tt.reply}
			d, err := NewLanguageDetector(context.Background(), cm, "gpt-3.5-turbo")
			require.NoError(t, err)

			got, err := d.Detect(context.Background(), "ما هو 2+2؟")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, cm.calls)
		})
	}
}

func TestLanguageDetector_PromptCarriesText(t *testing.T) {
	cm := &scriptedModel{reply: "en"}
	d, err := NewLanguageDetector(context.Background(), cm, "gpt-3.5-turbo")
	require.NoError(t, err)

	_, err = d.Detect(context.Background(), "hello there")
	require.NoError(t, err)
	require.Len(t, cm.last, 2)
	assert.Equal(t, schema.System, cm.last[0].Role)
	assert.Equal(t, "What language is this text? 'hello there'", cm.last[1].Content)
}

func TestLanguageDetector_NoSignal(t *testing.T) {
	for _, text := range []string{"", "   ", "2+2=?", "!!! ..."} {
		cm := &scriptedModel{reply: "ar"}
		d, err := NewLanguageDetector(context.Background(), cm, "gpt-3.5-turbo")
		require.NoError(t, err)

		got, err := d.Detect(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, model.LanguageEnglish, got, "text %q", text)
		assert.Zero(t, cm.calls)
	}
}

func TestLanguageDetector_FailurePropagates(t *testing.T) {
	cm := &scriptedModel{err: errors.New("connection refused")}
	d, err := NewLanguageDetector(context.Background(), cm, "gpt-3.5-turbo")
	require.NoError(t, err)

	_, err = d.Detect(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errx.IsExternal(err))
	assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err))
}

func TestMathClassifier_IsMathRelated(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"yes", true},
		{"Yes.", true},
		{"YES, it is", true},
		{"no", false},
		{"No.", false},
		{"maybe", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			cm := &scriptedModel{reply: tt.reply}
			c, err := NewMathClassifier(context.Background(), cm, "gpt-3.5-turbo")
			require.NoError(t, err)

			got, err := c.IsMathRelated(context.Background(), "what is the output for 2+3*4?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMathClassifier_Blank(t *testing.T) {
	cm := &scriptedModel{reply: "yes"}
	c, err := NewMathClassifier(context.Background(), cm, "gpt-3.5-turbo")
	require.NoError(t, err)

	got, err := c.IsMathRelated(context.Background(), "  ")
	require.NoError(t, err)
	assert.False(t, got)
	assert.Zero(t, cm.calls)
}

func TestMathClassifier_FailurePropagates(t *testing.T) {
	cm := &scriptedModel{err: context.DeadlineExceeded}
	c, err := NewMathClassifier(context.Background(), cm, "gpt-3.5-turbo")
	require.NoError(t, err)

	_, err = c.IsMathRelated(context.Background(), "what is 2+2")
	require.Error(t, err)
	assert.True(t, errx.IsExternal(err))
	assert.Equal(t, errx.CompletionErrorMessage, errx.PublicMessage(err))
}

func TestNewOracle_Validation(t *testing.T) {
	_, err := NewOracle(context.Background(), "x", nil, &scriptedModel{}, "m")
	assert.Error(t, err)
	_, err = NewLanguageDetector(context.Background(), nil, "m")
	assert.Error(t, err)
}
