package errx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapCompletion(t *testing.T) {
	assert.NoError(t, WrapCompletion(nil))

	cause := errors.New("connection refused")
	err := WrapCompletion(cause)
	require.Error(t, err)
	assert.True(t, IsExternal(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
	assert.Equal(t, CompletionErrorMessage, PublicMessage(err))
}

func TestWrapTranslation_Timeout(t *testing.T) {
	err := WrapTranslation(fmt.Errorf("post: %w", context.DeadlineExceeded))
	assert.True(t, IsExternal(err))
	assert.Equal(t, http.StatusGatewayTimeout, StatusOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWrapRedis(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))

	notFound := WrapRedis(redis.Nil)
	assert.Equal(t, http.StatusNotFound, StatusOf(notFound))
	assert.False(t, IsExternal(notFound))

	down := WrapRedis(errors.New("dial tcp: refused"))
	assert.True(t, IsExternal(down))
	assert.Equal(t, RedisErrorMessage, PublicMessage(down))
}

func TestAppError_As(t *testing.T) {
	wrapped := fmt.Errorf("stage classify: %w", BadRequest(errors.New("empty text")))

	var ae *AppError
	require.True(t, errors.As(wrapped, &ae))
	assert.Equal(t, KindInvalidInput, ae.Kind)
	assert.Equal(t, http.StatusBadRequest, StatusOf(wrapped))
	assert.False(t, IsExternal(wrapped))
}

func TestStatusOf_PlainError(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.Equal(t, SystemErrorMessage, PublicMessage(err))
}
