package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	t.Run("message without cause", func(t *testing.T) {
		err := New(ErrCodeNotFound, "hub not found")
		assert.Equal(t, "NOT_FOUND: hub not found", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("message with cause", func(t *testing.T) {
		cause := stderrors.New("connection refused")
		err := Wrap(cause, ErrCodeStoreUnavailable, "query failed")
		assert.Equal(t, "STORE_UNAVAILABLE: query failed: connection refused", err.Error())
		assert.Equal(t, cause, err.Unwrap())
		assert.True(t, stderrors.Is(err, cause))
	})

	t.Run("context accumulates", func(t *testing.T) {
		err := New(ErrCodeWebhookGone, "endpoint removed").
			WithContext("channel_id", "chan-1").
			WithContext("hub_id", "hub-1")
		assert.Equal(t, "chan-1", err.Context["channel_id"])
		assert.Equal(t, "hub-1", err.Context["hub_id"])
	})
}

func TestRetryable(t *testing.T) {
	assert.True(t, IsRetryable(WrapRetryable(stderrors.New("x"), ErrCodeTimeout, "slow")))
	assert.False(t, IsRetryable(Wrap(stderrors.New("x"), ErrCodeTimeout, "slow")))
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestCodeInspection(t *testing.T) {
	err := New(ErrCodePolicyBlocked, "word rule matched")

	assert.Equal(t, ErrCodePolicyBlocked, GetCode(err))
	assert.Equal(t, ErrCodeInternalError, GetCode(stderrors.New("plain")))

	assert.True(t, HasCode(err, ErrCodePolicyBlocked))
	assert.False(t, HasCode(err, ErrCodeNotFound))
	assert.False(t, HasCode(stderrors.New("plain"), ErrCodePolicyBlocked))
}

func TestHelpers(t *testing.T) {
	t.Run("store errors are retryable", func(t *testing.T) {
		err := NewStoreError("get connection", stderrors.New("locked"))
		assert.True(t, IsRetryable(err))
		assert.Equal(t, ErrCodeStoreUnavailable, err.Code)
		assert.Equal(t, "get connection", err.Context["operation"])
	})

	t.Run("cache errors are retryable", func(t *testing.T) {
		err := NewCacheError("get broadcasts", stderrors.New("down"))
		assert.True(t, IsRetryable(err))
		assert.Equal(t, ErrCodeCacheUnavailable, err.Code)
	})

	t.Run("unknown message", func(t *testing.T) {
		err := NewUnknownMessageError("msg-1")
		require.True(t, HasCode(err, ErrCodeNotFound))
		assert.Equal(t, "msg-1", err.Context["message_id"])
	})

	t.Run("delete in progress", func(t *testing.T) {
		err := NewDeleteInProgressError("msg-1")
		require.True(t, HasCode(err, ErrCodeDeleteInProgress))
		assert.False(t, IsRetryable(err))
	})
}
