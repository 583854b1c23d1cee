package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodes(t *testing.T) {
	t.Run("HasCode finds outer code", func(t *testing.T) {
		err := New(CodeAssetFlagged, "asset a-1 is flagged")
		assert.True(t, HasCode(err, CodeAssetFlagged))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("HasCode walks wrapped domain errors", func(t *testing.T) {
		inner := New(CodeTransferFailed, "recipient rejected")
		outer := Wrap(inner, CodeInternal, "log scan failed")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeTransferFailed))
	})

	t.Run("HasCode sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeNotEligible, "lock period active"))
		assert.True(t, HasCode(err, CodeNotEligible))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})

	t.Run("Wrap of nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
	})
}

func TestUnwrapAndMessage(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "failed to load asset")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load asset", MessageOf(err))
	assert.Equal(t, "internal_error: failed to load asset: connection reset", err.Error())
	assert.Equal(t, "insufficient_escrow: want 5", Newf(CodeInsufficientEscrow, "want %d", 5).Error())
}
