package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(ErrConversationNotFound))
	assert.Equal(t, CodeTransformationFailed, CodeOf(ErrTransformationFailed(stderrors.New("boom"))))
	assert.Equal(t, CodeUnknown, CodeOf(stderrors.New("plain")))

	wrapped := fmt.Errorf("sending: %w", ErrNotParticipant)
	assert.Equal(t, CodePermissionDenied, CodeOf(wrapped))
}

func TestAppError_IsAndUnwrap(t *testing.T) {
	cause := stderrors.New("timeout")
	err := ErrTransformationFailed(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrTransformationFailed(nil))
	assert.NotErrorIs(t, err, ErrConversationNotFound)
	assert.Equal(t, "message transformation failed: timeout", err.Error())
}
