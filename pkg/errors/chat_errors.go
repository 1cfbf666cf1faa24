package errors

var (
	// Domain errors — used in service/handler
	ErrConversationNotFound = NotFound("conversation not found")
	ErrUserNotFound         = NotFound("user not found")
	ErrMessageNotFound      = NotFound("message not found")
	ErrNotParticipant       = Forbidden("you are not a participant of this conversation")
	ErrCannotChatSelf       = InvalidArg("cannot start a conversation with yourself")
	ErrEmptyContent         = InvalidArg("message content is required")
	ErrInvalidTone          = InvalidArg("invalid tone")
	ErrToneContention       = Conflict("tone changed repeatedly while sending, try again")
	ErrFeatureDisabled      = New(CodeUnavailable, "feature is not enabled on this server")
)

func ErrTransformationFailed(cause error) error {
	return Wrap(CodeTransformationFailed, "message transformation failed", cause)
}

func ErrConversationConflict(cause error) error {
	return Wrap(CodeConflict, "could not resolve conversation", cause)
}

func ErrInternal(message string, cause error) error {
	return Wrap(CodeInternal, message, cause)
}
