package service

import (
	"errors"

	"agent-chat-go/internal/repository"
	apperrors "agent-chat-go/pkg/errors"
)

// mapRepoError 把仓库层的哨兵错误翻译为带错误码的应用错误。
func mapRepoError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound
	case errors.Is(err, repository.ErrNotParticipant):
		return apperrors.ErrNotParticipant
	case errors.Is(err, repository.ErrConflict):
		return apperrors.ErrConversationConflict(err)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.ErrInternal("storage error", err)
}
