// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"strings"

	"agent-chat-go/internal/model"
	"agent-chat-go/internal/repository"
	apperrors "agent-chat-go/pkg/errors"
)

// UserService 接口定义了用户目录相关的只读操作。
type UserService interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	// ListOthers 返回除 userID 以外的所有用户，供发起会话时选择。
	ListOthers(ctx context.Context, userID string) ([]model.UserRef, error)
	// EnsureUser 按用户名查找用户，不存在时创建，供 dbtool seed 使用。
	EnsureUser(ctx context.Context, username, role string) (*model.User, bool, error)
}

type userService struct {
	userRepo repository.UserRepository
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

// GetProfile 根据用户 ID 获取用户信息。
func (s *userService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrUserNotFound)
	}
	return user, nil
}

func (s *userService) ListOthers(ctx context.Context, userID string) ([]model.UserRef, error) {
	users, err := s.userRepo.FindAllExcept(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrUserNotFound)
	}
	refs := make([]model.UserRef, 0, len(users))
	for i := range users {
		refs = append(refs, users[i].Ref())
	}
	return refs, nil
}

func (s *userService) EnsureUser(ctx context.Context, username, role string) (*model.User, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, false, apperrors.InvalidArg("username is required")
	}
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, mapRepoError(err, apperrors.ErrUserNotFound)
	}

	if role == "" {
		role = model.RoleUser
	}
	user = &model.User{Username: username, Role: role}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, false, apperrors.ErrInternal("failed to create user", err)
	}
	return user, true, nil
}
