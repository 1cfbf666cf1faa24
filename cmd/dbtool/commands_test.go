package main

import (
	"bytes"
	"context"
	"testing"

	"agent-chat-go/internal/model"
	"agent-chat-go/internal/repository"
	"agent-chat-go/internal/service"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed_IsIdempotentAndAssignsRoles(t *testing.T) {
	store := repository.NewMemoryStore()
	users := service.NewUserService(store.Users())
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	ctx := context.Background()

	require.NoError(t, seed(ctx, cmd, users, []string{"alice", "bob"}, []string{"root"}))
	require.NoError(t, seed(ctx, cmd, users, []string{"alice"}, nil))

	root, err := store.Users().FindByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, root.Role)

	others, err := store.Users().FindAllExcept(ctx, root.ID)
	require.NoError(t, err)
	assert.Len(t, others, 2)
	assert.Contains(t, out.String(), "exists")
}

func TestClear_RequiresConfirmation(t *testing.T) {
	cmd := &cobra.Command{RunE: runClear}
	cmd.Flags().Bool("yes", false, "")
	assert.EqualError(t, runClear(cmd, nil), "refusing to delete data without --yes")
}
