package main

import (
	"context"
	"errors"
	"fmt"

	"agent-chat-go/internal/config"
	"agent-chat-go/internal/model"
	"agent-chat-go/internal/repository"
	"agent-chat-go/internal/service"
	"agent-chat-go/pkg/database"
	"agent-chat-go/pkg/log"
	"agent-chat-go/pkg/token"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the users, conversations and messages tables",
	RunE:  runMigrate,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all messages, conversations and users",
	RunE:  runClear,
}

var seedCmd = &cobra.Command{
	Use:   "seed [username...]",
	Short: "Create users that do not exist yet",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSeed,
}

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Issue a development access token for an existing user",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	clearCmd.Flags().Bool("yes", false, "Confirm deleting every row")
	seedCmd.Flags().StringSlice("admin", nil, "Usernames to create with the ADMIN role")
}

func open(cmd *cobra.Command) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log.Init(cfg.Log.Level, "console", "")
	if cfg.Database.Driver == "memory" {
		return nil, nil, errors.New("dbtool needs database.driver=mysql")
	}
	db, err := database.OpenMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mysql: %w", err)
	}
	return cfg, db, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	_, db, err := open(cmd)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(cmd.Context(), db); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		return errors.New("refusing to delete data without --yes")
	}
	_, db, err := open(cmd)
	if err != nil {
		return err
	}
	deleted, err := database.ClearAll(cmd.Context(), db)
	if err != nil {
		return err
	}
	for _, table := range []string{"messages", "conversations", "users"} {
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d %s\n", deleted[table], table)
	}
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	_, db, err := open(cmd)
	if err != nil {
		return err
	}
	admins, _ := cmd.Flags().GetStringSlice("admin")
	users := service.NewUserService(repository.NewUserRepository(db))
	return seed(cmd.Context(), cmd, users, args, admins)
}

func seed(ctx context.Context, cmd *cobra.Command, users service.UserService, names, admins []string) error {
	for _, group := range []struct {
		role  string
		names []string
	}{{model.RoleUser, names}, {model.RoleAdmin, admins}} {
		for _, name := range group.names {
			u, created, err := users.EnsureUser(ctx, name, group.role)
			if err != nil {
				return fmt.Errorf("seed %q: %w", name, err)
			}
			state := "exists"
			if created {
				state = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s %s (%s)\n", state, u.ID, u.Username, u.Role)
		}
	}
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, db, err := open(cmd)
	if err != nil {
		return err
	}
	user, err := repository.NewUserRepository(db).FindByUsername(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("find user %q: %w", args[0], err)
	}
	jwt := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	tok, err := jwt.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
