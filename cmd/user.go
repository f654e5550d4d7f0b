package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunegate/internal/repositories"
)

// UserDeactivate turns an account off. Outstanding tokens fail their next verification.
func (r *Runner) UserDeactivate(ctx context.Context, cmd *cli.Command) error {
	return r.setActive(ctx, cmd, false)
}

// UserActivate turns an account back on.
func (r *Runner) UserActivate(ctx context.Context, cmd *cli.Command) error {
	return r.setActive(ctx, cmd, true)
}

func (r *Runner) setActive(ctx context.Context, cmd *cli.Command, active bool) error {
	config, err := r.configure(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	users := repositories.NewUserRepository(db)
	email := cmd.String("email")

	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user %s: %w", email, err)
	}

	if err := users.SetActive(ctx, user.ID(), active); err != nil {
		return err
	}

	state := "deactivated"
	if active {
		state = "activated"
	}
	r.logger.Info("user updated", "email", user.Email(), "active", active)
	return r.writePlain("✓ %s %s\n", user.Email(), state)
}
