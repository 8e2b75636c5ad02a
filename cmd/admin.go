package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/songbook/internal/shared"
)

const defaultTokenTTL = time.Hour

func uidArg(cmd *cli.Command) (string, error) {
	uid := cmd.Args().First()
	if uid == "" {
		return "", fmt.Errorf("%w: uid is required", shared.ErrMissingArgument)
	}
	return uid, nil
}

// AdminSet grants or removes the admin claim of a user.
func (r *Runner) AdminSet(ctx context.Context, cmd *cli.Command) error {
	uid, err := uidArg(cmd)
	if err != nil {
		return err
	}
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	svc, err := r.authService(st)
	if err != nil {
		return err
	}

	admin := cmd.Bool("admin")
	if err := svc.SetAdmin(ctx, uid, admin); err != nil {
		return err
	}
	r.writePlain("✓ %s admin=%t\n", uid, admin)
	return nil
}

// AdminRevoke invalidates every session issued to a user so far.
func (r *Runner) AdminRevoke(ctx context.Context, cmd *cli.Command) error {
	uid, err := uidArg(cmd)
	if err != nil {
		return err
	}
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	svc, err := r.authService(st)
	if err != nil {
		return err
	}

	if err := svc.Revoke(ctx, uid); err != nil {
		return err
	}
	r.writePlain("✓ sessions of %s revoked\n", uid)
	return nil
}

// AdminToken prints a signed ID token to exchange at POST /api/session.
func (r *Runner) AdminToken(ctx context.Context, cmd *cli.Command) error {
	uid, err := uidArg(cmd)
	if err != nil {
		return err
	}
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	svc, err := r.authService(st)
	if err != nil {
		return err
	}

	token, err := svc.SignIDToken(uid, cmd.String("email"), cmd.String("name"), cmd.Duration("ttl"))
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	r.writePlain("%s\n", token)
	return nil
}
