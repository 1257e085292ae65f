package db

import (
	"context"
	"errors"

	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/domain/account"
)

type SuperuserCreator interface {
	CreateSuperuser(ctx context.Context, email, password, name string) (account.Account, error)
}

// EnsureSuperuser creates the configured superuser on first boot. It is a
// no-op when the env vars are unset or the email is already registered.
func EnsureSuperuser(ctx context.Context, creator SuperuserCreator, cfg config.Config) (created bool, err error) {
	if cfg.SuperuserEmail == "" || cfg.SuperuserPassword == "" {
		return false, nil
	}

	_, err = creator.CreateSuperuser(ctx, cfg.SuperuserEmail, cfg.SuperuserPassword, cfg.SuperuserName)

	if errors.Is(err, account.ErrEmailTaken) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}
