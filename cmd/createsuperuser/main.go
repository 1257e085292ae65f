// Command createsuperuser adds an account with staff and superuser status.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/geocoder89/userhub/internal/accounts"
	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/db"
	"github.com/geocoder89/userhub/internal/domain/account"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/repo/postgres"
)

func main() {
	email := flag.String("email", "", "superuser email (required)")
	password := flag.String("password", "", "superuser password (required)")
	name := flag.String("name", "", "display name")
	flag.Parse()

	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: createsuperuser -email <email> -password <password> [-name <name>]")
		os.Exit(2)
	}

	if err := run(cfg, *email, *password, *name); err != nil {
		log.Error("create superuser failed", "email", *email, "err", err)
		os.Exit(1)
	}

	fmt.Println("Superuser created successfully.")
}

func run(cfg config.Config, email, password, name string) error {
	pool, err := db.NewPool(cfg.DBURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	svc := accounts.NewService(postgres.NewAccountsRepo(pool, nil), nil, nil)

	_, err = svc.CreateSuperuser(ctx, email, password, name)

	if errors.Is(err, account.ErrEmailTaken) {
		return errors.New("an account with this email already exists")
	}

	return err
}
