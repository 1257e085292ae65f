// Command waitfordb blocks until the configured database accepts
// connections. Intended as a container entrypoint step before the API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/readiness"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gate := readiness.NewGate(readiness.PostgresProbe(cfg.DBURL), os.Stdout)

	if err := gate.Wait(ctx); err != nil {
		log.Error("wait for database failed", "err", err)
		stop()
		os.Exit(1)
	}
}
