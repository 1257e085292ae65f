package readiness

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const probeTimeout = 2 * time.Second

// PostgresProbe opens a fresh connection per attempt, pings it and closes it.
func PostgresProbe(dsn string) ProbeFunc {
	return func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()

		conn, err := pgx.Connect(cctx, dsn)

		if err != nil {
			return err
		}

		defer func() { _ = conn.Close(context.Background()) }()

		return conn.Ping(cctx)
	}
}
