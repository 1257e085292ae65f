package readiness

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE 57P03: the server is up but still starting or shutting down.
const codeCannotConnectNow = "57P03"

// IsNotReady reports whether err means the database is not accepting
// connections yet. Only two kinds qualify: the connection could not be
// established at all, or the server answered with a "not ready" state.
// Everything else (bad credentials, unknown database, bad DSN) is fatal.
func IsNotReady(err error) bool {
	if err == nil {
		return false
	}

	// the server answered: decide by SQLSTATE alone
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeCannotConnectNow || strings.HasPrefix(pgErr.Code, "08")
	}

	return isConnectionFailure(err)
}

func isConnectionFailure(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	// per-attempt timeout while dialing
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		// pgx wraps dial failures without exposing a typed cause in every case
		msg := strings.ToLower(connectErr.Error())
		return strings.Contains(msg, "dial") ||
			strings.Contains(msg, "connection refused") ||
			strings.Contains(msg, "no such host") ||
			strings.Contains(msg, "timeout") ||
			strings.Contains(msg, "eof")
	}

	return false
}
