package actorctx

import "context"

type ctxKey string

const keyAccountID ctxKey = "account_id"

// WithAccountID records the authenticated account on a request context so
// code below the HTTP layer (logging, services) can see who is acting.
func WithAccountID(ctx context.Context, accountID int64) context.Context {
	return context.WithValue(ctx, keyAccountID, accountID)
}

func AccountIDFrom(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(keyAccountID).(int64)

	return v, ok && v != 0
}
