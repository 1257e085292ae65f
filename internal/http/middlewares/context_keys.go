package middlewares

// gin context keys
const (
	CtxRequestID  = "request_id"
	ctxAccountKey = "auth.account"
)
