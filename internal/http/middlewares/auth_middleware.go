package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/geocoder89/userhub/internal/actorctx"
	"github.com/geocoder89/userhub/internal/auth"
	"github.com/geocoder89/userhub/internal/domain/account"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/gin-gonic/gin"
)

// Keep these small so tests can fake them easily.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type AccountLoader interface {
	Get(ctx context.Context, id int64) (account.Account, error)
}

type AuthMiddleware struct {
	tokens   TokenVerifier
	accounts AccountLoader
	prom     *observability.Prom
}

func NewAuthMiddleware(tokens TokenVerifier, accounts AccountLoader, prom *observability.Prom) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, accounts: accounts, prom: prom}
}

// RequireAuth accepts "Authorization: Bearer <token>" naming an active account.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		scheme, raw, found := strings.Cut(authHeader, " ")

		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			m.reject(c, "Authentication credentials were not provided.")
			return
		}

		claims, err := m.tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			m.reject(c, "Invalid or expired token.")
			return
		}

		id, err := claims.AccountID()
		if err != nil {
			m.reject(c, "Invalid or expired token.")
			return
		}

		a, err := m.accounts.Get(c.Request.Context(), id)
		if err != nil || !a.IsActive {
			// a lookup failure other than not-found still must not let the caller in
			m.reject(c, "User inactive or deleted.")
			return
		}

		m.prom.IncAuth("bearer", "ok")

		c.Set(ctxAccountKey, a)
		c.Request = c.Request.WithContext(actorctx.WithAccountID(c.Request.Context(), a.ID))

		c.Next()
	}
}

func (m *AuthMiddleware) reject(c *gin.Context, message string) {
	m.prom.IncAuth("bearer", "rejected")

	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":      "unauthorized",
			"message":   message,
			"requestId": c.GetString(CtxRequestID),
		},
	})
}

// AccountFromContext returns the account stashed by RequireAuth.
func AccountFromContext(c *gin.Context) (account.Account, bool) {
	v, ok := c.Get(ctxAccountKey)
	if !ok {
		return account.Account{}, false
	}
	a, ok := v.(account.Account)
	return a, ok
}
