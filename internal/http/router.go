package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/userhub/internal/accounts"
	"github.com/geocoder89/userhub/internal/auth"
	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/http/handlers"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Deps struct {
	Log      *slog.Logger
	Config   config.Config
	Accounts *accounts.Service
	Tokens   *auth.Manager

	// Prom and Gatherer are optional; /metrics is mounted only with a Gatherer.
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	// Ping backs /readyz; nil means always ready.
	Ping func() error
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// middleware
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(d.Config.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Config.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(d.Config.MaxBodyBytes))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	r.NoRoute(handlers.NotFound)
	r.NoMethod(handlers.MethodNotAllowed)

	// health
	h := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(d.Tokens, d.Accounts, d.Prom)
	credentialLimiter := middlewares.NewRateLimiter(d.Config.TokenRateLimitPerMin, time.Minute)

	users := handlers.NewUsersHandler(d.Accounts, d.Tokens, d.Prom)

	user := r.Group("/user")
	{
		open := user.Group("", middlewares.RequireJSON(), credentialLimiter.RateLimiterMiddleware(middlewares.KeyByIP))
		open.POST("/create", users.Create)
		open.POST("/token", users.Token)

		me := user.Group("/me", authMW.RequireAuth())
		me.GET("", users.Me)
		me.PATCH("", middlewares.RequireJSON(), credentialLimiter.RateLimiterMiddleware(middlewares.KeyByAccountOrIP), users.UpdateMe)
	}

	admin := handlers.NewAdminAccountsHandler(d.Accounts, d.Prom)

	staff := r.Group("/admin/users", authMW.RequireAuth(), authMW.RequireStaff())
	{
		staff.GET("", admin.List)
		staff.GET("/:id", admin.Get)
		staff.POST("", middlewares.RequireJSON(), admin.Create)
		staff.PATCH("/:id", middlewares.RequireJSON(), admin.Update)
	}

	return r
}
