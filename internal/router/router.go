// Package router assembles the Echo instance: global middleware, the auth
// routes, the JWT-protected task and user routes, the push channel and the
// operational endpoints.
package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/tasktracker/internal/handler"
	"github.com/iliyamo/tasktracker/internal/middleware"
)

// Deps carries everything the routes need.  RateLimit and Cache may be nil.
type Deps struct {
	Auth  *handler.AuthHandler
	Tasks *handler.TaskHandler
	Users *handler.UserHandler

	Verifier middleware.TokenVerifier
	Gateway  http.Handler
	Store    handler.Pinger

	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc

	CORSOrigins []string
	Log         *slog.Logger
}

// New builds the HTTP server.
func New(d Deps) *echo.Echo {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(requestLogger(log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     d.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
		AllowCredentials: true,
	}))

	RegisterOps(e, d.Store)
	RegisterAuth(e, d.Auth, d.RateLimit)
	RegisterResources(e, d, log)
	e.GET("/ws", echo.WrapHandler(d.Gateway))
	return e
}

// RegisterOps exposes health and metrics.
func RegisterOps(e *echo.Echo, store handler.Pinger) {
	e.GET("/healthz", handler.Health(store))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth mounts register, login and refresh under /auth.  These are
// the only unauthenticated API routes, so the rate limiter guards them.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, rl echo.MiddlewareFunc) {
	g := e.Group("/auth")
	if rl != nil {
		g.Use(rl)
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh-token", a.Refresh)
}

// RegisterResources mounts the task and user routes behind JWTAuth.
func RegisterResources(e *echo.Echo, d Deps, log *slog.Logger) {
	auth := middleware.JWTAuth(d.Verifier, log)

	tasks := e.Group("/tasks", auth)
	tasks.GET("", d.Tasks.List)
	tasks.POST("", d.Tasks.Create)
	tasks.GET("/:id", d.Tasks.Get)
	tasks.PUT("/:id", d.Tasks.Update)
	tasks.DELETE("/:id", d.Tasks.Delete)

	users := e.Group("/users", auth)
	if d.Cache != nil {
		users.GET("", d.Users.List, d.Cache)
		users.GET("/:id", d.Users.Get, d.Cache)
	} else {
		users.GET("", d.Users.List)
		users.GET("/:id", d.Users.Get)
	}
	users.PUT("/:id", d.Users.Update)
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/healthz" || c.Path() == "/metrics"
		},
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError || v.Error != nil {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("err", v.Error.Error()))
			}
			log.LogAttrs(context.Background(), level, "http.request", attrs...)
			return nil
		},
	})
}
