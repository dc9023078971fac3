// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"tenantauth/internal/delivery/api/middleware"
	"tenantauth/internal/delivery/api/router/handler"
	"tenantauth/internal/domain/entity"
	"tenantauth/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	AccountHandler *handler.AccountHandler
	SessionHandler *handler.SessionHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.IPRateLimiter
	Registry       *prometheus.Registry
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	accountHandler *handler.AccountHandler
	sessionHandler *handler.SessionHandler
	authMiddleware *middleware.AuthMiddleware
	rateLimiter    *middleware.IPRateLimiter
	registry       *prometheus.Registry
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		accountHandler: params.AccountHandler,
		sessionHandler: params.SessionHandler,
		authMiddleware: params.AuthMiddleware,
		rateLimiter:    params.RateLimiter,
		registry:       params.Registry,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)
	if r.registry != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(r.registry)))
	}

	authGroup := e.Group("/auth")
	{
		// Public, throttled per client IP
		throttled := r.rateLimiter.Handle
		authGroup.POST("/register", r.authHandler.Register, throttled)
		authGroup.POST("/login", r.authHandler.Login, throttled)
		authGroup.POST("/refresh", r.authHandler.Refresh, throttled)
		authGroup.POST("/forgot-password", r.authHandler.ForgotPassword, throttled)
		authGroup.POST("/reset-password", r.authHandler.ResetPassword, throttled)

		// Signed-in caller
		authenticated := r.authMiddleware.Authenticate
		authGroup.POST("/logout", r.authHandler.Logout, authenticated)
		authGroup.GET("/me", r.accountHandler.Me, authenticated)
		authGroup.GET("/sessions", r.sessionHandler.List, authenticated)
		authGroup.DELETE("/sessions/:id", r.sessionHandler.Revoke, authenticated)
	}

	// Organization administration
	accounts := e.Group("/accounts")
	accounts.Use(r.authMiddleware.Authenticate)
	accounts.Use(r.authMiddleware.RequireRole(entity.RoleOwner, entity.RoleAdmin))
	{
		accounts.GET("", r.accountHandler.List)
		accounts.POST("", r.accountHandler.Create)
		accounts.PATCH("/:id", r.accountHandler.Update)
		accounts.DELETE("/:id", r.accountHandler.Delete)
	}
}
