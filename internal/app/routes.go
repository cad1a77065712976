package app

import (
	"github.com/gin-gonic/gin"
	"github.com/nekotv/core/internal/middleware"
	"github.com/nekotv/core/internal/modules/auth/auth"
	"github.com/nekotv/core/internal/modules/auth/user"
	"github.com/nekotv/core/internal/modules/system/health"
	"github.com/nekotv/core/internal/pkg/response"
)

func (a *App) registerRoutes() {
	r := a.router
	authMW := middleware.Auth()

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	api := r.Group("/api")
	// Credentials are resolved exactly once, here; route-level Auth only
	// gates on the result.
	api.Use(middleware.OptionalAuth(a.sessions, a.codec))

	// Rate limiting and idempotence run on every API route (requires Redis).
	api.Use(middleware.RateLimit(a.rc.Raw()))
	api.Use(middleware.Idempotence(a.rc.Raw()))

	health.RegisterRoutes(api, a.db, a.rc)

	userSvc := user.NewService(a.db)
	user.NewHandler(userSvc).RegisterRoutes(api, authMW)

	authSvc := auth.NewService(userSvc, a.sessions, a.codec, a.logger)
	auth.NewHandler(authSvc).RegisterRoutes(api, authMW)
}
