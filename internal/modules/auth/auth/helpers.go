package auth

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nekotv/core/internal/middleware"
)

func setAuthCookie(c *gin.Context, token string, ttl time.Duration) {
	secure := c.Request.TLS != nil
	c.SetCookie(middleware.CookieName, token, int(ttl.Seconds()), "/", "", secure, false)
}

func clearAuthCookie(c *gin.Context) {
	secure := c.Request.TLS != nil
	c.SetCookie(middleware.CookieName, "", -1, "/", "", secure, false)
}
