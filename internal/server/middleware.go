package server

import (
	"fmt"
	"net/http"
	"time"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/identity"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
		"user_id": identity.UserID(c),
	})
}

// IdentityMiddleware records the caller's user id when the request carries one
func IdentityMiddleware(provider identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, err := provider.UserID(c.Request); err == nil {
			identity.SetUserID(c, userID)
		}
		c.Next()
	}
}

// RequireIdentity rejects requests that reached it without a caller identity
func RequireIdentity(c *gin.Context) {
	if identity.UserID(c) == "" {
		err := fmt.Errorf("%w: %s header is missing", biddingerrors.ErrUnauthorized, identity.DefaultHeader)
		utils.JSONAbort(c, http.StatusUnauthorized, err, "authentication required")
		utils.Warn("RequireIdentity: rejected anonymous request", map[string]any{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
		return
	}
	c.Next()
}
