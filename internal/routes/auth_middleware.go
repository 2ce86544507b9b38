package routes

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stream-access-guard/internal/auth"
	. "stream-access-guard/internal/config"
)

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// AuthRoutes registers the operator login endpoint.
func AuthRoutes(r *gin.RouterGroup) {
	r.POST("/login", func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		if err := auth.VerifyPassword(Cfg.AdminPasswordHash, req.Password); err != nil {
			slog.Warn("Admin login failed", "ip", c.ClientIP())
			AbortWithError(c, err)
			return
		}

		token, err := auth.GenerateJWT(auth.NewAdminClaim())
		if err != nil {
			slog.Error("Failed to sign admin token", "error", err)
			AbortWithError(c, ErrInternalServer)
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": token})
	})
}

// AuthRequired validates the bearer token on the admin API.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims, err := auth.DecodeAdminJWT(tokenString)
		if err != nil {
			slog.Warn("Admin token rejected", "error", err, "ip", c.ClientIP())
			AbortWithError(c, auth.ErrNonValidToken)
			return
		}

		c.Set("adminRole", claims.Role)
		c.Next()
	}
}
