package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/museslab/euterpe/domain"
	"github.com/museslab/euterpe/internal/tokenutil"
)

// JwtAuthMiddleware guards the API group with a bearer token check. It is
// installed only when an access token secret is configured.
func JwtAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.Request.Header.Get("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.JSON(http.StatusUnauthorized, domain.ErrorResponse{
				Code:    "NOT_AUTHORIZED",
				Message: "missing bearer token",
			})
			c.Abort()
			return
		}

		authorized, err := tokenutil.IsAuthorized(parts[1], secret)
		if err != nil || !authorized {
			c.JSON(http.StatusUnauthorized, domain.ErrorResponse{
				Code:    "NOT_AUTHORIZED",
				Message: "invalid or expired token",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
