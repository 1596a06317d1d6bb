package spacehandler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"arenago/internal/services/auth"
)

const claimsKey = "claims"

// authRequired resolves the bearer token into claims; requests without
// a valid token are refused before the handler runs.
func authRequired(verifier auth.IAuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "missing bearer token"})
			return
		}
		claims, err := verifier.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "invalid token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claimsFrom(c).Role != auth.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "admin role required"})
			return
		}
		c.Next()
	}
}

// claimsFrom returns the claims stored by authRequired. Only reachable
// on routes behind that middleware.
func claimsFrom(c *gin.Context) *auth.Claims {
	return c.MustGet(claimsKey).(*auth.Claims)
}
