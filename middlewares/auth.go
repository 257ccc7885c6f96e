package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/mfgops_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Auth extracts the bearer token, validates it and loads the actor identity
// into the request context. The core trusts the context actor; nothing below
// this middleware re-authenticates.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "missing bearer token"})
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		token, err := utils.JwtValidate(raw)
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "invalid token"})
			return
		}
		claims, ok := token.Claims.(*utils.JwtCustomClaim)
		if !ok || claims.ActorId == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "invalid claims"})
			return
		}

		ctx := c.Request.Context()
		ctx = utils.SetTokenInContext(ctx, raw)
		ctx = utils.SetActorIdInContext(ctx, claims.ActorId)
		ctx = utils.SetActorNameInContext(ctx, claims.ActorName)
		ctx = utils.SetRoleInContext(ctx, claims.Role)

		correlationId := c.GetHeader("X-Correlation-Id")
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)

		// Supervisors may force a posting through the stock gate.
		if claims.Role == "supervisor" && c.GetHeader("X-Allow-Negative-Stock") == "true" {
			ctx = utils.SetAllowNegativeStockInContext(ctx, true)
		}

		c.Header("X-Correlation-Id", correlationId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
