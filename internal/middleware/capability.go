package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
	"github.com/noah-isme/edu-center-api/pkg/response"
)

// RequireCapability allows the request only when the caller's claims grant every listed capability.
func RequireCapability(required ...models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		for _, capability := range required {
			if !claims.Has(capability) {
				response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "missing capability "+string(capability)))
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

// RequireBranchParam rejects requests whose branch path parameter lies outside the caller's branches.
func RequireBranchParam(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !claims.CanAccessBranch(c.Param(param)) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "branch is outside your scope"))
			c.Abort()
			return
		}
		c.Next()
	}
}
