package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
	"github.com/noah-isme/edu-center-api/pkg/response"
)

// SubscriptionChecker reports whether any of the branches has paid access.
type SubscriptionChecker interface {
	HasAnyActive(ctx context.Context, branchIDs []string) (bool, error)
	RecordBlocked()
}

// SubscriptionGate answers 402 to branch staff when none of their branches is subscribed.
// Owners, students and parents pass through, as do paths under an exempt prefix.
func SubscriptionGate(checker SubscriptionChecker, exemptPrefixes []string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range exemptPrefixes {
			if prefix != "" && strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		claims, ok := CurrentClaims(c)
		if !ok || (claims.Role != models.RoleAdmin && claims.Role != models.RoleTeacher) {
			c.Next()
			return
		}

		active, err := checker.HasAnyActive(c.Request.Context(), claims.BranchIDs)
		if err != nil {
			logger.Error("subscription check failed", zap.String("user_id", claims.UserID), zap.Error(err))
			response.Error(c, err)
			c.Abort()
			return
		}
		if !active {
			checker.RecordBlocked()
			response.Error(c, appErrors.ErrSubscriptionInactive)
			c.Abort()
			return
		}
		c.Next()
	}
}
