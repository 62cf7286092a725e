package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/service"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

const dateLayout = "2006-01-02"

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		return nil
	}
	return claims
}

func actorFromContext(c *gin.Context) service.Actor {
	actor := service.Actor{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if claims := claimsFromContext(c); claims != nil {
		actor.UserID = claims.UserID
	}
	return actor
}

// branchScope resolves which branches a listing may cover. Nil means every branch.
func branchScope(c *gin.Context, requested string) ([]string, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	requested = strings.TrimSpace(requested)
	if requested != "" {
		if !claims.CanAccessBranch(requested) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "branch is outside your scope")
		}
		return []string{requested}, nil
	}
	if !claims.Role.BranchScoped() {
		return nil, nil
	}
	if len(claims.BranchIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no branch assigned")
	}
	return claims.BranchIDs, nil
}

func ensureBranch(c *gin.Context, branchID string) error {
	claims := claimsFromContext(c)
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if !claims.CanAccessBranch(branchID) {
		return appErrors.Clone(appErrors.ErrForbidden, "branch is outside your scope")
	}
	return nil
}

func parseDateParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dates must use YYYY-MM-DD")
	}
	return &parsed, nil
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
