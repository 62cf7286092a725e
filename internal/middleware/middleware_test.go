package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/service"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func withClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}
}

func staffClaims(role models.UserRole, branches ...string) *models.JWTClaims {
	return &models.JWTClaims{UserID: "u1", Role: role, Capabilities: models.CapabilitiesFor(role), BranchIDs: branches}
}

func serve(r *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	r := gin.New()
	r.GET("/me", JWT(stubValidator{claims: staffClaims(models.RoleAdmin)}), func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.UserID)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "Token good"}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer bad"}).Code)

	w := serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
}

func TestRequireCapability(t *testing.T) {
	cases := []struct {
		name   string
		claims *models.JWTClaims
		want   int
	}{
		{"admin may write payments", staffClaims(models.RoleAdmin), http.StatusOK},
		{"teacher may not", staffClaims(models.RoleTeacher), http.StatusForbidden},
		{"parent may not", staffClaims(models.RoleParent), http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/payments", withClaims(tc.claims), RequireCapability(models.CapPaymentsWrite), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			assert.Equal(t, tc.want, serve(r, http.MethodPost, "/payments", nil).Code)
		})
	}
}

func TestRequireBranchParam(t *testing.T) {
	r := gin.New()
	r.GET("/branches/:id/debtors", withClaims(staffClaims(models.RoleAdmin, "b1")), RequireBranchParam("id"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/branches/b1/debtors", nil).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/branches/b2/debtors", nil).Code)

	owner := gin.New()
	owner.GET("/branches/:id/debtors", withClaims(staffClaims(models.RoleOwner)), RequireBranchParam("id"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, serve(owner, http.MethodGet, "/branches/b2/debtors", nil).Code)
}

type stubChecker struct {
	active  map[string]bool
	err     error
	blocked int
}

func (s *stubChecker) HasAnyActive(ctx context.Context, branchIDs []string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	for _, id := range branchIDs {
		if s.active[id] {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubChecker) RecordBlocked() { s.blocked++ }

func TestSubscriptionGate(t *testing.T) {
	checker := &stubChecker{active: map[string]bool{"paid": true}}
	build := func(claims *models.JWTClaims) *gin.Engine {
		r := gin.New()
		r.Use(withClaims(claims), SubscriptionGate(checker, []string{"/api/v1/subscription"}, nil))
		r.GET("/api/v1/students", func(c *gin.Context) { c.Status(http.StatusOK) })
		r.GET("/api/v1/subscription/branches/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	assert.Equal(t, http.StatusOK, serve(build(staffClaims(models.RoleAdmin, "paid")), http.MethodGet, "/api/v1/students", nil).Code)
	assert.Equal(t, http.StatusPaymentRequired, serve(build(staffClaims(models.RoleTeacher, "lapsed")), http.MethodGet, "/api/v1/students", nil).Code)
	assert.Equal(t, http.StatusOK, serve(build(staffClaims(models.RoleAdmin, "lapsed")), http.MethodGet, "/api/v1/subscription/branches/lapsed", nil).Code)
	assert.Equal(t, http.StatusOK, serve(build(staffClaims(models.RoleOwner)), http.MethodGet, "/api/v1/students", nil).Code)
	assert.Equal(t, http.StatusOK, serve(build(staffClaims(models.RoleParent)), http.MethodGet, "/api/v1/students", nil).Code)
	assert.Equal(t, 1, checker.blocked)

	checker.err = errors.New("redis down")
	assert.Equal(t, http.StatusInternalServerError, serve(build(staffClaims(models.RoleAdmin, "paid")), http.MethodGet, "/api/v1/students", nil).Code)
}

type recordingWriter struct {
	logs []*models.AuditLog
}

func (r *recordingWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func TestAuditRecordsOnlySuccess(t *testing.T) {
	writer := &recordingWriter{}
	r := gin.New()
	r.POST("/groups/:id", withClaims(staffClaims(models.RoleAdmin)), Audit(writer, nil, "GROUP_UPDATE", "group", "id"), func(c *gin.Context) {
		if c.Param("id") == "bad" {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	serve(r, http.MethodPost, "/groups/g1", nil)
	serve(r, http.MethodPost, "/groups/bad", nil)
	require.Len(t, writer.logs, 1)
	assert.Equal(t, "g1", *writer.logs[0].ResourceID)
	assert.Equal(t, "u1", *writer.logs[0].UserID)
}

func TestResponseMeta(t *testing.T) {
	r := gin.New()
	r.Use(WithResponseMeta())
	var meta map[string]interface{}
	r.GET("/x", func(c *gin.Context) {
		SetMeta(c, "inactive_enrollment", true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	serve(r, http.MethodGet, "/x", nil)
	assert.Equal(t, true, meta["inactive_enrollment"])
}

func TestMetricsMiddleware(t *testing.T) {
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	serve(r, http.MethodGet, "/ping", nil)

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["http_requests_total"])
}
