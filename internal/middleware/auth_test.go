// internal/middleware/auth_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealhawk/dealhawk-backend/internal/utils"
)

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret")

	r := gin.New()
	admin := r.Group("/admin", AuthRequired(), AdminRequired())
	admin.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": c.GetString("username")})
	})
	return r
}

func get(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequiredAcceptsAdminToken(t *testing.T) {
	r := newAuthRouter(t)

	token, err := utils.GenerateJWT(uuid.New(), "ops", true, 1)
	require.NoError(t, err)

	w := get(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"ops"`)
}

func TestAdminRequiredRejectsNonAdmin(t *testing.T) {
	r := newAuthRouter(t)

	token, err := utils.GenerateJWT(uuid.New(), "viewer", false, 1)
	require.NoError(t, err)

	w := get(r, "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthRequiredRejectsBadCredentials(t *testing.T) {
	r := newAuthRouter(t)

	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Basic abc123").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer not-a-token").Code)
}

func TestAuthRequiredRejectsTokenSignedWithOtherSecret(t *testing.T) {
	r := newAuthRouter(t)

	utils.SetJWTSecret("other-secret")
	token, err := utils.GenerateJWT(uuid.New(), "ops", true, 1)
	require.NoError(t, err)
	utils.SetJWTSecret("test-secret")

	w := get(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
