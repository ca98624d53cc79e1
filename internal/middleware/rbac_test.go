package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sekolahku/sims-api/internal/models"
)

func rbacContext(t *testing.T, claims *models.JWTClaims, paramID string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}
	if paramID != "" {
		c.Params = gin.Params{{Key: "id", Value: paramID}}
	}
	return c, w
}

func TestRBACAllowsRole(t *testing.T) {
	c, _ := rbacContext(t, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}, "")

	RBAC("SUPERADMIN", "ADMIN")(c)
	assert.False(t, c.IsAborted())
}

func TestRBACForbidsRole(t *testing.T) {
	c, w := rbacContext(t, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}, "")

	RBAC("SUPERADMIN", "ADMIN")(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACSelfMatchesStudentLink(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent, StudentID: "stu-1"}
	c, _ := rbacContext(t, claims, "stu-1")

	RBAC("ADMIN", "SELF")(c)
	assert.False(t, c.IsAborted())
}

func TestRBACSelfMatchesUserID(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}
	c, _ := rbacContext(t, claims, "u1")

	RBAC("ADMIN", "SELF")(c)
	assert.False(t, c.IsAborted())
}

func TestRBACSelfForbidsOtherStudent(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent, StudentID: "stu-1"}
	c, w := rbacContext(t, claims, "stu-2")

	RBAC("ADMIN", "SELF")(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACMissingClaims(t *testing.T) {
	c, w := rbacContext(t, nil, "stu-1")

	RBAC("ADMIN", "SELF")(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
