package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"boardgate/internal/auth"
	"boardgate/internal/config"
	"boardgate/internal/models"
	"boardgate/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthTestRouter(t *testing.T) (*gin.Engine, *auth.Service, *testutil.UserRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.JWTExpiration = 1

	users := testutil.NewUserRepo()
	authService := auth.NewService(cfg)
	m := NewAuthMiddleware(authService, users)

	r := gin.New()
	r.GET("/protected", m.AuthRequired(), func(c *gin.Context) {
		user := auth.GetUserFromContext(c)
		c.JSON(http.StatusOK, gin.H{"username": user.Username})
	})
	r.GET("/admin", m.AuthRequired(), m.AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r, authService, users
}

func doRequest(r *gin.Engine, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r, authService, users := newAuthTestRouter(t)

	user := &models.User{Username: "alice"}
	users.Add(user)
	token, err := authService.GenerateToken(user)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "NotBearer " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, "/protected", tt.header)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestAuthRequiredUnknownUser(t *testing.T) {
	r, authService, _ := newAuthTestRouter(t)

	// Token signed for a user that no longer exists.
	ghost := &models.User{Username: "ghost"}
	ghost.ID = [16]byte{1}
	token, err := authService.GenerateToken(ghost)
	require.NoError(t, err)

	w := doRequest(r, "/protected", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRequired(t *testing.T) {
	r, authService, users := newAuthTestRouter(t)

	admin := &models.User{Username: "root", Role: models.RoleAdmin}
	users.Add(admin)
	plain := &models.User{Username: "bob", Role: models.RoleUser}
	users.Add(plain)

	adminToken, err := authService.GenerateToken(admin)
	require.NoError(t, err)
	plainToken, err := authService.GenerateToken(plain)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, doRequest(r, "/admin", "Bearer "+adminToken).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(r, "/admin", "Bearer "+plainToken).Code)
}
