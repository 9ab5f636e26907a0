package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestNoSpacesValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Initialize()

	type payload struct {
		Username string `json:"username" binding:"required,nospaces"`
	}

	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var p payload
		if err := c.ShouldBindJSON(&p); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"plain username", `{"username":"alice"}`, http.StatusOK},
		{"with underscore", `{"username":"alice_b"}`, http.StatusOK},
		{"embedded space", `{"username":"alice b"}`, http.StatusBadRequest},
		{"tab", `{"username":"alice\tb"}`, http.StatusBadRequest},
		{"newline", `{"username":"alice\nb"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}
