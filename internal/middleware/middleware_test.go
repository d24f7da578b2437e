package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telehealth-portal/internal/backend"
	"telehealth-portal/internal/models"
	"telehealth-portal/internal/utils"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/p", handlers...)
	return r
}

func TestAuthMiddlewareSetsViewer(t *testing.T) {
	token, err := utils.GenerateToken("42", "USER", secret, time.Minute)
	require.NoError(t, err)

	var forwarded string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"id":"1","status":"SCHEDULED"}`))
	}))
	defer upstream.Close()
	client := backend.NewClient(upstream.URL)

	var got models.Viewer
	r := newRouter(AuthMiddleware(secret), func(c *gin.Context) {
		got, _ = GetViewerFromContext(c)
		_, err := client.GetAppointment(c.Request.Context(), "1")
		assert.NoError(t, err)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, models.Viewer{ID: "42", Role: models.RolePatient}, got)
	assert.Equal(t, "Bearer "+token, forwarded)
}

func TestAuthMiddlewareRejects(t *testing.T) {
	expired, err := utils.GenerateToken("42", models.RolePatient, secret, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := utils.GenerateToken("42", models.RolePatient, "other", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"expired", "Bearer " + expired},
		{"wrong key", "Bearer " + wrongKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(AuthMiddleware(secret), func(c *gin.Context) { c.Status(http.StatusOK) })
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRoleAuthMiddleware(t *testing.T) {
	doctor, _ := utils.GenerateToken("7", models.RoleDoctor, secret, time.Minute)
	r := newRouter(AuthMiddleware(secret), RoleAuthMiddleware(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer "+doctor)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoggerAndRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := gin.New()
	r.Use(RequestID(), Logger(logger), Recovery(logger))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "rid-1", w.Header().Get("X-Request-ID"))
	assert.Contains(t, buf.String(), `"panic":"kaboom"`)
	assert.Contains(t, buf.String(), `"request_id":"rid-1"`)
	assert.Contains(t, buf.String(), `"status":500`)
}
