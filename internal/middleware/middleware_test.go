package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInternalTokenAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	r := gin.New()
	r.Use(InternalTokenAuth("s3cret", slog.New(slog.NewTextHandler(&logs, nil))))
	r.POST("/internal/emit", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPost, "/internal/emit", nil)
	w := serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_MISSING")

	req = httptest.NewRequest(http.MethodPost, "/internal/emit", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w = serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, logs.String(), "reason=invalid_token")

	req = httptest.NewRequest(http.MethodPost, "/internal/emit", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestInternalTokenAuth_Unconfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(InternalTokenAuth("", nil))
	r.POST("/internal/emit", func(c *gin.Context) { t.Fatal("should not reach handler") })

	req := httptest.NewRequest(http.MethodPost, "/internal/emit", nil)
	req.Header.Set("Authorization", "Bearer anything")
	assert.Equal(t, http.StatusInternalServerError, serve(r, req).Code)
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	role := ""
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if role != "" {
			c.Set("role", role)
		}
	}, AdminOnly())
	r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)
	role = "member"
	assert.Equal(t, http.StatusForbidden, serve(r, httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)
	role = "admin"
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://commonwealth.im"}))
	r.GET("/api", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api", nil)
	req.Header.Set("Origin", "https://commonwealth.im")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://commonwealth.im", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestErrorLogger_RecoversPanics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	r := gin.New()
	r.Use(RequestID(), ErrorLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := serve(r, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
	assert.Contains(t, logs.String(), "kaboom")
	assert.Contains(t, logs.String(), "request_id=req-1")
}

func TestRequestID_Generates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
	assert.Equal(t, w.Header().Get("X-Request-ID"), w.Body.String())
}

func TestRequireRole_AnyOf(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("role", c.GetHeader("X-Role")) }, RequireRole("moderator", RoleAdmin))
	r.GET("/mod", func(c *gin.Context) { c.Status(http.StatusOK) })

	for role, want := range map[string]int{"moderator": http.StatusOK, "admin": http.StatusOK, "member": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/mod", nil)
		req.Header.Set("X-Role", role)
		assert.Equal(t, want, serve(r, req).Code, role)
	}
}
