package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commonwealth/internal/database"
	"commonwealth/internal/domain"
	"commonwealth/internal/middleware"
	"commonwealth/internal/repository"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func setupRouter(t *testing.T, role string) (*gin.Engine, *repository.WebhookRepository) {
	t.Helper()
	db, err := database.Connect(fmt.Sprintf("file:integration_%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	communities := repository.NewCommunityRepository(db)
	require.NoError(t, communities.Create(context.Background(), &domain.Community{ID: "ethereum", Name: "Ethereum"}))
	webhooks := repository.NewWebhookRepository(db)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	admin := r.Group("/api/v1/admin")
	admin.Use(func(c *gin.Context) {
		c.Set("user_id", int64(1))
		c.Set("role", role)
	}, middleware.AdminOnly())
	RegisterAdminRoutes(admin, NewHandler(NewService(webhooks, communities)))
	return r, webhooks
}

func do(t *testing.T, r *gin.Engine, method, path, body string) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestWebhookLifecycle(t *testing.T) {
	r, repo := setupRouter(t, "admin")
	base := "/api/v1/admin/communities/ethereum/webhooks"

	code, env := do(t, r, http.MethodPost, base, `{"url":"https://hooks.slack.com/services/T/B/x","categories":["new-thread-creation","new-thread-creation"]}`)
	require.Equal(t, http.StatusCreated, code)
	var created WebhookResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, []string{"new-thread-creation"}, created.Categories)

	code, env = do(t, r, http.MethodPost, base, `{"url":"https://hooks.slack.com/services/T/B/x"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "WEBHOOK_EXISTS", env.Error.Code)

	code, _ = do(t, r, http.MethodPut, base, `{"url":"https://hooks.slack.com/services/T/B/x","categories":["chain-event","new-comment-creation"]}`)
	require.Equal(t, http.StatusOK, code)

	hooks, err := repo.ListForCategory(context.Background(), "ethereum", domain.CategoryChainEvent)
	require.NoError(t, err)
	require.Len(t, hooks, 1)

	code, env = do(t, r, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, code)
	var list []WebhookResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, []string{"chain-event", "new-comment-creation"}, list[0].Categories)

	code, _ = do(t, r, http.MethodDelete, fmt.Sprintf("%s/%d", base, created.ID), "")
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, r, http.MethodDelete, fmt.Sprintf("%s/%d", base, created.ID), "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestWebhookValidation(t *testing.T) {
	r, _ := setupRouter(t, "admin")
	base := "/api/v1/admin/communities/ethereum/webhooks"

	code, env := do(t, r, http.MethodPost, base, `{"url":"ftp://example.com/hook"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_URL", env.Error.Code)

	code, env = do(t, r, http.MethodPost, base, `{"url":"https://example.com/hook","categories":["bogus"]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_CATEGORY", env.Error.Code)

	code, env = do(t, r, http.MethodGet, "/api/v1/admin/communities/unknown/webhooks", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	code, env = do(t, r, http.MethodPut, base, `{"url":"https://example.com/missing","categories":[]}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	code, env = do(t, r, http.MethodDelete, base+"/abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ID", env.Error.Code)
}

func TestWebhookRoutesRequireAdmin(t *testing.T) {
	r, _ := setupRouter(t, "member")
	code, env := do(t, r, http.MethodGet, "/api/v1/admin/communities/ethereum/webhooks", "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}
