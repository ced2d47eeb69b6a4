package subscription

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
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"commonwealth/internal/database"
	"commonwealth/internal/domain"
	repos "commonwealth/internal/repository"
)

type MockIntervalStore struct {
	mock.Mock
}

func (m *MockIntervalStore) SetEmailInterval(ctx context.Context, userID int64, interval domain.EmailInterval) error {
	args := m.Called(ctx, userID, interval)
	return args.Error(0)
}

func TestService_SetEmailInterval(t *testing.T) {
	store := new(MockIntervalStore)
	svc := NewService(nil, store)
	ctx := context.Background()

	store.On("SetEmailInterval", ctx, int64(1), domain.IntervalDaily).Return(nil).Once()
	store.On("SetEmailInterval", ctx, int64(2), domain.IntervalWeekly).Return(gorm.ErrRecordNotFound).Once()

	assert.NoError(t, svc.SetEmailInterval(ctx, 1, domain.IntervalDaily))
	assert.ErrorIs(t, svc.SetEmailInterval(ctx, 2, domain.IntervalWeekly), ErrUserNotFound)
	assert.ErrorIs(t, svc.SetEmailInterval(ctx, 1, "hourly"), ErrInvalidInterval)
	store.AssertExpectations(t)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func setup(t *testing.T) (*gorm.DB, *domain.User, *gin.Engine) {
	t.Helper()
	db, err := database.Connect(fmt.Sprintf("file:subscription_%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	users := repos.NewUserRepository(db)
	u := &domain.User{Email: "u@example.com"}
	require.NoError(t, users.Create(context.Background(), u))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	protected := r.Group("/api/v1")
	protected.Use(func(c *gin.Context) {
		c.Set("user_id", u.ID)
		c.Next()
	})
	RegisterRoutes(protected, NewHandler(NewService(NewRepository(db), users)))
	return db, u, r
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

func TestHandler_SubscribeDisableReactivate(t *testing.T) {
	db, u, r := setup(t)

	code, env := do(t, r, http.MethodPost, "/api/v1/subscriptions", `{"category_id":"new-comment-creation","object_id":"discussion_42","immediate_email":true}`)
	require.Equal(t, http.StatusCreated, code)
	var created SubscriptionResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.True(t, created.IsActive)
	assert.True(t, created.ImmediateEmail)

	code, env = do(t, r, http.MethodPost, fmt.Sprintf("/api/v1/subscriptions/%d/disable", created.ID), "")
	require.Equal(t, http.StatusOK, code)
	var disabled SubscriptionResponse
	require.NoError(t, json.Unmarshal(env.Data, &disabled))
	assert.False(t, disabled.IsActive)

	code, env = do(t, r, http.MethodPost, "/api/v1/subscriptions", `{"category_id":"new-comment-creation","object_id":"discussion_42"}`)
	require.Equal(t, http.StatusOK, code)
	var reactivated SubscriptionResponse
	require.NoError(t, json.Unmarshal(env.Data, &reactivated))
	assert.Equal(t, created.ID, reactivated.ID)
	assert.True(t, reactivated.IsActive)
	assert.True(t, reactivated.ImmediateEmail)

	var count int64
	require.NoError(t, db.Model(&domain.Subscription{}).Where("subscriber_id = ?", u.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	code, env = do(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/subscriptions/%d/immediate-email", created.ID), `{"enabled":false}`)
	require.Equal(t, http.StatusOK, code)
	var updated SubscriptionResponse
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.False(t, updated.ImmediateEmail)

	code, env = do(t, r, http.MethodGet, "/api/v1/subscriptions?active=true", "")
	require.Equal(t, http.StatusOK, code)
	var list []SubscriptionResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
}

func TestHandler_EmailInterval(t *testing.T) {
	db, u, r := setup(t)

	code, _ := do(t, r, http.MethodPatch, "/api/v1/users/me/email-interval", `{"interval":"weekly"}`)
	require.Equal(t, http.StatusOK, code)

	var got domain.User
	require.NoError(t, db.First(&got, u.ID).Error)
	assert.Equal(t, domain.IntervalWeekly, got.EmailNotificationInterval)

	code, env := do(t, r, http.MethodPatch, "/api/v1/users/me/email-interval", `{"interval":"hourly"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_INTERVAL", env.Error.Code)
}

func TestHandler_Errors(t *testing.T) {
	_, _, r := setup(t)

	code, env := do(t, r, http.MethodPost, "/api/v1/subscriptions", `{"category_id":"bogus","object_id":"1"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_CATEGORY", env.Error.Code)

	code, env = do(t, r, http.MethodPost, "/api/v1/subscriptions", `{"category_id":"new-thread-creation"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	code, env = do(t, r, http.MethodPost, "/api/v1/subscriptions/999/enable", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	code, env = do(t, r, http.MethodPost, "/api/v1/subscriptions/abc/disable", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ID", env.Error.Code)
}
