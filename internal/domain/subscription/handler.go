package subscription

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"commonwealth/internal/domain"
	"commonwealth/internal/pkg/response"
	"commonwealth/internal/pkg/validator"
)

var errorMappings = []response.Mapping{
	{Err: ErrSubscriptionNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Subscription not found"},
	{Err: ErrInvalidCategory, Status: http.StatusBadRequest, Code: "INVALID_CATEGORY"},
	{Err: ErrMissingObjectID, Status: http.StatusBadRequest, Code: "VALIDATION_ERROR"},
	{Err: ErrInvalidInterval, Status: http.StatusBadRequest, Code: "INVALID_INTERVAL"},
	{Err: ErrUserNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "User not found"},
}

// Handler handles HTTP requests for subscription management.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List godoc
// @Summary List the caller's subscriptions
// @Tags Subscriptions
// @Security BearerAuth
// @Produce json
// @Param active query bool false "Only active subscriptions"
// @Success 200 {array} SubscriptionResponse
// @Router /subscriptions [get]
func (h *Handler) List(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	activeOnly, _ := strconv.ParseBool(c.Query("active"))
	subs, err := h.service.List(c.Request.Context(), userID, activeOnly)
	if err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}

	resp := make([]SubscriptionResponse, 0, len(subs))
	for i := range subs {
		resp = append(resp, toResponse(&subs[i]))
	}
	response.Success(c, http.StatusOK, resp)
}

// Create godoc
// @Summary Subscribe to a category/object pair
// @Description Reactivates the caller's existing subscription for the same pair instead of creating a duplicate.
// @Tags Subscriptions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreateSubscriptionRequest true "Subscription"
// @Success 201 {object} SubscriptionResponse
// @Success 200 {object} SubscriptionResponse
// @Router /subscriptions [post]
func (h *Handler) Create(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	sub, created, err := h.service.Subscribe(c.Request.Context(), userID, &req)
	if err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.Success(c, status, toResponse(sub))
}

// Disable godoc
// @Summary Deactivate a subscription
// @Tags Subscriptions
// @Security BearerAuth
// @Param id path int true "Subscription ID"
// @Success 200 {object} SubscriptionResponse
// @Router /subscriptions/{id}/disable [post]
func (h *Handler) Disable(c *gin.Context) {
	h.toggle(c, h.service.Disable)
}

// Enable godoc
// @Summary Reactivate a subscription
// @Tags Subscriptions
// @Security BearerAuth
// @Param id path int true "Subscription ID"
// @Success 200 {object} SubscriptionResponse
// @Router /subscriptions/{id}/enable [post]
func (h *Handler) Enable(c *gin.Context) {
	h.toggle(c, h.service.Enable)
}

// SetImmediateEmail godoc
// @Summary Turn immediate emails on or off for a subscription
// @Tags Subscriptions
// @Security BearerAuth
// @Accept json
// @Param id path int true "Subscription ID"
// @Param request body ImmediateEmailRequest true "Setting"
// @Success 200 {object} SubscriptionResponse
// @Router /subscriptions/{id}/immediate-email [patch]
func (h *Handler) SetImmediateEmail(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req ImmediateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	sub, err := h.service.SetImmediateEmail(c.Request.Context(), userID, id, *req.Enabled)
	if err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}
	response.Success(c, http.StatusOK, toResponse(sub))
}

// SetEmailInterval godoc
// @Summary Choose how often digest emails are sent
// @Tags Subscriptions
// @Security BearerAuth
// @Accept json
// @Param request body EmailIntervalRequest true "never, daily or weekly"
// @Router /users/me/email-interval [patch]
func (h *Handler) SetEmailInterval(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	var req EmailIntervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "INVALID_INTERVAL", ErrInvalidInterval.Error(), errs)
		return
	}

	interval := domain.EmailInterval(req.Interval)
	if err := h.service.SetEmailInterval(c.Request.Context(), userID, interval); err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"interval": interval})
}

func (h *Handler) toggle(c *gin.Context, fn func(ctx context.Context, userID, id int64) (*domain.Subscription, error)) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	sub, err := fn(c.Request.Context(), userID, id)
	if err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}
	response.Success(c, http.StatusOK, toResponse(sub))
}

func mustUserID(c *gin.Context) int64 {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
	}
	return userID
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid subscription ID")
		return 0, false
	}
	return id, true
}
