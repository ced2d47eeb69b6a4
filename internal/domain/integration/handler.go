package integration

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"commonwealth/internal/pkg/response"
)

var errorMappings = []response.Mapping{
	{Err: ErrWebhookNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Webhook not found"},
	{Err: ErrCommunityNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Community not found"},
	{Err: ErrWebhookExists, Status: http.StatusConflict, Code: "WEBHOOK_EXISTS", Message: "Webhook already exists"},
	{Err: ErrInvalidWebhookURL, Status: http.StatusBadRequest, Code: "INVALID_URL", Message: "Webhook URL must be an http(s) URL"},
	{Err: ErrInvalidCategory, Status: http.StatusBadRequest, Code: "INVALID_CATEGORY"},
}

// Handler serves admin management of community webhooks.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List godoc
// @Summary List a community's webhooks
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param community_id path string true "Community ID"
// @Success 200 {array} WebhookResponse
// @Router /admin/communities/{community_id}/webhooks [get]
func (h *Handler) List(c *gin.Context) {
	hooks, err := h.service.List(c.Request.Context(), c.Param("community_id"))
	if err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}
	resp := make([]WebhookResponse, 0, len(hooks))
	for i := range hooks {
		resp = append(resp, toResponse(&hooks[i]))
	}
	response.Success(c, http.StatusOK, resp)
}

// Create godoc
// @Summary Register a webhook for a community
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param community_id path string true "Community ID"
// @Param request body CreateWebhookRequest true "Webhook"
// @Success 201 {object} WebhookResponse
// @Router /admin/communities/{community_id}/webhooks [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}
	w, err := h.service.Create(c.Request.Context(), c.Param("community_id"), req.URL, req.Categories)
	if err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}
	response.Success(c, http.StatusCreated, toResponse(w))
}

// Update godoc
// @Summary Replace the categories a webhook receives
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param community_id path string true "Community ID"
// @Param request body UpdateWebhookRequest true "Webhook categories"
// @Success 200 {object} WebhookResponse
// @Router /admin/communities/{community_id}/webhooks [put]
func (h *Handler) Update(c *gin.Context) {
	var req UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}
	w, err := h.service.SetCategories(c.Request.Context(), c.Param("community_id"), req.URL, req.Categories)
	if err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}
	response.Success(c, http.StatusOK, toResponse(w))
}

// Delete godoc
// @Summary Remove a webhook
// @Tags Admin
// @Security BearerAuth
// @Param community_id path string true "Community ID"
// @Param id path int true "Webhook ID"
// @Router /admin/communities/{community_id}/webhooks/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid webhook ID")
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("community_id"), id); err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
