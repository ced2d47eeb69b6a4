package notification

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"commonwealth/internal/pkg/response"
)

var errorMappings = []response.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Notification not found"},
	{Err: ErrInvalidCategory, Status: http.StatusBadRequest, Code: "INVALID_CATEGORY"},
	{Err: ErrInvalidPayload, Status: http.StatusBadRequest, Code: "INVALID_PAYLOAD"},
	{Err: ErrMissingObjectID, Status: http.StatusBadRequest, Code: "VALIDATION_ERROR"},
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetNotifications lists the caller's read rows after a cursor.
// @Summary		List notifications
// @Tags		Notifications
// @Security	BearerAuth
// @Param		after_id	query	int		false	"Offset cursor, exclusive"
// @Param		limit		query	int		false	"Page size (default 20, max 100)"
// @Param		unread_only	query	bool	false	"Only unread rows"
// @Success		200	{object}	NotificationListResponse
// @Router		/notifications [GET]
func (h *Handler) GetNotifications(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	afterID, _ := strconv.ParseInt(c.Query("after_id"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))
	unreadOnly, _ := strconv.ParseBool(c.Query("unread_only"))

	items, unread, err := h.service.List(c.Request.Context(), userID, afterID, limit, unreadOnly)
	if err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}

	out := NotificationListResponse{
		Notifications: make([]*NotificationResponse, 0, len(items)),
		UnreadCount:   unread,
		NextAfterID:   afterID,
	}
	for _, it := range items {
		out.Notifications = append(out.Notifications, NotificationResponseFromItem(it))
		out.NextAfterID = it.ReadOffset
	}
	response.Success(c, http.StatusOK, out)
}

// GetUnreadCount
// @Summary		Unread notification count
// @Tags		Notifications
// @Security	BearerAuth
// @Success		200	{object}	UnreadCountResponse
// @Router		/notifications/unread-count [GET]
func (h *Handler) GetUnreadCount(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	unread, err := h.service.GetUnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}
	response.Success(c, http.StatusOK, UnreadCountResponse{UnreadCount: unread})
}

// MarkAsRead flips one read row, addressed by its per-user offset.
// @Summary		Mark notification read
// @Tags		Notifications
// @Security	BearerAuth
// @Param		id	path	int	true	"Per-user offset"
// @Router		/notifications/{id}/read [PATCH]
func (h *Handler) MarkAsRead(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	offset, ok := parseOffset(c)
	if !ok {
		return
	}

	if err := h.service.MarkAsRead(c.Request.Context(), userID, offset); err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "read"})
}

// MarkAllAsRead
// @Summary		Mark all notifications read
// @Tags		Notifications
// @Security	BearerAuth
// @Router		/notifications/read-all [POST]
func (h *Handler) MarkAllAsRead(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	updated, err := h.service.MarkAllAsRead(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "all_read", "updated": updated})
}

// DeleteNotification removes one of the caller's read rows.
// @Summary		Delete notification
// @Tags		Notifications
// @Security	BearerAuth
// @Param		id	path	int	true	"Per-user offset"
// @Router		/notifications/{id} [DELETE]
func (h *Handler) DeleteNotification(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	offset, ok := parseOffset(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, offset); err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "deleted"})
}

func parseOffset(c *gin.Context) (int64, bool) {
	offset, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || offset <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid notification ID")
		return 0, false
	}
	return offset, true
}

// InternalHandler is the producer surface used by other services.
type InternalHandler struct {
	engine *Engine
}

func NewInternalHandler(engine *Engine) *InternalHandler {
	return &InternalHandler{engine: engine}
}

// Emit records and fans out one event.
// @Summary		Emit notification
// @Tags		Internal
// @Param		request	body	EmitNotificationRequest	true	"Event"
// @Success		201	{object}	EmitNotificationResponse
// @Router		/internal/notifications/emit [POST]
func (h *InternalHandler) Emit(c *gin.Context) {
	var req EmitNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	emit, err := req.ToEmitRequest()
	if err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}

	n, err := h.engine.Emit(c.Request.Context(), emit)
	if err != nil {
		response.FromError(c, err, errorMappings...)
		return
	}
	response.Success(c, http.StatusCreated, EmitNotificationResponse{Notification: n})
}
