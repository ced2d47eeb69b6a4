package notification

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the user-facing notification endpoints.
func RegisterRoutes(protected *gin.RouterGroup, handler *Handler) {
	notifGroup := protected.Group("/notifications")
	{
		notifGroup.GET("", handler.GetNotifications)
		notifGroup.GET("/unread-count", handler.GetUnreadCount)
		notifGroup.PATCH("/:id/read", handler.MarkAsRead)
		notifGroup.POST("/read-all", handler.MarkAllAsRead)
		notifGroup.DELETE("/:id", handler.DeleteNotification)
	}
}

// RegisterInternalRoutes mounts the producer endpoints behind the internal token.
func RegisterInternalRoutes(internal *gin.RouterGroup, handler *InternalHandler) {
	internal.POST("/notifications/emit", handler.Emit)
}
