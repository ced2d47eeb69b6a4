package subscription

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts subscription management for the authenticated user.
func RegisterRoutes(protected *gin.RouterGroup, h *Handler) {
	subs := protected.Group("/subscriptions")
	{
		subs.GET("", h.List)
		subs.POST("", h.Create)
		subs.POST("/:id/disable", h.Disable)
		subs.POST("/:id/enable", h.Enable)
		subs.PATCH("/:id/immediate-email", h.SetImmediateEmail)
	}
	protected.PATCH("/users/me/email-interval", h.SetEmailInterval)
}
