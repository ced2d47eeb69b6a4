package integration

import "github.com/gin-gonic/gin"

// RegisterAdminRoutes mounts webhook management under an admin-only group.
func RegisterAdminRoutes(admin *gin.RouterGroup, h *Handler) {
	hooks := admin.Group("/communities/:community_id/webhooks")
	{
		hooks.GET("", h.List)
		hooks.POST("", h.Create)
		hooks.PUT("", h.Update)
		hooks.DELETE("/:id", h.Delete)
	}
}
