package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var localOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:8080",
}

// CORS allows the local dev origins plus any configured ones. Preflight
// requests finish here, before authentication runs.
func CORS(extraOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(localOrigins)+len(extraOrigins))
	for _, o := range localOrigins {
		allowed[o] = true
	}
	for _, o := range extraOrigins {
		if o != "" {
			allowed[o] = true
		}
	}

	cfg := cors.DefaultConfig()
	cfg.AddAllowHeaders("Authorization", "X-Request-ID")
	cfg.AddExposeHeaders("X-Request-ID")
	cfg.AllowCredentials = true
	cfg.AllowOriginFunc = func(origin string) bool {
		return allowed[origin]
	}
	cfg.MaxAge = 10 * time.Minute
	return cors.New(cfg)
}
