package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/sangkips/bursar-api/internal/config"
)

// Headers the billing API always needs, whatever CORS_ALLOWED_HEADERS says.
var requiredHeaders = []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"}

// CORSMiddleware builds the CORS policy for the bursar dashboard
func CORSMiddleware(cfg *config.CORSConfig) gin.HandlerFunc {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}

	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "PUT", "OPTIONS"}
	}

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     methods,
		AllowHeaders:     lo.Union(cfg.AllowedHeaders, requiredHeaders),
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-Idempotency-Replayed", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
