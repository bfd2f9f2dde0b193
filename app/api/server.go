package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewServer creates the HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey, allowedOrigin string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if allowedOrigin != "" {
		corsConfig.AllowOrigins = []string{allowedOrigin}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"}
	r.Use(cors.New(corsConfig))

	setupRoutes(r, handler, apiAccessKey)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	// Public digest endpoints: no secrets embedded, safe unauthenticated.
	r.GET("/latest", handler.GetLatestDigest)
	r.GET("/runs/:id/digest", handler.GetRunDigest)

	// Health and status endpoints
	r.GET("/health", handler.HealthCheck)

	// Admin endpoints (conditionally enabled with authentication)
	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.GET("/newsletters", handler.ListNewsletters)
			api.POST("/newsletters", handler.CreateNewsletter)
			api.GET("/newsletters/:id", handler.GetNewsletter)
			api.PUT("/newsletters/:id", handler.UpdateNewsletter)
			api.DELETE("/newsletters/:id", handler.DeleteNewsletter)
			api.POST("/newsletters/:id/run", handler.RunNewsletter)
			api.POST("/newsletters/:id/reset-seen", handler.ResetSeen)
			api.GET("/newsletters/:id/runs", handler.ListRuns)

			api.GET("/runs/:id", handler.GetRun)
			api.GET("/runs/:id/logs", handler.GetRunLogs)

			api.GET("/settings", handler.GetSettings)
			api.PUT("/settings", handler.UpdateSettings)

			api.GET("/logs", handler.GetLiveLogs)
			api.GET("/schedule", handler.GetSchedule)
		}
		slog.Info("Admin API endpoints enabled with authentication")
	} else {
		slog.Info("Admin API endpoints disabled (API_ACCESS_KEY not set)")
	}

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"latest": "/latest",
			"digest": "/runs/<run_id>/digest",
			"health": "/health",
		}
		if apiAccessKey != "" {
			endpoints["admin"] = "/api/* (requires X-API-Key header)"
		}

		c.JSON(200, gin.H{
			"service":     "AI News Digest",
			"description": "Multi-tenant AI newsletter engine: RSS ingestion, ranking, LLM analysis, and email delivery",
			"endpoints":   endpoints,
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// authMiddleware creates authentication middleware for admin endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
