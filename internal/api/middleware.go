package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// corsMiddleware returns middleware that handles CORS (Cross-Origin Resource Sharing).
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns middleware for logging requests.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.WithFields(log.Fields{
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    path,
			"latency": time.Since(start),
			"ip":      c.ClientIP(),
		}).Info("Request completed")
	}
}

// apiKeyAuth returns middleware that validates API keys if configured.
func (s *Server) apiKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(s.cfg.APIKeys) == 0 {
			c.Next()
			return
		}

		if !slices.Contains(s.cfg.APIKeys, extractAPIKey(c)) {
			abortWithError(c, http.StatusUnauthorized, "authentication_error", "Invalid API key")
			return
		}

		c.Next()
	}
}

// rateLimitMiddleware returns middleware that limits requests per minute for
// each API key, or each client IP when no key is sent.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := s.cfg.RateLimit
		if limit <= 0 {
			c.Next()
			return
		}

		key := extractAPIKey(c)
		if key == "" {
			key = c.ClientIP()
		}

		val, _ := s.limiters.LoadOrStore(key, rate.NewLimiter(rate.Every(time.Minute/time.Duration(limit)), limit))
		if !val.(*rate.Limiter).Allow() {
			abortWithError(c, http.StatusTooManyRequests, "rate_limit_error", "Rate limit exceeded. Please try again later.")
			return
		}

		c.Next()
	}
}

// extractAPIKey extracts the API key from request headers.
func extractAPIKey(c *gin.Context) string {
	if key, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok && key != "" {
		return key
	}
	return c.GetHeader("x-api-key")
}

func abortWithError(c *gin.Context, status int, errType, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"message": message,
			"type":    errType,
		},
	})
}
