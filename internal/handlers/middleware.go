package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const ownerKey = "owner"

// ownerMiddleware validates the :owner path segment and stores it in the
// Gin context.
func (h *Handler) ownerMiddleware(c *gin.Context) {
	owner := strings.TrimSpace(c.Param("owner"))
	if owner == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": "missing owner",
		})
		return
	}
	c.Set(ownerKey, owner)
	c.Next()
}

func ownerFrom(c *gin.Context) string {
	return c.GetString(ownerKey)
}

func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	if h.log == nil {
		return
	}
	h.log.Debugw("http_request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
