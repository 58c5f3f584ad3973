package handlers

import (
	"context"
	"errors"
	"net/http"

	"device_triggers/internal/logger"
	"device_triggers/internal/models"
	"device_triggers/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// LiveFeed streams an owner's notifications as they are produced.
type LiveFeed interface {
	Subscribe(owner string) (<-chan models.Notification, func())
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	feed     LiveFeed
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies. feed may be
// nil, in which case /ws is not served.
func NewHandler(services *service.Service, feed LiveFeed, log *logger.Logger) *Handler {
	return &Handler{services: services, feed: feed, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", h.health)

	h.registerAPIRoutes(router)

	if h.feed != nil {
		router.GET("/ws", h.wsConnect)
	}
	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/events", h.ingestEvent)
		api.POST("/health/sweep", h.runHealthSweep)

		user := api.Group("/users/:owner", h.ownerMiddleware)
		h.registerSubscriptionRoutes(user)
		h.registerNotificationRoutes(user)
		h.registerAlarmRoutes(user)
	}
}

func (h *Handler) registerSubscriptionRoutes(user *gin.RouterGroup) {
	subs := user.Group("/subscriptions")
	{
		subs.GET("", h.listSubscriptions)
		subs.POST("", h.createSubscription)
		subs.GET("/:id", h.getSubscription)
		subs.PUT("/:id", h.updateSubscription)
		// Body example: {"enabled":false}
		subs.PATCH("/:id/enabled", h.setSubscriptionEnabled)
		subs.DELETE("/:id", h.deleteSubscription)
	}
}

func (h *Handler) registerNotificationRoutes(user *gin.RouterGroup) {
	feed := user.Group("/notifications")
	{
		feed.GET("", h.listNotifications)
		feed.POST("/:id/read", h.markNotificationRead)
	}
}

func (h *Handler) registerAlarmRoutes(user *gin.RouterGroup) {
	alarms := user.Group("/alarms")
	{
		alarms.GET("", h.listAlarms)
		alarms.POST("", h.createAlarm)
		alarms.DELETE("/:id", h.deleteAlarm)
	}
}

const (
	statusOK = "ok"

	errInvalidBodyPref = "invalid body: "
	errInternal        = "internal error"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// serviceError maps service sentinels to status codes; anything else is a 500.
func (h *Handler) serviceError(c *gin.Context, logKey string, err error, kv ...interface{}) {
	switch {
	case errors.Is(err, service.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		h.logAndJSONError(c, http.StatusGatewayTimeout, "timed out", logKey, err, kv...)
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, errInternal, logKey, err, kv...)
	}
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}
