package handlers

import (
	"net/http"
	"strconv"

	"device_triggers/internal/models"

	"github.com/gin-gonic/gin"
)

// @Summary      List notifications
// @Description  Newest first
// @Tags         notifications
// @Produce      json
// @Param        owner   path   string  true   "Owner"
// @Param        unread  query  bool    false  "Only unread"
// @Param        limit   query  int     false  "Page size (default 50, max 500)"
// @Success      200  {object}  map[string]interface{}  "count, notifications"
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/users/{owner}/notifications [get]
func (h *Handler) listNotifications(c *gin.Context) {
	unread := false
	if s := c.Query("unread"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'unread'; use true or false"})
			return
		}
		unread = v
	}
	limit := 0
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit'"})
			return
		}
		limit = v
	}

	list, err := h.services.Notifications.List(c.Request.Context(), ownerFrom(c), unread, limit)
	if err != nil {
		h.serviceError(c, "notifications_list_failed", err, "owner", ownerFrom(c))
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "notifications": list})
}

// @Summary      Mark notification read
// @Tags         notifications
// @Produce      json
// @Param        owner  path  string  true  "Owner"
// @Param        id     path  string  true  "Notification id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/users/{owner}/notifications/{id}/read [post]
func (h *Handler) markNotificationRead(c *gin.Context) {
	if err := h.services.Notifications.MarkRead(c.Request.Context(), ownerFrom(c), c.Param("id")); err != nil {
		h.serviceError(c, "notification_mark_read_failed", err, "owner", ownerFrom(c), "notification_id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}
