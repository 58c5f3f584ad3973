package handlers

import (
	"net/http"

	"device_triggers/internal/models"

	"github.com/gin-gonic/gin"
)

// AlarmRequest is the create payload. Omitted enabled means true.
type AlarmRequest struct {
	AlarmID      string               `json:"alarmID,omitempty" example:"a1"`
	DeviceID     string               `json:"deviceID" binding:"required" example:"D1"`
	VariableName string               `json:"variableName" binding:"required" example:"temperature"`
	Condition    models.ConditionType `json:"condition" binding:"required" example:"above"`
	Threshold    *float64             `json:"threshold" binding:"required" example:"30"`
	Enabled      *bool                `json:"enabled,omitempty"`
}

func (r AlarmRequest) toModel(owner string) models.Alarm {
	a := models.Alarm{
		Owner:        owner,
		AlarmID:      r.AlarmID,
		DeviceID:     r.DeviceID,
		VariableName: r.VariableName,
		Condition:    r.Condition,
		Threshold:    *r.Threshold,
		Enabled:      true,
	}
	if r.Enabled != nil {
		a.Enabled = *r.Enabled
	}
	return a
}

// @Summary      List alarms
// @Tags         alarms
// @Produce      json
// @Param        owner  path  string  true  "Owner"
// @Success      200  {object}  map[string]interface{}  "count, alarms"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/users/{owner}/alarms [get]
func (h *Handler) listAlarms(c *gin.Context) {
	alarms, err := h.services.Alarms.List(c.Request.Context(), ownerFrom(c))
	if err != nil {
		h.serviceError(c, "alarms_list_failed", err, "owner", ownerFrom(c))
		return
	}
	if alarms == nil {
		alarms = []models.Alarm{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(alarms), "alarms": alarms})
}

// @Summary      Create alarm
// @Description  Fires when variableName crosses threshold; one minute cooldown
// @Tags         alarms
// @Accept       json
// @Produce      json
// @Param        owner  path  string        true  "Owner"
// @Param        body   body  AlarmRequest  true  "Alarm"
// @Success      201  {object}  models.Alarm
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/users/{owner}/alarms [post]
func (h *Handler) createAlarm(c *gin.Context) {
	var req AlarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	a, err := h.services.Alarms.Create(c.Request.Context(), req.toModel(ownerFrom(c)))
	if err != nil {
		h.serviceError(c, "alarm_create_failed", err, "owner", ownerFrom(c))
		return
	}
	c.JSON(http.StatusCreated, a)
}

// @Summary      Delete alarm
// @Tags         alarms
// @Param        owner  path  string  true  "Owner"
// @Param        id     path  string  true  "Alarm id"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/users/{owner}/alarms/{id} [delete]
func (h *Handler) deleteAlarm(c *gin.Context) {
	if err := h.services.Alarms.Delete(c.Request.Context(), ownerFrom(c), c.Param("id")); err != nil {
		h.serviceError(c, "alarm_delete_failed", err, "owner", ownerFrom(c), "alarm_id", c.Param("id"))
		return
	}
	c.Status(http.StatusNoContent)
}
