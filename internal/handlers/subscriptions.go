package handlers

import (
	"net/http"

	"device_triggers/internal/models"

	"github.com/gin-gonic/gin"
)

// SubscriptionRequest is the create/update payload. Omitted cooldownMillis
// means 30000; omitted enabled means true.
type SubscriptionRequest struct {
	SubscriptionID     string                    `json:"subscriptionID,omitempty" example:"s1"`
	DeviceID           string                    `json:"deviceID" binding:"required" example:"D1"`
	ParameterPath      string                    `json:"parameterPath" binding:"required" example:"temperature"`
	ConditionType      models.ConditionType      `json:"conditionType" binding:"required" example:"above"`
	ThresholdValue     models.Value              `json:"thresholdValue" swaggertype:"primitive,string" example:"30"`
	ToleranceFraction  *float64                  `json:"toleranceFraction,omitempty" example:"0.02"`
	CooldownMillis     *int64                    `json:"cooldownMillis,omitempty" example:"30000"`
	Commands           []models.Command          `json:"commands,omitempty"`
	NotificationMethod models.NotificationMethod `json:"notificationMethod,omitempty" example:"in_app"`
	Enabled            *bool                     `json:"enabled,omitempty"`
}

func (r SubscriptionRequest) toModel(owner string) models.Subscription {
	sub := models.Subscription{
		Owner:              owner,
		SubscriptionID:     r.SubscriptionID,
		DeviceID:           r.DeviceID,
		ParameterPath:      r.ParameterPath,
		ConditionType:      r.ConditionType,
		ThresholdValue:     r.ThresholdValue,
		ToleranceFraction:  r.ToleranceFraction,
		CooldownMillis:     models.DefaultCooldownMillis,
		Commands:           r.Commands,
		NotificationMethod: r.NotificationMethod,
		Enabled:            true,
	}
	if r.CooldownMillis != nil {
		sub.CooldownMillis = *r.CooldownMillis
	}
	if r.Enabled != nil {
		sub.Enabled = *r.Enabled
	}
	return sub
}

type enabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func subscriptionKey(c *gin.Context) models.SubscriptionKey {
	return models.SubscriptionKey{Owner: ownerFrom(c), SubscriptionID: c.Param("id")}
}

// @Summary      List subscriptions
// @Tags         subscriptions
// @Produce      json
// @Param        owner  path  string  true  "Owner"
// @Success      200  {object}  map[string]interface{}  "count, subscriptions"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/users/{owner}/subscriptions [get]
func (h *Handler) listSubscriptions(c *gin.Context) {
	subs, err := h.services.Subscriptions.List(c.Request.Context(), ownerFrom(c))
	if err != nil {
		h.serviceError(c, "subscriptions_list_failed", err, "owner", ownerFrom(c))
		return
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(subs), "subscriptions": subs})
}

// @Summary      Create subscription
// @Description  thresholdValue is required unless conditionType is change
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        owner  path  string               true  "Owner"
// @Param        body   body  SubscriptionRequest  true  "Subscription"
// @Success      201  {object}  models.Subscription
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/users/{owner}/subscriptions [post]
func (h *Handler) createSubscription(c *gin.Context) {
	var req SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	sub, err := h.services.Subscriptions.Create(c.Request.Context(), req.toModel(ownerFrom(c)))
	if err != nil {
		h.serviceError(c, "subscription_create_failed", err, "owner", ownerFrom(c))
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// @Summary      Get subscription
// @Tags         subscriptions
// @Produce      json
// @Param        owner  path  string  true  "Owner"
// @Param        id     path  string  true  "Subscription id"
// @Success      200  {object}  models.Subscription
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/users/{owner}/subscriptions/{id} [get]
func (h *Handler) getSubscription(c *gin.Context) {
	sub, err := h.services.Subscriptions.Get(c.Request.Context(), subscriptionKey(c))
	if err != nil {
		h.serviceError(c, "subscription_get_failed", err, "key", subscriptionKey(c).String())
		return
	}
	c.JSON(http.StatusOK, sub)
}

// @Summary      Replace subscription configuration
// @Description  Trigger state is kept unless the device, parameter or condition changes
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        owner  path  string               true  "Owner"
// @Param        id     path  string               true  "Subscription id"
// @Param        body   body  SubscriptionRequest  true  "Subscription"
// @Success      200  {object}  models.Subscription
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/users/{owner}/subscriptions/{id} [put]
func (h *Handler) updateSubscription(c *gin.Context) {
	var req SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	req.SubscriptionID = c.Param("id")
	sub, err := h.services.Subscriptions.Update(c.Request.Context(), req.toModel(ownerFrom(c)))
	if err != nil {
		h.serviceError(c, "subscription_update_failed", err, "key", subscriptionKey(c).String())
		return
	}
	c.JSON(http.StatusOK, sub)
}

// @Summary      Enable or disable subscription
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        owner  path  string  true  "Owner"
// @Param        id     path  string  true  "Subscription id"
// @Success      200  {object}  models.Subscription
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/users/{owner}/subscriptions/{id}/enabled [patch]
func (h *Handler) setSubscriptionEnabled(c *gin.Context) {
	var req enabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	sub, err := h.services.Subscriptions.SetEnabled(c.Request.Context(), subscriptionKey(c), *req.Enabled)
	if err != nil {
		h.serviceError(c, "subscription_set_enabled_failed", err, "key", subscriptionKey(c).String())
		return
	}
	c.JSON(http.StatusOK, sub)
}

// @Summary      Delete subscription
// @Tags         subscriptions
// @Param        owner  path  string  true  "Owner"
// @Param        id     path  string  true  "Subscription id"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/users/{owner}/subscriptions/{id} [delete]
func (h *Handler) deleteSubscription(c *gin.Context) {
	if err := h.services.Subscriptions.Delete(c.Request.Context(), subscriptionKey(c)); err != nil {
		h.serviceError(c, "subscription_delete_failed", err, "key", subscriptionKey(c).String())
		return
	}
	c.Status(http.StatusNoContent)
}
