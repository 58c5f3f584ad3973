package handlers

import (
	"errors"
	"net/http"

	"device_triggers/internal/engine"

	"github.com/gin-gonic/gin"
)

const maxEventBytes = 1 << 20

// @Summary      Ingest device event
// @Description  Accepts a raw broker envelope ({topic, payload, ...}) and runs one evaluation pass
// @Tags         events
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.PassSummary
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/events [post]
func (h *Handler) ingestEvent(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxEventBytes)
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	summary, err := h.services.Events.HandleEnvelope(c.Request.Context(), raw)
	var nerr *engine.NormalizationError
	switch {
	case errors.As(err, &nerr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errInternal, "event_ingest_failed", err)
	default:
		c.JSON(http.StatusOK, summary)
	}
}

// @Summary      Run subscription health sweep
// @Description  Disables subscriptions that trigger excessively or would re-trigger themselves
// @Tags         system
// @Produce      json
// @Success      200  {object}  service.HealthReport
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/health/sweep [post]
func (h *Handler) runHealthSweep(c *gin.Context) {
	report, err := h.services.Health.Sweep(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errInternal, "health_sweep_failed", err)
		return
	}
	c.JSON(http.StatusOK, report)
}
