package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformhq/licensing/internal/api/dto"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/service"
)

type UsageHandler struct {
	service service.UsageService
	log     *logger.Logger
}

func NewUsageHandler(service service.UsageService, log *logger.Logger) *UsageHandler {
	return &UsageHandler{service: service, log: log}
}

// @Summary Track usage
// @Description Record feature usage for a tenant in the current period
// @Tags Usage
// @Accept json
// @Produce json
// @Param tenant_id path string true "Tenant ID"
// @Param request body dto.TrackUsageRequest true "Usage tracking request"
// @Success 202 {object} map[string]string
// @Failure 400 {object} ierr.ErrorResponse
// @Router /usage/{tenant_id}/track [post]
func (h *UsageHandler) TrackUsage(c *gin.Context) {
	var req dto.TrackUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	h.service.TrackUsage(c.Request.Context(), c.Param("tenant_id"), req.FeatureCode, req.Value, req.Metadata)

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// @Summary Check feature limit
// @Description Evaluate a tenant's current usage of one feature against its plan limit
// @Tags Usage
// @Produce json
// @Param tenant_id path string true "Tenant ID"
// @Param feature_code path string true "Feature code"
// @Success 200 {object} usage.FeatureLimit
// @Failure 404 {object} ierr.ErrorResponse
// @Router /usage/{tenant_id}/limits/{feature_code} [get]
func (h *UsageHandler) CheckFeatureLimit(c *gin.Context) {
	resp, err := h.service.CheckFeatureLimit(c.Request.Context(), c.Param("tenant_id"), c.Param("feature_code"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
