package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformhq/licensing/internal/api/dto"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/service"
)

type BillingHandler struct {
	service service.BillingService
	log     *logger.Logger
}

func NewBillingHandler(service service.BillingService, log *logger.Logger) *BillingHandler {
	return &BillingHandler{service: service, log: log}
}

// @Summary Process usage based billing
// @Description Bill the tenant for resource usage beyond plan limits
// @Tags Billing
// @Accept json
// @Produce json
// @Param tenant_id path string true "Tenant ID"
// @Param request body dto.ProcessBillingRequest false "Usage reading; omitted to use the latest snapshot"
// @Success 200 {object} dto.BillingRunResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /billing/{tenant_id}/usage [post]
func (h *BillingHandler) ProcessUsageBasedBilling(c *gin.Context) {
	var req dto.ProcessBillingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid request format").
				Mark(ierr.ErrValidation))
			return
		}
	}

	resp, err := h.service.ProcessUsageBasedBilling(c.Request.Context(), c.Param("tenant_id"), req.Usage)
	if err != nil {
		h.log.Errorw("usage based billing failed", "tenant_id", c.Param("tenant_id"), "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get billing analytics
// @Description Aggregate invoice totals for the tenant over a period
// @Tags Billing
// @Produce json
// @Param tenant_id path string true "Tenant ID"
// @Param period query string false "Aggregation period: month, quarter or year" default(month)
// @Success 200 {object} dto.BillingAnalyticsResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /billing/{tenant_id}/analytics [get]
func (h *BillingHandler) GetBillingAnalytics(c *gin.Context) {
	req := dto.BillingAnalyticsRequest{Period: c.DefaultQuery("period", "month")}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	resp, err := h.service.GetBillingAnalytics(c.Request.Context(), c.Param("tenant_id"), req.Period)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List billing events
// @Description Read the tenant's billing audit log, newest first
// @Tags Billing
// @Produce json
// @Param tenant_id path string true "Tenant ID"
// @Param type query string false "Filter to one event type"
// @Param limit query int false "Maximum entries to return" default(50)
// @Success 200 {object} dto.ListBillingEventsResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /billing/{tenant_id}/events [get]
func (h *BillingHandler) ListBillingEvents(c *gin.Context) {
	var req dto.ListBillingEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid query parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListBillingEvents(c.Request.Context(), c.Param("tenant_id"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Add payment method
// @Description Attach a payment method to the tenant's processor customer
// @Tags Billing
// @Accept json
// @Produce json
// @Param tenant_id path string true "Tenant ID"
// @Param request body dto.AddPaymentMethodRequest true "Payment method request"
// @Success 201 {object} dto.PaymentMethodResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /billing/{tenant_id}/payment-methods [post]
func (h *BillingHandler) AddPaymentMethod(c *gin.Context) {
	var req dto.AddPaymentMethodRequest
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

	resp, err := h.service.AddPaymentMethod(c.Request.Context(), c.Param("tenant_id"), &req)
	if err != nil {
		h.log.Errorw("failed to add payment method", "tenant_id", c.Param("tenant_id"), "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Remove payment method
// @Description Detach a payment method from the tenant's processor customer
// @Tags Billing
// @Produce json
// @Param tenant_id path string true "Tenant ID"
// @Param payment_method_id path string true "Payment method ID"
// @Success 204
// @Failure 404 {object} ierr.ErrorResponse
// @Router /billing/{tenant_id}/payment-methods/{payment_method_id} [delete]
func (h *BillingHandler) RemovePaymentMethod(c *gin.Context) {
	err := h.service.RemovePaymentMethod(c.Request.Context(), c.Param("tenant_id"), c.Param("payment_method_id"))
	if err != nil {
		h.log.Errorw("failed to remove payment method", "tenant_id", c.Param("tenant_id"), "error", err)
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
