package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformhq/licensing/internal/api/dto"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/service"
)

// signatureHeader carries the processor's HMAC signature for the raw body.
const signatureHeader = "Stripe-Signature"

type WebhookHandler struct {
	service service.WebhookService
	log     *logger.Logger
}

func NewWebhookHandler(service service.WebhookService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, log: log}
}

// @Summary Receive payment processor webhook
// @Description Verify and process one webhook delivery from the payment processor
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} dto.WebhookResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /webhooks/payment [post]
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read webhook payload").
			Mark(ierr.ErrValidation))
		return
	}

	signature := c.GetHeader(signatureHeader)

	if err := h.service.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		if ierr.IsInvalidSignature(err) {
			c.Error(err)
			return
		}
		h.log.Errorw("webhook processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, ierr.NewErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{Received: true})
}
