package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/bursar-api/internal/application/service"
	"github.com/sangkips/bursar-api/internal/domain/gateway"
	"github.com/sangkips/bursar-api/internal/presentation/http/dto/response"
	"go.uber.org/zap"
)

// maxCallbackBytes bounds a provider notification body.
const maxCallbackBytes = 64 << 10

// WebhookHandler receives payment provider callbacks. Callbacks are not
// authenticated by token; the provider signature is verified instead.
type WebhookHandler struct {
	gateway        gateway.Gateway
	paymentService *service.PaymentService
	log            *zap.Logger
}

// NewWebhookHandler creates a new webhook handler. gw may be nil when no
// provider is configured.
func NewWebhookHandler(gw gateway.Gateway, paymentService *service.PaymentService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{gateway: gw, paymentService: paymentService, log: log}
}

// Midtrans handles a Midtrans HTTP notification
func (h *WebhookHandler) Midtrans(c *gin.Context) {
	if h.gateway == nil {
		response.NotFound(c, "Payment gateway is not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBytes))
	if err != nil {
		response.BadRequest(c, "Unable to read notification")
		return
	}

	notification, err := h.gateway.ParseNotification(body)
	if errors.Is(err, gateway.ErrInvalidSignature) {
		h.log.Warn("rejected gateway notification", zap.String("client_ip", c.ClientIP()))
		response.Unauthorized(c, "Invalid notification signature")
		return
	}
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	payment, err := h.paymentService.HandleGatewayCallback(c.Request.Context(), notification)
	if err != nil {
		h.log.Error("gateway notification not applied",
			zap.String("gateway_ref", notification.Ref),
			zap.Error(err),
		)
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Notification processed", gin.H{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})
}
