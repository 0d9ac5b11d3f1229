package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	"github.com/fatflowers/mollie-gateway/pkg/logctx"
)

const maxWebhookBody = 64 << 10

// @Summary      Payment gateway webhook
// @Description  Receives payment notifications. Mollie posts a form body "id=<payment id>".
// @Description  The reply is plain text; any non-200 status makes Mollie redeliver.
// @Tags         Webhook
// @Accept       x-www-form-urlencoded
// @Produce      plain
// @Param        source  path      string  true  "Gateway id, e.g. mollie"
// @Param        id      formData  string  true  "Payment id"
// @Success      200  {string}  string
// @Failure      404  {string}  string
// @Failure      500  {string}  string
// @Failure      503  {string}  string
// @Router       /api/v2/payment/webhook/{source} [post]
func ApiPaymentWebhook(reg *registry.Registry, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		source := c.Param("source")
		lg := logctx.FromGin(c, log).With("source", source)

		receiver, ok := reg.WebhookReceiver(source)
		if !ok {
			lg.Warnw("webhook_unknown_source")
			c.String(http.StatusNotFound, "Unknown webhook source")
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			lg.Errorw("webhook_read_body_failed", "err", err)
			c.String(http.StatusBadRequest, "Invalid request")
			return
		}

		lg.Infow("webhook_received", "method", c.Request.Method)
		res := receiver.Receive(c.Request.Context(), &registry.WebhookRequest{
			Method: c.Request.Method,
			Header: c.Request.Header.Clone(),
			Body:   body,
		})
		c.String(res.Status, res.Message)
	}
}

// RegisterPaymentWebhookRoutes routes every method so receivers decide how
// to answer non-POST deliveries.
func RegisterPaymentWebhookRoutes(r gin.IRouter, reg *registry.Registry, log *zap.SugaredLogger) {
	r.Any("/webhook/:source", ApiPaymentWebhook(reg, log))
}
