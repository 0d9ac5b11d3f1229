package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/mollie-gateway/internal/app/service/donation"
	"github.com/fatflowers/mollie-gateway/internal/app/service/payment"
	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	"github.com/fatflowers/mollie-gateway/internal/models"
	"github.com/fatflowers/mollie-gateway/pkg/logctx"
	"github.com/fatflowers/mollie-gateway/pkg/response"
)

// DonationReader loads donations for the HTTP layer.
type DonationReader interface {
	GetDonation(ctx context.Context, id string) (*models.Donation, error)
}

// @Summary      Process Donation
// @Description  Starts the gateway checkout for a pending donation and returns the redirect target.
// @Tags         Payment
// @Produce      json
// @Param        id   path      string  true  "Donation id"
// @Success      200  {object}  handlers.RespPaymentResult
// @Router       /api/v2/payment/donations/{id}/process [post]
func ApiProcessDonation(reg *registry.Registry, donations DonationReader, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		lg := logctx.FromGin(c, log).With("donation_id", id)

		d, err := donations.GetDonation(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, donation.ErrNotFound) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		processor, ok := reg.PaymentProcessor(d.Gateway)
		if !ok {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "no payment processor for gateway "+d.Gateway))
			return
		}

		res, err := processor.ProcessDonation(c.Request.Context(), id)
		switch {
		case errors.Is(err, payment.ErrNotPending), errors.Is(err, payment.ErrWrongGateway):
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeConflict, err.Error()))
			return
		case err != nil && res == nil:
			lg.Errorw("process_donation_failed", "err", err)
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		case !res.Success:
			c.JSON(http.StatusOK, response.ErrorT(response.APIResponseCodeError, res))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterPaymentV2Routes(r gin.IRouter, reg *registry.Registry, donations DonationReader, log *zap.SugaredLogger) {
	r.POST("/donations/:id/process", ApiProcessDonation(reg, donations, log))
	RegisterPaymentWebhookRoutes(r, reg, log)
}
