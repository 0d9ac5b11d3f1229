package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fatflowers/mollie-gateway/internal/app/service/donation"
	"github.com/fatflowers/mollie-gateway/internal/app/service/gateway"
	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	"github.com/fatflowers/mollie-gateway/internal/models"
	"github.com/fatflowers/mollie-gateway/pkg/logctx"
	"github.com/fatflowers/mollie-gateway/pkg/response"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

// DonationAdmin is the gateway side of the admin actions.
type DonationAdmin interface {
	IsDonationRefundable(d *models.Donation) bool
	RefundDonationFromDashboard(ctx context.Context, donationID string) error
	CancelSubscription(ctx context.Context, recurringDonationID string) error
	CustomerID(ctx context.Context, d *models.Donation) (string, error)
}

// DonationStore is what the admin handlers read.
type DonationStore interface {
	GetDonation(ctx context.Context, id string) (*models.Donation, error)
	ListLogs(ctx context.Context, id string) ([]*models.DonationLog, error)
	ScanDonations(ctx context.Context, req *donation.ScanDonationsRequest) (*donation.ScanDonationsResponse, error)
}

type GatewaySettingsResponse struct {
	ID       string                  `json:"id"`
	Name     string                  `json:"name"`
	Features []string                `json:"features"`
	Fields   []registry.SettingField `json:"fields"`
}

type DonationItem struct {
	ID                    string               `json:"id"`
	DonationKey           string               `json:"donation_key"`
	DonorID               string               `json:"donor_id"`
	Email                 string               `json:"email"`
	Name                  string               `json:"name"`
	CampaignID            string               `json:"campaign_id"`
	Amount                decimal.Decimal      `json:"amount"`
	Currency              string               `json:"currency"`
	Gateway               string               `json:"gateway"`
	TestMode              bool                 `json:"test_mode"`
	Status                types.DonationStatus `json:"status"`
	GatewayTransactionID  string               `json:"gateway_transaction_id"`
	GatewayTransactionURL string               `json:"gateway_transaction_url"`
	RecurringDonationID   *string              `json:"recurring_donation_id"`
	Refunded              bool                 `json:"refunded"`
	RefundLog             *models.RefundLog    `json:"refund_log,omitempty"`
	CreatedAt             time.Time            `json:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at"`
}

func toDonationItem(d *models.Donation) *DonationItem {
	return &DonationItem{
		ID:                    d.ID,
		DonationKey:           d.DonationKey,
		DonorID:               d.DonorID,
		Email:                 d.Email,
		Name:                  d.FullName(),
		CampaignID:            d.CampaignID,
		Amount:                d.Amount,
		Currency:              d.Currency,
		Gateway:               d.Gateway,
		TestMode:              d.TestMode,
		Status:                d.Status,
		GatewayTransactionID:  d.GatewayTransactionID,
		GatewayTransactionURL: d.GatewayTransactionURL,
		RecurringDonationID:   d.RecurringDonationID,
		Refunded:              d.Refunded,
		RefundLog:             d.RefundLog.Data(),
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
}

type DonationLogItem struct {
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type DonationDetailResponse struct {
	Donation         *DonationItem      `json:"donation"`
	Logs             []*DonationLogItem `json:"logs"`
	MollieCustomerID string             `json:"mollie_customer_id,omitempty"`
	Refundable       bool               `json:"refundable"`
}

type ListDonationsResponse struct {
	Items []*DonationItem `json:"items"`
	Total int64           `json:"total"`
}

// @Summary      Gateway Settings (Admin)
// @Description  Returns the settings schema of a registered gateway. Secret values are masked.
// @Tags         Admin
// @Produce      json
// @Security     AdminBearer
// @Param        gateway  path      string  true  "Gateway id"
// @Success      200  {object}  handlers.RespGatewaySettings
// @Router       /api/v1/admin/gateways/{gateway}/settings [get]
func ApiGatewaySettings(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		g, ok := reg.Gateway(c.Param("gateway"))
		if !ok {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, "unknown gateway"))
			return
		}
		features := lo.Filter([]string{registry.FeatureRefunds, registry.FeatureRecurring}, func(f string, _ int) bool { return g.Supports(f) })
		c.JSON(http.StatusOK, response.OKT(&GatewaySettingsResponse{ID: g.ID(), Name: g.Name(), Features: features, Fields: g.SettingsFields()}))
	}
}

// @Summary      Get Donation (Admin)
// @Description  Returns a donation with its log and the donor's Mollie customer id.
// @Tags         Admin
// @Produce      json
// @Security     AdminBearer
// @Param        id   path      string  true  "Donation id"
// @Success      200  {object}  handlers.RespDonationDetail
// @Router       /api/v1/admin/donations/{id} [get]
func ApiGetDonation(store DonationStore, admin DonationAdmin, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		d, err := store.GetDonation(ctx, c.Param("id"))
		if err != nil {
			writeAdminError(c, err)
			return
		}
		logs, err := store.ListLogs(ctx, d.ID)
		if err != nil {
			writeAdminError(c, err)
			return
		}

		out := &DonationDetailResponse{
			Donation: toDonationItem(d),
			Logs: lo.Map(logs, func(l *models.DonationLog, _ int) *DonationLogItem {
				return &DonationLogItem{Message: l.Message, CreatedAt: l.CreatedAt}
			}),
		}
		if d.Gateway == gateway.ID {
			out.Refundable = admin.IsDonationRefundable(d)
			if out.MollieCustomerID, err = admin.CustomerID(ctx, d); err != nil {
				logctx.FromGin(c, log).Warnw("customer_id_lookup_failed", "donation_id", d.ID, "err", err)
			}
		}
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

// @Summary      List Donations (Admin)
// @Description  Retrieves a paginated and filterable list of donations.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminBearer
// @Param        request body donation.ScanDonationsRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListDonations
// @Router       /api/v1/admin/list_donations [post]
func ApiListDonations(store DonationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req donation.ScanDonationsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := store.ScanDonations(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListDonationsResponse{Items: lo.Map(res.Items, func(d *models.Donation, _ int) *DonationItem { return toDonationItem(d) }), Total: res.Total}))
	}
}

// @Summary      Refund Donation (Admin)
// @Description  Refunds the full donation amount through Mollie. A donation is refunded at most once.
// @Tags         Admin
// @Produce      json
// @Security     AdminBearer
// @Param        id   path      string  true  "Donation id"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/donations/{id}/refund [post]
func ApiRefundDonation(admin DonationAdmin, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := admin.RefundDonationFromDashboard(c.Request.Context(), id); err != nil {
			logctx.FromGin(c, log).Warnw("admin_refund_failed", "donation_id", id, "err", err)
			writeAdminError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Cancel Subscription (Admin)
// @Description  Cancels the Mollie subscription of a recurring donation. A subscription is cancelled at most once.
// @Tags         Admin
// @Produce      json
// @Security     AdminBearer
// @Param        id   path      string  true  "Recurring donation id"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/recurring_donations/{id}/cancel [post]
func ApiCancelSubscription(admin DonationAdmin, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := admin.CancelSubscription(c.Request.Context(), id); err != nil {
			logctx.FromGin(c, log).Warnw("admin_cancel_subscription_failed", "recurring_donation_id", id, "err", err)
			writeAdminError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

func writeAdminError(c *gin.Context, err error) {
	code := response.APIResponseCodeError
	switch {
	case errors.Is(err, donation.ErrNotFound):
		code = response.APIResponseCodeNotFound
	case errors.Is(err, gateway.ErrAlreadyRefunded), errors.Is(err, gateway.ErrAlreadyCancelled):
		code = response.APIResponseCodeConflict
	case errors.Is(err, gateway.ErrNotRefundable), errors.Is(err, gateway.ErrNotCancellable):
		code = response.APIResponseCodeBadRequest
	}
	c.JSON(http.StatusOK, response.ErrorT[any](code, err.Error()))
}

func RegisterAdminRoutes(r gin.IRouter, reg *registry.Registry, store DonationStore, admin DonationAdmin, log *zap.SugaredLogger) {
	r.GET("/gateways/:gateway/settings", ApiGatewaySettings(reg))
	r.GET("/donations/:id", ApiGetDonation(store, admin, log))
	r.POST("/donations/:id/refund", ApiRefundDonation(admin, log))
	r.POST("/recurring_donations/:id/cancel", ApiCancelSubscription(admin, log))
	r.POST("/list_donations", ApiListDonations(store))
}
