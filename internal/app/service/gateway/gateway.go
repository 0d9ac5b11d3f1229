package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fatflowers/mollie-gateway/internal/app/service/donation"
	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	"github.com/fatflowers/mollie-gateway/internal/models"
	"github.com/fatflowers/mollie-gateway/internal/platform/mollie"
	"github.com/fatflowers/mollie-gateway/pkg/config"
	"github.com/fatflowers/mollie-gateway/pkg/logctx"
	"github.com/fatflowers/mollie-gateway/pkg/metrics"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

const (
	ID   = types.GatewayMollie
	Name = "Mollie"
)

var (
	ErrNotRefundable    = errors.New("donation cannot be refunded through mollie")
	ErrAlreadyRefunded  = errors.New("donation was already refunded")
	ErrNotCancellable   = errors.New("subscription cannot be cancelled through mollie")
	ErrAlreadyCancelled = errors.New("subscription was already cancelled")
)

// Gateway is the Mollie entry in the gateway registry and owns the admin
// refund and cancellation actions.
type Gateway struct {
	keys    config.MollieConfig
	clients *mollie.Factory
	store   donation.Repository
	log     *zap.SugaredLogger
}

var _ registry.Gateway = (*Gateway)(nil)

func New(cfg *config.Config, clients *mollie.Factory, store donation.Repository, log *zap.SugaredLogger) *Gateway {
	return &Gateway{keys: cfg.Mollie, clients: clients, store: store, log: log}
}

func (g *Gateway) ID() string   { return ID }
func (g *Gateway) Name() string { return Name }

func (g *Gateway) Supports(feature string) bool {
	return feature == registry.FeatureRefunds || feature == registry.FeatureRecurring
}

func (g *Gateway) SettingsFields() []registry.SettingField {
	return []registry.SettingField{
		{Key: "section_mollie", Type: "heading", Title: "Mollie API Keys", Priority: 4},
		{Key: "live_api_key", Type: "text", Title: "Live API Key", Priority: 6, Class: "wide", Value: maskKey(g.keys.LiveAPIKey)},
		{Key: "test_api_key", Type: "text", Title: "Test API Key", Priority: 8, Class: "wide", Value: maskKey(g.keys.TestAPIKey)},
	}
}

// maskKey keeps the mode prefix and the last four characters.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	prefix := ""
	if i := strings.IndexByte(key, '_'); i >= 0 && i < len(key)-1 {
		prefix, key = key[:i+1], key[i+1:]
	}
	if len(key) <= 4 {
		return prefix + strings.Repeat("*", len(key))
	}
	return prefix + strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// API returns the shared client for live or test mode.
func (g *Gateway) API(testMode bool) *mollie.Client {
	return g.clients.Client(testMode)
}

func (g *Gateway) IsDonationRefundable(d *models.Donation) bool {
	return g.API(d.TestMode).HasValidAPIKey() && d.GatewayTransactionID != "" && !alreadyRefunded(d)
}

// A refund reported by webhook may have set the status without the flag.
func alreadyRefunded(d *models.Donation) bool {
	return d.Refunded || d.Status == types.DonationStatusRefunded
}

// RefundDonationFromDashboard refunds the full donation amount. The refunded
// flag is claimed before calling Mollie so a second call never reaches it.
func (g *Gateway) RefundDonationFromDashboard(ctx context.Context, donationID string) (err error) {
	defer func() { metrics.RecordGatewayAction("refund", err) }()

	ctx = logctx.WithDonation(ctx, g.log, donationID)
	lg := logctx.FromCtx(ctx, g.log)

	d, err := g.store.GetDonation(ctx, donationID)
	if err != nil {
		return err
	}
	if d.Gateway != ID {
		return fmt.Errorf("refund donation %s (gateway %s): %w", donationID, d.Gateway, ErrNotRefundable)
	}
	if alreadyRefunded(d) {
		return fmt.Errorf("refund donation %s: %w", donationID, ErrAlreadyRefunded)
	}
	client := g.API(d.TestMode)
	if !g.IsDonationRefundable(d) {
		if !client.HasAPIKey() {
			return fmt.Errorf("refund donation %s: %w: %w", donationID, ErrNotRefundable, mollie.ErrNoAPIKey)
		}
		return fmt.Errorf("refund donation %s: %w", donationID, ErrNotRefundable)
	}

	claimed, err := g.store.ClaimRefund(ctx, d.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("refund donation %s: %w", donationID, ErrAlreadyRefunded)
	}

	amount := mollie.NewAmount(d.Currency, d.Amount)
	refund, err := client.CreateRefund(ctx, d.GatewayTransactionID, &mollie.CreateRefundRequest{
		Amount:      amount,
		Description: fmt.Sprintf("Refund of donation #%s", d.ID),
	})
	if err != nil {
		lg.Errorw("mollie refund failed", "transaction_id", d.GatewayTransactionID, "err", err)
		if relErr := g.store.ReleaseRefund(ctx, d.ID); relErr != nil {
			lg.Errorw("failed to release refund flag", "err", relErr)
		}
		g.addLog(ctx, d.ID, fmt.Sprintf("Mollie refund failed: %s", mollie.ErrorDetail(err)))
		return fmt.Errorf("refund donation %s: %w", donationID, err)
	}

	if err := g.store.UpdateStatus(ctx, d.ID, types.DonationStatusRefunded); err != nil {
		lg.Errorw("failed to mark donation refunded", "err", err)
	}
	g.addLog(ctx, d.ID, fmt.Sprintf("Refunded %s %s via Mollie.", amount.Value, amount.Currency))
	lg.Infow("donation refunded", "refund_id", refund.ID, "amount", amount.Value)
	return nil
}

// IsSubscriptionCancellable reports whether the plan has a live Mollie
// subscription that this gateway can reach. The subscription is addressed
// through the customer it was created under.
func (g *Gateway) IsSubscriptionCancellable(rd *models.RecurringDonation) bool {
	if rd.Gateway != ID || rd.GatewaySubscriptionID == "" || rd.GatewayCustomerID == "" {
		return false
	}
	return rd.Status != types.RecurringDonationStatusCancelled && g.API(rd.TestMode).HasValidAPIKey()
}

func (g *Gateway) CancelSubscription(ctx context.Context, recurringDonationID string) (err error) {
	defer func() { metrics.RecordGatewayAction("cancel_subscription", err) }()

	lg := logctx.FromCtx(ctx, g.log).With("recurring_donation_id", recurringDonationID)

	rd, err := g.store.GetRecurringDonation(ctx, recurringDonationID)
	if err != nil {
		return err
	}
	if rd.Status == types.RecurringDonationStatusCancelled {
		return fmt.Errorf("cancel subscription %s: %w", recurringDonationID, ErrAlreadyCancelled)
	}
	if !g.IsSubscriptionCancellable(rd) {
		return fmt.Errorf("cancel subscription %s: %w", recurringDonationID, ErrNotCancellable)
	}

	previous := rd.Status
	claimed, err := g.store.ClaimSubscriptionCancellation(ctx, rd.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("cancel subscription %s: %w", recurringDonationID, ErrAlreadyCancelled)
	}

	if _, err := g.API(rd.TestMode).CancelSubscription(ctx, rd.GatewayCustomerID, rd.GatewaySubscriptionID); err != nil {
		lg.Errorw("mollie subscription cancellation failed",
			"subscription_id", rd.GatewaySubscriptionID,
			"detail", mollie.ErrorDetail(err),
		)
		if relErr := g.store.ReleaseSubscriptionCancellation(ctx, rd.ID, previous); relErr != nil {
			lg.Errorw("failed to release cancellation", "err", relErr)
		}
		return fmt.Errorf("cancel subscription %s: %w", recurringDonationID, err)
	}
	lg.Infow("mollie subscription cancelled", "subscription_id", rd.GatewaySubscriptionID)
	return nil
}

// CustomerID is the donor's Mollie customer id in the donation's mode, "" when none exists.
func (g *Gateway) CustomerID(ctx context.Context, d *models.Donation) (string, error) {
	if d.DonorID == "" {
		return "", nil
	}
	return g.store.GetCustomerID(ctx, d.DonorID, ID, d.TestMode)
}

func (g *Gateway) addLog(ctx context.Context, donationID, message string) {
	if err := g.store.AddLogs(ctx, donationID, message); err != nil {
		logctx.FromCtx(ctx, g.log).Warnw("failed to add donation log", "err", err)
	}
}
