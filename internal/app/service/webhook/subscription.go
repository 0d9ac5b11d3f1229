package webhook

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fatflowers/mollie-gateway/internal/app/service/donation"
	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	"github.com/fatflowers/mollie-gateway/internal/models"
	"github.com/fatflowers/mollie-gateway/internal/platform/mollie"
	"github.com/fatflowers/mollie-gateway/pkg/config"
	"github.com/fatflowers/mollie-gateway/pkg/logctx"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

const (
	msgFirstPaymentProcessed = "Subscription Webhook: First payment processed"
	msgSubscriptionExists    = "Subscription Webhook: Subscription already created"
	msgMissingMandate        = "Missing mandate for subscription"
	msgNoRecurringDonation   = "Subscription Webhook: No such recurring donation"
	msgUnsupportedPeriod     = "Subscription Webhook: Unsupported donation period"
	msgSubscriptionFailed    = "Subscription Webhook: Subscription could not be created"
)

var subscriptionIntervals = map[types.DonationPeriod]string{
	types.DonationPeriodDay:        "1 day",
	types.DonationPeriodWeek:       "7 days",
	types.DonationPeriodMonth:      "1 months",
	types.DonationPeriodQuarter:    "3 months",
	types.DonationPeriodSemiannual: "6 months",
	types.DonationPeriodYear:       "12 months",
}

// SubscriptionInterval maps a donation period to Mollie's interval syntax.
func SubscriptionInterval(period types.DonationPeriod) (string, bool) {
	interval, ok := subscriptionIntervals[period]
	return interval, ok
}

// SubscriptionProcessor turns the paid first payment of a plan into a Mollie subscription.
type SubscriptionProcessor struct {
	donations *DonationProcessor
	store     donation.Repository
	clients   *mollie.Factory
	site      config.SiteConfig
	log       *zap.SugaredLogger
}

func NewSubscriptionProcessor(cfg *config.Config, clients *mollie.Factory, store donation.Repository, donations *DonationProcessor, log *zap.SugaredLogger) *SubscriptionProcessor {
	return &SubscriptionProcessor{donations: donations, store: store, clients: clients, site: cfg.Site, log: log}
}

func (p *SubscriptionProcessor) Process(ctx context.Context, in *Interpreter) *registry.WebhookResult {
	if in.EventType() == types.WebhookEventFirstPayment {
		return p.ProcessFirstPayment(ctx, in)
	}
	return p.donations.Process(ctx, in)
}

func (p *SubscriptionProcessor) ProcessFirstPayment(ctx context.Context, in *Interpreter) *registry.WebhookResult {
	lg := logctx.FromCtx(ctx, p.log)
	d := in.Donation()
	payment := in.Payment()

	if res := p.donations.apply(ctx, in, types.DonationStatusCompleted, msgCompletedProcessed); res.Status != http.StatusOK {
		return res
	}

	rd, err := p.store.GetRecurringDonation(ctx, *d.RecurringDonationID)
	if err != nil {
		lg.Errorw("recurring donation not found", "recurring_donation_id", *d.RecurringDonationID, "err", err)
		return failed(msgNoRecurringDonation)
	}
	lg = lg.With("recurring_donation_id", rd.ID)
	if rd.GatewaySubscriptionID != "" {
		// an earlier delivery stopped between creating the subscription and activating the plan
		if rd.Status == types.RecurringDonationStatusPending {
			if err := p.store.RenewRecurringDonation(ctx, rd.ID); err != nil {
				lg.Errorw("failed to activate recurring donation", "err", err)
				return failed(msgUpdateFailed)
			}
		}
		return ok(msgSubscriptionExists)
	}
	if payment.MandateID == "" || payment.CustomerID == "" {
		lg.Warnw("first payment has no mandate", "mandate_id", payment.MandateID, "customer_id", payment.CustomerID)
		return failed(msgMissingMandate)
	}
	interval, found := SubscriptionInterval(rd.Period)
	if !found {
		lg.Errorw("no mollie interval for donation period", "period", rd.Period)
		return failed(msgUnsupportedPeriod)
	}

	body := p.subscriptionRequest(d.Amount, d.Currency, d.Description, rd, interval, payment.MandateID)
	body.IdempotencyKey = fmt.Sprintf("subscription-%s-%s", rd.ID, payment.ID)
	sub, err := p.clients.Client(d.TestMode).CreateSubscription(ctx, payment.CustomerID, body)
	if err != nil {
		lg.Errorw("mollie subscription request failed", "err", err)
		if logErr := p.store.AddLogs(ctx, d.ID, fmt.Sprintf("Mollie subscription could not be created: %s", mollie.ErrorDetail(err))); logErr != nil {
			lg.Warnw("failed to add donation log", "err", logErr)
		}
		return failed(msgSubscriptionFailed)
	}

	if err := p.store.SetGatewaySubscription(ctx, rd.ID, payment.CustomerID, sub.ID); err != nil {
		lg.Errorw("failed to save subscription id", "subscription_id", sub.ID, "err", err)
		return failed(msgUpdateFailed)
	}
	if err := p.store.RenewRecurringDonation(ctx, rd.ID); err != nil {
		lg.Errorw("failed to activate recurring donation", "err", err)
		return failed(msgUpdateFailed)
	}
	if err := p.store.AddLogs(ctx, d.ID, fmt.Sprintf("Mollie subscription %s created.", sub.ID)); err != nil {
		lg.Warnw("failed to add donation log", "err", err)
	}
	lg.Infow("mollie subscription created", "subscription_id", sub.ID)
	return ok(msgFirstPaymentProcessed)
}

// Plan values win over the first donation's when they are set.
func (p *SubscriptionProcessor) subscriptionRequest(amount decimal.Decimal, currency, description string, rd *models.RecurringDonation, interval, mandateID string) *mollie.CreateSubscriptionRequest {
	if rd.Amount.IsPositive() {
		amount = rd.Amount
	}
	if rd.Currency != "" {
		currency = rd.Currency
	}
	if rd.Description != "" {
		description = rd.Description
	}
	return &mollie.CreateSubscriptionRequest{
		Amount:      mollie.NewAmount(currency, amount),
		Times:       rd.Length,
		Interval:    interval,
		Description: fmt.Sprintf("%s - Recurring Donation #%s", description, rd.ID),
		MandateID:   mandateID,
		WebhookURL:  p.site.WebhookURL(types.GatewayMollie),
		Metadata:    map[string]string{"recurring_donation_id": rd.ID},
	}
}
