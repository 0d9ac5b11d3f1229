package payment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fatflowers/mollie-gateway/internal/app/service/donation"
	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	"github.com/fatflowers/mollie-gateway/internal/platform/mollie"
	"github.com/fatflowers/mollie-gateway/pkg/config"
	"github.com/fatflowers/mollie-gateway/pkg/logctx"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

var (
	ErrWrongGateway = errors.New("donation is not paid through mollie")
	ErrNotPending   = errors.New("donation is not pending")
)

// Processor runs the checkout flow for Mollie donations.
type Processor struct {
	clients *mollie.Factory
	store   donation.Repository
	site    config.SiteConfig
	log     *zap.SugaredLogger
}

var _ registry.PaymentProcessor = (*Processor)(nil)

func NewProcessor(cfg *config.Config, clients *mollie.Factory, store donation.Repository, log *zap.SugaredLogger) *Processor {
	return &Processor{clients: clients, store: store, site: cfg.Site, log: log}
}

// ProcessDonation creates the Mollie payment and returns the checkout redirect.
// A failed result carries the notice to show the donor next to the error.
func (p *Processor) ProcessDonation(ctx context.Context, donationID string) (*registry.PaymentResult, error) {
	ctx = logctx.WithDonation(ctx, p.log, donationID)
	lg := logctx.FromCtx(ctx, p.log)

	d, err := p.store.GetDonation(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if d.Gateway != types.GatewayMollie {
		return nil, fmt.Errorf("process donation %s: %w", donationID, ErrWrongGateway)
	}
	if d.Status != types.DonationStatusPending {
		return nil, fmt.Errorf("process donation %s (status %s): %w", donationID, d.Status, ErrNotPending)
	}

	req := NewRequest(p.clients.Client(d.TestMode), p.store, NewDonationData(d, p.site, types.GatewayMollie), p.log)
	if err := req.Prepare(ctx); err != nil {
		lg.Warnw("mollie payment request could not be prepared", "err", err)
		return &registry.PaymentResult{Success: false, Notices: []string{req.Notice()}}, err
	}
	if err := req.Execute(ctx); err != nil {
		lg.Warnw("mollie payment request failed", "err", err)
		if logErr := p.store.AddLogs(ctx, d.ID, req.Notice()); logErr != nil {
			lg.Errorw("failed to log payment failure", "err", logErr)
		}
		return &registry.PaymentResult{Success: false, Notices: []string{req.Notice()}}, err
	}

	resp := req.Response()
	if err := p.store.SetGatewayTransaction(ctx, d.ID, resp.GatewayTransactionID(), resp.GatewayTransactionURL()); err != nil {
		return nil, fmt.Errorf("process donation %s: %w", donationID, err)
	}
	if err := p.store.AddLogs(ctx, d.ID, fmt.Sprintf("Mollie payment %s created.", resp.GatewayTransactionID())); err != nil {
		lg.Warnw("failed to add donation log", "err", err)
	}

	// Mollie normally answers "open"; anything terminal is applied right away.
	switch {
	case resp.PaymentFailed():
		if err := p.store.UpdateStatus(ctx, d.ID, types.DonationStatusFailed); err != nil {
			lg.Errorw("failed to mark donation failed", "err", err)
		}
		return &registry.PaymentResult{Success: false, Notices: []string{"Payment failed."}}, nil
	case resp.PaymentCompleted():
		if err := p.store.UpdateStatus(ctx, d.ID, types.DonationStatusCompleted); err != nil {
			lg.Errorw("failed to mark donation completed", "err", err)
		}
	}

	lg.Infow("mollie payment created", "transaction_id", resp.GatewayTransactionID())
	if resp.RequiresRedirect() {
		return &registry.PaymentResult{Success: true, Redirect: resp.Redirect()}, nil
	}
	return &registry.PaymentResult{Success: true}, nil
}
