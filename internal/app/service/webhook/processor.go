package webhook

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/mollie-gateway/internal/app/service/donation"
	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	"github.com/fatflowers/mollie-gateway/pkg/logctx"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

const (
	msgRefundProcessed    = "Donation Webhook: Refund processed"
	msgCompletedProcessed = "Donation Webhook: Completed payment processed"
	msgFailedProcessed    = "Donation Webhook: Failed payment processed"
	msgCancelProcessed    = "Donation Webhook: Cancellation processed"
	msgPending            = "Donation Webhook: Payment pending"
	msgUpdateFailed       = "Donation Webhook: Could not update donation"
)

// DonationProcessor applies interpreted webhook events to single donations.
type DonationProcessor struct {
	store donation.Repository
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewDonationProcessor(store donation.Repository, log *zap.SugaredLogger) *DonationProcessor {
	return &DonationProcessor{store: store, log: log, now: time.Now}
}

func (p *DonationProcessor) Process(ctx context.Context, in *Interpreter) *registry.WebhookResult {
	switch in.EventType() {
	case types.WebhookEventRefund:
		return p.processRefund(ctx, in)
	case types.WebhookEventCompletedPayment, types.WebhookEventFirstPayment:
		return p.apply(ctx, in, types.DonationStatusCompleted, msgCompletedProcessed)
	case types.WebhookEventFailedPayment:
		return p.apply(ctx, in, types.DonationStatusFailed, msgFailedProcessed)
	case types.WebhookEventCancellation:
		return p.apply(ctx, in, types.DonationStatusCancelled, msgCancelProcessed)
	default:
		return ok(msgPending)
	}
}

func (p *DonationProcessor) processRefund(ctx context.Context, in *Interpreter) *registry.WebhookResult {
	d := in.Donation()
	lg := logctx.FromCtx(ctx, p.log)

	// redelivery of a refund we already recorded
	if prev := d.RefundLog.Data(); d.Status == types.DonationStatusRefunded && prev != nil && prev.TotalRefund == in.RefundAmount() {
		return ok(msgRefundProcessed)
	}

	if err := p.store.SaveRefundLog(ctx, d.ID, in.RefundLog(p.now())); err != nil {
		lg.Errorw("failed to save refund log", "err", err)
		return failed(msgUpdateFailed)
	}
	// a refund made in the Mollie dashboard closes the donation to further refunds here
	if _, err := p.store.ClaimRefund(ctx, d.ID); err != nil {
		lg.Errorw("failed to flag donation refunded", "err", err)
		return failed(msgUpdateFailed)
	}
	return p.apply(ctx, in, types.DonationStatusRefunded, msgRefundProcessed)
}

// apply persists the transaction data, the new status and the log lines.
// A donation already in the target status is left alone.
func (p *DonationProcessor) apply(ctx context.Context, in *Interpreter, status types.DonationStatus, message string) *registry.WebhookResult {
	d := in.Donation()
	lg := logctx.FromCtx(ctx, p.log)

	if d.Status == status && status != types.DonationStatusRefunded {
		lg.Infow("donation already in webhook status", "status", status)
		return ok(message)
	}
	if err := p.store.SetGatewayTransaction(ctx, d.ID, in.GatewayTransactionID(), in.GatewayTransactionURL()); err != nil {
		lg.Errorw("failed to save gateway transaction", "err", err)
		return failed(msgUpdateFailed)
	}
	if err := p.store.UpdateStatus(ctx, d.ID, status); err != nil {
		lg.Errorw("failed to update donation status", "status", status, "err", err)
		return failed(msgUpdateFailed)
	}
	if err := p.store.AddLogs(ctx, d.ID, in.Logs()...); err != nil {
		lg.Warnw("failed to add donation logs", "err", err)
	}
	d.Status = status
	lg.Infow("donation updated from webhook", "status", status, "transaction_id", in.GatewayTransactionID())
	return ok(message)
}

func ok(message string) *registry.WebhookResult {
	return &registry.WebhookResult{Status: http.StatusOK, Message: message}
}

func failed(message string) *registry.WebhookResult {
	return &registry.WebhookResult{Status: http.StatusInternalServerError, Message: message}
}
