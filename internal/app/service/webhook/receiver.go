package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/mollie-gateway/internal/app/service/donation"
	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	"github.com/fatflowers/mollie-gateway/internal/models"
	"github.com/fatflowers/mollie-gateway/internal/platform/lock"
	"github.com/fatflowers/mollie-gateway/internal/platform/mollie"
	"github.com/fatflowers/mollie-gateway/pkg/config"
	"github.com/fatflowers/mollie-gateway/pkg/logctx"
	"github.com/fatflowers/mollie-gateway/pkg/metrics"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

const (
	msgBusy       = "Webhook is already being processed"
	msgLockFailed = "Webhook lock unavailable"
)

// NotificationRecorder persists webhook deliveries for support.
type NotificationRecorder interface {
	Save(ctx context.Context, entry *models.PaymentNotificationLog)
}

// Receiver handles Mollie webhook deliveries end to end.
type Receiver struct {
	store         donation.Repository
	clients       *mollie.Factory
	donations     *DonationProcessor
	subscriptions *SubscriptionProcessor
	locker        lock.Locker
	lockTTL       time.Duration
	notifications NotificationRecorder
	log           *zap.SugaredLogger
}

var _ registry.WebhookReceiver = (*Receiver)(nil)

func NewReceiver(
	cfg *config.Config,
	store donation.Repository,
	clients *mollie.Factory,
	donations *DonationProcessor,
	subscriptions *SubscriptionProcessor,
	locker lock.Locker,
	notifications NotificationRecorder,
	log *zap.SugaredLogger,
) *Receiver {
	return &Receiver{
		store:         store,
		clients:       clients,
		donations:     donations,
		subscriptions: subscriptions,
		locker:        locker,
		lockTTL:       cfg.Redis.LockTTL(),
		notifications: notifications,
		log:           log,
	}
}

// Receive serializes deliveries per payment id. The lock is held before the
// donation is loaded, so each delivery starts from the state its predecessor left.
func (r *Receiver) Receive(ctx context.Context, req *registry.WebhookRequest) *registry.WebhookResult {
	lg := logctx.FromCtx(ctx, r.log).With("source", types.GatewayMollie)

	if id, _, _ := postedID(req); id != "" {
		release, acquired, err := r.locker.Acquire(ctx, "webhook:"+types.GatewayMollie+":"+id, r.lockTTL)
		if err != nil {
			lg.Errorw("webhook lock failed", "transaction_id", id, "err", err)
			return &registry.WebhookResult{Status: http.StatusServiceUnavailable, Message: msgLockFailed}
		}
		if !acquired {
			lg.Infow("webhook for this payment is already being processed", "transaction_id", id)
			return &registry.WebhookResult{Status: http.StatusServiceUnavailable, Message: msgBusy}
		}
		defer release()
	}

	in := Interpret(ctx, req, r.store, r.clients)
	lg = lg.With("transaction_id", in.TransactionID())

	if !in.Valid() {
		lg.Warnw("invalid mollie webhook", "message", in.ResponseMessage(), "err", in.Err())
		res := &registry.WebhookResult{Status: in.ResponseStatus(), Message: in.ResponseMessage()}
		metrics.RecordWebhookEvent(types.GatewayMollie, "", res.Status)
		return res
	}

	d := in.Donation()
	ctx = logctx.WithLogger(ctx, lg.With("donation_id", d.ID))

	r.record(ctx, in, models.PaymentNotificationLogStatusReceived, nil)

	var res *registry.WebhookResult
	if in.EventSubject() == types.WebhookSubjectSubscription {
		res = r.subscriptions.Process(ctx, in)
	} else {
		res = r.donations.Process(ctx, in)
	}

	status := models.PaymentNotificationLogStatusHandled
	if res.Status != http.StatusOK {
		status = models.PaymentNotificationLogStatusHandleFailed
	}
	r.record(ctx, in, status, res)
	metrics.RecordWebhookEvent(types.GatewayMollie, string(in.EventType()), res.Status)
	logctx.FromCtx(ctx, r.log).Infow("mollie webhook processed",
		"event", in.EventType(),
		"subject", in.EventSubject(),
		"status", res.Status,
		"message", res.Message,
	)
	return res
}

func (r *Receiver) record(ctx context.Context, in *Interpreter, status models.PaymentNotificationLogStatus, res *registry.WebhookResult) {
	if r.notifications == nil {
		return
	}
	data, _ := json.Marshal(map[string]any{
		"id":              in.TransactionID(),
		"payment_status":  in.Payment().Status,
		"amount_refunded": in.Payment().AmountRefunded,
		"subscription_id": in.Payment().SubscriptionID,
	})
	entry := &models.PaymentNotificationLog{
		Source:           types.GatewayMollie,
		DonationID:       lo.ToPtr(in.Donation().ID),
		TraceID:          logctx.TraceID(ctx),
		TransactionID:    in.TransactionID(),
		NotificationTime: time.Now(),
		Data:             datatypes.JSON(data),
		Status:           status,
	}
	if res != nil {
		resBytes, _ := json.Marshal(map[string]any{
			"event":   in.EventType(),
			"subject": in.EventSubject(),
			"message": res.Message,
		})
		entry.Result = lo.ToPtr(datatypes.JSON(resBytes))
		entry.HTTPStatus = res.Status
	}
	r.notifications.Save(ctx, entry)
}
