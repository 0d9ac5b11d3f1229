package webhook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	"github.com/fatflowers/mollie-gateway/internal/models"
	"github.com/fatflowers/mollie-gateway/internal/platform/mollie"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

const (
	msgInvalidRequest = "Invalid request"
	msgEmptyData      = "Empty data"
	msgInvalidData    = "Invalid data"
	msgNoSuchDonation = "No such donation here."
	msgInvalidPayment = "Invalid payment"
)

// DonationLookup finds the donation a Mollie payment belongs to.
type DonationLookup interface {
	GetDonationByTransactionID(ctx context.Context, transactionID string) (*models.Donation, error)
}

// Interpreter is the validated reading of one Mollie webhook delivery.
// Mollie only posts the payment id, so the payment is always fetched fresh.
type Interpreter struct {
	valid         bool
	status        int
	message       string
	err           error
	transactionID string
	donation      *models.Donation
	payment       *mollie.Payment
}

// Interpret validates req and loads the donation and payment it refers to.
func Interpret(ctx context.Context, req *registry.WebhookRequest, donations DonationLookup, clients *mollie.Factory) *Interpreter {
	in := &Interpreter{status: http.StatusInternalServerError}

	id, message, err := postedID(req)
	if id == "" {
		return in.invalid(message, err)
	}
	in.transactionID = id

	d, err := donations.GetDonationByTransactionID(ctx, id)
	if err != nil {
		return in.invalid(msgNoSuchDonation, err)
	}
	if d.Gateway != types.GatewayMollie {
		return in.invalid(msgNoSuchDonation, fmt.Errorf("donation %s uses gateway %q", d.ID, d.Gateway))
	}
	in.donation = d

	p, err := clients.New(d.TestMode).GetPayment(ctx, id, true)
	if err != nil {
		return in.invalid(msgInvalidPayment, err)
	}
	in.payment = p

	in.valid = true
	in.status = http.StatusOK
	return in
}

// postedID reads the payment id Mollie posts as a form field. When it is
// missing, message tells the caller why.
func postedID(req *registry.WebhookRequest) (id, message string, err error) {
	if req == nil || req.Method != http.MethodPost {
		return "", msgInvalidRequest, nil
	}
	body := strings.TrimSpace(string(req.Body))
	if body == "" {
		return "", msgEmptyData, nil
	}
	values, err := url.ParseQuery(body)
	if err != nil || len(values) == 0 {
		return "", msgInvalidData, err
	}
	id = strings.TrimSpace(values.Get("id"))
	if id == "" {
		return "", msgInvalidData, nil
	}
	return id, "", nil
}

func (in *Interpreter) invalid(message string, err error) *Interpreter {
	in.valid = false
	in.message = message
	in.err = err
	return in
}

func (in *Interpreter) Valid() bool             { return in.valid }
func (in *Interpreter) ResponseStatus() int     { return in.status }
func (in *Interpreter) ResponseMessage() string { return in.message }

// Err is the underlying cause of an invalid outcome, if any.
func (in *Interpreter) Err() error { return in.err }

// TransactionID is the payment id posted by Mollie, "" when it was missing.
func (in *Interpreter) TransactionID() string        { return in.transactionID }
func (in *Interpreter) Donation() *models.Donation   { return in.donation }
func (in *Interpreter) Payment() *mollie.Payment     { return in.payment }
func (in *Interpreter) GatewayTransactionID() string { return in.payment.ID }

func (in *Interpreter) GatewayTransactionURL() string { return in.payment.DashboardURL() }

func (in *Interpreter) EventSubject() types.WebhookEventSubject {
	if in.payment.SubscriptionID != "" || in.donation.IsRecurring() {
		return types.WebhookSubjectSubscription
	}
	return types.WebhookSubjectDonation
}

// EventType classifies the payment. A refunded amount wins over the status,
// since a refunded payment stays "paid" at Mollie.
func (in *Interpreter) EventType() types.WebhookEventType {
	if !in.valid {
		return ""
	}
	if in.payment.HasRefunds() {
		return types.WebhookEventRefund
	}
	switch in.payment.Status {
	case mollie.PaymentStatusCanceled, mollie.PaymentStatusExpired:
		return types.WebhookEventCancellation
	case mollie.PaymentStatusFailed:
		return types.WebhookEventFailedPayment
	case mollie.PaymentStatusPaid:
		if in.donation.IsRecurring() && in.payment.SubscriptionID == "" {
			return types.WebhookEventFirstPayment
		}
		return types.WebhookEventCompletedPayment
	default:
		return types.WebhookEventPending
	}
}

// RefundAmount is the total refunded so far, or "" when nothing was refunded.
func (in *Interpreter) RefundAmount() string {
	if !in.payment.HasRefunds() {
		return ""
	}
	return in.payment.AmountRefunded.Value
}

// RefundNote is the description of the most recent refund.
func (in *Interpreter) RefundNote() string {
	if r := in.payment.LatestRefund(); r != nil {
		return r.Description
	}
	return ""
}

func (in *Interpreter) RefundLog(now time.Time) *models.RefundLog {
	amounts := make([]string, 0, len(in.payment.Refunds()))
	for _, r := range in.payment.Refunds() {
		amounts = append(amounts, r.Amount.Value)
	}
	return &models.RefundLog{
		Time:            now.Unix(),
		Message:         in.RefundNote(),
		CampaignRefunds: amounts,
		TotalRefund:     in.RefundAmount(),
	}
}

// Logs are the donation log lines this delivery adds.
func (in *Interpreter) Logs() []string {
	var logs []string
	if in.payment.Status == mollie.PaymentStatusExpired {
		logs = append(logs, "Payment expired.")
	}
	if in.EventType() == types.WebhookEventRefund {
		if note := in.RefundNote(); note != "" && note != in.payment.Description {
			logs = append(logs, fmt.Sprintf(`Refund note: "%s"`, note))
		}
	}
	return logs
}
