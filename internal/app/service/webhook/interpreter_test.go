package webhook

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	"github.com/fatflowers/mollie-gateway/internal/platform/mollie"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

func post(body string) *registry.WebhookRequest {
	return &registry.WebhookRequest{Method: http.MethodPost, Body: []byte(body)}
}

func TestInterpret_InvalidDeliveries(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).Get("/v2/payments/tr_gone").Reply(404).JSON(map[string]any{"detail": "No payment exists with token tr_gone."})

	store := seededStore(testDonation())
	other := testDonation()
	other.ID = "43"
	other.Gateway = "stripe"
	other.GatewayTransactionID = "tr_other"
	store.PutDonation(other)
	gone := testDonation()
	gone.ID = "44"
	gone.GatewayTransactionID = "tr_gone"
	store.PutDonation(gone)

	cases := []struct {
		name    string
		req     *registry.WebhookRequest
		message string
	}{
		{"get request", &registry.WebhookRequest{Method: http.MethodGet, Body: []byte("id=tr_1")}, "Invalid request"},
		{"nil request", nil, "Invalid request"},
		{"empty body", post("  "), "Empty data"},
		{"bad form", post("id=%zz"), "Invalid data"},
		{"missing id", post("foo=bar"), "Invalid data"},
		{"unknown payment", post("id=tr_unknown"), "No such donation here."},
		{"other gateway", post("id=tr_other"), "No such donation here."},
		{"payment fetch fails", post("id=tr_gone"), "Invalid payment"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := Interpret(context.Background(), tc.req, store, testFactory())
			require.False(t, in.Valid())
			require.Equal(t, tc.message, in.ResponseMessage())
			require.Equal(t, http.StatusInternalServerError, in.ResponseStatus())
			require.Empty(t, in.EventType())
		})
	}
	require.True(t, gock.IsDone())
}

func TestInterpret_FetchesPaymentWithRefundsUsingDonationMode(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).
		Get("/v2/payments/tr_1").
		MatchParam("embed", "refunds").
		MatchHeader("Authorization", "^Bearer test_abc$").
		Reply(200).
		JSON(map[string]any{
			"id":     "tr_1",
			"status": "paid",
			"_links": map[string]any{"dashboard": map[string]any{"href": "https://www.mollie.com/dashboard/payments/tr_1"}},
		})

	d := testDonation()
	d.TestMode = true
	in := Interpret(context.Background(), post("id=tr_1"), seededStore(d), testFactory())
	require.True(t, in.Valid())
	require.Equal(t, http.StatusOK, in.ResponseStatus())
	require.Equal(t, "42", in.Donation().ID)
	require.Equal(t, "tr_1", in.GatewayTransactionID())
	require.Equal(t, "https://www.mollie.com/dashboard/payments/tr_1", in.GatewayTransactionURL())
	require.Equal(t, types.WebhookEventCompletedPayment, in.EventType())
	require.Equal(t, types.WebhookSubjectDonation, in.EventSubject())
	require.True(t, gock.IsDone())
}

func TestInterpreter_EventClassification(t *testing.T) {
	refunded := &mollie.Amount{Currency: "EUR", Value: "5.00"}
	zero := &mollie.Amount{Currency: "EUR", Value: "0.00"}

	cases := []struct {
		name      string
		recurring bool
		payment   mollie.Payment
		want      types.WebhookEventType
	}{
		{"open", false, mollie.Payment{Status: mollie.PaymentStatusOpen}, types.WebhookEventPending},
		{"pending", false, mollie.Payment{Status: mollie.PaymentStatusPending}, types.WebhookEventPending},
		{"canceled", false, mollie.Payment{Status: mollie.PaymentStatusCanceled}, types.WebhookEventCancellation},
		{"expired", false, mollie.Payment{Status: mollie.PaymentStatusExpired}, types.WebhookEventCancellation},
		{"failed", false, mollie.Payment{Status: mollie.PaymentStatusFailed}, types.WebhookEventFailedPayment},
		{"paid", false, mollie.Payment{Status: mollie.PaymentStatusPaid}, types.WebhookEventCompletedPayment},
		{"paid with zero refund", false, mollie.Payment{Status: mollie.PaymentStatusPaid, AmountRefunded: zero}, types.WebhookEventCompletedPayment},
		{"refund wins over paid", false, mollie.Payment{Status: mollie.PaymentStatusPaid, AmountRefunded: refunded}, types.WebhookEventRefund},
		{"refund on recurring", true, mollie.Payment{Status: mollie.PaymentStatusPaid, AmountRefunded: refunded}, types.WebhookEventRefund},
		{"refund wins over failed", false, mollie.Payment{Status: mollie.PaymentStatusFailed, AmountRefunded: refunded}, types.WebhookEventRefund},
		{"refund wins over canceled", false, mollie.Payment{Status: mollie.PaymentStatusCanceled, AmountRefunded: refunded}, types.WebhookEventRefund},
		{"refund wins over open", false, mollie.Payment{Status: mollie.PaymentStatusOpen, AmountRefunded: refunded}, types.WebhookEventRefund},
		{"first payment", true, mollie.Payment{Status: mollie.PaymentStatusPaid}, types.WebhookEventFirstPayment},
		{"failed first payment", true, mollie.Payment{Status: mollie.PaymentStatusFailed}, types.WebhookEventFailedPayment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := testDonation()
			if tc.recurring {
				d = recurringDonation()
			}
			p := tc.payment
			p.ID = "tr_1"
			in := validInterpreter(d, &p)
			require.Equal(t, tc.want, in.EventType())
			if tc.recurring {
				require.Equal(t, types.WebhookSubjectSubscription, in.EventSubject())
			}
		})
	}
}

func TestInterpreter_SubscriptionSubjectFromPayment(t *testing.T) {
	in := validInterpreter(testDonation(), &mollie.Payment{ID: "tr_2", Status: mollie.PaymentStatusPaid, SubscriptionID: "sub_1"})
	require.Equal(t, types.WebhookSubjectSubscription, in.EventSubject())
	require.Equal(t, types.WebhookEventCompletedPayment, in.EventType())
}

func TestInterpreter_LogsAndRefundData(t *testing.T) {
	expired := validInterpreter(testDonation(), &mollie.Payment{ID: "tr_1", Status: mollie.PaymentStatusExpired})
	require.Equal(t, []string{"Payment expired."}, expired.Logs())

	p := &mollie.Payment{
		ID:             "tr_1",
		Status:         mollie.PaymentStatusPaid,
		Description:    "Jane Doe - Save the whales",
		AmountRefunded: &mollie.Amount{Currency: "EUR", Value: "7.50"},
		Embedded: &mollie.PaymentEmbedded{Refunds: []mollie.Refund{
			{ID: "re_1", Amount: mollie.Amount{Currency: "EUR", Value: "2.50"}, Description: "Jane Doe - Save the whales"},
			{ID: "re_2", Amount: mollie.Amount{Currency: "EUR", Value: "5.00"}, Description: "Duplicate gift"},
		}},
	}
	in := validInterpreter(testDonation(), p)
	require.Equal(t, "7.50", in.RefundAmount())
	require.Equal(t, "Duplicate gift", in.RefundNote())
	require.Equal(t, []string{`Refund note: "Duplicate gift"`}, in.Logs())

	log := in.RefundLog(time.Unix(1700000000, 0))
	require.Equal(t, int64(1700000000), log.Time)
	require.Equal(t, "Duplicate gift", log.Message)
	require.Equal(t, []string{"2.50", "5.00"}, log.CampaignRefunds)
	require.Equal(t, "7.50", log.TotalRefund)

	// a note equal to the payment description adds nothing
	p.Embedded.Refunds = p.Embedded.Refunds[:1]
	require.Empty(t, in.Logs())
}
