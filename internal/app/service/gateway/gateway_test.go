package gateway

import (
	"context"
	"testing"

	"github.com/h2non/gock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/mollie-gateway/internal/app/service/donation/donationtest"
	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	"github.com/fatflowers/mollie-gateway/internal/models"
	"github.com/fatflowers/mollie-gateway/internal/platform/mollie"
	"github.com/fatflowers/mollie-gateway/pkg/config"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

const apiHost = "https://api.mollie.com"

func newGateway(store *donationtest.Store, live, test string) *Gateway {
	cfg := &config.Config{Mollie: config.MollieConfig{LiveAPIKey: live, TestAPIKey: test}}
	return New(cfg, NewClientFactory(cfg), store, zap.NewNop().Sugar())
}

func completedDonation() *models.Donation {
	return &models.Donation{
		ID:                   "42",
		DonorID:              "donor-1",
		Amount:               decimal.RequireFromString("25"),
		Currency:             "EUR",
		Gateway:              types.GatewayMollie,
		Status:               types.DonationStatusCompleted,
		GatewayTransactionID: "tr_1",
	}
}

func TestGateway_Descriptor(t *testing.T) {
	g := newGateway(donationtest.New(), "live_abcdefgh1234", "")
	require.Equal(t, "mollie", g.ID())
	require.Equal(t, "Mollie", g.Name())
	require.True(t, g.Supports(registry.FeatureRefunds))
	require.True(t, g.Supports(registry.FeatureRecurring))
	require.False(t, g.Supports("apple_pay"))

	fields := g.SettingsFields()
	require.Len(t, fields, 3)
	require.Equal(t, "heading", fields[0].Type)
	require.Equal(t, "Mollie API Keys", fields[0].Title)
	require.Equal(t, "live_api_key", fields[1].Key)
	require.Equal(t, "live_********1234", fields[1].Value)
	require.Equal(t, "test_api_key", fields[2].Key)
	require.Empty(t, fields[2].Value)
}

func TestMaskKey(t *testing.T) {
	require.Equal(t, "", maskKey(""))
	require.Equal(t, "test_***", maskKey("test_abc"))
	require.Equal(t, "****5678", maskKey("12345678"))
}

func TestGateway_IsDonationRefundable(t *testing.T) {
	g := newGateway(donationtest.New(), "live_abc", "")

	d := completedDonation()
	require.True(t, g.IsDonationRefundable(d))

	d.Refunded = true
	require.False(t, g.IsDonationRefundable(d))

	d = completedDonation()
	d.Status = types.DonationStatusRefunded
	require.False(t, g.IsDonationRefundable(d), "refunded in the Mollie dashboard")

	d = completedDonation()
	d.GatewayTransactionID = ""
	require.False(t, g.IsDonationRefundable(d))

	d = completedDonation()
	d.TestMode = true
	require.False(t, g.IsDonationRefundable(d), "no test key configured")
}

func TestGateway_RefundTwiceCallsMollieOnce(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).
		Post("/v2/payments/tr_1/refunds").
		MatchHeader("Authorization", "^Bearer live_abc$").
		JSON(map[string]any{
			"amount":      map[string]any{"currency": "EUR", "value": "25.00"},
			"description": "Refund of donation #42",
		}).
		Times(1).
		Reply(201).
		JSON(map[string]any{"id": "re_1", "status": "pending", "amount": map[string]any{"currency": "EUR", "value": "25.00"}})

	store := donationtest.New()
	store.PutDonation(completedDonation())
	g := newGateway(store, "live_abc", "")

	require.NoError(t, g.RefundDonationFromDashboard(context.Background(), "42"))
	require.True(t, gock.IsDone())

	err := g.RefundDonationFromDashboard(context.Background(), "42")
	require.ErrorIs(t, err, ErrAlreadyRefunded)
	require.False(t, gock.HasUnmatchedRequest())

	saved := store.Donation("42")
	require.True(t, saved.Refunded)
	require.Equal(t, types.DonationStatusRefunded, saved.Status)
	require.Equal(t, []string{"Refunded 25.00 EUR via Mollie."}, store.Logs("42"))
}

func TestGateway_RefundFailureReleasesFlag(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).
		Post("/v2/payments/tr_1/refunds").
		Reply(422).
		JSON(map[string]any{"status": 422, "detail": "The payment is already refunded"})

	store := donationtest.New()
	store.PutDonation(completedDonation())
	g := newGateway(store, "live_abc", "")

	err := g.RefundDonationFromDashboard(context.Background(), "42")
	var apiErr *mollie.APIError
	require.ErrorAs(t, err, &apiErr)

	saved := store.Donation("42")
	require.False(t, saved.Refunded)
	require.Equal(t, types.DonationStatusCompleted, saved.Status)
	require.Equal(t, []string{"Mollie refund failed: The payment is already refunded"}, store.Logs("42"))
}

func TestGateway_RefundWithoutKeyNeverCallsMollie(t *testing.T) {
	defer gock.Off()
	store := donationtest.New()
	store.PutDonation(completedDonation())
	g := newGateway(store, "", "")

	err := g.RefundDonationFromDashboard(context.Background(), "42")
	require.ErrorIs(t, err, ErrNotRefundable)
	require.ErrorIs(t, err, mollie.ErrNoAPIKey)
	require.False(t, store.Donation("42").Refunded)
	require.False(t, gock.HasUnmatchedRequest())
}

func TestGateway_RefundAfterWebhookRefundNeverCallsMollie(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).
		Post("/v2/payments/tr_1/refunds").
		Reply(201).
		JSON(map[string]any{"id": "re_2"})

	store := donationtest.New()
	d := completedDonation()
	d.Status = types.DonationStatusRefunded
	store.PutDonation(d)

	err := newGateway(store, "live_abc", "").RefundDonationFromDashboard(context.Background(), "42")
	require.ErrorIs(t, err, ErrAlreadyRefunded)
	require.True(t, gock.IsPending())
	require.Empty(t, store.Logs("42"))
}

func TestGateway_RefundOtherGateway(t *testing.T) {
	store := donationtest.New()
	d := completedDonation()
	d.Gateway = "paypal"
	store.PutDonation(d)

	err := newGateway(store, "live_abc", "").RefundDonationFromDashboard(context.Background(), "42")
	require.ErrorIs(t, err, ErrNotRefundable)
}

func activePlan() *models.RecurringDonation {
	return &models.RecurringDonation{
		ID:                    "7",
		DonorID:               "donor-1",
		Period:                types.DonationPeriodMonth,
		Amount:                decimal.RequireFromString("10"),
		Currency:              "EUR",
		Gateway:               types.GatewayMollie,
		Status:                types.RecurringDonationStatusActive,
		GatewaySubscriptionID: "sub_1",
		GatewayCustomerID:     "cst_1",
	}
}

func TestGateway_CancelTwiceDeletesOnce(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).
		Delete("/v2/customers/cst_1/subscriptions/sub_1").
		Times(1).
		Reply(200).
		JSON(map[string]any{"id": "sub_1", "status": "canceled"})

	store := donationtest.New()
	store.PutRecurringDonation(activePlan())
	g := newGateway(store, "live_abc", "")

	require.True(t, g.IsSubscriptionCancellable(store.Recurring("7")))
	require.NoError(t, g.CancelSubscription(context.Background(), "7"))
	require.True(t, gock.IsDone())
	require.Equal(t, types.RecurringDonationStatusCancelled, store.Recurring("7").Status)

	err := g.CancelSubscription(context.Background(), "7")
	require.ErrorIs(t, err, ErrAlreadyCancelled)
	require.False(t, gock.HasUnmatchedRequest())
	require.False(t, g.IsSubscriptionCancellable(store.Recurring("7")))
}

func TestGateway_CancelFailureRestoresStatus(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).
		Delete("/v2/customers/cst_1/subscriptions/sub_1").
		Reply(404).
		JSON(map[string]any{"status": 404, "detail": "No subscription exists with token sub_1."})

	store := donationtest.New()
	store.PutRecurringDonation(activePlan())
	g := newGateway(store, "live_abc", "")

	err := g.CancelSubscription(context.Background(), "7")
	require.Error(t, err)
	require.Equal(t, "No subscription exists with token sub_1.", mollie.ErrorDetail(err))
	require.Equal(t, types.RecurringDonationStatusActive, store.Recurring("7").Status)
}

func TestGateway_CancelWithoutCustomerIsNotCancellable(t *testing.T) {
	store := donationtest.New()
	plan := activePlan()
	plan.GatewayCustomerID = ""
	store.PutRecurringDonation(plan)
	g := newGateway(store, "live_abc", "")

	err := g.CancelSubscription(context.Background(), "7")
	require.ErrorIs(t, err, ErrNotCancellable)
	require.Equal(t, types.RecurringDonationStatusActive, store.Recurring("7").Status)
}

func TestGateway_CancelUsesSubscriptionCustomer(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).
		Delete("/v2/customers/cst_1/subscriptions/sub_1").
		Reply(200).
		JSON(map[string]any{"id": "sub_1", "status": "canceled"})

	store := donationtest.New()
	plan := activePlan()
	plan.DonorID = ""
	store.PutRecurringDonation(plan)
	// the donor cache may point at a newer customer than the one owning sub_1
	store.PutCustomer("", types.GatewayMollie, false, "cst_recreated")
	g := newGateway(store, "live_abc", "")

	require.True(t, g.IsSubscriptionCancellable(store.Recurring("7")))
	require.NoError(t, g.CancelSubscription(context.Background(), "7"))
	require.True(t, gock.IsDone())
	require.Equal(t, types.RecurringDonationStatusCancelled, store.Recurring("7").Status)
}

func TestGateway_CustomerID(t *testing.T) {
	store := donationtest.New()
	store.PutCustomer("donor-1", types.GatewayMollie, true, "cst_test")
	g := newGateway(store, "live_abc", "test_abc")

	d := completedDonation()
	id, err := g.CustomerID(context.Background(), d)
	require.NoError(t, err)
	require.Empty(t, id)

	d.TestMode = true
	id, err = g.CustomerID(context.Background(), d)
	require.NoError(t, err)
	require.Equal(t, "cst_test", id)
}

func TestRegister(t *testing.T) {
	reg := registry.New()
	g := newGateway(donationtest.New(), "live_abc", "")
	require.NoError(t, Register(reg, g, nil, nil))

	got, ok := reg.Gateway("mollie")
	require.True(t, ok)
	require.Same(t, g, got)
	_, ok = reg.WebhookReceiver("mollie")
	require.True(t, ok)

	require.Error(t, Register(reg, g, nil, nil))
}
