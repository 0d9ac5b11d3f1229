package payment

import (
	"context"
	"testing"

	"github.com/h2non/gock"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/mollie-gateway/internal/app/service/donation/donationtest"
	"github.com/fatflowers/mollie-gateway/internal/models"
	"github.com/fatflowers/mollie-gateway/internal/platform/mollie"
	"github.com/fatflowers/mollie-gateway/pkg/config"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

const apiHost = "https://api.mollie.com"

var testSite = config.SiteConfig{PublicURL: "https://donate.example.org", Currency: "EUR", Locale: "en_US"}

func testDonation() *models.Donation {
	return &models.Donation{
		ID:          "42",
		DonationKey: "key-42",
		DonorID:     "donor-1",
		Email:       "jane@example.org",
		FirstName:   "Jane",
		LastName:    "Doe",
		Amount:      decimal.RequireFromString("12.5"),
		Currency:    "EUR",
		Description: "Save the whales",
		Locale:      "nl_NL",
		Gateway:     types.GatewayMollie,
		TestMode:    true,
		Status:      types.DonationStatusPending,
	}
}

func newTestRequest(store *donationtest.Store, d *models.Donation) *Request {
	client := mollie.NewClient(mollie.Options{APIKey: "test_abc", TestMode: true})
	return NewRequest(client, store, NewDonationData(d, testSite, types.GatewayMollie), zap.NewNop().Sugar())
}

func TestRequest_ReusesCachedCustomerWithoutCreating(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).Get("/v2/customers/cst_cached").Reply(200).JSON(map[string]any{"id": "cst_cached"})

	store := donationtest.New()
	store.PutCustomer("donor-1", types.GatewayMollie, true, "cst_cached")

	req := newTestRequest(store, testDonation())
	require.NoError(t, req.Prepare(context.Background()))
	require.Equal(t, "cst_cached", req.Body().CustomerID)
	require.Zero(t, store.CustomerWrites)
	require.True(t, gock.IsDone())
}

func TestRequest_CreatesAndCachesCustomerWhenCachedOneIsGone(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).Get("/v2/customers/cst_old").Reply(404).JSON(map[string]any{"detail": "No customer exists with token cst_old."})
	gock.New(apiHost).
		Post("^/v2/customers$").
		JSON(map[string]any{"name": "Jane Doe", "email": "jane@example.org", "locale": "nl_NL"}).
		Reply(201).
		JSON(map[string]any{"id": "cst_new"})

	store := donationtest.New()
	store.PutCustomer("donor-1", types.GatewayMollie, true, "cst_old")

	req := newTestRequest(store, testDonation())
	require.NoError(t, req.Prepare(context.Background()))
	require.Equal(t, "cst_new", req.Body().CustomerID)

	cached, err := store.GetCustomerID(context.Background(), "donor-1", types.GatewayMollie, true)
	require.NoError(t, err)
	require.Equal(t, "cst_new", cached)
	// the live customer is a different object
	live, _ := store.GetCustomerID(context.Background(), "donor-1", types.GatewayMollie, false)
	require.Empty(t, live)
	require.True(t, gock.IsDone())
}

func TestRequest_DonationWithoutDonorSkipsCache(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).Post("^/v2/customers$").Reply(201).JSON(map[string]any{"id": "cst_anon"})

	store := donationtest.New()
	d := testDonation()
	d.DonorID = ""

	req := newTestRequest(store, d)
	require.NoError(t, req.Prepare(context.Background()))
	require.Equal(t, "cst_anon", req.Body().CustomerID)
	require.Zero(t, store.CustomerWrites)
}

func TestRequest_BodyForOneOffAndFirstPayments(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).Get("/v2/customers/cst_1").Times(2).Reply(200).JSON(map[string]any{"id": "cst_1"})

	store := donationtest.New()
	store.PutCustomer("donor-1", types.GatewayMollie, true, "cst_1")

	req := newTestRequest(store, testDonation())
	require.NoError(t, req.Prepare(context.Background()))
	body := req.Body()
	require.Equal(t, mollie.Amount{Currency: "EUR", Value: "12.50"}, body.Amount)
	require.Equal(t, "Jane Doe - Save the whales", body.Description)
	require.Equal(t, "https://donate.example.org/donation-receipt/42", body.RedirectURL)
	require.Equal(t, "https://donate.example.org/api/v2/payment/webhook/mollie", body.WebhookURL)
	require.Equal(t, "nl_NL", body.Locale)
	require.Equal(t, mollie.SequenceTypeOneOff, body.SequenceType)
	require.Equal(t, map[string]string{"donation_id": "42", "donation_key": "key-42"}, body.Metadata)

	d := testDonation()
	d.RecurringDonationID = lo.ToPtr("rd-7")
	req = newTestRequest(store, d)
	require.NoError(t, req.Prepare(context.Background()))
	require.Equal(t, mollie.SequenceTypeFirst, req.Body().SequenceType)
	require.True(t, gock.IsDone())
}

func TestRequest_ExecuteFailureRecordsNotice(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).Get("/v2/customers/cst_1").Reply(200).JSON(map[string]any{"id": "cst_1"})
	gock.New(apiHost).
		Post("^/v2/payments$").
		Reply(422).
		JSON(map[string]any{"status": 422, "title": "Unprocessable Entity", "detail": "The amount is lower than the minimum"})

	store := donationtest.New()
	store.PutCustomer("donor-1", types.GatewayMollie, true, "cst_1")

	req := newTestRequest(store, testDonation())
	require.NoError(t, req.Prepare(context.Background()))
	require.Error(t, req.Execute(context.Background()))
	require.Equal(t, "Payment request failed with error: The amount is lower than the minimum.", req.Notice())
}

func TestRequest_ExecuteBeforePrepare(t *testing.T) {
	req := newTestRequest(donationtest.New(), testDonation())
	require.ErrorIs(t, req.Execute(context.Background()), ErrNotPrepared)
}
