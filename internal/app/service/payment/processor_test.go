package payment

import (
	"context"
	"testing"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/mollie-gateway/internal/app/service/donation"
	"github.com/fatflowers/mollie-gateway/internal/app/service/donation/donationtest"
	"github.com/fatflowers/mollie-gateway/internal/platform/mollie"
	"github.com/fatflowers/mollie-gateway/pkg/config"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

func newTestProcessor(store *donationtest.Store, opts mollie.FactoryOptions) *Processor {
	cfg := &config.Config{Site: testSite}
	return NewProcessor(cfg, mollie.NewFactory(opts), store, zap.NewNop().Sugar())
}

func TestProcessor_RedirectsToCheckoutAndStoresTransaction(t *testing.T) {
	defer gock.Off()
	gock.New(apiHost).Post("^/v2/customers$").Reply(201).JSON(map[string]any{"id": "cst_1"})
	gock.New(apiHost).
		Post("^/v2/payments$").
		MatchHeader("Authorization", "^Bearer test_abc$").
		Reply(201).
		JSON(map[string]any{
			"id":     "tr_1",
			"status": "open",
			"_links": map[string]any{
				"checkout":  map[string]any{"href": "https://www.mollie.com/checkout/tr_1"},
				"dashboard": map[string]any{"href": "https://www.mollie.com/dashboard/payments/tr_1"},
			},
		})

	store := donationtest.New()
	store.PutDonation(testDonation())
	p := newTestProcessor(store, mollie.FactoryOptions{TestAPIKey: "test_abc", LiveAPIKey: "live_abc"})

	res, err := p.ProcessDonation(context.Background(), "42")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "https://www.mollie.com/checkout/tr_1", res.Redirect)

	d := store.Donation("42")
	require.Equal(t, "tr_1", d.GatewayTransactionID)
	require.Equal(t, "https://www.mollie.com/dashboard/payments/tr_1", d.GatewayTransactionURL)
	require.Equal(t, types.DonationStatusPending, d.Status)
	require.Equal(t, []string{"Mollie payment tr_1 created."}, store.Logs("42"))
	require.True(t, gock.IsDone())
}

func TestProcessor_MissingKeyFailsWithNotice(t *testing.T) {
	defer gock.Off()
	store := donationtest.New()
	store.PutDonation(testDonation())
	p := newTestProcessor(store, mollie.FactoryOptions{LiveAPIKey: "live_abc"})

	res, err := p.ProcessDonation(context.Background(), "42")
	require.ErrorIs(t, err, mollie.ErrNoAPIKey)
	require.False(t, res.Success)
	require.Equal(t, []string{"Payment request failed with error: create mollie customer: mollie: api key is not configured."}, res.Notices)
	require.False(t, gock.HasUnmatchedRequest())
}

func TestProcessor_Guards(t *testing.T) {
	store := donationtest.New()
	other := testDonation()
	other.ID = "43"
	other.Gateway = "stripe"
	store.PutDonation(other)
	done := testDonation()
	done.ID = "44"
	done.Status = types.DonationStatusCompleted
	store.PutDonation(done)
	p := newTestProcessor(store, mollie.FactoryOptions{TestAPIKey: "test_abc"})

	_, err := p.ProcessDonation(context.Background(), "missing")
	require.ErrorIs(t, err, donation.ErrNotFound)
	_, err = p.ProcessDonation(context.Background(), "43")
	require.ErrorIs(t, err, ErrWrongGateway)
	_, err = p.ProcessDonation(context.Background(), "44")
	require.ErrorIs(t, err, ErrNotPending)
}
