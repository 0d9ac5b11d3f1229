package webhook

import (
	"net/http"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fatflowers/mollie-gateway/internal/app/service/donation/donationtest"
	"github.com/fatflowers/mollie-gateway/internal/models"
	"github.com/fatflowers/mollie-gateway/internal/platform/mollie"
	"github.com/fatflowers/mollie-gateway/pkg/config"
	"github.com/fatflowers/mollie-gateway/pkg/types"
)

const apiHost = "https://api.mollie.com"

var nopLog = zap.NewNop().Sugar()

func testConfig() *config.Config {
	return &config.Config{
		Site:  config.SiteConfig{PublicURL: "https://donate.example.org", Currency: "EUR"},
		Redis: config.RedisConfig{LockTTLSeconds: 30},
	}
}

func testFactory() *mollie.Factory {
	return mollie.NewFactory(mollie.FactoryOptions{LiveAPIKey: "live_abc", TestAPIKey: "test_abc"})
}

func testDonation() *models.Donation {
	return &models.Donation{
		ID:                   "42",
		DonorID:              "donor-1",
		Amount:               decimal.RequireFromString("25"),
		Currency:             "EUR",
		Description:          "Save the whales",
		Gateway:              types.GatewayMollie,
		Status:               types.DonationStatusPending,
		GatewayTransactionID: "tr_1",
	}
}

func recurringDonation() *models.Donation {
	d := testDonation()
	d.RecurringDonationID = lo.ToPtr("7")
	return d
}

func validInterpreter(d *models.Donation, p *mollie.Payment) *Interpreter {
	return &Interpreter{valid: true, status: http.StatusOK, transactionID: p.ID, donation: d, payment: p}
}

func seededStore(d *models.Donation) *donationtest.Store {
	s := donationtest.New()
	s.PutDonation(d)
	return s
}
