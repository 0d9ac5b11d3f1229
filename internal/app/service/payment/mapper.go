package payment

import (
	"github.com/shopspring/decimal"

	"github.com/fatflowers/mollie-gateway/internal/models"
	"github.com/fatflowers/mollie-gateway/pkg/config"
)

// DonationData is the subset of a donation that goes into a payment request.
type DonationData struct {
	DonationID          string
	DonationKey         string
	DonorID             string
	Email               string
	FullName            string
	Amount              decimal.Decimal
	Currency            string
	Description         string
	Locale              string
	ReturnURL           string
	WebhookURL          string
	RecurringDonationID string
	TestMode            bool
}

func NewDonationData(d *models.Donation, site config.SiteConfig, webhookSource string) *DonationData {
	data := &DonationData{
		DonationID:  d.ID,
		DonationKey: d.DonationKey,
		DonorID:     d.DonorID,
		Email:       d.Email,
		FullName:    d.FullName(),
		Amount:      d.Amount,
		Currency:    d.Currency,
		Description: d.Description,
		Locale:      d.Locale,
		ReturnURL:   site.ReturnURL(d.ID),
		WebhookURL:  site.WebhookURL(webhookSource),
		TestMode:    d.TestMode,
	}
	if data.Currency == "" {
		data.Currency = site.Currency
	}
	if data.Locale == "" {
		data.Locale = site.Locale
	}
	if d.IsRecurring() {
		data.RecurringDonationID = *d.RecurringDonationID
	}
	return data
}

// PaymentDescription is what the donor sees on the Mollie checkout page.
func (d *DonationData) PaymentDescription() string {
	if d.FullName == "" {
		return d.Description
	}
	return d.FullName + " - " + d.Description
}
