package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/mollie-gateway/pkg/types"
)

type RecurringDonation struct {
	ID      string               `gorm:"column:id;type:varchar(64);primary_key" json:"id"`
	DonorID string               `gorm:"column:donor_id;type:varchar(64);not null;index" json:"donor_id"`
	Period  types.DonationPeriod `gorm:"column:period;type:varchar(16);not null" json:"period"`
	// Length is the number of payments, 0 for open-ended plans.
	Length      int                           `gorm:"column:length;not null;default:0" json:"length"`
	Amount      decimal.Decimal               `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Currency    string                        `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Description string                        `gorm:"column:description;type:text" json:"description"`
	Gateway     string                        `gorm:"column:gateway;type:varchar(64);not null" json:"gateway"`
	TestMode    bool                          `gorm:"column:test_mode;not null;default:false" json:"test_mode"`
	Status      types.RecurringDonationStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`

	// GatewayCustomerID owns GatewaySubscriptionID at the gateway.
	GatewaySubscriptionID string     `gorm:"column:gateway_subscription_id;type:varchar(128);index" json:"gateway_subscription_id"`
	GatewayCustomerID     string     `gorm:"column:gateway_customer_id;type:varchar(128)" json:"gateway_customer_id"`
	RenewalCount          int        `gorm:"column:renewal_count;not null;default:0" json:"renewal_count"`
	LastRenewedAt         *time.Time `gorm:"column:last_renewed_at;default:null" json:"last_renewed_at"`
	CancelledAt           *time.Time `gorm:"column:cancelled_at;default:null" json:"cancelled_at"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (RecurringDonation) TableName() string {
	return "recurring_donation"
}
