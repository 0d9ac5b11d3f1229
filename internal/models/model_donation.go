package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/fatflowers/mollie-gateway/pkg/types"
)

// RefundLog records the refund seen on the payment, as shown in the admin.
type RefundLog struct {
	Time            int64    `json:"time"`
	Message         string   `json:"message"`
	CampaignRefunds []string `json:"campaign_refunds"`
	TotalRefund     string   `json:"total_refund"`
}

// Donation is a single charge. DonationKey is the host's public nonce for it.
type Donation struct {
	ID          string          `gorm:"column:id;type:varchar(64);primary_key" json:"id"`
	DonationKey string          `gorm:"column:donation_key;type:varchar(64)" json:"donation_key"`
	DonorID     string          `gorm:"column:donor_id;type:varchar(64);not null;index" json:"donor_id"`
	Email       string          `gorm:"column:email;type:varchar(255)" json:"email"`
	FirstName   string          `gorm:"column:first_name;type:varchar(128)" json:"first_name"`
	LastName    string          `gorm:"column:last_name;type:varchar(128)" json:"last_name"`
	CampaignID  string          `gorm:"column:campaign_id;type:varchar(64)" json:"campaign_id"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Currency    string          `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Description string          `gorm:"column:description;type:text" json:"description"`
	Locale      string          `gorm:"column:locale;type:varchar(16)" json:"locale"`
	Gateway     string          `gorm:"column:gateway;type:varchar(64);not null;index" json:"gateway"`
	// TestMode fixes which Mollie key every call about this donation uses.
	TestMode bool                 `gorm:"column:test_mode;not null;default:false" json:"test_mode"`
	Status   types.DonationStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`

	GatewayTransactionID  string `gorm:"column:gateway_transaction_id;type:varchar(128);index" json:"gateway_transaction_id"`
	GatewayTransactionURL string `gorm:"column:gateway_transaction_url;type:varchar(512)" json:"gateway_transaction_url"`
	// RecurringDonationID is set when this donation is the first payment of a plan.
	RecurringDonationID *string `gorm:"column:recurring_donation_id;type:varchar(64);index" json:"recurring_donation_id"`

	// Refunded is flipped with a conditional update before a dashboard refund call.
	Refunded  bool                           `gorm:"column:refunded;not null;default:false" json:"refunded"`
	RefundLog datatypes.JSONType[*RefundLog] `gorm:"column:refund_log;type:jsonb;default:'null'" json:"refund_log"`
	CreatedAt time.Time                      `json:"created_at"`
	UpdatedAt time.Time                      `json:"updated_at"`
}

func (Donation) TableName() string {
	return "donation"
}

func (d *Donation) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

func (d *Donation) IsRecurring() bool {
	return d != nil && d.RecurringDonationID != nil && *d.RecurringDonationID != ""
}
