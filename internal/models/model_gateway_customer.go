package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GatewayCustomer maps a donor to the customer object a gateway keeps for
// them. Live and test customers are separate objects at Mollie.
type GatewayCustomer struct {
	ID         string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	DonorID    string    `gorm:"column:donor_id;type:varchar(64);not null;uniqueIndex:unique_donor_gateway_mode,priority:1" json:"donor_id"`
	Gateway    string    `gorm:"column:gateway;type:varchar(64);not null;uniqueIndex:unique_donor_gateway_mode,priority:2" json:"gateway"`
	TestMode   bool      `gorm:"column:test_mode;not null;uniqueIndex:unique_donor_gateway_mode,priority:3" json:"test_mode"`
	CustomerID string    `gorm:"column:customer_id;type:varchar(128);not null" json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (GatewayCustomer) TableName() string {
	return "gateway_customer"
}

func (c *GatewayCustomer) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = newID()
	}
	return nil
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
