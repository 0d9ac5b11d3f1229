package models

import (
	"time"

	"gorm.io/gorm"
)

// DonationLog is one line of the donation's human readable history.
type DonationLog struct {
	ID         string    `gorm:"column:id;primary_key;type:uuid" json:"id"`
	DonationID string    `gorm:"column:donation_id;type:varchar(64);not null;index" json:"donation_id"`
	Message    string    `gorm:"column:message;type:text;not null" json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

func (DonationLog) TableName() string {
	return "donation_log"
}

func (l *DonationLog) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = newID()
	}
	return nil
}
