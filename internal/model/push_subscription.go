package model

import "time"

// PushSubscription holds the information for a resident's browser push subscription.
type PushSubscription struct {
	Endpoint   string    `gorm:"primaryKey"`
	P256DH     string    `gorm:"column:p256dh;not null"`
	Auth       string    `gorm:"not null"`
	ResidentID string    `gorm:"index;size:64;not null"`
	CreatedAt  time.Time `gorm:"not null"`
}
