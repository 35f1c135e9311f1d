package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// There is a single feeder, so subscriptions are a flat list: every
// subscriber is notified about every completed feeding.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
