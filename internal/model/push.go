package model

import "time"

// Notification kinds, used as push tags.
const (
	NotifTypeBadgeEarned       = "badge_earned"
	NotifTypeRedemptionDecided = "redemption_decided"
)

type PushSubscription struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
