package models

import "time"

// DeviceTokenModel is one signed-in device's refresh token record.
// Revocation deletes the row, so presence means the token is live
// (modulo expiry, which is checked at validation time).
type DeviceTokenModel struct {
	Username    string    `json:"username"     gorm:"primaryKey;size:191;not null"`
	TokenID     string    `json:"token_id"     gorm:"primaryKey;size:64;not null"`
	DeviceLabel string    `json:"device_label" gorm:"type:text"`
	IP          string    `json:"ip"`
	IssuedAt    time.Time `json:"issued_at"    gorm:"index;not null"`
	LastSeenAt  time.Time `json:"last_seen_at" gorm:"not null"`
	ExpiresAt   time.Time `json:"expires_at"   gorm:"index;not null"`
}

func (DeviceTokenModel) TableName() string { return "device_tokens" }
