package auth

import (
	"errors"
	"time"
)

type LoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterDTO struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name"`
}

type ChangePasswordDTO struct {
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

type RevokeDeviceDTO struct {
	TokenID string `json:"tokenId" binding:"required"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type deviceResponse struct {
	TokenID     string    `json:"tokenId"`
	DeviceLabel string    `json:"deviceLabel"`
	IP          string    `json:"ip"`
	IssuedAt    time.Time `json:"issuedAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
	IsCurrent   bool      `json:"isCurrent"`
}

var (
	errAuthUserNotFound  = errors.New("auth user not found")
	errAuthWrongPassword = errors.New("auth wrong password")
)
