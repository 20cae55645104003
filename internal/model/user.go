package model

import "time"

// User is the gateway's authentication identity
type User struct {
	Base
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `json:"-"`
	FullName     string `json:"full_name,omitempty"`
	Provider     string `gorm:"size:32;default:email" json:"provider"`
}

// AuthSession backs an issued access token; revoking it ends the session
type AuthSession struct {
	ID        string     `gorm:"primaryKey;size:36"`
	UserID    string     `gorm:"size:36;index;not null"`
	ExpiresAt time.Time  `gorm:"not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}
