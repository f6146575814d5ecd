package model

import "time"

// PendingRegistration holds registration data between sign-up and email
// verification. Rows are keyed by an opaque token handed back to the
// client and expire after a short window.
type PendingRegistration struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	Token     string    `json:"token" gorm:"type:varchar(36);uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	Email     string    `json:"email" gorm:"type:varchar(100);index;not null"`
	Password  string    `json:"-" gorm:"type:varchar(255)"`
	Code      string    `json:"-" gorm:"type:varchar(6);not null"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the verification window has closed.
func (p *PendingRegistration) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
