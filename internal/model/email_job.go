package model

import "time"

// EmailJob status values
const (
	EmailQueued = "queued"
	EmailSent   = "sent"
	EmailFailed = "failed"
)

// EmailJob kinds
const (
	EmailKindVerification = "verification"
	EmailKindInvoice      = "invoice"
	EmailKindReminder     = "reminder"
)

// EmailJob is an outbox record for one queued email. Background delivery
// updates the row so failures stay visible instead of vanishing into a
// fire-and-forget goroutine.
type EmailJob struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index"`
	InvoiceID *uint     `json:"invoice_id,omitempty" gorm:"index"`
	Recipient string    `json:"recipient" gorm:"type:varchar(100);not null"`
	Subject   string    `json:"subject" gorm:"type:varchar(255);not null"`
	Kind      string    `json:"kind" gorm:"type:varchar(20);index;not null"`
	Status    string    `json:"status" gorm:"type:varchar(20);default:'queued';index"`
	Error     string    `json:"error,omitempty" gorm:"type:text"`
	Attempts  int       `json:"attempts" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
