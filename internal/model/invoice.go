package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invoice status values
const (
	StatusUnpaid = "unpaid"
	StatusPaid   = "paid"
)

// Invoice represents an invoice issued by a user to one of their clients.
// TotalAmount is derived from the line items and must always equal the sum
// of their totals.
type Invoice struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	UserID      uint            `json:"user_id" gorm:"index;not null;comment:'Owner of this invoice'"`
	ClientID    uint            `json:"client_id" gorm:"index;not null"`
	Client      *Client         `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	IssueDate   time.Time       `json:"issue_date" gorm:"not null"`
	DueDate     time.Time       `json:"due_date" gorm:"index;not null"`
	Status      string          `json:"status" gorm:"type:varchar(20);default:'unpaid';index"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	LineItems   []LineItem      `json:"line_items,omitempty" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `json:"deleted_at,omitempty" gorm:"index"`
}

// Overdue reports whether the invoice is unpaid past its due date.
func (i *Invoice) Overdue(now time.Time) bool {
	return i.Status == StatusUnpaid && i.DueDate.Before(now)
}

// LineItem represents one billable entry on an invoice. Total is derived
// as quantity times unit price. Items are replaced wholesale on edit.
type LineItem struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	InvoiceID   uint            `json:"invoice_id" gorm:"index;not null"`
	Position    int             `json:"position" gorm:"not null"`
	Description string          `json:"description" gorm:"type:varchar(255);not null"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	Total       decimal.Decimal `json:"total" gorm:"type:decimal(12,2);not null"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
