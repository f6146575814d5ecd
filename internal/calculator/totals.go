// Package calculator computes invoice line-item totals.
package calculator

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LineInput is one requested line item before totals are computed.
type LineInput struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Line is a validated line item with its computed total.
type Line struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

// FieldError describes a validation failure on one field of one line.
type FieldError struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates all field errors found in a line-item set.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid line items"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("line %d: %s %s", f.Index, f.Field, f.Message))
	}
	return strings.Join(parts, "; ")
}

// Compute validates an ordered line-item set and produces per-line totals
// plus the invoice total. Each line total is quantity times unit price,
// rounded half-up to two decimal places; the invoice total is the sum of
// the line totals. At least one line is required, quantities must be
// positive integers and unit prices non-negative.
func Compute(inputs []LineInput) ([]Line, decimal.Decimal, error) {
	verr := &ValidationError{}

	if len(inputs) == 0 {
		verr.Fields = append(verr.Fields, FieldError{Index: 0, Field: "line_items", Message: "at least one line item is required"})
		return nil, decimal.Zero, verr
	}

	for i, in := range inputs {
		if strings.TrimSpace(in.Description) == "" {
			verr.Fields = append(verr.Fields, FieldError{Index: i, Field: "description", Message: "is required"})
		}
		if in.Quantity < 1 {
			verr.Fields = append(verr.Fields, FieldError{Index: i, Field: "quantity", Message: "must be at least 1"})
		}
		if in.UnitPrice.IsNegative() {
			verr.Fields = append(verr.Fields, FieldError{Index: i, Field: "unit_price", Message: "must not be negative"})
		}
	}
	if len(verr.Fields) > 0 {
		return nil, decimal.Zero, verr
	}

	lines := make([]Line, 0, len(inputs))
	total := decimal.Zero
	for _, in := range inputs {
		lineTotal := in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2)
		lines = append(lines, Line{
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Total:       lineTotal,
		})
		total = total.Add(lineTotal)
	}

	return lines, total, nil
}
