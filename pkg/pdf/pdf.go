// Package pdf renders invoices as PDF documents.
package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/AsadRay/Mini-Invoice-SaaS/internal/model"
	"github.com/AsadRay/Mini-Invoice-SaaS/prometheus"

	"github.com/jung-kurt/gofpdf"
)

const dateLayout = "January 2, 2006"

// RenderInvoice produces a PDF document for an invoice. The invoice must
// have its client and line items loaded.
func RenderInvoice(inv *model.Invoice, issuer *model.User) ([]byte, error) {
	defer func(start time.Time) {
		prometheus.PDFRenderDuration.Observe(time.Since(start).Seconds())
	}(time.Now())

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetTitle(fmt.Sprintf("Invoice #%d", inv.ID), false)
	doc.AddPage()

	// Header
	doc.SetFont("Helvetica", "B", 20)
	doc.Cell(120, 12, fmt.Sprintf("Invoice #%d", inv.ID))
	doc.SetFont("Helvetica", "", 11)
	doc.CellFormat(0, 12, issuer.Name, "", 1, "R", false, 0, "")
	doc.Ln(4)

	// Client block
	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(0, 6, "Billed to:", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 11)
	if inv.Client != nil {
		doc.CellFormat(0, 6, inv.Client.Name, "", 1, "L", false, 0, "")
		if inv.Client.Company != "" {
			doc.CellFormat(0, 6, inv.Client.Company, "", 1, "L", false, 0, "")
		}
		if inv.Client.Email != "" {
			doc.CellFormat(0, 6, inv.Client.Email, "", 1, "L", false, 0, "")
		}
	}
	doc.Ln(2)

	// Dates and status
	doc.CellFormat(0, 6, "Issue date: "+inv.IssueDate.Format(dateLayout), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 6, "Due date: "+inv.DueDate.Format(dateLayout), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 6, "Status: "+inv.Status, "", 1, "L", false, 0, "")
	doc.Ln(6)

	// Line item table
	doc.SetFont("Helvetica", "B", 11)
	doc.SetFillColor(230, 230, 230)
	doc.CellFormat(90, 8, "Description", "1", 0, "L", true, 0, "")
	doc.CellFormat(25, 8, "Qty", "1", 0, "R", true, 0, "")
	doc.CellFormat(35, 8, "Unit Price", "1", 0, "R", true, 0, "")
	doc.CellFormat(35, 8, "Total", "1", 1, "R", true, 0, "")

	doc.SetFont("Helvetica", "", 11)
	for _, item := range inv.LineItems {
		doc.CellFormat(90, 8, item.Description, "1", 0, "L", false, 0, "")
		doc.CellFormat(25, 8, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		doc.CellFormat(35, 8, "$"+item.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		doc.CellFormat(35, 8, "$"+item.Total.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	// Grand total
	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(150, 8, "Total", "1", 0, "R", false, 0, "")
	doc.CellFormat(35, 8, "$"+inv.TotalAmount.StringFixed(2), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}
