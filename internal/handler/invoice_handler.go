package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/AsadRay/Mini-Invoice-SaaS/internal/calculator"
	"github.com/AsadRay/Mini-Invoice-SaaS/internal/model"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/database"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/logger"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/mailer"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/pdf"
	"github.com/AsadRay/Mini-Invoice-SaaS/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const invoiceDateLayout = "2006-01-02"

// InvoiceRequest defines the structure for invoice creation/update requests.
// Line items are always supplied as the full set; edits replace the stored
// set wholesale.
type InvoiceRequest struct {
	ClientID  uint                   `json:"client_id" validate:"required"`
	IssueDate string                 `json:"issue_date" validate:"required"`
	DueDate   string                 `json:"due_date" validate:"required"`
	LineItems []calculator.LineInput `json:"line_items"`
}

func (r *InvoiceRequest) parseDates() (issue, due time.Time, err error) {
	issue, err = time.Parse(invoiceDateLayout, r.IssueDate)
	if err != nil {
		return issue, due, fmt.Errorf("issue_date must be formatted as %s", invoiceDateLayout)
	}
	due, err = time.Parse(invoiceDateLayout, r.DueDate)
	if err != nil {
		return issue, due, fmt.Errorf("due_date must be formatted as %s", invoiceDateLayout)
	}
	return issue, due, nil
}

// CreateInvoice creates a new invoice with its line items in one transaction
func CreateInvoice(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordInvoiceOperation("create")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req InvoiceRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	issueDate, dueDate, err := req.parseDates()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	// The referenced client must belong to the caller. A foreign client id
	// reads as not-found so other tenants' data stays invisible.
	defer prometheus.TrackDBOperation("query")(time.Now())
	var client model.Client
	result := database.GetDB().Where("id = ? AND user_id = ?", req.ClientID, userID).First(&client)
	if result.Error != nil {
		log.Warn("Client not found for invoice",
			zap.Uint("client_id", req.ClientID),
			zap.Uint("user_id", userID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Client not found"})
	}

	lines, total, err := calculator.Compute(req.LineItems)
	if err != nil {
		var verr *calculator.ValidationError
		if errors.As(err, &verr) {
			log.Warn("Invoice validation failed", zap.String("detail", verr.Error()))
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":  "Invalid line items",
				"fields": verr.Fields,
			})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	invoice := model.Invoice{
		UserID:      userID,
		ClientID:    client.ID,
		IssueDate:   issueDate,
		DueDate:     dueDate,
		Status:      model.StatusUnpaid,
		TotalAmount: total,
		LineItems:   makeLineItems(lines),
	}

	// Invoice and line items land together or not at all
	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		return tx.Create(&invoice).Error
	})
	if err != nil {
		log.Error("Failed to create invoice",
			zap.Uint("client_id", client.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create invoice"})
	}

	log.Info("Invoice created successfully",
		zap.Uint("invoice_id", invoice.ID),
		zap.Uint("client_id", client.ID),
		zap.String("total", invoice.TotalAmount.StringFixed(2)),
		zap.Int("line_items", len(invoice.LineItems)))
	return c.JSON(http.StatusCreated, invoice)
}

// ListInvoices returns the caller's invoices, optionally filtered by
// status: all, paid, unpaid or overdue
func ListInvoices(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordInvoiceOperation("list")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	query := database.GetDB().Where("user_id = ?", userID)

	status := c.QueryParam("status")
	switch status {
	case "", "all":
		// no filter
	case model.StatusPaid:
		query = query.Where("status = ?", model.StatusPaid)
	case model.StatusUnpaid:
		query = query.Where("status = ?", model.StatusUnpaid)
	case "overdue":
		// Overdue is computed at query time, never stored
		query = query.Where("status = ? AND due_date < ?", model.StatusUnpaid, time.Now())
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be one of all, paid, unpaid, overdue"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var invoices []model.Invoice
	result := query.Preload("Client").Order("due_date DESC").Find(&invoices)
	if result.Error != nil {
		log.Error("Failed to list invoices", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve invoices"})
	}

	return c.JSON(http.StatusOK, invoices)
}

// GetInvoice retrieves one of the caller's invoices with its line items
func GetInvoice(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordInvoiceOperation("get")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid invoice ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	invoice, err := loadOwnedInvoice(uint(id), userID)
	if err != nil {
		log.Warn("Invoice not found",
			zap.Uint64("invoice_id", id),
			zap.Uint("user_id", userID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Invoice not found"})
	}

	return c.JSON(http.StatusOK, invoice)
}

// UpdateInvoice edits one of the caller's invoices. The stored line-item
// set is replaced wholesale and totals recomputed, all inside a single
// transaction so a failure leaves the previous state intact.
func UpdateInvoice(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordInvoiceOperation("edit")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid invoice ID"})
	}

	var req InvoiceRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	issueDate, dueDate, err := req.parseDates()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	var invoice model.Invoice
	result := database.GetDB().Where("id = ? AND user_id = ?", id, userID).First(&invoice)
	if result.Error != nil {
		log.Warn("Invoice not found for update",
			zap.Uint64("invoice_id", id),
			zap.Uint("user_id", userID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Invoice not found"})
	}

	var client model.Client
	result = database.GetDB().Where("id = ? AND user_id = ?", req.ClientID, userID).First(&client)
	if result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Client not found"})
	}

	lines, total, err := calculator.Compute(req.LineItems)
	if err != nil {
		var verr *calculator.ValidationError
		if errors.As(err, &verr) {
			log.Warn("Invoice validation failed", zap.String("detail", verr.Error()))
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":  "Invalid line items",
				"fields": verr.Fields,
			})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	invoice.ClientID = client.ID
	invoice.IssueDate = issueDate
	invoice.DueDate = dueDate
	invoice.TotalAmount = total

	defer prometheus.TrackDBOperation("update")(time.Now())
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		// Replace line items wholesale: delete the old set, insert the new
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&model.LineItem{}).Error; err != nil {
			return err
		}
		items := makeLineItems(lines)
		for i := range items {
			items[i].InvoiceID = invoice.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		invoice.LineItems = items
		return tx.Omit("LineItems").Save(&invoice).Error
	})
	if err != nil {
		log.Error("Failed to update invoice",
			zap.Uint64("invoice_id", id),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update invoice"})
	}

	log.Info("Invoice updated successfully",
		zap.Uint64("invoice_id", id),
		zap.String("total", invoice.TotalAmount.StringFixed(2)),
		zap.Int("line_items", len(invoice.LineItems)))
	return c.JSON(http.StatusOK, invoice)
}

// MarkInvoicePaid transitions an invoice to paid. Marking an already paid
// invoice again is a no-op that still succeeds.
func MarkInvoicePaid(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordInvoiceOperation("mark_paid")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid invoice ID"})
	}

	var invoice model.Invoice
	result := database.GetDB().Where("id = ? AND user_id = ?", id, userID).First(&invoice)
	if result.Error != nil {
		log.Warn("Invoice not found for mark-paid",
			zap.Uint64("invoice_id", id),
			zap.Uint("user_id", userID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Invoice not found"})
	}

	if invoice.Status == model.StatusPaid {
		return c.JSON(http.StatusOK, echo.Map{
			"message": "Invoice already marked as paid",
			"status":  model.StatusPaid,
		})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Model(&invoice).Update("status", model.StatusPaid).Error; err != nil {
		log.Error("Failed to mark invoice paid",
			zap.Uint64("invoice_id", id),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to mark invoice as paid"})
	}

	log.Info("Invoice marked as paid", zap.Uint64("invoice_id", id))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Invoice marked as paid",
		"status":  model.StatusPaid,
	})
}

// DeleteInvoice removes an invoice and its line items
func DeleteInvoice(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordInvoiceOperation("delete")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid invoice ID"})
	}

	var invoice model.Invoice
	result := database.GetDB().Where("id = ? AND user_id = ?", id, userID).First(&invoice)
	if result.Error != nil {
		log.Warn("Invoice not found for deletion",
			zap.Uint64("invoice_id", id),
			zap.Uint("user_id", userID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Invoice not found"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&model.LineItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&invoice).Error
	})
	if err != nil {
		log.Error("Failed to delete invoice",
			zap.Uint64("invoice_id", id),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete invoice"})
	}

	log.Info("Invoice deleted successfully", zap.Uint64("invoice_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Invoice deleted successfully"})
}

// DownloadInvoicePDF renders one of the caller's invoices as a PDF
func DownloadInvoicePDF(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordInvoiceOperation("pdf")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid invoice ID"})
	}

	invoice, err := loadOwnedInvoice(uint(id), userID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Invoice not found"})
	}

	var issuer model.User
	if result := database.GetDB().First(&issuer, userID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Invoice not found"})
	}

	data, err := pdf.RenderInvoice(invoice, &issuer)
	if err != nil {
		log.Error("Failed to render invoice PDF",
			zap.Uint64("invoice_id", id),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to render invoice PDF"})
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("inline; filename=Your_Invoice_%d.pdf", invoice.ID))
	return c.Blob(http.StatusOK, "application/pdf", data)
}

// EmailInvoice queues the invoice, PDF attached, for delivery to the client
func EmailInvoice(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordInvoiceOperation("email")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid invoice ID"})
	}

	invoice, err := loadOwnedInvoice(uint(id), userID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Invoice not found"})
	}

	if invoice.Client == nil || invoice.Client.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Client has no email address"})
	}

	var issuer model.User
	if result := database.GetDB().First(&issuer, userID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Invoice not found"})
	}

	data, err := pdf.RenderInvoice(invoice, &issuer)
	if err != nil {
		log.Error("Failed to render invoice PDF for email",
			zap.Uint64("invoice_id", id),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to render invoice PDF"})
	}

	textBody := fmt.Sprintf("Hello %s,\n\nPlease find invoice #%d attached.\n\nAmount due: $%s\nDue date: %s\n\nRegards,\n%s",
		invoice.Client.Name, invoice.ID, invoice.TotalAmount.StringFixed(2),
		invoice.DueDate.Format("January 2, 2006"), issuer.Name)
	htmlBody := fmt.Sprintf("<p>Hello %s,</p><p>Please find invoice #%d attached.</p><p>Amount due: <b>$%s</b><br>Due date: %s</p><p>Regards,<br>%s</p>",
		invoice.Client.Name, invoice.ID, invoice.TotalAmount.StringFixed(2),
		invoice.DueDate.Format("January 2, 2006"), issuer.Name)

	invoiceID := invoice.ID
	_, err = dispatch.Enqueue(model.EmailJob{
		UserID:    userID,
		InvoiceID: &invoiceID,
		Kind:      model.EmailKindInvoice,
	}, mailer.Message{
		Subject:  fmt.Sprintf("Invoice #%d", invoice.ID),
		From:     mailCfg.DefaultSender,
		To:       []string{invoice.Client.Email},
		TextBody: textBody,
		HTMLBody: htmlBody,
		Attachments: []mailer.Attachment{{
			Filename: fmt.Sprintf("Your_Invoice_%d.pdf", invoice.ID),
			MIMEType: "application/pdf",
			Data:     data,
		}},
	})
	if err != nil {
		// The invoice itself is untouched; only the delivery failed
		log.Error("Failed to queue invoice email",
			zap.Uint64("invoice_id", id),
			zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "Failed to queue invoice email"})
	}

	log.Info("Invoice email queued",
		zap.Uint64("invoice_id", id),
		zap.String("recipient", invoice.Client.Email))
	return c.JSON(http.StatusAccepted, echo.Map{"message": "Invoice email queued"})
}

// SendReminder queues a payment reminder to the invoice's client
func SendReminder(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordInvoiceOperation("reminder")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid invoice ID"})
	}

	invoice, err := loadOwnedInvoice(uint(id), userID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Invoice not found"})
	}

	if invoice.Client == nil || invoice.Client.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Client has no email address"})
	}

	body := fmt.Sprintf("Hello %s,\n\nThis is a reminder that your invoice #%d is still unpaid.\n\nAmount Due: $%s\nDue Date: %s\n\nPlease make the payment as soon as possible.\n\nRegards,\nMini Invoice SaaS",
		invoice.Client.Name, invoice.ID, invoice.TotalAmount.StringFixed(2),
		invoice.DueDate.Format("January 2, 2006"))

	invoiceID := invoice.ID
	_, err = dispatch.Enqueue(model.EmailJob{
		UserID:    userID,
		InvoiceID: &invoiceID,
		Kind:      model.EmailKindReminder,
	}, mailer.Message{
		Subject:  fmt.Sprintf("Payment Reminder for Invoice #%d", invoice.ID),
		From:     mailCfg.DefaultSender,
		To:       []string{invoice.Client.Email},
		TextBody: body,
		HTMLBody: body,
	})
	if err != nil {
		log.Error("Failed to queue reminder email",
			zap.Uint64("invoice_id", id),
			zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "Failed to queue reminder email"})
	}

	log.Info("Reminder email queued",
		zap.Uint64("invoice_id", id),
		zap.String("recipient", invoice.Client.Email))
	return c.JSON(http.StatusAccepted, echo.Map{"message": "Reminder email queued"})
}

// loadOwnedInvoice fetches an invoice with client and ordered line items,
// scoped to the owning user
func loadOwnedInvoice(id, userID uint) (*model.Invoice, error) {
	var invoice model.Invoice
	result := database.GetDB().
		Preload("Client").
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position")
		}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&invoice)
	if result.Error != nil {
		return nil, result.Error
	}
	return &invoice, nil
}

// makeLineItems converts computed calculator lines into persistable rows,
// preserving input order
func makeLineItems(lines []calculator.Line) []model.LineItem {
	items := make([]model.LineItem, 0, len(lines))
	for i, line := range lines {
		items = append(items, model.LineItem{
			Position:    i,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Total:       line.Total,
		})
	}
	return items
}
