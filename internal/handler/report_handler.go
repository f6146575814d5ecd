package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/AsadRay/Mini-Invoice-SaaS/internal/model"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/database"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/logger"
	"github.com/AsadRay/Mini-Invoice-SaaS/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TopClient is one row of the top-clients-by-paid-revenue report
type TopClient struct {
	Name      string          `json:"name"`
	TotalPaid decimal.Decimal `json:"total_paid"`
}

// MonthlySummary aggregates the caller's invoices for one calendar month
// of issue date
type MonthlySummary struct {
	Month       string          `json:"month"`
	Count       int             `json:"count"`
	Revenue     decimal.Decimal `json:"revenue"`
	PaidCount   int             `json:"paid_count"`
	UnpaidCount int             `json:"unpaid_count"`
}

// Reports returns revenue and status aggregates scoped to the caller
func Reports(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	db := database.GetDB()
	now := time.Now()
	defer prometheus.TrackDBOperation("query")(time.Now())

	// Total revenue from paid invoices
	var totalRevenue decimal.Decimal
	row := db.Model(&model.Invoice{}).
		Where("user_id = ? AND status = ?", userID, model.StatusPaid).
		Select("COALESCE(SUM(total_amount), 0)").
		Row()
	if err := row.Scan(&totalRevenue); err != nil {
		log.Error("Failed to compute total revenue", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load reports"})
	}

	// Revenue for the current calendar month. A half-open issue-date range
	// keeps the query identical across database drivers.
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	nextMonth := monthStart.AddDate(0, 1, 0)
	var revenueThisMonth decimal.Decimal
	row = db.Model(&model.Invoice{}).
		Where("user_id = ? AND status = ? AND issue_date >= ? AND issue_date < ?",
			userID, model.StatusPaid, monthStart, nextMonth).
		Select("COALESCE(SUM(total_amount), 0)").
		Row()
	if err := row.Scan(&revenueThisMonth); err != nil {
		log.Error("Failed to compute monthly revenue", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load reports"})
	}

	// Status counts
	var paidCount, unpaidCount, overdueCount int64
	if err := db.Model(&model.Invoice{}).
		Where("user_id = ? AND status = ?", userID, model.StatusPaid).
		Count(&paidCount).Error; err != nil {
		log.Error("Failed to count paid invoices", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load reports"})
	}
	if err := db.Model(&model.Invoice{}).
		Where("user_id = ? AND status = ?", userID, model.StatusUnpaid).
		Count(&unpaidCount).Error; err != nil {
		log.Error("Failed to count unpaid invoices", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load reports"})
	}
	if err := db.Model(&model.Invoice{}).
		Where("user_id = ? AND status = ? AND due_date < ?", userID, model.StatusUnpaid, now).
		Count(&overdueCount).Error; err != nil {
		log.Error("Failed to count overdue invoices", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load reports"})
	}

	// Top clients by paid revenue
	var topClients []TopClient
	if err := db.Model(&model.Invoice{}).
		Select("clients.name AS name, COALESCE(SUM(invoices.total_amount), 0) AS total_paid").
		Joins("JOIN clients ON clients.id = invoices.client_id").
		Where("invoices.user_id = ? AND invoices.status = ?", userID, model.StatusPaid).
		Group("clients.name").
		Order("total_paid DESC").
		Limit(3).
		Scan(&topClients).Error; err != nil {
		log.Error("Failed to compute top clients", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load reports"})
	}

	monthlySummary, err := monthlySummaries(userID)
	if err != nil {
		log.Error("Failed to compute monthly summary", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load reports"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_revenue":      totalRevenue,
		"revenue_this_month": revenueThisMonth,
		"invoice_status_counts": map[string]int64{
			"paid":    paidCount,
			"unpaid":  unpaidCount,
			"overdue": overdueCount,
		},
		"top_clients":     topClients,
		"monthly_summary": monthlySummary,
	})
}

// monthlySummaries buckets the caller's invoices by calendar month of
// issue date. Month truncation is done in Go rather than SQL so the query
// stays portable between postgres and sqlite.
func monthlySummaries(userID uint) ([]MonthlySummary, error) {
	var invoices []model.Invoice
	if err := database.GetDB().
		Select("id", "issue_date", "status", "total_amount").
		Where("user_id = ?", userID).
		Find(&invoices).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		start   time.Time
		summary MonthlySummary
	}
	buckets := make(map[string]*bucket)
	for _, inv := range invoices {
		start := time.Date(inv.IssueDate.Year(), inv.IssueDate.Month(), 1, 0, 0, 0, 0, time.UTC)
		key := start.Format("January 2006")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{start: start, summary: MonthlySummary{Month: key, Revenue: decimal.Zero}}
			buckets[key] = b
		}
		b.summary.Count++
		b.summary.Revenue = b.summary.Revenue.Add(inv.TotalAmount)
		switch inv.Status {
		case model.StatusPaid:
			b.summary.PaidCount++
		case model.StatusUnpaid:
			b.summary.UnpaidCount++
		}
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].start.Before(ordered[j].start)
	})

	summaries := make([]MonthlySummary, 0, len(ordered))
	for _, b := range ordered {
		summaries = append(summaries, b.summary)
	}
	return summaries, nil
}
