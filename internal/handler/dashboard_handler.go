package handler

import (
	"net/http"
	"time"

	"github.com/AsadRay/Mini-Invoice-SaaS/internal/model"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/database"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/logger"
	"github.com/AsadRay/Mini-Invoice-SaaS/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Dashboard returns headline counts and the most recent invoices for the
// caller
func Dashboard(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	db := database.GetDB()
	defer prometheus.TrackDBOperation("query")(time.Now())

	var totalClients int64
	if err := db.Model(&model.Client{}).Where("user_id = ?", userID).Count(&totalClients).Error; err != nil {
		log.Error("Failed to count clients", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load dashboard"})
	}

	var totalInvoices int64
	if err := db.Model(&model.Invoice{}).Where("user_id = ?", userID).Count(&totalInvoices).Error; err != nil {
		log.Error("Failed to count invoices", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load dashboard"})
	}

	var paidInvoices int64
	if err := db.Model(&model.Invoice{}).
		Where("user_id = ? AND status = ?", userID, model.StatusPaid).
		Count(&paidInvoices).Error; err != nil {
		log.Error("Failed to count paid invoices", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load dashboard"})
	}

	var recentInvoices []model.Invoice
	if err := db.Preload("Client").
		Where("user_id = ?", userID).
		Order("issue_date DESC").
		Limit(5).
		Find(&recentInvoices).Error; err != nil {
		log.Error("Failed to load recent invoices", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load dashboard"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_clients":   totalClients,
		"total_invoices":  totalInvoices,
		"paid_invoices":   paidInvoices,
		"unpaid_invoices": totalInvoices - paidInvoices,
		"recent_invoices": recentInvoices,
	})
}
