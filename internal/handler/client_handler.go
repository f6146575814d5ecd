package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/AsadRay/Mini-Invoice-SaaS/internal/model"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/database"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/logger"
	"github.com/AsadRay/Mini-Invoice-SaaS/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ClientRequest defines the structure for client creation/update requests
type ClientRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Notes   string `json:"notes"`
}

// CreateClient creates a new client owned by the caller
func CreateClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordClientOperation("create")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req ClientRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	client := model.Client{
		UserID:  userID,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Company: req.Company,
		Notes:   req.Notes,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	result := database.GetDB().Create(&client)
	if result.Error != nil {
		log.Error("Failed to create client",
			zap.String("name", req.Name),
			zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create client"})
	}

	log.Info("Client created successfully",
		zap.Uint("id", client.ID),
		zap.String("name", client.Name),
		zap.Uint("user_id", userID))
	return c.JSON(http.StatusCreated, client)
}

// ListClients returns all clients owned by the caller
func ListClients(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordClientOperation("list")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var clients []model.Client
	result := database.GetDB().Where("user_id = ?", userID).Order("name").Find(&clients)
	if result.Error != nil {
		log.Error("Failed to list clients", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve clients"})
	}

	return c.JSON(http.StatusOK, clients)
}

// GetClient retrieves one of the caller's clients by ID
func GetClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordClientOperation("get")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid client ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var client model.Client
	result := database.GetDB().Where("id = ? AND user_id = ?", id, userID).First(&client)
	if result.Error != nil {
		log.Warn("Client not found",
			zap.Uint64("client_id", id),
			zap.Uint("user_id", userID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Client not found"})
	}

	return c.JSON(http.StatusOK, client)
}

// UpdateClient updates one of the caller's clients
func UpdateClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordClientOperation("update")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid client ID"})
	}

	var req ClientRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	var client model.Client
	result := database.GetDB().Where("id = ? AND user_id = ?", id, userID).First(&client)
	if result.Error != nil {
		log.Warn("Client not found for update",
			zap.Uint64("client_id", id),
			zap.Uint("user_id", userID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Client not found"})
	}

	client.Name = req.Name
	client.Email = req.Email
	client.Phone = req.Phone
	client.Company = req.Company
	client.Notes = req.Notes

	defer prometheus.TrackDBOperation("update")(time.Now())
	result = database.GetDB().Save(&client)
	if result.Error != nil {
		log.Error("Failed to update client",
			zap.Uint64("client_id", id),
			zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update client"})
	}

	log.Info("Client updated successfully",
		zap.Uint64("client_id", id),
		zap.String("name", client.Name))
	return c.JSON(http.StatusOK, client)
}

// DeleteClient deletes one of the caller's clients
func DeleteClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordClientOperation("delete")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid client ID"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	result := database.GetDB().Where("id = ? AND user_id = ?", id, userID).Delete(&model.Client{})
	if result.Error != nil {
		log.Error("Failed to delete client",
			zap.Uint64("client_id", id),
			zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete client"})
	}

	if result.RowsAffected == 0 {
		log.Warn("Client not found for deletion",
			zap.Uint64("client_id", id),
			zap.Uint("user_id", userID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Client not found"})
	}

	log.Info("Client deleted successfully", zap.Uint64("client_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Client deleted successfully"})
}
