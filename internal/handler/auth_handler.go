package handler

import (
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/AsadRay/Mini-Invoice-SaaS/internal/model"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/config"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/database"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/jwtutil"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/logger"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/mailer"
	"github.com/AsadRay/Mini-Invoice-SaaS/prometheus"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	dispatch *mailer.Dispatcher
	mailCfg  config.MailConfig
)

// InitMailer wires the email dispatcher used by handlers for verification
// codes, invoice delivery and payment reminders.
func InitMailer(d *mailer.Dispatcher, cfg config.MailConfig) {
	dispatch = d
	mailCfg = cfg
}

// Register starts a registration: it stores the pending account keyed by a
// token and emails a verification code. The user row is only created once
// the code is confirmed via Verify.
func Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		log.Error("Invalid registration data",
			zap.String("email", req.Email),
			zap.Bool("password_provided", req.Password != ""))
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, email and password are required"})
	}

	// Check if user already exists - track DB query
	defer prometheus.TrackDBOperation("query")(time.Now())
	var existingUser model.User
	result := database.GetDB().Where("email = ?", req.Email).First(&existingUser)
	if result.Error == nil {
		log.Error("User already exists", zap.String("email", req.Email))
		prometheus.RecordAuthError("email_already_exists")
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	code := fmt.Sprintf("%06d", rand.Intn(1000000))
	pending := model.PendingRegistration{
		Token:     uuid.New().String(),
		Name:      req.Name,
		Email:     req.Email,
		Password:  string(hashedPassword),
		Code:      code,
		ExpiresAt: time.Now().Add(mailCfg.CodeExpiry),
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&pending); result.Error != nil {
		log.Error("Failed to store pending registration", zap.Error(result.Error))
		prometheus.RecordAuthError("pending_registration_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	if dispatch != nil {
		_, err := dispatch.Enqueue(model.EmailJob{
			Kind: model.EmailKindVerification,
		}, mailer.Message{
			Subject:  "Email Verification Code",
			From:     mailCfg.DefaultSender,
			To:       []string{req.Email},
			TextBody: "Your verification code is: " + code,
			HTMLBody: "<p>Your verification code is: <b>" + code + "</b></p>",
		})
		if err != nil {
			log.Error("Failed to queue verification email", zap.Error(err))
		}
	}

	log.Info("Registration pending verification", zap.String("email", req.Email))
	return c.JSON(http.StatusAccepted, echo.Map{
		"message": "Verification code sent",
		"token":   pending.Token,
	})
}

// Verify confirms a pending registration code and creates the user.
func Verify(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Token string `json:"token"`
		Code  string `json:"code"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse verification request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var pending model.PendingRegistration
	result := database.GetDB().Where("token = ?", req.Token).First(&pending)
	if result.Error != nil || pending.Code != req.Code || pending.Expired(time.Now()) {
		log.Error("Invalid or expired verification code", zap.String("token", req.Token))
		prometheus.RecordAuthError("invalid_verification_code")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired verification code"})
	}

	user := model.User{
		Name:     pending.Name,
		Email:    pending.Email,
		Password: pending.Password,
	}

	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if result := tx.Create(&user); result.Error != nil {
			return result.Error
		}
		return tx.Delete(&pending).Error
	})
	if err != nil {
		// A duplicate email slipping in between register and verify lands
		// here as a uniqueness violation
		log.Error("Failed to create user", zap.Error(err))
		prometheus.RecordAuthError("user_creation_failed")
		return c.JSON(http.StatusConflict, echo.Map{"error": "registration failed"})
	}

	log.Info("User registered", zap.String("email", user.Email))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User registered successfully",
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

// Login authenticates a user and returns a JWT
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	// Find user in database - track DB operation duration
	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	result := database.GetDB().Where("email = ?", req.Email).First(&user)
	if result.Error != nil {
		log.Error("User not found", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	// Verify password
	err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password))
	if err != nil {
		log.Error("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	token, err := jwtutil.GenerateToken(user.Email, user.ID)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("User logged in", zap.String("email", user.Email))
	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

// GetProfile returns the authenticated user's profile
func GetProfile(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var user model.User
	result := database.GetDB().First(&user, userID)
	if result.Error != nil {
		log.Error("User not found", zap.Uint("user_id", userID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, user)
}

// UpdateProfile updates the authenticated user's name
func UpdateProfile(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	var user model.User
	result := database.GetDB().First(&user, userID)
	if result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Model(&user).Update("name", req.Name).Error; err != nil {
		log.Error("Failed to update profile", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update profile"})
	}

	log.Info("Profile updated", zap.Uint("user_id", userID))
	return c.JSON(http.StatusOK, user)
}

// ChangePassword updates the authenticated user's password
func ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current_password and new_password are required"})
	}

	var user model.User
	result := database.GetDB().First(&user, userID)
	if result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "current password is incorrect"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to change password"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Model(&user).Update("password", string(hashed)).Error; err != nil {
		log.Error("Failed to change password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to change password"})
	}

	log.Info("Password changed", zap.Uint("user_id", userID))
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}

// currentUserID reads the authenticated user id set by AuthMiddleware
func currentUserID(c echo.Context) (uint, bool) {
	userID, ok := c.Get("user_id").(uint)
	return userID, ok
}
