package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/AsadRay/Mini-Invoice-SaaS/internal/middleware"
	"github.com/AsadRay/Mini-Invoice-SaaS/internal/model"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/config"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/database"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/jwtutil"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/mailer"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// recordingSender captures outgoing messages instead of delivering them
type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail bool
}

func (r *recordingSender) Send(ctx context.Context, msg mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("simulated delivery failure")
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// setupTestServer builds the full route table against a temp sqlite
// database and returns a running test server
func setupTestServer(t *testing.T) (*httptest.Server, *recordingSender) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	database.SetDB(db)
	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	jwtutil.Initialize(&config.JWTConfig{
		SigningKey:     "test-signing-key",
		ExpirationTime: time.Hour,
	})

	sender := &recordingSender{}
	mailConf := config.MailConfig{
		DefaultSender: "billing@test.local",
		QueueSize:     16,
		CodeExpiry:    15 * time.Minute,
	}
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := mailer.NewDispatcher(sender, mailConf.QueueSize, zap.NewNop())
	dispatcher.Start(ctx)
	InitMailer(dispatcher, mailConf)

	e := echo.New()

	e.GET("/health", HealthCheck)

	auth := e.Group("/auth")
	auth.POST("/register", Register)
	auth.POST("/verify", Verify)
	auth.POST("/login", Login)

	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	users := api.Group("/users")
	users.GET("/profile", GetProfile)
	users.PATCH("/profile", UpdateProfile)
	users.POST("/change-password", ChangePassword)

	clients := api.Group("/clients")
	clients.POST("", CreateClient)
	clients.GET("", ListClients)
	clients.GET("/:id", GetClient)
	clients.PUT("/:id", UpdateClient)
	clients.DELETE("/:id", DeleteClient)

	invoices := api.Group("/invoices")
	invoices.POST("", CreateInvoice)
	invoices.GET("", ListInvoices)
	invoices.GET("/:id", GetInvoice)
	invoices.PUT("/:id", UpdateInvoice)
	invoices.POST("/:id/mark-paid", MarkInvoicePaid)
	invoices.DELETE("/:id", DeleteInvoice)
	invoices.GET("/:id/pdf", DownloadInvoicePDF)
	invoices.POST("/:id/email", EmailInvoice)
	invoices.POST("/:id/reminder", SendReminder)

	api.GET("/dashboard", Dashboard)
	api.GET("/reports", Reports)

	server := httptest.NewServer(e)
	t.Cleanup(func() {
		server.Close()
		cancel()
		dispatcher.Stop()
	})

	return server, sender
}

// createTestUser inserts a user directly and returns it with a valid token
func createTestUser(t *testing.T, email string) (model.User, string) {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := model.User{
		Name:     "Test User",
		Email:    email,
		Password: string(hashed),
	}
	if result := database.GetDB().Create(&user); result.Error != nil {
		t.Fatalf("failed to create user: %v", result.Error)
	}

	token, err := jwtutil.GenerateToken(user.Email, user.ID)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return user, token
}

// doJSON issues a JSON request, decodes the response body into out when
// non-nil and returns the status code
func doJSON(t *testing.T, method, url, token string, payload, out interface{}) int {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode
}

// waitFor polls until cond returns true or the deadline passes
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
