package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/AsadRay/Mini-Invoice-SaaS/internal/model"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/database"
)

type registerPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// startRegistration posts a registration and returns the pending row so
// tests can read the emailed code straight from the database.
func startRegistration(t *testing.T, url, email string) (string, model.PendingRegistration) {
	t.Helper()

	var resp registerResponse
	status := doJSON(t, http.MethodPost, url+"/auth/register", "",
		registerPayload{Name: "New User", Email: email, Password: "secret123"}, &resp)
	if status != http.StatusAccepted {
		t.Fatalf("register: expected 202, got %d", status)
	}
	if resp.Token == "" {
		t.Fatal("register: no token returned")
	}

	var pending model.PendingRegistration
	if err := database.GetDB().Where("token = ?", resp.Token).First(&pending).Error; err != nil {
		t.Fatalf("pending registration not stored: %v", err)
	}
	return resp.Token, pending
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	server, sender := setupTestServer(t)

	token, pending := startRegistration(t, server.URL, "flow@example.com")
	if len(pending.Code) != 6 {
		t.Errorf("expected 6-digit code, got %q", pending.Code)
	}

	waitFor(t, time.Second, func() bool { return sender.count() == 1 })
	msg := sender.sent[0]
	if msg.To[0] != "flow@example.com" {
		t.Errorf("verification mail sent to %v", msg.To)
	}

	var verified struct {
		User struct {
			ID    uint   `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	status := doJSON(t, http.MethodPost, server.URL+"/auth/verify", "",
		map[string]string{"token": token, "code": pending.Code}, &verified)
	if status != http.StatusCreated {
		t.Fatalf("verify: expected 201, got %d", status)
	}
	if verified.User.Email != "flow@example.com" {
		t.Errorf("verify: unexpected user %+v", verified.User)
	}

	// Pending row is consumed on success
	var count int64
	database.GetDB().Model(&model.PendingRegistration{}).Where("token = ?", token).Count(&count)
	if count != 0 {
		t.Error("pending registration not deleted after verification")
	}

	var login struct {
		Token string `json:"token"`
	}
	status = doJSON(t, http.MethodPost, server.URL+"/auth/login", "",
		map[string]string{"email": "flow@example.com", "password": "secret123"}, &login)
	if status != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", status)
	}
	if login.Token == "" {
		t.Fatal("login: no token returned")
	}

	var profile model.User
	if status := doJSON(t, http.MethodGet, server.URL+"/api/users/profile", login.Token, nil, &profile); status != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d", status)
	}
	if profile.Email != "flow@example.com" || profile.Name != "New User" {
		t.Errorf("unexpected profile %+v", profile)
	}
}

func TestVerifyRejectsWrongCode(t *testing.T) {
	server, _ := setupTestServer(t)

	token, pending := startRegistration(t, server.URL, "wrongcode@example.com")

	wrong := "000000"
	if pending.Code == wrong {
		wrong = "000001"
	}
	status := doJSON(t, http.MethodPost, server.URL+"/auth/verify", "",
		map[string]string{"token": token, "code": wrong}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("verify with wrong code: expected 400, got %d", status)
	}

	var count int64
	database.GetDB().Model(&model.User{}).Where("email = ?", "wrongcode@example.com").Count(&count)
	if count != 0 {
		t.Error("user created despite wrong code")
	}
}

func TestVerifyRejectsExpiredCode(t *testing.T) {
	server, _ := setupTestServer(t)

	token, pending := startRegistration(t, server.URL, "expired@example.com")

	if err := database.GetDB().Model(&pending).
		Update("expires_at", time.Now().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("failed to expire pending registration: %v", err)
	}

	status := doJSON(t, http.MethodPost, server.URL+"/auth/verify", "",
		map[string]string{"token": token, "code": pending.Code}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("verify with expired code: expected 400, got %d", status)
	}
}

func TestVerifyRejectsUnknownToken(t *testing.T) {
	server, _ := setupTestServer(t)

	status := doJSON(t, http.MethodPost, server.URL+"/auth/verify", "",
		map[string]string{"token": "no-such-token", "code": "123456"}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("verify with unknown token: expected 400, got %d", status)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	server, _ := setupTestServer(t)
	createTestUser(t, "taken@example.com")

	status := doJSON(t, http.MethodPost, server.URL+"/auth/register", "",
		registerPayload{Name: "Someone", Email: "taken@example.com", Password: "secret123"}, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
}

func TestRegisterValidation(t *testing.T) {
	server, _ := setupTestServer(t)

	cases := []registerPayload{
		{Name: "", Email: "a@example.com", Password: "secret123"},
		{Name: "A", Email: "", Password: "secret123"},
		{Name: "A", Email: "a@example.com", Password: ""},
	}
	for _, payload := range cases {
		status := doJSON(t, http.MethodPost, server.URL+"/auth/register", "", payload, nil)
		if status != http.StatusBadRequest {
			t.Errorf("register %+v: expected 400, got %d", payload, status)
		}
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	server, _ := setupTestServer(t)
	createTestUser(t, "login@example.com")

	status := doJSON(t, http.MethodPost, server.URL+"/auth/login", "",
		map[string]string{"email": "login@example.com", "password": "not-the-password"}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", status)
	}

	status = doJSON(t, http.MethodPost, server.URL+"/auth/login", "",
		map[string]string{"email": "nobody@example.com", "password": "secret123"}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("unknown email: expected 401, got %d", status)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	server, _ := setupTestServer(t)

	for _, path := range []string{"/api/clients", "/api/invoices", "/api/dashboard", "/api/reports"} {
		status := doJSON(t, http.MethodGet, server.URL+path, "", nil, nil)
		if status != http.StatusUnauthorized {
			t.Errorf("%s without token: expected 401, got %d", path, status)
		}
	}

	status := doJSON(t, http.MethodGet, server.URL+"/api/clients", "not-a-jwt", nil, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("garbage token: expected 401, got %d", status)
	}
}

func TestUpdateProfile(t *testing.T) {
	server, _ := setupTestServer(t)
	_, token := createTestUser(t, "rename@example.com")

	var updated model.User
	status := doJSON(t, http.MethodPatch, server.URL+"/api/users/profile", token,
		map[string]string{"name": "Renamed User"}, &updated)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if updated.Name != "Renamed User" {
		t.Errorf("expected renamed profile, got %q", updated.Name)
	}

	status = doJSON(t, http.MethodPatch, server.URL+"/api/users/profile", token,
		map[string]string{"name": ""}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("blank name: expected 400, got %d", status)
	}
}

func TestChangePassword(t *testing.T) {
	server, _ := setupTestServer(t)
	_, token := createTestUser(t, "newpass@example.com")

	status := doJSON(t, http.MethodPost, server.URL+"/api/users/change-password", token,
		map[string]string{"current_password": "wrong", "new_password": "changed456"}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("wrong current password: expected 401, got %d", status)
	}

	status = doJSON(t, http.MethodPost, server.URL+"/api/users/change-password", token,
		map[string]string{"current_password": "secret123", "new_password": "changed456"}, nil)
	if status != http.StatusOK {
		t.Fatalf("change password: expected 200, got %d", status)
	}

	status = doJSON(t, http.MethodPost, server.URL+"/auth/login", "",
		map[string]string{"email": "newpass@example.com", "password": "changed456"}, nil)
	if status != http.StatusOK {
		t.Fatalf("login with new password: expected 200, got %d", status)
	}
	status = doJSON(t, http.MethodPost, server.URL+"/auth/login", "",
		map[string]string{"email": "newpass@example.com", "password": "secret123"}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("login with old password: expected 401, got %d", status)
	}
}
