package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/shopdesk/shopdesk-core/internal/auth"
)

// login posts credentials and returns the decoded response.
func login(t *testing.T, c *testClient, username, password string) (*httptest.ResponseRecorder, tokenResponse) {
	t.Helper()

	body := fmt.Sprintf(`{"username": %q, "password": %q}`, username, password)
	w := c.do(http.MethodPost, "/api/v1/auth/login", body)

	var resp tokenResponse
	if w.Code == http.StatusOK {
		decodeBody(t, w, &resp)
	}
	return w, resp
}

// refresh posts a refresh token and returns the recorder plus decoded tokens.
func refresh(t *testing.T, c *testClient, token string) (*httptest.ResponseRecorder, tokenResponse) {
	t.Helper()

	body := fmt.Sprintf(`{"refresh_token": %q}`, token)
	w := c.do(http.MethodPost, "/api/v1/auth/refresh", body)

	var resp tokenResponse
	if w.Code == http.StatusOK {
		decodeBody(t, w, &resp)
	}
	return w, resp
}

func TestLogin(t *testing.T) {
	srv := testServer(t)
	c := newClient(t, srv)
	seedUser(t, srv, "ada", "password123", auth.RoleUser)

	w, resp := login(t, c, "ada", "password123")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	if resp.AccessToken == "" {
		t.Error("expected access_token to be set")
	}
	if resp.RefreshToken == "" {
		t.Error("expected refresh_token to be set")
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want %q", resp.TokenType, "Bearer")
	}
	if resp.User == nil || resp.User.Username != "ada" {
		t.Errorf("user = %+v, want username ada", resp.User)
	}

	// Access token must pass the auth middleware
	claims, err := auth.ParseToken(resp.AccessToken, testJWTSecret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Username != "ada" {
		t.Errorf("claims.Username = %q, want ada", claims.Username)
	}
}

func TestLogin_Rejected(t *testing.T) {
	srv := testServer(t)
	c := newClient(t, srv)
	seedUser(t, srv, "ada", "password123", auth.RoleUser)
	inactive := seedUser(t, srv, "gone", "password123", auth.RoleUser)
	inactive.IsActive = false
	if err := srv.userRepo.Update(context.Background(), inactive); err != nil {
		t.Fatalf("deactivate user: %v", err)
	}

	for name, creds := range map[string][2]string{
		"wrong password": {"ada", "wrong-password"},
		"unknown user":   {"nobody", "password123"},
		"inactive user":  {"gone", "password123"},
	} {
		t.Run(name, func(t *testing.T) {
			w, _ := login(t, c, creds[0], creds[1])
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestRefresh_Rotation(t *testing.T) {
	srv := testServer(t)
	c := newClient(t, srv)
	seedUser(t, srv, "ada", "password123", auth.RoleUser)

	_, first := login(t, c, "ada", "password123")

	w, second := refresh(t, c, first.RefreshToken)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if second.RefreshToken == "" || second.RefreshToken == first.RefreshToken {
		t.Error("expected refresh to rotate to a new token")
	}

	// The rotated-in token keeps working
	w, _ = refresh(t, c, second.RefreshToken)
	if w.Code != http.StatusOK {
		t.Errorf("second refresh status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRefresh_ReuseRevokesFamily(t *testing.T) {
	srv := testServer(t)
	c := newClient(t, srv)
	seedUser(t, srv, "ada", "password123", auth.RoleUser)

	_, first := login(t, c, "ada", "password123")

	w, second := refresh(t, c, first.RefreshToken)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, want %d", w.Code, http.StatusOK)
	}

	// Presenting the rotated-out token again looks like theft
	w, _ = refresh(t, c, first.RefreshToken)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("reused token status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	// The whole family is revoked, including the latest token
	w, _ = refresh(t, c, second.RefreshToken)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("sibling token status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	c := newClient(t, testServer(t))

	w, _ := refresh(t, c, "not-a-real-refresh-token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestLogout(t *testing.T) {
	srv := testServer(t)
	c := newClient(t, srv)
	seedUser(t, srv, "ada", "password123", auth.RoleUser)

	_, tokens := login(t, c, "ada", "password123")

	body := fmt.Sprintf(`{"refresh_token": %q}`, tokens.RefreshToken)
	if w := c.do(http.MethodPost, "/api/v1/auth/logout", body); w.Code != http.StatusOK {
		t.Fatalf("logout status = %d, want %d", w.Code, http.StatusOK)
	}

	// The refresh token is dead afterwards
	if w, _ := refresh(t, c, tokens.RefreshToken); w.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestLogout_UnknownToken(t *testing.T) {
	c := newClient(t, testServer(t))

	// Logout is idempotent: an unknown token is not an error
	w := c.do(http.MethodPost, "/api/v1/auth/logout", `{"refresh_token": "already-gone"}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestMe(t *testing.T) {
	srv := testServer(t)
	user := seedUser(t, srv, "ada", "password123", auth.RoleAdmin)
	c := newClient(t, srv).as(user)

	w := c.get("/api/v1/auth/me")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var got struct {
		auth.User
		Permissions []auth.Permission `json:"permissions"`
	}
	decodeBody(t, w, &got)
	if got.Username != "ada" {
		t.Errorf("username = %q, want ada", got.Username)
	}
	if got.Role != auth.RoleAdmin {
		t.Errorf("role = %q, want %q", got.Role, auth.RoleAdmin)
	}
	if !slices.Contains(got.Permissions, auth.PermUserManage) {
		t.Errorf("permissions = %v, want to include %q", got.Permissions, auth.PermUserManage)
	}
}

func TestChangePassword(t *testing.T) {
	srv := testServer(t)
	user := seedUser(t, srv, "ada", "password123", auth.RoleUser)
	c := newClient(t, srv)
	authed := c.as(user)

	_, tokens := login(t, c, "ada", "password123")

	body := `{"current_password": "password123", "new_password": "even-better-456"}`
	w := authed.do(http.MethodPost, "/api/v1/auth/change-password", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	// Old password no longer works, new one does
	if w, _ := login(t, c, "ada", "password123"); w.Code != http.StatusUnauthorized {
		t.Errorf("old password status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if w, _ := login(t, c, "ada", "even-better-456"); w.Code != http.StatusOK {
		t.Errorf("new password status = %d, want %d", w.Code, http.StatusOK)
	}

	// Existing sessions are revoked
	if w, _ := refresh(t, c, tokens.RefreshToken); w.Code != http.StatusUnauthorized {
		t.Errorf("old session refresh status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestChangePassword_Invalid(t *testing.T) {
	srv := testServer(t)
	user := seedUser(t, srv, "ada", "password123", auth.RoleUser)
	c := newClient(t, srv).as(user)

	for name, tc := range map[string]struct {
		body string
		want int
	}{
		"wrong current": {`{"current_password": "wrong", "new_password": "even-better-456"}`, http.StatusUnauthorized},
		"too short":     {`{"current_password": "password123", "new_password": "short"}`, http.StatusBadRequest},
	} {
		t.Run(name, func(t *testing.T) {
			w := c.do(http.MethodPost, "/api/v1/auth/change-password", tc.body)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestWSTicket(t *testing.T) {
	srv := testServer(t)
	user := seedUser(t, srv, "ada", "password123", auth.RoleUser)
	c := newClient(t, srv).as(user)

	w := c.do(http.MethodPost, "/api/v1/auth/ws-ticket", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Ticket string `json:"ticket"`
	}
	decodeBody(t, w, &resp)
	if resp.Ticket == "" {
		t.Fatal("expected a ticket")
	}

	// Ticket carries the caller's identity and is single-use
	entry, ok := srv.tickets.validate(resp.Ticket)
	if !ok {
		t.Fatal("expected ticket to validate")
	}
	if entry.userID != user.ID {
		t.Errorf("userID = %q, want %q", entry.userID, user.ID)
	}
	if _, ok := srv.tickets.validate(resp.Ticket); ok {
		t.Error("expected ticket to be consumed on first use")
	}
}

func TestWSTicket_RequiresAuth(t *testing.T) {
	c := newClient(t, testServer(t))

	w := c.do(http.MethodPost, "/api/v1/auth/ws-ticket", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
