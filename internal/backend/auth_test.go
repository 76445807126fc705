package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func grantServer(t *testing.T, access string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  access,
			"refresh_token": "refresh-1",
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestSignInInstallsToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access := mintToken(t, "u1", "u1@example.com", exp)

	var gotGrantType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotGrantType = r.URL.Query().Get("grant_type")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  access,
			"refresh_token": "refresh-1",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key", zap.NewNop())
	token, err := c.SignIn(context.Background(), "u1@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("SignIn error: %v", err)
	}

	if gotGrantType != "password" {
		t.Errorf("grant_type = %q", gotGrantType)
	}
	if token.UserID != "u1" {
		t.Errorf("UserID = %q", token.UserID)
	}
	if token.Email != "u1@example.com" {
		t.Errorf("Email = %q", token.Email)
	}
	if token.RefreshToken != "refresh-1" {
		t.Errorf("RefreshToken = %q", token.RefreshToken)
	}
	if !token.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", token.ExpiresAt, exp)
	}
	if c.Token() != token {
		t.Error("token not installed on client")
	}
}

func TestSignUpRejectsWeakPasswordLocally(t *testing.T) {
	access := mintToken(t, "u1", "", time.Now().Add(time.Hour))
	srv, calls := grantServer(t, access)
	c := NewClient(srv.URL, "anon-key", zap.NewNop())

	_, err := c.SignUp(context.Background(), "u1@example.com", "abc", "anna", "Anna")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if *calls != 0 {
		t.Fatalf("remote called %d times for weak password", *calls)
	}
}

func TestSignUpRequiresFields(t *testing.T) {
	c := NewClient("http://unused", "anon-key", zap.NewNop())
	cases := []struct {
		email, username, display string
	}{
		{"", "anna", "Anna"},
		{"a@example.com", "", "Anna"},
		{"a@example.com", "anna", ""},
	}
	for _, tc := range cases {
		_, err := c.SignUp(context.Background(), tc.email, "correct-horse-battery-staple", tc.username, tc.display)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("SignUp(%q,%q,%q) err = %v, want ErrValidation", tc.email, tc.username, tc.display, err)
		}
	}
}

func TestRefreshUsesRefreshGrant(t *testing.T) {
	access := mintToken(t, "u1", "u1@example.com", time.Now().Add(time.Hour))
	var gotGrantType, gotRefresh string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGrantType = r.URL.Query().Get("grant_type")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotRefresh = body["refresh_token"]
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  access,
			"refresh_token": "refresh-2",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key", zap.NewNop())
	token, err := c.Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}

	if gotGrantType != "refresh_token" {
		t.Errorf("grant_type = %q", gotGrantType)
	}
	if gotRefresh != "refresh-1" {
		t.Errorf("sent refresh token = %q", gotRefresh)
	}
	if token.RefreshToken != "refresh-2" {
		t.Errorf("rotated refresh token = %q", token.RefreshToken)
	}
}

func TestSignOutDropsTokenEvenOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key", zap.NewNop())
	c.SetToken(&Token{AccessToken: "whatever"})

	if err := c.SignOut(context.Background()); err == nil {
		t.Fatal("SignOut succeeded, want error")
	}
	if c.Token() != nil {
		t.Error("token survived sign-out")
	}
}

func TestGrantMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key", zap.NewNop())
	_, err := c.SignIn(context.Background(), "u1@example.com", "pw")
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("err = %T, want *RemoteError", err)
	}
}
