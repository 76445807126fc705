package backend

import (
	"path/filepath"
	"testing"
	"time"
)

func TestTokenStale(t *testing.T) {
	cases := []struct {
		name string
		exp  time.Time
		want bool
	}{
		{"zero expiry", time.Time{}, true},
		{"expired", time.Now().Add(-time.Hour), true},
		{"inside leeway", time.Now().Add(30 * time.Second), true},
		{"fresh", time.Now().Add(time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok := &Token{ExpiresAt: tc.exp}
			if got := tok.Stale(); got != tc.want {
				t.Errorf("Stale() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewTokenParsesClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access := mintToken(t, "u1", "u1@example.com", exp)

	tok, err := newToken(access, "refresh-1")
	if err != nil {
		t.Fatalf("newToken error: %v", err)
	}
	if tok.UserID != "u1" || tok.Email != "u1@example.com" {
		t.Errorf("claims = %q/%q", tok.UserID, tok.Email)
	}
	if !tok.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, exp)
	}
}

func TestNewTokenRejectsGarbage(t *testing.T) {
	if _, err := newToken("not-a-jwt", ""); err == nil {
		t.Fatal("newToken accepted garbage")
	}
}

func TestTokenCacheRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")

	if tok, err := LoadToken(path); err != nil || tok != nil {
		t.Fatalf("LoadToken on missing file = %v, %v, want nil, nil", tok, err)
	}

	want := &Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		UserID:       "u1",
		Email:        "u1@example.com",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
	}
	if err := SaveToken(path, want); err != nil {
		t.Fatalf("SaveToken error: %v", err)
	}

	got, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken error: %v", err)
	}
	if got.RefreshToken != want.RefreshToken || got.UserID != want.UserID {
		t.Errorf("loaded = %+v", got)
	}

	if err := DeleteToken(path); err != nil {
		t.Fatalf("DeleteToken error: %v", err)
	}
	if err := DeleteToken(path); err != nil {
		t.Fatalf("second DeleteToken error: %v", err)
	}
	if tok, err := LoadToken(path); err != nil || tok != nil {
		t.Fatalf("LoadToken after delete = %v, %v, want nil, nil", tok, err)
	}
}
