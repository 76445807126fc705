package backend

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token is the managed-auth session state: a short-lived access token plus
// the refresh token used to renew it. The backend is the verifier; the
// client only reads the claims it needs (subject, expiry) unverified.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// refreshLeeway renews tokens slightly before they actually expire so an
// in-flight request never straddles the boundary.
const refreshLeeway = time.Minute

// Stale reports whether the access token is expired or about to expire.
func (t *Token) Stale() bool {
	if t.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().After(t.ExpiresAt.Add(-refreshLeeway))
}

// newToken builds a Token from raw grant material, reading subject and
// expiry out of the access token's claims.
func newToken(accessToken, refreshToken string) (*Token, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("access token missing subject")
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("access token missing expiry")
	}
	email := ""
	if claims, ok := parsed.Claims.(jwt.MapClaims); ok {
		email, _ = claims["email"].(string)
	}
	return &Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       sub,
		Email:        email,
		ExpiresAt:    exp.Time,
	}, nil
}

// SaveToken persists the token to path with owner-only permissions.
func SaveToken(path string, t *Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadToken reads a previously saved token. Returns nil, nil when no
// token has been cached.
func LoadToken(path string) (*Token, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode cached token: %w", err)
	}
	return &t, nil
}

// DeleteToken removes the cached token, ignoring a missing file.
func DeleteToken(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
