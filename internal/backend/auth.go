package backend

import (
	"context"
	"fmt"
	"net/url"

	passwordvalidator "github.com/wagslane/go-password-validator"
)

// minPasswordEntropy gates sign-up before any remote call. The backend
// enforces its own policy as well; this just fails fast on obviously weak
// passwords.
const minPasswordEntropy = 60

type grantResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SignUp registers a new account with the managed auth provider. Username
// and display name travel as signup metadata; the backend materializes the
// profile row from them. The avatar is a generated placeholder image URL.
func (c *Client) SignUp(ctx context.Context, email, password, username, displayName string) (*Token, error) {
	if email == "" || username == "" || displayName == "" {
		return nil, fmt.Errorf("%w: email, username and display name are required", ErrValidation)
	}
	if err := passwordvalidator.Validate(password, minPasswordEntropy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	payload := map[string]any{
		"email":    email,
		"password": password,
		"data": map[string]string{
			"username":     username,
			"display_name": displayName,
			"avatar_url":   avatarURL(displayName),
		},
	}
	var resp grantResponse
	if err := c.do(ctx, "POST", "/auth/v1/signup", nil, payload, &resp, ""); err != nil {
		return nil, err
	}
	return c.installGrant(resp)
}

// SignIn exchanges email and password for a session token.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Token, error) {
	payload := map[string]string{"email": email, "password": password}
	q := url.Values{"grant_type": {"password"}}
	var resp grantResponse
	if err := c.do(ctx, "POST", "/auth/v1/token", q, payload, &resp, ""); err != nil {
		return nil, err
	}
	return c.installGrant(resp)
}

// Refresh renews the session using the stored refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	payload := map[string]string{"refresh_token": refreshToken}
	q := url.Values{"grant_type": {"refresh_token"}}
	var resp grantResponse
	if err := c.do(ctx, "POST", "/auth/v1/token", q, payload, &resp, ""); err != nil {
		return nil, err
	}
	return c.installGrant(resp)
}

// SignOut revokes the session server-side and drops the installed token.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, "POST", "/auth/v1/logout", nil, map[string]string{}, nil, "")
	c.SetToken(nil)
	return err
}

func (c *Client) installGrant(resp grantResponse) (*Token, error) {
	if resp.AccessToken == "" {
		return nil, remoteErr("auth grant", fmt.Errorf("response missing access token"))
	}
	t, err := newToken(resp.AccessToken, resp.RefreshToken)
	if err != nil {
		return nil, remoteErr("auth grant", err)
	}
	c.SetToken(t)
	return t, nil
}

// avatarURL derives a placeholder avatar image for new accounts, the same
// scheme the web client uses.
func avatarURL(displayName string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(displayName) +
		"&background=5865f2&color=fff&size=128"
}
