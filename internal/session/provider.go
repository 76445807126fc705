package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pigeonmsg/pigeon/internal/backend"
	"github.com/pigeonmsg/pigeon/internal/bus"
	"github.com/pigeonmsg/pigeon/internal/model"
)

// Auth is the slice of the backend the provider needs. Satisfied by
// *backend.Client.
type Auth interface {
	SignIn(ctx context.Context, email, password string) (*backend.Token, error)
	SignUp(ctx context.Context, email, password, username, displayName string) (*backend.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*backend.Token, error)
	SignOut(ctx context.Context) error
	SetToken(t *backend.Token)
	Token() *backend.Token
	ProfileByID(ctx context.Context, userID string) (*model.Profile, error)
	UpdatePresence(ctx context.Context, userID string, online bool) error
	UpdateProfile(ctx context.Context, userID string, fields map[string]any) error
}

// heartbeatInterval is how often the presence flag is refreshed while the
// client runs. Presence is a soft liveness signal, not a consistency
// protocol.
const heartbeatInterval = 30 * time.Second

// Provider owns the acting identity. Engines receive it explicitly at
// construction; identity changes are announced on the bus rather than
// mutated through globals.
type Provider struct {
	auth      Auth
	bus       *bus.Bus
	logger    *zap.Logger
	tokenPath string

	mu       sync.RWMutex
	identity *model.Identity

	hbCancel context.CancelFunc
}

// NewProvider creates a session provider caching its token at tokenPath.
func NewProvider(auth Auth, eventBus *bus.Bus, tokenPath string, logger *zap.Logger) *Provider {
	return &Provider{
		auth:      auth,
		bus:       eventBus,
		logger:    logger,
		tokenPath: tokenPath,
	}
}

// Current returns the acting identity, or nil when signed out.
func (p *Provider) Current() *model.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.identity
}

// Resume restores a previous session from the cached refresh token.
// Returns ErrAuthRequired when there is nothing to resume.
func (p *Provider) Resume(ctx context.Context) error {
	cached, err := backend.LoadToken(p.tokenPath)
	if err != nil {
		p.logger.Warn("cached token unreadable", zap.Error(err))
		return backend.ErrAuthRequired
	}
	if cached == nil || cached.RefreshToken == "" {
		return backend.ErrAuthRequired
	}

	token, err := p.auth.Refresh(ctx, cached.RefreshToken)
	if err != nil {
		// A rejected refresh token means the session is gone, not a
		// transient failure.
		_ = backend.DeleteToken(p.tokenPath)
		return fmt.Errorf("resume session: %w", backend.ErrAuthRequired)
	}
	return p.establish(ctx, token)
}

// SignIn authenticates with email and password.
func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	token, err := p.auth.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	return p.establish(ctx, token)
}

// SignUp registers a new account and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password, username, displayName string) error {
	token, err := p.auth.SignUp(ctx, email, password, username, displayName)
	if err != nil {
		return err
	}
	return p.establish(ctx, token)
}

// SignOut marks the user offline, revokes the session and clears the
// acting identity. All locally-cached projections die with it.
func (p *Provider) SignOut(ctx context.Context) error {
	p.StopHeartbeat()

	if id := p.Current(); id != nil {
		if err := p.auth.UpdatePresence(ctx, id.ID, false); err != nil {
			p.logger.Warn("offline presence update failed", zap.Error(err))
		}
	}
	if err := p.auth.SignOut(ctx); err != nil {
		p.logger.Warn("remote sign-out failed", zap.Error(err))
	}
	if err := backend.DeleteToken(p.tokenPath); err != nil {
		p.logger.Warn("token cache delete failed", zap.Error(err))
	}

	p.mu.Lock()
	p.identity = nil
	p.mu.Unlock()

	p.bus.Publish(bus.Event{Topic: bus.IdentityTopic, Timestamp: time.Now(), Payload: (*model.Identity)(nil)})
	return nil
}

// UpdateProfile changes the acting identity's display name and avatar.
// Empty arguments leave the corresponding field untouched. The updated
// identity is announced on the bus like any other identity change.
func (p *Provider) UpdateProfile(ctx context.Context, displayName, avatarURL string) error {
	id := p.Current()
	if id == nil {
		return backend.ErrAuthRequired
	}

	fields := map[string]any{}
	if displayName != "" {
		fields["display_name"] = displayName
	}
	if avatarURL != "" {
		fields["avatar_url"] = avatarURL
	}
	if len(fields) == 0 {
		return nil
	}

	if err := p.auth.UpdateProfile(ctx, id.ID, fields); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	updated := *id
	if displayName != "" {
		updated.DisplayName = displayName
	}
	if avatarURL != "" {
		updated.AvatarURL = avatarURL
	}

	p.mu.Lock()
	p.identity = &updated
	p.mu.Unlock()

	p.bus.Publish(bus.Event{Topic: bus.IdentityTopic, Timestamp: time.Now(), Payload: &updated})
	return nil
}

// SetPresence updates the online flag for the acting identity.
func (p *Provider) SetPresence(ctx context.Context, online bool) error {
	id := p.Current()
	if id == nil {
		return backend.ErrAuthRequired
	}
	return p.auth.UpdatePresence(ctx, id.ID, online)
}

// StartHeartbeat begins the periodic presence refresh. It must be stopped
// on logout or teardown so it never acts on a stale identity.
func (p *Provider) StartHeartbeat(ctx context.Context) {
	p.StopHeartbeat()
	ctx, p.hbCancel = context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.refreshIfStale(ctx)
				if err := p.SetPresence(ctx, true); err != nil {
					p.logger.Warn("presence heartbeat failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// refreshIfStale renews the access token once it nears its expiry claim,
// keeping long-running sessions authenticated without a restart. Failures
// are logged and retried on the next heartbeat tick; the token the backend
// rejects outright surfaces as AuthRequired on the next remote call.
func (p *Provider) refreshIfStale(ctx context.Context) {
	t := p.auth.Token()
	if t == nil || t.RefreshToken == "" || !t.Stale() {
		return
	}
	renewed, err := p.auth.Refresh(ctx, t.RefreshToken)
	if err != nil {
		p.logger.Warn("token refresh failed", zap.Error(err))
		return
	}
	if err := backend.SaveToken(p.tokenPath, renewed); err != nil {
		p.logger.Warn("token cache write failed", zap.Error(err))
	}
}

// StopHeartbeat cancels the presence refresh. Safe to call repeatedly.
func (p *Provider) StopHeartbeat() {
	if p.hbCancel != nil {
		p.hbCancel()
		p.hbCancel = nil
	}
}

func (p *Provider) establish(ctx context.Context, token *backend.Token) error {
	if err := backend.SaveToken(p.tokenPath, token); err != nil {
		p.logger.Warn("token cache write failed", zap.Error(err))
	}

	profile, err := p.auth.ProfileByID(ctx, token.UserID)
	if err != nil {
		return fmt.Errorf("load own profile: %w", err)
	}

	identity := &model.Identity{
		ID:          token.UserID,
		Email:       token.Email,
		Username:    profile.Username,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
	}

	p.mu.Lock()
	p.identity = identity
	p.mu.Unlock()

	if err := p.auth.UpdatePresence(ctx, identity.ID, true); err != nil {
		p.logger.Warn("online presence update failed", zap.Error(err))
	}

	p.logger.Info("session established", zap.String("user_id", identity.ID), zap.String("username", identity.Username))
	p.bus.Publish(bus.Event{Topic: bus.IdentityTopic, Timestamp: time.Now(), Payload: identity})
	return nil
}
