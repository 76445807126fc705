package app

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pigeonmsg/pigeon/internal/backend"
	"github.com/pigeonmsg/pigeon/internal/bus"
	"github.com/pigeonmsg/pigeon/internal/config"
	"github.com/pigeonmsg/pigeon/internal/convo"
	"github.com/pigeonmsg/pigeon/internal/directory"
	"github.com/pigeonmsg/pigeon/internal/lock"
	"github.com/pigeonmsg/pigeon/internal/logging"
	"github.com/pigeonmsg/pigeon/internal/profile"
	"github.com/pigeonmsg/pigeon/internal/session"
	"github.com/pigeonmsg/pigeon/internal/thread"
	"github.com/pigeonmsg/pigeon/internal/tui"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	Config  *config.Config
}

// Module returns the fx module for the client, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("pigeon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideClient,
			provideRealtime,
			provideSession,
			provideConvoEngine,
			provideThreadEngine,
			provideDirectory,
			provideApp,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideClient(p Params, logger *zap.Logger) *backend.Client {
	return backend.NewClient(p.Config.BackendURL, p.Config.BackendKey, logger)
}

func provideRealtime(p Params, client *backend.Client, b *bus.Bus, logger *zap.Logger) *backend.Realtime {
	return backend.NewRealtime(p.Config.BackendURL, p.Config.BackendKey, client, b, logger)
}

func provideSession(p Params, client *backend.Client, b *bus.Bus, logger *zap.Logger) *session.Provider {
	return session.NewProvider(client, b, profile.TokenPath(p.Profile), logger)
}

func provideConvoEngine(client *backend.Client, provider *session.Provider, b *bus.Bus, logger *zap.Logger) *convo.Engine {
	return convo.NewEngine(client, provider, b, logger)
}

func provideThreadEngine(client *backend.Client, rt *backend.Realtime, provider *session.Provider, b *bus.Bus, logger *zap.Logger) *thread.Engine {
	return thread.NewEngine(client, rt, b, provider, logger)
}

func provideDirectory(client *backend.Client, provider *session.Provider, logger *zap.Logger) *directory.Directory {
	return directory.New(client, provider, logger)
}

func provideApp(p Params, provider *session.Provider, convos *convo.Engine, threads *thread.Engine, contacts *directory.Directory, b *bus.Bus, logger *zap.Logger) *tui.App {
	return tui.NewApp(provider, convos, threads, contacts, b, p.Profile, logger)
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, ui *tui.App, rt *backend.Realtime, provider *session.Provider, convos *convo.Engine, threads *thread.Engine, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			rt.Start(context.Background())
			convos.Start(context.Background())

			// Best effort: a dead cached session just lands on the auth page.
			resumeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := provider.Resume(resumeCtx); err != nil {
				logger.Info("no session to resume", zap.Error(err))
			} else {
				provider.StartHeartbeat(context.Background())
			}
			cancel()

			// The TUI owns the terminal until the user quits; its exit
			// drives the whole app's shutdown.
			go func() {
				if err := ui.Run(); err != nil {
					logger.Error("tui error", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ui.Stop()
			threads.Close()
			convos.Stop()
			provider.StopHeartbeat()
			if provider.Current() != nil {
				if err := provider.SetPresence(ctx, false); err != nil {
					logger.Warn("offline presence update failed", zap.Error(err))
				}
			}
			rt.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
