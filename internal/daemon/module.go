package daemon

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tmzdev/tmz/internal/auth"
	"github.com/tmzdev/tmz/internal/config"
	"github.com/tmzdev/tmz/internal/logging"
	"github.com/tmzdev/tmz/internal/paths"
	"github.com/tmzdev/tmz/internal/store"
	"github.com/tmzdev/tmz/internal/teams"
)

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module() fx.Option {
	return fx.Module("daemon",
		fx.Provide(
			provideConfig,
			provideLogger,
			provideStore,
			provideAuthManager,
			provideClient,
			provideScheduler,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}
	return config.Load(paths.ConfigPath())
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(paths.LogPath(), cfg.Logging.Level, "tmzd")
}

func provideStore(logger *zap.Logger) (*store.DB, error) {
	dbPath := paths.CacheDBPath()
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideAuthManager(logger *zap.Logger) *auth.Manager {
	storage := auth.NewStorage(paths.TokensPath())
	login := auth.NewScriptLogin(logger)
	return auth.NewManager(storage, login, logger)
}

func provideClient(am *auth.Manager, logger *zap.Logger) *teams.Client {
	return teams.NewClient(am, logger)
}

func provideScheduler(cfg *config.Config, am *auth.Manager, client *teams.Client, db *store.DB, logger *zap.Logger) *Scheduler {
	return NewScheduler(Config{
		RefreshInterval:         time.Duration(cfg.Sync.RefreshIntervalMinutes) * time.Minute,
		SyncInterval:            time.Duration(cfg.Sync.SyncIntervalMinutes) * time.Minute,
		TopConversations:        cfg.Sync.TopConversations,
		MessagesPerConversation: cfg.Sync.MessagesPerConversation,
		PIDPath:                 paths.PIDPath(),
	}, am, client, db, logger)
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, sched *Scheduler, db *store.DB, logger *zap.Logger) {
	var cancel context.CancelFunc
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				if err := sched.Run(runCtx); err != nil {
					logger.Error("scheduler exited", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			select {
			case <-done:
			case <-ctx.Done():
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
