package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"projectdesk/console/internal/audit"
	"projectdesk/console/internal/backend"
	"projectdesk/console/internal/config"
	"projectdesk/console/internal/dashboard"
	"projectdesk/console/internal/httpserver"
	"projectdesk/console/internal/observability"
	"projectdesk/console/internal/session"
)

type App struct {
	cfg    config.Config
	log    *slog.Logger
	db     *sql.DB
	redis  *redis.Client
	pruner *session.Pruner
	server *httpserver.Server
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := observability.NewLogger(cfg.LogLevel)
	a := &App{cfg: cfg, log: logger}

	store, ready, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	manager, err := session.NewManager(store, logger.With("component", "session"))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create session manager: %w", err)
	}

	client, err := backend.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create backend client: %w", err)
	}

	auditLogger := audit.NewLogger(cfg.AuditLogFile)
	registry := dashboard.NewRegistry(client, client, logger.With("component", "dashboard"), cfg.Location)

	a.pruner, err = session.NewPruner(manager, cfg.Session.PruneInterval, logger.With("component", "pruner"), func(clientID string) {
		registry.Forget(clientID)
		if err := auditLogger.Record(audit.Event{ClientID: clientID, Action: audit.ActionPruneSession}); err != nil {
			logger.Warn("audit write failed", "action", audit.ActionPruneSession, "error", err)
		}
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create session pruner: %w", err)
	}

	a.server, err = httpserver.New(cfg.HTTP, httpserver.Deps{
		Sessions:   manager,
		Auth:       dashboard.NewAuthenticator(client, manager, logger.With("component", "login")),
		Workspaces: registry,
		Audit:      auditLogger,
		Logger:     logger,
		Cookie:     httpserver.CookieConfig{Name: cfg.Session.CookieName, Secure: cfg.Session.CookieSecure},
		Location:   cfg.Location,
		Ready:      ready,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create http server: %w", err)
	}
	return a, nil
}

// openStore builds the configured session store and a readiness probe for
// it.
func (a *App) openStore(ctx context.Context) (session.Store, func(context.Context) error, error) {
	cfg := a.cfg
	switch cfg.Session.Backend {
	case config.SessionBackendPostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		a.db = db
		if err := db.PingContext(ctx); err != nil {
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		store, err := session.NewPostgresStore(db)
		if err != nil {
			return nil, nil, fmt.Errorf("create postgres session store: %w", err)
		}
		a.log.Info("session store ready", "backend", cfg.Session.Backend)
		return store, db.PingContext, nil

	case config.SessionBackendRedis:
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.redis = rc
		store, err := session.NewRedisStore(ctx, rc)
		if err != nil {
			return nil, nil, fmt.Errorf("create redis session store: %w", err)
		}
		a.log.Info("session store ready", "backend", cfg.Session.Backend, "addr", cfg.Redis.Addr)
		return store, func(ctx context.Context) error { return rc.Ping(ctx).Err() }, nil

	case config.SessionBackendMemory:
		a.log.Warn("sessions are kept in memory and will not survive a restart")
		return session.NewMemoryStore(), nil, nil

	default:
		store, err := session.NewFileStore(cfg.Session.StateFile)
		if err != nil {
			return nil, nil, fmt.Errorf("create file session store: %w", err)
		}
		a.log.Info("session store ready", "backend", config.SessionBackendFile, "path", cfg.Session.StateFile)
		return store, nil, nil
	}
}

func (a *App) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func (a *App) Run(ctx context.Context) error {
	defer a.close()

	a.pruner.Start()
	defer a.pruner.Stop()

	errCh := make(chan error, 1)

	go func() {
		a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr, "api", a.cfg.API.BaseURL)
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	}
}
