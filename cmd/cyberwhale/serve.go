// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/cyberwhale/cyberwhale/internal/auth"
	"github.com/cyberwhale/cyberwhale/internal/auth/memory"
	"github.com/cyberwhale/cyberwhale/internal/auth/postgres"
	"github.com/cyberwhale/cyberwhale/internal/certs"
	"github.com/cyberwhale/cyberwhale/internal/config"
	"github.com/cyberwhale/cyberwhale/internal/httpapi"
	"github.com/cyberwhale/cyberwhale/internal/logging"
	"github.com/cyberwhale/cyberwhale/internal/notify"
	"github.com/cyberwhale/cyberwhale/internal/xdg"
	"github.com/cyberwhale/cyberwhale/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account API server",
		Long: `Start the HTTP API for registration, login sessions, email
verification and password reset. With the postgres backend, pending
migrations are applied before serving.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cfg, cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// repositories is the durable store chosen by storage.backend.
type repositories struct {
	users    auth.UserRepository
	sessions auth.SessionRepository
	close    func()
}

// runServeWithDeps serves until ctx is cancelled. If deps is nil, default
// implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	gin.SetMode(gin.ReleaseMode)
	logger := logging.Setup("cyberwhale", version, cfg.Log.Format, deps.LogWriter)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ready atomic.Bool
	var observer auth.Observer = auth.NopObserver
	var requestObserver httpapi.RequestObserver
	if cfg.Server.MetricsAddr != "" {
		obsServer := deps.ObservabilityServerFactory(cfg.Server.MetricsAddr, ready.Load, logger)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Server.MetricsAddr).Wrap(err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			if err := obsServer.Stop(stopCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}()
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
		if metrics := obsServer.Metrics(); metrics != nil {
			observer, requestObserver = metrics, metrics
		}
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	repos, err := openRepositories(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer repos.close()

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("no JWT secret configured; sessions will not survive a restart",
			"env", config.EnvJWTSecret)
	}
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}

	opts := []auth.ServiceOption{auth.WithLogger(logger), auth.WithObserver(observer)}
	hasher := auth.NewArgon2idHasher()
	codes := auth.NewCredentialStore()

	sessions, err := auth.NewSessionManager(repos.users, repos.sessions, hasher, tokens, opts...)
	if err != nil {
		return err
	}
	verification, err := auth.NewVerificationService(repos.users, codes, notifier, hasher, auth.VerificationConfig{
		CodeTTL:     cfg.Auth.CodeTTL,
		ProductName: cfg.Mail.ProductName,
	}, opts...)
	if err != nil {
		return err
	}
	facade, err := auth.NewFacade(sessions, verification, logger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	if cfg.Auth.SweepInterval > 0 {
		sweeper, err := auth.NewSweeper(codes, repos.sessions, cfg.Auth.SweepInterval, opts...)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Run(ctx)
		}()
	}

	apiOpts := []httpapi.Option{httpapi.WithLogger(logger)}
	if requestObserver != nil {
		apiOpts = append(apiOpts, httpapi.WithRequestObserver(requestObserver))
	}
	if cfg.Server.TLS.Enabled {
		tlsConfig, err := serverTLSConfig(cfg.Server.TLS, logger)
		if err != nil {
			return err
		}
		apiOpts = append(apiOpts, httpapi.WithTLS(tlsConfig))
	}
	api, err := httpapi.NewServer(facade, apiOpts...)
	if err != nil {
		return err
	}

	logger.Info("starting cyberwhale",
		"http_addr", cfg.Server.HTTPAddr,
		"storage", cfg.Storage.Backend,
		"code_ttl", cfg.Auth.CodeTTL)

	err = api.Run(ctx, cfg.Server.HTTPAddr, func(addr net.Addr) {
		ready.Store(true)
		cmd.Printf("Listening on %s\n", addr)
		logger.Info("api ready", "addr", addr.String())
		if deps.OnListening != nil {
			deps.OnListening(addr)
		}
	})
	ready.Store(false)
	cancel()
	if err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// openRepositories builds the configured backend. For postgres it applies
// pending migrations and connects with retry.
func openRepositories(ctx context.Context, cfg *config.Config, deps *ServeDeps, logger *slog.Logger) (*repositories, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory storage; accounts are lost on exit")
		return &repositories{
			users:    memory.NewUserRepository(),
			sessions: memory.NewSessionRepository(),
			close:    func() {},
		}, nil

	case config.BackendPostgres:
		if err := migrateUp(deps, cfg.Storage.DatabaseURL, logger); err != nil {
			return nil, err
		}
		pool, err := deps.PoolFactory(ctx, cfg.Storage.DatabaseURL, cfg.Storage.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to database")
		return &repositories{
			users:    postgres.NewUserRepository(pool),
			sessions: postgres.NewSessionRepository(pool),
			close:    pool.Close,
		}, nil

	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("backend", cfg.Storage.Backend).
			Errorf("unknown storage backend")
	}
}

// serverTLSConfig loads the configured key pair, or the development pair
// under the cert dir, generating it on first use.
func serverTLSConfig(c config.TLSConfig, logger *slog.Logger) (*tls.Config, error) {
	var (
		pair tls.Certificate
		err  error
	)
	if c.CertFile != "" {
		pair, err = certs.LoadKeyPair(c.CertFile, c.KeyFile)
	} else {
		dir := c.CertDir
		if dir == "" {
			dir = xdg.CertDir()
		}
		logger.Info("using development certificate", "dir", dir)
		pair, err = certs.EnsureServerCert(dir, c.Hosts)
	}
	if err != nil {
		return nil, oops.Code("TLS_SETUP_FAILED").Wrap(err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func migrateUp(deps *ServeDeps, databaseURL string, logger *slog.Logger) error {
	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			errutil.LogBestEffort(logger, "close_migrator", err)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	version, _, err := migrator.Version()
	if err != nil {
		errutil.LogBestEffort(logger, "read_schema_version", err)
		return nil
	}
	logger.Info("schema up to date", "version", version)
	return nil
}

// monitorServerErrors cancels ctx when errCh reports a failure. It exits
// when an error arrives, the channel closes or ctx is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
