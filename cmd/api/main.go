package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pursekeep.org/internal/auth"
	"pursekeep.org/internal/config"
	"pursekeep.org/internal/httpapi"
	"pursekeep.org/internal/migrate"
	"pursekeep.org/internal/obs"
	"pursekeep.org/internal/users"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("PURSEKEEP_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := obs.NewLogger(obs.LogOptions{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Service: "pursekeep-api",
		Version: version,
	})
	obs.SetLogger(logger)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	hasher, err := auth.NewHasher(cfg.Auth.HashParams())
	if err != nil {
		return err
	}
	codec, err := auth.NewCodec(cfg.Auth.TokenConfig())
	if err != nil {
		return err
	}

	repo, db, err := openRepository(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	store := users.NewIdentityStore(repo)
	svc := users.NewService(repo, hasher, logger)
	resolver := auth.NewResolver(codec, store, logger)

	api := httpapi.New(httpapi.Deps{
		Users:         svc,
		Authenticator: auth.NewAuthenticator(store, hasher, logger),
		Resolver:      resolver,
		Tokens:        codec,
		Logger:        logger,
		Version:       version,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)

	var grpcSrv *httpapi.GRPCServer
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return err
		}
		grpcSrv = httpapi.NewGRPCServer(resolver, svc, logger)
		go grpcSrv.WatchReadiness(ctx, 10*time.Second)
		go func() {
			logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	go func() {
		logger.Info("http listening", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return awaitShutdown(ctx, errCh, logger, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "err", err)
		}
		if grpcSrv != nil {
			grpcSrv.GracefulStop()
		}
	})
}

// awaitShutdown blocks until ctx is cancelled or a listener fails, then runs
// shutdown. A listener failure is returned so the process exits non-zero.
func awaitShutdown(ctx context.Context, errCh <-chan error, logger *slog.Logger, shutdown func()) error {
	var failure error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server failed", "err", err)
		failure = fmt.Errorf("serve: %w", err)
	}
	shutdown()
	logger.Info("stopped")
	return failure
}

func openRepository(cfg config.Config, logger *slog.Logger) (users.Repository, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		logger.Warn("no database configured, using in-memory user store")
		return users.NewMemoryRepository(), nil, nil
	}
	db, err := users.OpenPostgres(cfg.Database.DSN, users.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.MigrateOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		mgr, err := migrate.NewManager(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		applied, err := mgr.Up(ctx)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("migrations applied", "count", len(applied))
	}
	return users.NewPGRepository(db), db, nil
}
