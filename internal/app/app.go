// Package app wires the configured storage, cache, recorder and HTTP server
// together and runs them until the context is canceled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlink/internal/adapter/cache"
	"github.com/vadimbarashkov/shortlink/internal/adapter/favicon"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/sqlite"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
	"github.com/vadimbarashkov/shortlink/migrations"
	"github.com/vadimbarashkov/shortlink/pkg/logger"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/shortlink/internal/adapter/delivery/http"
	pkgpostgres "github.com/vadimbarashkov/shortlink/pkg/postgres"
	pkgredis "github.com/vadimbarashkov/shortlink/pkg/redis"
	pkgsqlite "github.com/vadimbarashkov/shortlink/pkg/sqlite"
)

// linkStore is implemented by both storage backends.
type linkStore interface {
	Save(ctx context.Context, link *entity.Link) (*entity.Link, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.Link, error)
	RetrieveByID(ctx context.Context, ownerID string, id uuid.UUID) (*entity.Link, error)
	ListByOwner(ctx context.Context, ownerID, search string, after *entity.Cursor, limit int) ([]entity.Link, error)
	SoftDelete(ctx context.Context, ownerID string, id uuid.UUID) (*entity.Link, error)
	UpdateFavicon(ctx context.Context, id uuid.UUID, favicon string) error
	SaveClicks(ctx context.Context, events []entity.ClickEvent) (int64, error)
}

type linkCache interface {
	Get(ctx context.Context, shortCode string) (*entity.RedirectTarget, error)
	Set(ctx context.Context, shortCode string, target *entity.RedirectTarget) error
	Delete(ctx context.Context, shortCode string) error
}

func Run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	const op = "app.Run"

	store, closeStorage, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeStorage()

	redirects, closeCache, err := openCache(ctx, cfg.Cache, log)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeCache()

	recorder, err := usecase.NewClickRecorder(store, log, recorderConfig(cfg.Recorder))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	resolver := usecase.NewResolver(store, redirects, recorder, log, cfg.Resolver.Timeout)

	linkOpts := []usecase.LinkOption{usecase.WithMaxAttempts(cfg.ShortCode.MaxAttempts)}
	if cfg.Favicon.Enabled {
		linkOpts = append(linkOpts, usecase.WithFaviconFetcher(
			favicon.NewFetcher(nil, cfg.Favicon.Timeout),
			cfg.Favicon.Timeout,
		))
	}
	links := usecase.NewLinkUseCase(
		store,
		usecase.NewCodeGenerator(cfg.ShortCode.Length),
		redirects,
		log,
		linkOpts...,
	)

	router := delivery.NewRouter(
		newHTTPLogger(cfg),
		delivery.RouterConfig{
			JWTSecret:     cfg.Auth.JWTSecret,
			CountryHeader: cfg.HTTPServer.CountryHeader,
			RateLimit: delivery.RateLimitConfig{
				Enabled:   cfg.RateLimit.Enabled,
				Burst:     cfg.RateLimit.Burst,
				PerMinute: cfg.RateLimit.PerMinute,
				IdleTTL:   cfg.RateLimit.IdleTTL,
			},
		},
		links,
		resolver,
		recorder,
	)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	// The recorder outlives the server so that clicks of in-flight redirects
	// are still flushed.
	recCtx, stopRecorder := context.WithCancel(context.Background())
	defer stopRecorder()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := recorder.Run(recCtx); err != nil {
			return fmt.Errorf("%s: click recorder failed: %w", op, err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("starting http server",
			logger.String("addr", server.Addr),
			logger.String("storage", cfg.Storage.Driver),
			logger.String("cache", cfg.Cache.Driver),
		)

		var err error
		if cfg.HTTPServer.TLS() {
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		defer stopRecorder()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
		defer cancel()

		log.Info("shutting down http server")

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		links.Wait()

		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	st := recorder.Stats()
	log.Info("stopped",
		logger.Int64("clicks_recorded", st.Recorded),
		logger.Int64("clicks_dropped", st.Dropped),
		logger.Int64("clicks_failed", st.Failed),
	)

	return nil
}

func openStorage(ctx context.Context, cfg config.Storage) (linkStore, func(), error) {
	switch cfg.Driver {
	case config.StorageDriverSQLite:
		db, err := pkgsqlite.New(ctx, cfg.SQLite.Path, sqlite.Schema)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite: %w", err)
		}

		reader, err := pkgsqlite.NewReader(ctx, cfg.SQLite.Path, cfg.SQLite.ReadConns)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to open sqlite reader: %w", err)
		}

		closeFn := func() {
			reader.Close()
			db.Close()
		}

		return sqlite.NewLinkRepository(db, sqlite.WithReader(reader)), closeFn, nil
	default:
		pg := cfg.Postgres

		db, err := pkgpostgres.New(
			ctx,
			pg.DSN(),
			pkgpostgres.WithConnMaxIdleTime(pg.ConnMaxIdleTime),
			pkgpostgres.WithConnMaxLifetime(pg.ConnMaxLifetime),
			pkgpostgres.WithMaxIdleConns(pg.MaxIdleConns),
			pkgpostgres.WithMaxOpenConns(pg.MaxOpenConns),
			pkgpostgres.WithConnectTimeout(pg.ConnectTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := pkgpostgres.RunMigrations(migrations.FS, ".", pg.DSN()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		return postgres.NewLinkRepository(db), func() { db.Close() }, nil
	}
}

func openCache(ctx context.Context, cfg config.Cache, log logger.Logger) (linkCache, func(), error) {
	if cfg.Driver != config.CacheDriverRedis {
		return cache.NewMemoryCache(cfg.TTL, cfg.CleanupInterval), func() {}, nil
	}

	rc := cfg.Redis
	client, err := pkgredis.New(ctx, pkgredis.Options{
		Addr:           rc.Addr,
		Username:       rc.Username,
		Password:       rc.Password,
		DB:             rc.DB,
		DialTimeout:    rc.DialTimeout,
		ReadTimeout:    rc.ReadTimeout,
		WriteTimeout:   rc.WriteTimeout,
		PoolSize:       rc.PoolSize,
		ConnectTimeout: rc.ConnectTimeout,
		RetryInterval:  rc.RetryInterval,
		MaxWait:        rc.MaxWait,
		PingTimeout:    rc.PingTimeout,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return cache.NewRedisCache(client, cfg.TTL), func() { client.Close() }, nil
}

func recorderConfig(c config.Recorder) usecase.RecorderConfig {
	return usecase.RecorderConfig{
		NodeID:          c.NodeID,
		QueueSize:       c.QueueSize,
		Workers:         c.Workers,
		BatchSize:       c.BatchSize,
		FlushInterval:   c.FlushInterval,
		AttemptTimeout:  c.AttemptTimeout,
		RetryInitial:    c.RetryInitial,
		RetryMax:        c.RetryMax,
		RetryMaxElapsed: c.RetryMaxElapsed,
		ShutdownTimeout: c.ShutdownTimeout,
	}
}

func newHTTPLogger(cfg *config.Config) *httplog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	return httplog.NewLogger("shortlink", httplog.Options{
		JSON:             cfg.Env != config.EnvDev,
		LogLevel:         level,
		Concise:          true,
		RequestHeaders:   false,
		QuietDownRoutes:  []string{"/api/v1/ping"},
		QuietDownPeriod:  10 * time.Second,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	})
}
