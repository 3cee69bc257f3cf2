// Package server wires the Containeer API: configuration, logging, tracing,
// the PostgreSQL directory, the token denylist, object storage and the HTTP
// server, and runs them until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/containeer/internal/logging"
	"github.com/dmitrijs2005/containeer/internal/server/auth"
	"github.com/dmitrijs2005/containeer/internal/server/broker"
	"github.com/dmitrijs2005/containeer/internal/server/config"
	"github.com/dmitrijs2005/containeer/internal/server/denylist"
	"github.com/dmitrijs2005/containeer/internal/server/directory"
	"github.com/dmitrijs2005/containeer/internal/server/identity"
	"github.com/dmitrijs2005/containeer/internal/server/metrics"
	"github.com/dmitrijs2005/containeer/internal/server/objectstore"
	"github.com/dmitrijs2005/containeer/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/containeer/internal/server/services"
	"github.com/dmitrijs2005/containeer/internal/tracing"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	hs "github.com/dmitrijs2005/containeer/internal/server/http"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const serviceName = "containeer"

type App struct {
	config  *config.Config
	logger  logging.Logger
	server  *hs.HTTPServer
	closers []func(context.Context) error
}

func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.NewJSONLogger(os.Stdout, level)
	app := &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			app.close(context.WithoutCancel(ctx))
		}
	}()

	shutdownTracing, err := tracing.Setup(ctx, serviceName, c.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("tracing init error: %w", err)
	}
	app.closers = append(app.closers, shutdownTracing)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, closer(db))

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	dl, err := app.newDenylist(ctx)
	if err != nil {
		return nil, err
	}

	store, err := newObjectStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	issuer, err := auth.NewIssuer([]byte(c.SecretKey), c.SigningAlgorithm, c.AccessTokenValidityDuration, dl, time.Now)
	if err != nil {
		return nil, fmt.Errorf("session issuer init error: %w", err)
	}

	m := metrics.New()
	verifier := identity.NewRemoteVerifier(ctx, c.GoogleJWKSURL, c.GoogleClientID, c.IdentityTimeout)
	dir := directory.New(db, rm, c.DatabaseTimeout, logger)
	b := broker.New(store, c.ReadGrantValidityDuration, c.StorageTimeout, logger, m)

	us := services.NewUserService(verifier, issuer, dir, c, logger, m)
	fs := services.NewFileService(dir, b, logger)

	app.server = hs.NewHTTPServer(hs.Options{
		Address:        c.EndpointAddrHTTP,
		MaxUploadBytes: c.MaxUploadBytes,
		RateLimitRPS:   c.RateLimitRPS,
		RateLimitBurst: c.RateLimitBurst,
	}, logger, us, fs, m)

	return app, nil
}

// newDenylist uses Redis when an address is configured so revocations are
// shared between replicas.
func (app *App) newDenylist(ctx context.Context) (denylist.Denylist, error) {
	if app.config.RedisAddr == "" {
		app.logger.Warn(ctx, "redis address not set, token denylist kept in process memory")
		return denylist.NewMemory(time.Now), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     app.config.RedisAddr,
		Password: app.config.RedisPassword,
	})
	app.closers = append(app.closers, closer(client))
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	return denylist.NewRedis(client, time.Now), nil
}

func newObjectStore(ctx context.Context, c *config.Config) (objectstore.Store, error) {
	opts := objectstore.Options{
		Region:    c.S3Region,
		AccessKey: c.S3RootUser,
		SecretKey: c.S3RootPassword,
		Endpoint:  c.S3BaseEndpoint,
		Bucket:    c.S3Bucket,
	}
	if c.StorageBackend == config.StorageBackendMinio {
		return objectstore.NewMinioStore(opts)
	}
	return objectstore.NewS3Store(ctx, opts)
}

func closer(c io.Closer) func(context.Context) error {
	return func(context.Context) error { return c.Close() }
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// close releases resources in reverse order of acquisition.
func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil {
			app.logger.Error(ctx, "shutdown error", "error", err)
		}
	}
	app.closers = nil
}

// Run serves until a signal arrives or the server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(gctx)
	})
	err := g.Wait()

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
	return err
}
