// Package http exposes the Containeer API over HTTP using gin.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/containeer/internal/logging"
	"github.com/dmitrijs2005/containeer/internal/server/metrics"
	"github.com/dmitrijs2005/containeer/internal/server/models"
	"github.com/dmitrijs2005/containeer/internal/server/services"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

type UserService interface {
	Login(ctx context.Context, idToken string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, p *services.Principal, refreshToken string) error
	Authenticate(ctx context.Context, token string) (*services.Principal, error)
	ListUsers(ctx context.Context, caller *models.User) ([]*models.User, error)
}

type FileService interface {
	Upload(ctx context.Context, caller *models.User, filename string, data []byte) (*models.File, error)
	Grant(ctx context.Context, caller *models.User, id int64) (string, error)
	Delete(ctx context.Context, caller *models.User, id int64) error
}

// Options tunes the HTTP surface.
type Options struct {
	Address        string
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
}

type HTTPServer struct {
	options Options
	users   UserService
	files   FileService
	logger  logging.Logger
	metrics *metrics.Metrics
	limiter *ipLimiter
	engine  *gin.Engine
}

// NewHTTPServer builds the router. m may be nil, which also disables /metrics.
func NewHTTPServer(opts Options, l logging.Logger, us UserService, fs FileService, m *metrics.Metrics) *HTTPServer {
	s := &HTTPServer{
		options: opts,
		users:   us,
		files:   fs,
		logger:  l.With("module", "http_server"),
		metrics: m,
	}
	if opts.RateLimitRPS > 0 {
		s.limiter = newIPLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.options.Address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-stopped
}
