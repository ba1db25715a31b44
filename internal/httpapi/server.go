// Package httpapi serves the portfolio and wallet ledger over HTTP.
package httpapi

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/papertrade/config"
	"github.com/vadiminshakov/papertrade/internal/events"
	"github.com/vadiminshakov/papertrade/internal/ledger"
	"github.com/vadiminshakov/papertrade/internal/quote"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

const defaultHeartbeat = 20 * time.Second

// Server exposes the ledger routes on a gin engine.
type Server struct {
	cfg       config.HTTPConfig
	engine    *gin.Engine
	exec      *ledger.Executor
	query     *ledger.Query
	guard     *quote.Guard
	stream    *events.Broadcaster
	logger    *zap.Logger
	heartbeat time.Duration
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGuard checks trade prices against market quotes before they reach the ledger.
func WithGuard(g *quote.Guard) Option {
	return func(s *Server) { s.guard = g }
}

// WithStream enables GET /ledger/stream.
func WithStream(b *events.Broadcaster) Option {
	return func(s *Server) { s.stream = b }
}

func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// NewServer wires routes and middleware.
func NewServer(cfg config.HTTPConfig, exec *ledger.Executor, query *ledger.Query, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		exec:      exec,
		query:     query,
		logger:    zap.NewNop(),
		heartbeat: defaultHeartbeat,
	}
	for _, opt := range opts {
		opt(s)
	}

	g := gin.New()
	g.Use(requestLogger(s.logger))
	g.Use(gin.Recovery())
	g.Use(cors(cfg.CORSOrigin))

	g.GET("/", s.dashboard)
	g.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	g.GET("/wallet", s.getWallet)
	g.POST("/wallet/update", s.updateWallet)
	g.GET("/networth", s.getNetWorth)

	g.GET("/portfolioData", s.getHoldings)
	g.GET("/portfolio/:symbol", s.getHolding)
	g.POST("/portfolio", s.buy)
	g.POST("/portfolio/sell", s.sell)

	g.GET("/trades/:intentId", s.getTradeStatus)
	g.GET("/ledger/stream", s.streamDeltas)

	s.engine = g
	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
// With TLS domains configured it serves HTTPS with ACME certificates instead.
func (s *Server) Start(ctx context.Context) error {
	if len(s.cfg.TLSDomains) > 0 {
		return s.StartWithAutoTLS(ctx, s.cfg.TLSDomains, s.cfg.CertCacheDir)
	}

	server := s.httpServer(s.cfg.Addr, s.engine)
	go s.shutdownOnDone(ctx, server)

	s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server")
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := s.httpServer(":80", manager.HTTPHandler(nil))

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12
	httpsSrv := s.httpServer(s.cfg.Addr, s.engine)
	httpsSrv.TLSConfig = tlsConfig

	go s.shutdownOnDone(ctx, httpSrv, httpsSrv)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http (acme) server error", zap.Error(err))
		}
	}()

	s.logger.Info("https server listening", zap.String("addr", s.cfg.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "https server")
	}
	return nil
}

func (s *Server) httpServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (s *Server) shutdownOnDone(ctx context.Context, servers ...*http.Server) {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("server shutdown error", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}
}
