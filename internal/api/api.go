// Package api provides the HTTP surface for daily-halacha-translate.
//
// It exposes the platform webhook (verification handshake plus deliveries),
// a health probe, recent dispatch outcomes, and the persisted media files.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/neshkoli/daily-halacha-translate/internal/relay"
	"github.com/neshkoli/daily-halacha-translate/internal/store"
)

// Constants for API server configuration
const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":3000"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr          string
	VerifyToken   string
	MediaDir      string
	DeliveryLimit int
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithVerifyToken sets the webhook verification token.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// WithMediaDir enables serving persisted audio files under /media/.
func WithMediaDir(dir string) Option {
	return func(o *Opts) { o.MediaDir = dir }
}

// WithDeliveryLimit caps how many records /deliveries returns.
func WithDeliveryLimit(limit int) Option {
	return func(o *Opts) {
		if limit > 0 {
			o.DeliveryLimit = limit
		}
	}
}

// Server wires the relay core to the HTTP surface.
type Server struct {
	addr          string
	verifyToken   string
	mediaDir      string
	deliveryLimit int
	relay         *relay.Relay
	deliveries    store.DeliveryRepo
	httpServer    *http.Server
}

// NewServer creates the API server. deliveries may be nil, in which case
// /deliveries reports an empty list.
func NewServer(rel *relay.Relay, deliveries store.DeliveryRepo, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr, DeliveryLimit: store.DefaultDeliveryLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		addr:          cfg.Addr,
		verifyToken:   cfg.VerifyToken,
		mediaDir:      cfg.MediaDir,
		deliveryLimit: cfg.DeliveryLimit,
		relay:         rel,
		deliveries:    deliveries,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.rootHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/deliveries", s.deliveriesHandler)
	if s.mediaDir != "" {
		mux.Handle("/media/", http.StripPrefix("/media/", http.FileServer(http.Dir(s.mediaDir))))
	}
	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
