// ABOUTME: Gateway wires the store, libraries and services behind the MCP HTTP endpoint
// ABOUTME: Owns the HTTP server lifecycle: listen, serve, and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/shelf-gateway/internal/audiobook"
	"github.com/2389/shelf-gateway/internal/auth"
	"github.com/2389/shelf-gateway/internal/config"
	"github.com/2389/shelf-gateway/internal/delivery"
	"github.com/2389/shelf-gateway/internal/library"
	"github.com/2389/shelf-gateway/internal/mcp"
	"github.com/2389/shelf-gateway/internal/stats"
	"github.com/2389/shelf-gateway/internal/store"
	"github.com/2389/shelf-gateway/internal/tools"
)

// shutdownTimeout bounds how long in-flight requests get after Run is canceled.
const shutdownTimeout = 5 * time.Second

// Gateway is the shelf-gateway server.
type Gateway struct {
	config *config.Config
	logger *slog.Logger

	store store.Store

	// calibre and anx are the two library backends the tools dispatch to.
	calibre *library.CalibreLibrary
	anx     *library.AnxLibrary

	registry   *mcp.Registry
	mcpServer  *mcp.Server
	httpServer *http.Server
}

// initStore opens the SQLite store, honoring SHELF_DB_PATH as an override.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("SHELF_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// newMailer returns nil when SMTP is not configured; Send-to-Kindle then
// reports that mail is unavailable instead of failing the whole gateway.
func newMailer(cfg config.SMTPConfig, logger *slog.Logger) (delivery.Mailer, error) {
	if cfg.Host == "" {
		logger.Warn("smtp.host not set - send_to_kindle will be unavailable")
		return nil, nil
	}
	m, err := delivery.NewSMTPMailer(delivery.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating mailer: %w", err)
	}
	return m, nil
}

// New creates a Gateway from cfg. The store is opened immediately; no
// network listener is created until Run.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Calibre.URL == "" {
		return nil, errors.New("calibre.url is required")
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	gw := &Gateway{
		config: cfg,
		logger: logger.With("component", "gateway"),
		store:  s,
	}

	if err := gw.wire(logger); err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

// wire builds every service on top of the open store and registers routes.
func (g *Gateway) wire(logger *slog.Logger) error {
	cfg := g.config

	converter := delivery.NewEbookConvert(cfg.Conversion.EbookConvertPath, logger)

	client, err := library.NewCalibreClient(library.CalibreConfig{
		URL:       cfg.Calibre.URL,
		Username:  cfg.Calibre.Username,
		Password:  cfg.Calibre.Password,
		LibraryID: cfg.Calibre.LibraryID,
		Timeout:   cfg.Calibre.Timeout,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("creating calibre client: %w", err)
	}
	g.calibre = library.NewCalibreLibrary(client, converter)
	g.anx = library.NewAnxLibrary(cfg.Anx.DataDir, converter, logger)
	libs := library.NewLibraries(g.calibre, g.anx)

	mailer, err := newMailer(cfg.SMTP, logger)
	if err != nil {
		return err
	}

	g.registry, err = tools.NewRegistry(tools.Deps{
		Libraries: libs,
		Calibre:   g.calibre,
		Delivery: delivery.NewService(delivery.Config{
			Calibre: g.calibre,
			Anx:     g.anx,
			Mailer:  mailer,
			Logger:  logger,
		}),
		Audiobooks: audiobook.NewService(g.store, libs, logger),
		Stats:      stats.NewService(g.anx, logger),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("building tool registry: %w", err)
	}

	g.mcpServer, err = mcp.NewServer(mcp.Config{
		Registry:        g.registry,
		Logger:          logger,
		ServerName:      cfg.MCP.ServerName,
		ServerVersion:   cfg.MCP.ServerVersion,
		ProtocolVersion: cfg.MCP.ProtocolVersion,
		MaxBodyBytes:    cfg.MCP.MaxBodyBytes,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", g.handleHealth)
	gate := auth.NewGate(g.store, g.store, logger)
	g.mcpServer.RegisterRoutes(mux, auth.Middleware(gate))

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.logger.Info("gateway configured",
		"tools", g.registry.Len(),
		"calibre_url", cfg.Calibre.URL,
		"anx_data_dir", cfg.Anx.DataDir,
		"kindle_delivery", mailer != nil,
	)
	return nil
}

// Handler returns the HTTP handler serving /health and /mcp.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Store returns the gateway's store.
func (g *Gateway) Store() store.Store {
	return g.store
}

// Run listens on the configured address and serves until ctx is canceled or
// the server fails. Returns nil on a clean, context-driven shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		if ctx.Err() != nil {
			g.logger.Info("context canceled, initiating shutdown")
		}
		return g.gracefulShutdown()
	})

	return eg.Wait()
}

// gracefulShutdown uses a fresh context since the caller's is already done.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
