package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/redwire/redwire/internal/cookiecache"
	"github.com/redwire/redwire/internal/embedder"
	"github.com/redwire/redwire/internal/gatewaymcp"
	"github.com/redwire/redwire/internal/httpexec"
	"github.com/redwire/redwire/internal/logging"
	"github.com/redwire/redwire/internal/store"
	"github.com/redwire/redwire/internal/telemetry"
)

var (
	serveStdio       bool
	serveHTTPAddr    string
	serveAutoMigrate bool
	serveOtelEndpoint string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP gateway, over stdio or streamable HTTP.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveStdio, "stdio", false, "serve over stdio instead of HTTP")
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http", "", "listen address for streamable HTTP/SSE (overrides http_addr config)")
	serveCmd.Flags().BoolVar(&serveAutoMigrate, "migrate", false, "apply pending database migrations before serving")
	serveCmd.Flags().StringVar(&serveOtelEndpoint, "otel-endpoint", "", "OTLP/gRPC trace collector endpoint; empty disables tracing")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url is not configured; set it in config.yaml or DATABASE_URL")
	}
	addr := serveHTTPAddr
	if addr == "" {
		addr = cfg.HTTPAddr
	}
	if !serveStdio && addr == "" {
		return fmt.Errorf("either --stdio or --http <addr> (or http_addr in config.yaml) must be set")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	st, err := store.New(ctx, pool, log)
	if err != nil {
		return fmt.Errorf("initializing store: %w (ensure the database is reachable and migrations have run)", err)
	}
	st.WithMetrics(metrics)
	if serveAutoMigrate {
		if err := st.Migrate(ctx); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
	}

	_, tracerShutdown, err := telemetry.InitTracer(ctx, "redwire", serveOtelEndpoint)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracerShutdown(sctx)
	}()

	cookieConfigPath := cfg.DataDir + "/cookie_sessions.yaml"
	cookies := cookiecache.New(cookieConfigPath, cfg.DataDir)
	embed := embedder.NewHashEmbedder(cfg.EmbeddingDim)
	dispatch := logging.NewDispatcher()
	pipeline := logging.New(st, log, dispatch, logging.Config{
		SensitiveHeaders:  cfg.SensitiveHeaders,
		BodyTruncateLimit: cfg.BodyTruncateLimit,
	}).WithMetrics(metrics)
	exec := httpexec.New(cookies, pipeline).WithMetrics(metrics)

	srv := gatewaymcp.New(&gatewaymcp.Config{
		Store:             st,
		Embed:             embed,
		Cookies:           cookies,
		Exec:              exec,
		Pipeline:          pipeline,
		Dispatch:          dispatch,
		Log:               log,
		Metrics:           metrics,
		PromptsDir:        cfg.PromptsDir,
		BuiltinPromptsDir: cfg.BuiltinPromptsDir,
	})
	srv.MarkReady()

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveStdio {
		log.Info("redwire gateway starting", zap.String("transport", "stdio"))
		return srv.RunStdio(runCtx)
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: srv.HTTPHandler(),
		// ReadHeaderTimeout guards against slow-header attacks on the
		// listener; WriteTimeout is left at zero because the SSE
		// transport holds connections open indefinitely and a non-zero
		// value would impose an absolute deadline that kills them.
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("redwire gateway starting", zap.String("transport", "http"), zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	log.Info("redwire gateway shutting down")
	return httpSrv.Shutdown(shutdownCtx)
}
