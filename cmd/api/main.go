package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/complaint-analyst/internal/adapters/http"
	"github.com/kirillkom/complaint-analyst/internal/bootstrap"
	"github.com/kirillkom/complaint-analyst/internal/config"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/resilience"
	"github.com/kirillkom/complaint-analyst/internal/observability/logging"
	"github.com/kirillkom/complaint-analyst/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Events:     true,
		PullIndex:  true,
		ClientName: "complaint-analyst-api",
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	httpMetrics.SetIndexState(app.Ready(), app.Index.Entries)
	app.Executor.Observe(resilience.Observer{
		OnRetry:       httpMetrics.RecordUpstreamRetry,
		OnStateChange: httpMetrics.SetBreakerState,
	})

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Searcher: app.Searcher(),
		Query:    app.QueryService(),
		LoadErr:  app.LoadErr,
		Index: httpadapter.IndexStatus{
			Generation: string(app.Index.Generation),
			Backend:    app.Index.Backend,
			Entries:    app.Index.Entries,
			Dimension:  app.Index.Dimension,
		},
	}, httpMetrics)

	server := &http.Server{
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		logger.Error("api_listen_failed", "port", cfg.APIPort, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	go func() {
		logger.Info("api_listening",
			"port", cfg.APIPort,
			"ready", app.Ready(),
			"generation", string(app.Index.Generation),
			"max_connections", cfg.APIMaxConnections,
		)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
