package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	custom_context "github.com/yourorg/card-payments/internal/context"
	"github.com/yourorg/card-payments/internal/telemetry"
)

func loadConfig(path string) (custom_context.CoreConfig, error) {
	if path == "" {
		cfg := custom_context.ApplyEnv(custom_context.CoreConfig{}).WithDefaults()
		return cfg, cfg.Validate()
	}
	return custom_context.LoadConfig(path)
}

func main() {
	configPath := flag.String("config", os.Getenv("CARDPAY_CONFIG"), "path to the YAML config file")
	addr := flag.String("addr", ":8080", "listen address")
	logLevel := flag.String("log-level", "info", "log level")
	jsonLogs := flag.Bool("json-logs", false, "emit JSON logs")
	headless := flag.Bool("headless", false, "log 3DS challenge URLs instead of opening a browser")
	wait := flag.Duration("wait", 2*time.Minute, "how long a request waits for a terminal outcome")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, _, shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: "card-payments",
		LogLevel:    *logLevel,
		JSONLogs:    *jsonLogs,
	})
	if err != nil {
		panic(err)
	}
	defer shutdownTelemetry(context.Background())

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	repo := custom_context.NewInMemoryConfigRepository()
	repo.AddConfig(cfg)

	srv, err := newServer(serverConfig{
		Configs:         repo,
		DefaultClientID: cfg.ClientID,
		Registry:        registry,
		Log:             logger,
		WaitTimeout:     *wait,
		Headless:        *headless,
	})
	if err != nil {
		logger.Fatal("failed to initialize server", zap.Error(err))
	}

	httpServer := &http.Server{Addr: *addr, Handler: setupRouter(srv), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", zap.String("addr", *addr), zap.String("environment", string(cfg.Environment)))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("failed to run server", zap.Error(err))
	}
}

func setupRouter(s *server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), otelginMiddleware(), requestLogger(s.log))
	router.POST("/orders/:orderID/approve", s.approveOrderHandler)
	router.POST("/setup-tokens/:tokenID/vault", s.vaultHandler)
	router.GET("/retrospective", s.retrospectiveHandler)
	router.GET("/metrics", s.metricsHandler())
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	return router
}
