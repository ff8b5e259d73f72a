package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/threatlens/console-backend/internal/api"
	"github.com/threatlens/console-backend/internal/config"
	"github.com/threatlens/console-backend/internal/extension"
	"github.com/threatlens/console-backend/internal/logging"
	"github.com/threatlens/console-backend/internal/models"
	"github.com/threatlens/console-backend/internal/notify"
	"github.com/threatlens/console-backend/internal/session"
	"github.com/threatlens/console-backend/internal/storage"
	"github.com/threatlens/console-backend/internal/transport"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// defaultExtensions are the analysis extensions shipped with the console.
var defaultExtensions = []models.ExtensionInfo{
	{Name: "geoip", Version: "1.0.0", Description: "GeoIP enrichment for source addresses", Enabled: true},
	{Name: "sigma", Version: "2.1.0", Description: "Sigma rule matching on ingested events", Enabled: true},
	{Name: "yara", Version: "1.4.0", Description: "YARA scanning of uploaded payloads", Enabled: false},
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.Logging.Level)
	logger := logging.Default

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Fatal("failed to create directories", "err", err)
	}

	store, err := storage.NewLocalStore(cfg.Storage.SpoolDirectory)
	if err != nil {
		logger.Fatal("failed to initialize spool", "err", err)
	}

	ingestTransport, err := buildTransport(cfg)
	if err != nil {
		logger.Fatal("failed to initialize ingest transport", "err", err)
	}

	hub := notify.NewHub(logger)
	sink := notify.Tee(hub, notify.NewLogSink(logger))
	sessions := session.NewRegistry(ingestTransport, sink, store,
		time.Duration(cfg.Sessions.TTLMinutes)*time.Minute)

	extensions, err := extension.NewRegistry(cfg.Extension.StatePath, defaultExtensions)
	if err != nil {
		logger.Fatal("failed to load extension state", "err", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/progress") || path == "/health"
		},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.Server.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	handlers := api.NewHandlers(&api.Dependencies{
		Store:      store,
		Sessions:   sessions,
		Extensions: extensions,
		Hub:        hub,
	})
	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, handlers)

	s := &http.Server{
		Addr:         cfg.ServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	logger.Info("starting console backend",
		"version", Version,
		"build_time", BuildTime,
		"listen", cfg.ServerAddr(),
		"transport", cfg.Ingest.Transport,
		"spool", cfg.Storage.SpoolDirectory)

	if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server stopped", "err", err)
	}
}

// buildTransport selects the ingest transport from configuration.
func buildTransport(cfg *config.Config) (transport.Ingest, error) {
	switch cfg.Ingest.Transport {
	case "s3":
		return transport.NewS3Ingest(context.Background(),
			cfg.Ingest.S3Bucket, cfg.Ingest.S3Prefix, cfg.Ingest.S3Region)
	default:
		return transport.NewHTTPIngest(cfg.Ingest.Endpoint, cfg.Ingest.Token,
			time.Duration(cfg.Ingest.TimeoutSeconds)*time.Second), nil
	}
}
