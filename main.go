package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forma-server/internal/database"
	"forma-server/internal/events"
	"forma-server/internal/handlers"
	"forma-server/internal/logging"
	"forma-server/internal/metrics"
	"forma-server/internal/middleware"
	"forma-server/internal/registry"
	"forma-server/internal/scanner"
	"forma-server/internal/startup"
	"forma-server/internal/thumbnail"
	"forma-server/internal/walker"
	"forma-server/internal/watcher"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	if config.MetricsEnabled {
		metrics.InitializeMetrics()
		go db.UpdateDBMetricsLoop(context.Background(), 15*time.Second)
		go serveMetrics(config.MetricsPort)
	}

	bus := events.NewBus()

	// Model rendering stays client-side; thumbnails start as placeholders
	// and clients upload rendered previews through the API.
	thumbGen := thumbnail.NewGenerator(db, nil)

	walkOpts := walker.DefaultOptions()
	walkOpts.IncludeHidden = config.IncludeHidden

	sc := scanner.New(db, bus, thumbGen, walkOpts)
	reg := registry.New(db, bus, sc, thumbGen, watcher.Options{
		IncludeHidden: config.IncludeHidden,
	})

	startup.LogRegistryInit()
	if err := reg.Start(context.Background()); err != nil {
		startup.LogFatal("Failed to start folder registry: %v", err)
	}

	h := handlers.New(db, reg, bus)

	router := mux.NewRouter()
	h.RegisterRoutes(router)

	handler := middleware.Logger(middleware.DefaultLoggingConfig())(router)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, reg)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Error("Metrics server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, reg *registry.Registry) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reg.Shutdown()
	startup.LogShutdownStepComplete("Folder registry stopped")

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
