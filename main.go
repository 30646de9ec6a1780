package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"gopkg.in/natefinch/lumberjack.v2"

	"moviedbproxy/api"
	"moviedbproxy/config"
	"moviedbproxy/handlers"
	"moviedbproxy/internal/transport"
	"moviedbproxy/services/metadata"
)

var version = "dev"

func main() {
	configFlag := flag.String("config", "", "path to settings.json or settings.yaml")
	portOverride := flag.Int("port", 0, "override server port from config")
	configure := flag.Bool("configure", false, "interactively configure the outbound proxy and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("moviedbproxy", version)
		return
	}

	// Determine config path (flag, env or default)
	configPath := *configFlag
	if configPath == "" {
		configPath = os.Getenv("MOVIEDBPROXY_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}
	cfgManager := config.NewManager(configPath)

	if *configure {
		if err := runConfigure(cfgManager); err != nil {
			log.Fatalf("configure: %v", err)
		}
		return
	}

	// Load settings (creates defaults if missing)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	output := setupLogging(settings.Log)
	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	level := hclog.LevelFromString(settings.Log.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:              "moviedbproxy",
		Level:             level,
		Output:            output,
		IndependentLevels: true,
	})

	// An enabled but broken proxy must not silently fall back to direct
	// connections.
	tr, err := newTransport(settings, logger)
	if err != nil {
		log.Fatalf("[proxy] refusing to start with invalid proxy settings: %v", err)
	}
	if addr := tr.ProxyAddress(); addr != "" {
		log.Printf("[proxy] routing TMDB traffic through %s", addr)
	}

	metadataService := metadata.NewService(settings, tr, metadata.WithLogger(logger.Named("metadata")))
	if settings.Metadata.TMDBAPIKey == "" {
		log.Printf("[metadata] no TMDB API key configured; set metadata.tmdbApiKey in %s", configPath)
	}

	settingsHandler := handlers.NewSettingsHandler(cfgManager, metadataService)
	metadataHandler := handlers.NewMetadataHandler(metadataService)
	imageHandler := handlers.NewImageHandler(metadataService)

	r := mux.NewRouter()
	api.Register(r, settingsHandler, metadataHandler, imageHandler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Apply edits made to the settings file while running
	go func() {
		err := cfgManager.Watch(ctx, func(s config.Settings) {
			if err := metadataService.UpdateSettings(s); err != nil {
				log.Printf("[config] failed to apply reloaded settings: %v", err)
				return
			}
			log.Printf("[config] applied reloaded settings from %s", configPath)
		})
		if err != nil {
			log.Printf("[config] settings watch disabled: %v", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("moviedbproxy %s listening on %s\n", version, addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // image passthrough streams
		IdleTimeout:  120 * time.Second,
	}

	// Setup graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Shutdown complete")
}

// newTransport builds the outbound transport from the loaded settings.
func newTransport(settings config.Settings, logger hclog.Logger) (*transport.Transport, error) {
	return transport.New(settings.Proxy,
		transport.WithLogger(logger.Named("transport")),
		transport.WithUserAgent(settings.Metadata.UserAgent),
		transport.WithMaxRedirects(settings.Metadata.MaxRedirects),
		transport.WithTimeout(time.Duration(settings.Metadata.TimeoutSeconds)*time.Second),
	)
}

// setupLogging sends the standard logger to stdout and, when configured, a
// rotating log file. It returns the writer component loggers should share.
func setupLogging(cfg config.LogSettings) io.Writer {
	var output io.Writer = os.Stdout
	if cfg.File == "" {
		return output
	}
	logDir := filepath.Dir(cfg.File)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		return output
	}
	fileWriter := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	output = io.MultiWriter(os.Stdout, fileWriter)
	log.SetOutput(output)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Logging to file: %s", cfg.File)
	return output
}
