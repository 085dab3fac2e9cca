package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"modelmgrd/internal/config"
	"modelmgrd/internal/convcache"
	"modelmgrd/internal/httpapi"
	"modelmgrd/internal/manager"
	"modelmgrd/internal/registry"
	"modelmgrd/internal/usagelog"
	"modelmgrd/pkg/types"
)

func main() {
	// Optional .env next to the binary; real env wins over file values.
	_ = godotenv.Load()

	defaultAddr := ":8080"
	if v := os.Getenv("MODELMGRD_ADDR"); v != "" {
		defaultAddr = v
	}
	configPath := flag.String("config", os.Getenv("MODELMGRD_CONFIG"), "Path to config file (.yaml/.json/.toml)")
	addr := flag.String("addr", "", "HTTP listen address, e.g. :8080 (overrides config)")
	modelsDir := flag.String("models-dir", "", "Directory to scan for *.gguf model files (overrides config)")
	defaultModel := flag.String("default-model", "", "Default model id when a request omits one (overrides config)")
	totalCapacityMB := flag.Int("total-capacity-mb", 0, "Total VRAM capacity in MB (overrides config; 0=unlimited)")
	flag.Parse()

	var cfg config.Config
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if *modelsDir != "" {
		cfg.ModelsDir = *modelsDir
	}
	if *defaultModel != "" {
		cfg.DefaultModel = *defaultModel
	}
	if *totalCapacityMB != 0 {
		cfg.TotalCapacityMB = *totalCapacityMB
	}

	log := newLogger(cfg)

	// Catalog: declared models first, then scanned artifacts.
	descriptors := cfg.Models
	if cfg.ModelsDir != "" {
		scanned, err := registry.LoadDir(cfg.ModelsDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.ModelsDir).Msg("failed to scan models dir")
		}
		descriptors = registry.Merge(cfg.Models, scanned)
	}

	cache := convcache.New(
		cfg.MaxConversationCaches,
		time.Duration(cfg.CacheTTLSeconds)*time.Second,
		time.Duration(cfg.CacheCleanupIntervalSeconds)*time.Second,
		log.With().Str("component", "convcache").Logger(),
	)

	pub := manager.EventPublisher(nil)
	if cfg.UsageLogPath != "" {
		store, err := usagelog.Open(cfg.UsageLogPath, log.With().Str("component", "usagelog").Logger())
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.UsageLogPath).Msg("failed to open usage log")
		}
		defer store.Close()
		pub = store
	}

	mgr := manager.New(manager.Config{
		Registry:            descriptors,
		Runtime:             manager.NewLlamaRuntime(cfg.Device, 0, 0),
		Cache:               cache,
		Publisher:           pub,
		Logger:              log.With().Str("component", "manager").Logger(),
		DefaultModel:        cfg.DefaultModel,
		TotalCapacityMB:     cfg.TotalCapacityMB,
		BudgetFraction:      cfg.BudgetFraction,
		MinFreeMB:           cfg.MinFreeMB,
		DefaultIdleTimeout:  time.Duration(cfg.DefaultIdleTimeoutSeconds) * time.Second,
		MemoryCheckInterval: time.Duration(cfg.MemoryCheckIntervalSeconds) * time.Second,
		DrainTimeout:        time.Duration(cfg.DrainTimeoutSeconds) * time.Second,
		PredictionWindow:    time.Duration(cfg.PredictionWindowSeconds) * time.Second,
		LookaheadInterval:   time.Duration(cfg.LookaheadIntervalSeconds) * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)
	go cache.Run(ctx)

	if cfg.WatchModelsDir && cfg.ModelsDir != "" {
		watchLog := log.With().Str("component", "watcher").Logger()
		go func() {
			err := registry.Watch(ctx, cfg.ModelsDir, watchLog, func(scanned []types.ModelDescriptor) {
				for _, d := range registry.Merge(nil, scanned) {
					// Already-registered ids are rejected; only new artifacts land.
					_ = mgr.Register(d)
				}
			})
			if err != nil {
				watchLog.Warn().Err(err).Msg("models dir watcher stopped")
			}
		}()
	}

	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetBaseContext(ctx)
	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(mgr)}

	go func() {
		log.Info().Str("addr", cfg.Addr).Int("models", len(descriptors)).Msg("modelmgrd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	mgr.Close(shutdownCtx)
}

// newLogger builds the process logger: console output on a TTY, JSON
// otherwise, and size-rotated file output when log_file is configured.
func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	if cfg.LogFile != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     14, // days
		})
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
