// Package main provides the alarm control API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // #nosec G108 - pprof is intentionally exposed for debugging, isolated to separate port
	"os"
	"time"

	"github.com/muaviaUsmani/adhan/internal/alarm"
	"github.com/muaviaUsmani/adhan/internal/config"
	"github.com/muaviaUsmani/adhan/internal/driver"
	"github.com/muaviaUsmani/adhan/internal/logger"
	"github.com/muaviaUsmani/adhan/internal/preferences"
	"github.com/muaviaUsmani/adhan/internal/reconcile"
	"github.com/muaviaUsmani/adhan/internal/storage"
	"github.com/muaviaUsmani/adhan/internal/timetable"
	"github.com/muaviaUsmani/adhan/pkg/client"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := log.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
		}
	}()

	// Set as default logger
	logger.SetDefault(log)

	// Create component-specific logger
	apiLog := log.WithComponent(logger.ComponentAPI).WithSource(logger.LogSourceInternal)

	apiLog.Info("API server starting",
		"redis_url", cfg.RedisURL,
		"api_port", cfg.APIPort,
		"key_prefix", cfg.KeyPrefix)

	// Start pprof server on separate port for profiling
	pprofPort := os.Getenv("PPROF_PORT")
	if pprofPort == "" {
		pprofPort = "6060"
	}
	go func() {
		apiLog.Info("Starting pprof server", "port", pprofPort, "url", fmt.Sprintf("http://localhost:%s/debug/pprof/", pprofPort))
		pprofServer := &http.Server{
			Addr:              ":" + pprofPort,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := pprofServer.ListenAndServe(); err != nil {
			apiLog.Error("pprof server failed", "error", err)
		}
	}()

	rdb, err := storage.Connect(context.Background(), cfg.RedisURL)
	if err != nil {
		apiLog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	c := client.NewClientWithRedis(rdb, cfg.KeyPrefix)
	defer c.Close()

	kv := storage.NewRedisKV(rdb)
	tz := cfg.TimeLocation()
	previewer := reconcile.New(
		timetable.NewCachedProvider(
			timetable.NewHTTPProvider(cfg.TimetableURL, cfg.CalcMethod, tz, cfg.TimetableTimeout),
			timetable.NewDayCache(3),
			kv,
			cfg.KeyPrefix,
			cfg.CalcMethod,
		),
		preferences.NewStore(kv, cfg.KeyPrefix),
		alarm.NewIDStore(kv, cfg.KeyPrefix+"alarm_ids"),
		driver.NewRedisDriver(rdb, cfg.KeyPrefix, cfg.PayloadFormat),
		cfg.Location,
		tz,
	)

	ping := func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}

	addr := ":" + cfg.APIPort
	apiLog.Info("API server listening", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(c, previewer, ping, apiLog),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil {
		apiLog.Error("API server failed", "error", err)
		os.Exit(1)
	}
}
