// Package main provides the alarm daemon: it keeps the scheduled prayer alarms
// in line with the timetable and the user's preferences, and delivers them when due.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" // #nosec G108 - pprof is intentionally exposed for debugging, isolated to separate port
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/muaviaUsmani/adhan/internal/alarm"
	"github.com/muaviaUsmani/adhan/internal/config"
	"github.com/muaviaUsmani/adhan/internal/driver"
	"github.com/muaviaUsmani/adhan/internal/logger"
	"github.com/muaviaUsmani/adhan/internal/metrics"
	"github.com/muaviaUsmani/adhan/internal/preferences"
	"github.com/muaviaUsmani/adhan/internal/reconcile"
	"github.com/muaviaUsmani/adhan/internal/result"
	"github.com/muaviaUsmani/adhan/internal/scheduler"
	"github.com/muaviaUsmani/adhan/internal/storage"
	"github.com/muaviaUsmani/adhan/internal/timetable"
	"github.com/redis/go-redis/v9"
)

// connectWithRetry attempts to connect to Redis with exponential backoff
func connectWithRetry(redisURL string, maxRetries int, log logger.Logger) (*redis.Client, error) {
	var client *redis.Client
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		client, err = storage.Connect(context.Background(), redisURL)
		if err == nil {
			return client, nil
		}

		// Calculate exponential backoff delay: 2^attempt seconds (max 30 seconds)
		delay := time.Duration(1<<uint(attempt)) * time.Second
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}

		log.Warn("Failed to connect to Redis, retrying",
			"attempt", attempt+1,
			"max_attempts", maxRetries,
			"error", err,
			"retry_in", delay)

		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", maxRetries, err)
}

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
	defer log.Close()

	// Set as default logger
	logger.SetDefault(log)

	daemonLog := log.WithComponent(logger.ComponentScheduler).WithSource(logger.LogSourceInternal)

	daemonLog.Info("Alarm daemon starting",
		"redis_url", cfg.RedisURL,
		"location", cfg.Location.String(),
		"timezone", cfg.Timezone,
		"method", cfg.CalcMethod,
		"driver_enabled", cfg.AlarmDriverEnabled)

	// Start pprof server on separate port for profiling
	pprofPort := os.Getenv("PPROF_PORT")
	if pprofPort == "" {
		pprofPort = "6062"
	}
	go func() {
		daemonLog.Info("Starting pprof server", "port", pprofPort, "url", fmt.Sprintf("http://localhost:%s/debug/pprof/", pprofPort))
		if err := http.ListenAndServe(":"+pprofPort, nil); err != nil {
			daemonLog.Error("pprof server failed", "error", err)
		}
	}()

	// Connect to Redis with retry logic
	client, err := connectWithRetry(cfg.RedisURL, 5, daemonLog)
	if err != nil {
		daemonLog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	daemonLog.Info("Successfully connected to Redis")

	kv := storage.NewRedisKV(client)
	tz := cfg.TimeLocation()

	var (
		alarms      driver.Driver = driver.Unavailable{}
		redisDriver *driver.RedisDriver
	)
	if cfg.AlarmDriverEnabled {
		redisDriver = driver.NewRedisDriver(client, cfg.KeyPrefix, cfg.PayloadFormat)
		alarms = redisDriver
	}

	provider := timetable.NewCachedProvider(
		timetable.NewHTTPProvider(cfg.TimetableURL, cfg.CalcMethod, tz, cfg.TimetableTimeout),
		timetable.NewDayCache(3),
		kv,
		cfg.KeyPrefix,
		cfg.CalcMethod,
	)

	reconciler := reconcile.New(
		provider,
		preferences.NewStore(kv, cfg.KeyPrefix),
		alarm.NewIDStore(kv, cfg.KeyPrefix+"alarm_ids"),
		alarms,
		cfg.Location,
		tz,
	)
	if !reconciler.Available() {
		daemonLog.Warn("Alarm driver unavailable, every pass will be skipped")
	}

	results := result.NewRedisBackend(client, cfg.KeyPrefix, cfg.ResultTTLSuccess, cfg.ResultTTLFailure)
	guard := scheduler.NewGuard(
		result.NewRecordingRunner(reconciler, results),
		scheduler.NewLocker(client, cfg.KeyPrefix+"pass_lock", cfg.PassLockTTL),
	)

	registry := scheduler.NewRegistry()
	if err := registry.RegisterDefaults(cfg.MidnightCron, cfg.RefreshCron, cfg.Timezone); err != nil {
		daemonLog.Error("Failed to register trigger schedules", "error", err)
		os.Exit(1)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	cronScheduler := scheduler.NewCronScheduler(registry, guard, client, cfg.KeyPrefix, cfg.TriggerTick)
	wg.Add(1)
	go func() {
		defer wg.Done()
		cronScheduler.Start(ctx)
	}()

	listener := scheduler.NewListener(client, scheduler.TriggerChannel(cfg.KeyPrefix), guard)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Start(ctx); err != nil {
			daemonLog.Error("Trigger listener failed", "error", err)
		}
	}()

	if redisDriver != nil {
		notifiers := driver.NewRegistry()
		notifiers.SetFallback(driver.LogNotifier(
			log.WithComponent(logger.ComponentDispatcher).WithSource(logger.LogSourceAlarm)))

		dispatcher := driver.NewDispatcher(redisDriver, notifiers, cfg.DispatchInterval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			dispatcher.Start(ctx)
		}()
	}

	var metricsServer *http.Server
	if cfg.MetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.NewExporter(metrics.Default()).Handler())
		metricsServer = &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			daemonLog.Info("Metrics server listening", "port", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				daemonLog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Startup pass
	startup := guard.FireAsync(ctx, scheduler.TriggerStartup)

	daemonLog.Info("Alarm daemon ready",
		"schedules", registry.Count(),
		"trigger_channel", scheduler.TriggerChannel(cfg.KeyPrefix))

	// Wait for shutdown signal
	sig := <-sigChan
	daemonLog.Info("Received shutdown signal, initiating graceful shutdown", "signal", sig)

	cancel()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			daemonLog.Warn("Metrics server shutdown failed", "error", err)
		}
		shutdownCancel()
	}

	<-startup
	wg.Wait()

	daemonLog.Info("Alarm daemon shut down successfully")
}
