// cmd/reporter/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/pv-reporter/internal/config"
	"github.com/tamzrod/pv-reporter/internal/logging"
	"github.com/tamzrod/pv-reporter/internal/metrics"
	"github.com/tamzrod/pv-reporter/internal/poller"
	"github.com/tamzrod/pv-reporter/internal/scheduler"
	"github.com/tamzrod/pv-reporter/internal/weather"
	"github.com/tamzrod/pv-reporter/internal/writer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:]))
}

// run returns the process exit code: 0 on interrupt, 1 on any
// configuration or initialization failure.
func run(ctx context.Context, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: reporter <config.yaml>")
		return 1
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		return 1
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "timezone %q: %v\n", cfg.Schedule.Timezone, err)
		return 1
	}
	localNow := func() time.Time { return time.Now().In(loc) }

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}, loc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup failed: %v\n", err)
		return 1
	}

	// --------------------
	// Metrics (optional listener)
	// --------------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := metrics.New(reg)
	if err != nil {
		logger.WithError(err).Error("metrics setup failed")
		return 1
	}
	if cfg.Metrics.Listen != "" {
		metrics.Serve(ctx, cfg.Metrics.Listen, reg, logger)
	}

	// --------------------
	// Sinks
	// --------------------

	w, err := writer.Build(cfg, logger, m)
	if err != nil {
		logger.WithError(err).Error("writer build failed")
		return 1
	}
	defer func() {
		if err := w.Close(); err != nil {
			logger.WithError(err).Warn("writer close failed")
		}
	}()

	var enricher scheduler.Weather
	if cfg.WeatherEnabled() {
		wc, err := weather.NewClient(weather.Config{
			APIKey:    cfg.Weather.APIKey,
			BaseURL:   cfg.Weather.BaseURL,
			Latitude:  *cfg.Weather.Latitude,
			Longitude: *cfg.Weather.Longitude,
			Timeout:   time.Duration(cfg.Weather.TimeoutMs) * time.Millisecond,
		})
		if err != nil {
			logger.WithError(err).Error("weather client failed")
			return 1
		}
		enricher = weather.NewEnricher(wc)
	}

	// --------------------
	// Per-device pollers, in configured order
	// --------------------

	devices := make([]*scheduler.Device, 0, len(cfg.Devices))
	for _, d := range cfg.Devices {
		p, err := poller.Build(cfg.Serial, d, localNow)
		if err != nil {
			logger.WithError(err).WithField("device", d.Name).Error("poller build failed")
			return 1
		}
		devices = append(devices, &scheduler.Device{
			Source: p,
			Target: d.SystemID,
			Status: w.StatusWriter(d.Name),
		})
	}

	start, stopHour := cfg.Schedule.Hours()
	s, err := scheduler.New(
		scheduler.Config{
			Window:       scheduler.Window{Start: start, Stop: stopHour},
			Location:     loc,
			RetryDelay:   time.Duration(cfg.Schedule.RetryDelayS) * time.Second,
			PartialDelay: time.Duration(cfg.Schedule.PartialDelayS) * time.Second,
			DailyOutput:  cfg.PVOutput.DailyOutput(),
		},
		devices, w, enricher,
		scheduler.WithClock(localNow),
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(m),
	)
	if err != nil {
		logger.WithError(err).Error("scheduler build failed")
		return 1
	}

	logger.WithFields(logrus.Fields{
		"devices":  len(devices),
		"window":   fmt.Sprintf("%02d:00-%02d:00", start, stopHour),
		"timezone": loc.String(),
		"weather":  cfg.WeatherEnabled(),
		"mqtt":     cfg.MQTT.Broker != "",
	}).Info("reporter started")

	// --------------------
	// Block until interrupted
	// --------------------

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("scheduler stopped")
		return 1
	}
	logger.Info("exiting by user request")
	return 0
}
