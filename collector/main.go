package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"geckoclient/climate_monitor/climate"
	"geckoclient/climate_monitor/config"
	"geckoclient/climate_monitor/mqtt"
	"geckoclient/climate_monitor/sensor"
	"geckoclient/climate_monitor/storage"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.SlogLevel()
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, storage.Options{
		Driver:     cfg.StorageDriver,
		URI:        cfg.ConnectionString,
		Database:   cfg.Database,
		Collection: cfg.Collection,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		logger.Error("failed to connect to the database", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("database connected successfully", "driver", cfg.StorageDriver)

	board := sensor.NewBoard()
	defer board.Close()

	reader, err := sensor.New(cfg.SensorType, cfg.SensorPin, cfg.HumidityOffset, board)
	if err != nil {
		logger.Error("failed to open sensor", "type", cfg.SensorType, "pin", cfg.SensorPin, "error", err)
		os.Exit(1)
	}

	collector := &climate.Collector{
		Sensor:   reader,
		Store:    store,
		DeviceID: cfg.DeviceID,
		Metadata: cfg.Metadata(),
		Interval: cfg.PollInterval,
		Window:   cfg.BucketWindow,
		Logger:   logger.With("device_id", cfg.DeviceID),
	}

	if cfg.StatusLEDPin != "" {
		led, err := sensor.NewStatusLED(board, cfg.StatusLEDPin)
		if err != nil {
			logger.Warn("status led disabled", "pin", cfg.StatusLEDPin, "error", err)
		} else {
			defer led.Close()
			collector.Indicator = led
		}
	}

	if cfg.MQTTBroker != "" {
		pub, err := mqtt.NewPublisher(mqtt.MQTTConfig{
			BrokerURL:     cfg.MQTTBroker,
			ClientID:      cfg.MQTTClientID,
			TopicPrefix:   cfg.MQTTTopicPrefix,
			AutoReconnect: true,
		}, logger)
		if err != nil {
			logger.Warn("mqtt publishing disabled", "error", err)
		} else {
			defer pub.Close()
			collector.Publisher = pub
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- collector.Run(ctx)
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("data collection failed", "error", err)
	}
	logger.Info("collector shutdown complete")
}
