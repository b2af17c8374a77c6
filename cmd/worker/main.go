// Worker consumes bank events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, TELEMETRY_KAFKA_TOPIC, KAFKA_GROUP_ID and LOKI_URL.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"smartbanker/backend/internal/config"
	"smartbanker/backend/internal/logging"
	"smartbanker/backend/internal/telemetry/loki"
)

const pushTimeout = 10 * time.Second

var version = "dev"

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type eventPusher interface {
	PushEventJSON(ctx context.Context, raw []byte) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := logging.SetDefault("smartbanker-worker", version, cfg.LogFormat)

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		logger.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}
	if cfg.LokiURL == "" {
		logger.Error("LOKI_URL is required")
		os.Exit(1)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker consuming", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID, "loki", cfg.LokiURL)
	pushed := consume(ctx, reader, loki.NewClient(cfg.LokiURL))
	logger.Info("worker stopped", "pushed", pushed)
}

// consume forwards every message to pusher until ctx ends and returns how many were pushed.
// Read and push failures are logged and skipped.
func consume(ctx context.Context, reader messageReader, pusher eventPusher) int {
	pushed := 0
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return pushed
			}
			slog.WarnContext(ctx, "kafka read failed", "error", err)
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := pusher.PushEventJSON(pushCtx, msg.Value); err != nil {
			slog.WarnContext(ctx, "loki push failed", "offset", msg.Offset, "error", err)
		} else {
			pushed++
		}
		cancel()
	}
}
