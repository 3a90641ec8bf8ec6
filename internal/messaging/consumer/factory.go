package consumer

import (
	"context"
	"fmt"
	"log"
	"time"

	"paflow/config"
)

// New creates a Consumer for the configured queue backend.
func New(ctx context.Context, cfg config.QueueConfig, pollTimeout time.Duration, logger *log.Logger) (Consumer, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		return NewRedisConsumer(ctx, cfg, pollTimeout, logger)
	case config.BackendKafka:
		return NewKafkaConsumer(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported queue backend: %s", cfg.Backend)
	}
}
