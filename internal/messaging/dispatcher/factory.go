package dispatcher

import (
	"context"
	"fmt"
	"log"

	"paflow/config"
)

// New creates a Dispatcher for the configured queue backend.
func New(ctx context.Context, cfg config.QueueConfig, logger *log.Logger) (Dispatcher, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		return NewRedisDispatcher(ctx, cfg, logger)
	case config.BackendKafka:
		return NewKafkaDispatcher(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported queue backend: %s", cfg.Backend)
	}
}
