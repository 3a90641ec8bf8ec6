package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"paflow/config"
	"paflow/internal/models"
)

// RedisConsumer implements the Consumer interface by blocking-popping jobs
// from the TAIL of a Redis list (BRPOP) that the dispatcher LPUSHes to,
// giving FIFO ordering. The pop is destructive, so ack(true) is a no-op;
// ack(false) pushes the raw payload back for redelivery.
type RedisConsumer struct {
	client      *redis.Client
	logger      *log.Logger
	queueName   string
	pollTimeout time.Duration
}

// NewRedisConsumer creates a RedisConsumer and verifies connectivity.
func NewRedisConsumer(ctx context.Context, cfg config.QueueConfig, pollTimeout time.Duration, logger *log.Logger) (*RedisConsumer, error) {
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opt.DialTimeout = cfg.Redis.DialTimeout
	// BRPOP holds the connection for pollTimeout; the read timeout must
	// exceed it or every poll errors out.
	opt.ReadTimeout = pollTimeout + cfg.Redis.ReadTimeout
	opt.WriteTimeout = cfg.Redis.WriteTimeout

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Printf("Redis consumer created, queue: %s, poll timeout: %s", cfg.Name, pollTimeout)

	return &RedisConsumer{
		client:      client,
		logger:      logger,
		queueName:   cfg.Name,
		pollTimeout: pollTimeout,
	}, nil
}

// Consume blocking-pops one job from the queue.
func (c *RedisConsumer) Consume(ctx context.Context) (*models.ProcessingJob, func(success bool), error) {
	res, err := c.client.BRPop(ctx, c.pollTimeout, c.queueName).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil, nil // poll timed out, no job available
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Println("Redis consumer: Context cancelled, stopping consumption.")
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("BRPOP failed: %w", err)
	}

	// BRPOP returns [key, value]
	payload := res[1]

	var job models.ProcessingJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		c.logger.Printf("Redis consumer: Failed to deserialize job, discarding: %v", err)
		return nil, nil, fmt.Errorf("job deserialization failed: %w", err)
	}

	ackCallback := func(success bool) {
		if success {
			return // pop already removed the job
		}
		pushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.client.LPush(pushCtx, c.queueName, payload).Err(); err != nil {
			c.logger.Printf("Redis consumer: Failed to re-queue job (job_uuid: %s): %v", job.JobUUID, err)
		}
	}

	return &job, ackCallback, nil
}

// Close closes the Redis connection.
func (c *RedisConsumer) Close() error {
	c.logger.Println("Closing Redis consumer...")
	return c.client.Close()
}

var _ Consumer = (*RedisConsumer)(nil)
