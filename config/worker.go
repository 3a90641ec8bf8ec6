package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// WorkerPoolConfig defines configuration for the processing worker pool
type WorkerPoolConfig struct {
	Concurrency        int    `yaml:"concurrency"`          // Number of concurrent workers
	PollTimeout        string `yaml:"poll_timeout"`         // Max blocking wait per queue poll
	ConsumerRetryDelay string `yaml:"consumer_retry_delay"` // Delay when the consumer errors
	ProcessTimeout     string `yaml:"process_timeout"`      // Timeout for processing a single job
}

// SetDefaults sets reasonable default values for the worker pool configuration
func (c *WorkerPoolConfig) SetDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
		fmt.Printf("Warning: worker.concurrency not set or invalid, defaulting to %d\n", c.Concurrency)
	}
	if c.PollTimeout == "" {
		c.PollTimeout = "2s"
		fmt.Printf("Warning: worker.poll_timeout not set, defaulting to %s\n", c.PollTimeout)
	}
	if c.ConsumerRetryDelay == "" {
		c.ConsumerRetryDelay = "5s"
		fmt.Printf("Warning: worker.consumer_retry_delay not set, defaulting to %s\n", c.ConsumerRetryDelay)
	}
	if c.ProcessTimeout == "" {
		c.ProcessTimeout = "30s"
		fmt.Printf("Warning: worker.process_timeout not set, defaulting to %s\n", c.ProcessTimeout)
	}
}

// WorkerConfig defines all configuration required by the processing worker service
type WorkerConfig struct {
	Database DatabaseConfig   `yaml:"database"`
	Queue    QueueConfig      `yaml:"queue"`
	Worker   WorkerPoolConfig `yaml:"worker"`

	// Business rule: maximum delivery attempts before a job is dead-lettered
	MaxJobRetries int `yaml:"max_job_retries"`
}

// LoadWorkerConfig loads the worker configuration from the specified YAML file path
func LoadWorkerConfig(path string) (*WorkerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read worker config file '%s': %w", path, err)
	}

	var cfg WorkerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse worker YAML config file: %w", err)
	}

	cfg.Database.SetDefaults()
	cfg.Queue.SetDefaults()
	cfg.Worker.SetDefaults()

	if cfg.MaxJobRetries <= 0 {
		cfg.MaxJobRetries = 3
		fmt.Printf("Warning: max_job_retries not set or invalid, defaulting to %d\n", cfg.MaxJobRetries)
	}

	if err := cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("database configuration error: %w", err)
	}
	if err := cfg.Queue.Validate(); err != nil {
		return nil, fmt.Errorf("queue configuration error: %w", err)
	}

	return &cfg, nil
}
