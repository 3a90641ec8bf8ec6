package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// HttpServerConfig defines HTTP server configuration
type HttpServerConfig struct {
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// ApiConfig defines all configuration required by the API service
type ApiConfig struct {
	HttpListenAddr string `yaml:"http_listen_addr"`

	Database   DatabaseConfig   `yaml:"database"`
	Queue      QueueConfig      `yaml:"queue"`
	HttpServer HttpServerConfig `yaml:"http_server"`
}

// LoadApiConfig loads the API service configuration from the specified YAML file path
func LoadApiConfig(path string) (*ApiConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read API config file '%s': %w", path, err)
	}

	var cfg ApiConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse API YAML config file: %w", err)
	}

	cfg.Database.SetDefaults()
	cfg.Queue.SetDefaults()

	if cfg.HttpListenAddr == "" {
		return nil, fmt.Errorf("configuration error: http_listen_addr must be configured")
	}
	if err := cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("database configuration error: %w", err)
	}
	if err := cfg.Queue.Validate(); err != nil {
		return nil, fmt.Errorf("queue configuration error: %w", err)
	}

	return &cfg, nil
}
