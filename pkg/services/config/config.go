// Package config loads the service configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type BlobConfig struct {
	// Mode selects the artifact store: "memory" for single-node local runs,
	// "s3" for real deployments.
	Mode      string        `mapstructure:"mode"`
	Bucket    string        `mapstructure:"bucket"`
	Prefix    string        `mapstructure:"prefix"`
	Region    string        `mapstructure:"region"`
	URLExpiry time.Duration `mapstructure:"url_expiry"`
}

type Config struct {
	Addr           string        `mapstructure:"addr"`
	DBPath         string        `mapstructure:"db_path"`
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	JobDeadline    time.Duration `mapstructure:"job_deadline"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	SweepGrace     int           `mapstructure:"sweep_grace"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	Blob           BlobConfig    `mapstructure:"blob"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "advisor-hub.db")
	v.SetDefault("workers", 4)
	v.SetDefault("queue_size", 256)
	v.SetDefault("max_attempts", 3)
	v.SetDefault("job_deadline", 2*time.Minute)
	v.SetDefault("sweep_interval", 30*time.Second)
	v.SetDefault("sweep_grace", 2)
	v.SetDefault("max_upload_bytes", 20*1024*1024)
	v.SetDefault("blob.mode", "memory")
	v.SetDefault("blob.url_expiry", 15*time.Minute)
}

// Load reads the config file at path when it is non-empty; environment
// variables prefixed with ADVISOR_HUB_ override file values either way.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ADVISOR_HUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Blob.Mode != "memory" && cfg.Blob.Mode != "s3" {
		return nil, fmt.Errorf("unsupported blob mode %q", cfg.Blob.Mode)
	}
	if cfg.Blob.Mode == "s3" && cfg.Blob.Bucket == "" {
		return nil, fmt.Errorf("blob mode s3 requires a bucket")
	}
	return &cfg, nil
}
