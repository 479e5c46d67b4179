package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location relative to the server.
const ConfigPath = "config.yaml"

// MinioConfig holds object storage settings for image blobs.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"useSSL"`
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseURL"`
	LogLevel    string `yaml:"logLevel"`

	// TrustedProxies lists CIDRs/IPs whose forwarded headers are
	// honored when resolving client IPs for rate limiting.
	TrustedProxies []string `yaml:"trustedProxies"`

	// Sessions: jwtSecret takes precedence, redisAddr is the
	// alternative. Both empty disables session tokens.
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	JWTSecret     string `yaml:"jwtSecret"`
	SessionTTL    string `yaml:"sessionTTL"`

	// Image storage: minio when configured, local uploadDir otherwise.
	UploadDir string      `yaml:"uploadDir"`
	Minio     MinioConfig `yaml:"minio"`

	// Optional AMQP mirror of the broadcast channel.
	AMQPURL      string `yaml:"amqpURL"`
	AMQPExchange string `yaml:"amqpExchange"`

	// Optional rate limit on register/login, per client IP.
	AuthRateLimit  int    `yaml:"authRateLimit"`
	AuthRateWindow string `yaml:"authRateWindow"`

	ValidateParticipants bool `yaml:"validateParticipants"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.Minio.Endpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.Minio.SecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.Minio.Bucket = v
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if _, err := ParseSessionTTL(cfg.SessionTTL); err != nil {
		return err
	}
	if _, err := ParseAuthRateWindow(cfg.AuthRateWindow); err != nil {
		return err
	}
	return nil
}

// ParseSessionTTL parses the sessionTTL duration, defaulting to 24h.
func ParseSessionTTL(raw string) (time.Duration, error) {
	if raw == "" {
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: invalid sessionTTL %q", raw)
	}
	return d, nil
}

// ParseAuthRateWindow parses the authRateWindow duration, defaulting to 1m.
func ParseAuthRateWindow(raw string) (time.Duration, error) {
	if raw == "" {
		return time.Minute, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: invalid authRateWindow %q", raw)
	}
	return d, nil
}
