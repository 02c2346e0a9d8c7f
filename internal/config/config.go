package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Source   SourceConfig   `yaml:"source"`
	Storage  StorageConfig  `yaml:"storage"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Server   ServerConfig   `yaml:"server"`
	Sync     SyncConfig     `yaml:"sync"`
	LogLevel string         `yaml:"log_level"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type SourceConfig struct {
	BaseURL  string        `yaml:"base_url"`
	FolderID string        `yaml:"folder_id"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout"`
	Retry    RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type StorageConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	Bucket        string `yaml:"bucket"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	PublicBaseURL string `yaml:"public_base_url"`
	UsePathStyle  bool   `yaml:"use_path_style"`
}

type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type ServerConfig struct {
	Addr       string `yaml:"addr"`
	SyncSecret string `yaml:"sync_secret"`
}

type SyncConfig struct {
	Interval          time.Duration `yaml:"interval"`
	FetchConcurrency  int           `yaml:"fetch_concurrency"`
	AvatarConcurrency int           `yaml:"avatar_concurrency"`
	AvatarURLTTL      time.Duration `yaml:"avatar_url_ttl"`
	RunTimeout        time.Duration `yaml:"run_timeout"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Source.Timeout == 0 {
		c.Source.Timeout = 30 * time.Second
	}
	if c.Source.Retry.MaxAttempts == 0 {
		c.Source.Retry.MaxAttempts = 3
	}
	if c.Source.Retry.InitialBackoff == 0 {
		c.Source.Retry.InitialBackoff = 1 * time.Second
	}
	if c.Source.Retry.MaxBackoff == 0 {
		c.Source.Retry.MaxBackoff = 30 * time.Second
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "docs_syncer"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "articles"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "site_articles"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 15 * time.Minute
	}
	if c.Sync.FetchConcurrency == 0 {
		c.Sync.FetchConcurrency = 5
	}
	if c.Sync.AvatarConcurrency == 0 {
		c.Sync.AvatarConcurrency = 10
	}
	if c.Sync.AvatarURLTTL == 0 {
		c.Sync.AvatarURLTTL = 7 * 24 * time.Hour
	}
	if c.Sync.RunTimeout == 0 {
		c.Sync.RunTimeout = 5 * time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
