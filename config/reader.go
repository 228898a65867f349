package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
}

type ConfigSchema struct {
	Databases struct {
		Driver   string     `yaml:"driver"` // postgres | sqlite
		Path     string     `yaml:"path"`   // только для sqlite
		Master   DBConfig   `yaml:"master"`
		Replicas []DBConfig `yaml:"replicas"`
	} `yaml:"db"`
	Backend struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"backend"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	RabbitMQ struct {
		Enabled  bool   `yaml:"enabled"`
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	Auth struct {
		Mode      string `yaml:"mode"` // jwt | token
		Secret    string `yaml:"secret"`
		Algorithm string `yaml:"algorithm"`
	} `yaml:"auth"`
	Chat ChatConfig `yaml:"chat"`
}

// ChatConfig - настройки чата и политики хранения сообщений
type ChatConfig struct {
	RetentionDays   int           `yaml:"retention_days"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	// CleanupHour - если задан, очистка запускается раз в сутки в этот час (UTC)
	CleanupHour    *int          `yaml:"cleanup_hour"`
	CleanupLockTTL time.Duration `yaml:"cleanup_lock_ttl"`
	HistoryLimit   int           `yaml:"history_limit"`
	SearchLimit    int           `yaml:"search_limit"`
}

// RetentionWindow возвращает окно хранения сообщений
func (c ChatConfig) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c *ConfigSchema) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Backend.Host, c.Backend.Port)
}

func defaults() *ConfigSchema {
	conf := &ConfigSchema{}
	conf.Databases.Driver = "postgres"
	conf.Databases.Master.Port = 5432
	conf.Backend.Port = 8080
	conf.Redis.Port = 6379
	conf.RabbitMQ.Exchange = "chat_events"
	conf.Auth.Mode = "jwt"
	conf.Auth.Algorithm = "HS256"
	conf.Chat = ChatConfig{
		RetentionDays:   30,
		CleanupInterval: time.Hour,
		CleanupLockTTL:  5 * time.Minute,
		HistoryLimit:    50,
		SearchLimit:     50,
	}
	return conf
}

// LoadConfig читает YAML, затем .env (если есть) и переменные окружения
func LoadConfig(filePath string) (*ConfigSchema, error) {
	conf := defaults()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filePath, err)
	}

	// .env не обязателен
	_ = godotenv.Load()
	if err = applyEnv(conf); err != nil {
		return nil, err
	}

	if err = conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func applyEnv(conf *ConfigSchema) error {
	if v, ok := os.LookupEnv("DB_HOST"); ok {
		conf.Databases.Master.Host = v
	}
	if v, ok := os.LookupEnv("DB_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT: %w", err)
		}
		conf.Databases.Master.Port = port
	}
	if v, ok := os.LookupEnv("DB_USER"); ok {
		conf.Databases.Master.User = v
	}
	if v, ok := os.LookupEnv("DB_PASSWORD"); ok {
		conf.Databases.Master.Password = v
	}
	if v, ok := os.LookupEnv("DB_NAME"); ok {
		conf.Databases.Master.DBName = v
	}
	if v, ok := os.LookupEnv("REDIS_HOST"); ok {
		conf.Redis.Host = v
	}
	if v, ok := os.LookupEnv("REDIS_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		conf.Redis.Port = port
	}
	if v, ok := os.LookupEnv("RABBITMQ_URL"); ok {
		conf.RabbitMQ.URL = v
	}
	if v, ok := os.LookupEnv("JWT_SECRET"); ok {
		conf.Auth.Secret = v
	}
	if v, ok := os.LookupEnv("CHAT_RETENTION_DAYS"); ok {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CHAT_RETENTION_DAYS: %w", err)
		}
		conf.Chat.RetentionDays = days
	}
	return nil
}

func (c *ConfigSchema) Validate() error {
	switch c.Databases.Driver {
	case "postgres":
		if c.Databases.Master.Host == "" {
			return fmt.Errorf("master database configuration is missing")
		}
	case "sqlite":
		if c.Databases.Path == "" {
			return fmt.Errorf("sqlite path is missing")
		}
	default:
		return fmt.Errorf("unsupported db driver %q", c.Databases.Driver)
	}

	switch c.Auth.Mode {
	case "jwt":
		if c.Auth.Secret == "" {
			return fmt.Errorf("auth secret is required for jwt mode")
		}
	case "token":
	default:
		return fmt.Errorf("unsupported auth mode %q", c.Auth.Mode)
	}

	if c.Chat.RetentionDays < 1 {
		return fmt.Errorf("chat.retention_days must be >= 1, got %d", c.Chat.RetentionDays)
	}
	if c.Chat.CleanupInterval <= 0 {
		return fmt.Errorf("chat.cleanup_interval must be positive")
	}
	if h := c.Chat.CleanupHour; h != nil && (*h < 0 || *h > 23) {
		return fmt.Errorf("chat.cleanup_hour must be in [0,23], got %d", *h)
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = 50
	}
	if c.Chat.SearchLimit <= 0 {
		c.Chat.SearchLimit = 50
	}
	return nil
}
