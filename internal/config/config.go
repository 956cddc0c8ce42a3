package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Redis    RedisConfig    `json:"redis" yaml:"redis"`
	NATS     NATSConfig     `json:"nats" yaml:"nats"`
	Auth     AuthConfig     `json:"auth" yaml:"auth"`
}

type ServerConfig struct {
	BindAddr string `json:"bindAddr" yaml:"bindAddr"`
	Mode     string `json:"mode" yaml:"mode"` // gin mode: debug | release | test
}

type DatabaseConfig struct {
	Driver       string `json:"driver" yaml:"driver"` // postgres (lib/pq) | pgx
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	User         string `json:"user" yaml:"user"`
	Password     string `json:"password" yaml:"password"`
	DBName       string `json:"dbname" yaml:"dbname"`
	SSLMode      string `json:"sslmode" yaml:"sslmode"`
	QueryTimeout string `json:"queryTimeout" yaml:"queryTimeout"` // e.g. "5s"
	AutoMigrate  bool   `json:"autoMigrate" yaml:"autoMigrate"`
}

// DSN renders the key/value connection string understood by both lib/pq and pgx.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type LoggingConfig struct {
	Level   string `json:"level" yaml:"level"`
	File    string `json:"file" yaml:"file"` // optional rotating log file
	Console bool   `json:"console" yaml:"console"`
}

type RedisConfig struct {
	Addr         string `json:"addr" yaml:"addr"`
	Password     string `json:"password" yaml:"password"`
	DB           int    `json:"db" yaml:"db"`
	NameCacheTTL string `json:"nameCacheTTL" yaml:"nameCacheTTL"` // e.g. "5m"
}

type NATSConfig struct {
	URL           string `json:"url" yaml:"url"`
	SubjectPrefix string `json:"subjectPrefix" yaml:"subjectPrefix"`
}

type AuthConfig struct {
	UserHeader string            `json:"userHeader" yaml:"userHeader"`
	Tokens     map[string]string `json:"tokens" yaml:"tokens"` // bearer token -> user id
}

// Load builds the config from env defaults, then overlays the file given by -f.
func Load() (*Config, error) {
	configFile := flag.String("f", "", "Path to configuration file (.json, .yaml or .yml)")
	flag.Parse()
	return LoadFile(*configFile)
}

// LoadFile is Load without flag parsing. An empty path uses env and defaults only.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			BindAddr: getEnv("SERVER_BIND_ADDR", "0.0.0.0:8080"),
			Mode:     getEnv("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "admin"),
			Password:     getEnv("DB_PASSWORD", "password"),
			DBName:       getEnv("DB_NAME", "alertdash"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			QueryTimeout: getEnv("DB_QUERY_TIMEOUT", "5s"),
			AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Logging: LoggingConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			File:    getEnv("LOG_FILE", ""),
			Console: getEnvBool("LOG_CONSOLE", false),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", ""),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			NameCacheTTL: getEnv("REDIS_NAME_CACHE_TTL", "5m"),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "alertdash.alerts"),
		},
		Auth: AuthConfig{
			UserHeader: getEnv("AUTH_USER_HEADER", "X-User-ID"),
		},
	}

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			log.Err(err).Msg("load config file")
			return nil, err
		}
	}

	// fill reasonable defaults when fields omitted in file
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "0.0.0.0:8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.QueryTimeout == "" {
		cfg.Database.QueryTimeout = "5s"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Redis.NameCacheTTL == "" {
		cfg.Redis.NameCacheTTL = "5m"
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "alertdash.alerts"
	}
	if cfg.Auth.UserHeader == "" {
		cfg.Auth.UserHeader = "X-User-ID"
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return nil
}

// ParseDuration returns d when s is empty or malformed.
func ParseDuration(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
