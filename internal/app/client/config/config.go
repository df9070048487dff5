package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultEnv           = "local"
	defaultConfigDir     = ".motium"

	dbFile       = "motium.db"
	tokensFile   = "tokens.json"
	deviceIDFile = "device_id"
)

// Стратегии разрешения конфликтов
const (
	StrategyNewer  = "newer"
	StrategyServer = "server"
	StrategyClient = "client"
	StrategyManual = "manual"
)

var (
	errEmptyServer     = errors.New("server_address не может быть пустым")
	errUnknownStrategy = errors.New("неизвестная стратегия конфликтов")
)

type Config struct {
	Env              string
	ServerAddress    string
	EnableTLS        bool
	ConfigDir        string
	DBPath           string
	TokenPath        string
	DeviceIDPath     string
	LogFile          string
	SyncInterval     time.Duration
	ConflictStrategy string
	CacheTTL         time.Duration
	MaxSyncAttempts  int
	RetryBase        time.Duration
	SyncOverlap      time.Duration
	BatchSize        int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", defaultEnv)
	v.SetDefault("server_address", defaultServerAddress)
	v.SetDefault("enable_tls", false)
	v.SetDefault("config_dir", "")
	v.SetDefault("sync_interval_seconds", 30)
	v.SetDefault("conflict_strategy", StrategyNewer)
	v.SetDefault("cache_ttl_seconds", 300)
	v.SetDefault("max_sync_attempts", 8)
	v.SetDefault("retry_base_seconds", 5)
	v.SetDefault("sync_overlap_seconds", 5)
	v.SetDefault("sync_batch_size", 50)
	v.SetDefault("log_file", "")
}

// MustLoad загружает конфигурацию клиента: файл (если указан), .env и переменные окружения
func MustLoad(configFile string) *Config {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			panic(fmt.Sprintf("Ошибка чтения конфигурации %s: %v", configFile, err))
		}
	}

	cfg, err := Load(v)
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}

	if err := os.MkdirAll(cfg.ConfigDir, 0o700); err != nil {
		panic(fmt.Sprintf("Ошибка создания директории конфигурации: %v", err))
	}

	return cfg
}

// Load собирает конфигурацию из viper без побочных эффектов на файловую систему
func Load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	setDefaults(v)

	configDir := v.GetString("config_dir")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}
		configDir = filepath.Join(homeDir, defaultConfigDir)
	}

	cfg := &Config{
		Env:              v.GetString("app_env"),
		ServerAddress:    v.GetString("server_address"),
		EnableTLS:        v.GetBool("enable_tls"),
		ConfigDir:        configDir,
		DBPath:           filepath.Join(configDir, dbFile),
		TokenPath:        filepath.Join(configDir, tokensFile),
		DeviceIDPath:     filepath.Join(configDir, deviceIDFile),
		LogFile:          v.GetString("log_file"),
		SyncInterval:     time.Duration(v.GetInt("sync_interval_seconds")) * time.Second,
		ConflictStrategy: v.GetString("conflict_strategy"),
		CacheTTL:         time.Duration(v.GetInt("cache_ttl_seconds")) * time.Second,
		MaxSyncAttempts:  v.GetInt("max_sync_attempts"),
		RetryBase:        time.Duration(v.GetInt("retry_base_seconds")) * time.Second,
		SyncOverlap:      time.Duration(v.GetInt("sync_overlap_seconds")) * time.Second,
		BatchSize:        v.GetInt("sync_batch_size"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return errEmptyServer
	}
	switch c.ConflictStrategy {
	case StrategyNewer, StrategyServer, StrategyClient, StrategyManual:
	default:
		return fmt.Errorf("%w: %q", errUnknownStrategy, c.ConflictStrategy)
	}
	return nil
}

// BaseURL возвращает адрес сервера со схемой
func (c *Config) BaseURL() string {
	if c.EnableTLS {
		return "https://" + c.ServerAddress
	}
	return "http://" + c.ServerAddress
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
