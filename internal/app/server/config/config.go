package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = ".env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	// секрет для локального запуска, в prod обязателен JWT_SECRET
	devSecret = "motium-dev-secret"
)

type Config struct {
	Env    string
	DB     db
	Server server
	Logger logger
	Auth   auth
	Sync   sync
}

type db struct {
	DatabaseURI string `env:"DATABASE_URI"`
	Migrations  string `env:"MIGRATIONS_PATH"`
}

type server struct {
	RunAddress string `env:"RUN_ADDRESS"`
}

type logger struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type auth struct {
	Secret     string        `env:"JWT_SECRET"`
	AccessTTL  time.Duration `env:"ACCESS_TOKEN_TTL"`
	RefreshTTL time.Duration `env:"REFRESH_TOKEN_TTL"`
}

type sync struct {
	BatchSize  int `env:"SYNC_BATCH_SIZE"`
	MaxRecords int `env:"SYNC_MAX_RECORDS"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("run_address", ":8080")
	v.SetDefault("migrations_path", "migrations")
	v.SetDefault("log_level", "info")
	v.SetDefault("access_token_ttl", "15m")
	v.SetDefault("refresh_token_ttl", "720h")
	v.SetDefault("sync_batch_size", 100)
	v.SetDefault("sync_max_records", 1000)
}

// MustLoad читает .env (если есть) и переменные окружения.
// Завершает процесс, если в prod не задан секрет.
func MustLoad() *Config {
	if err := godotenv.Load(envPath); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg, err := load(viper.New())
	if err != nil {
		log.Fatalln(err)
	}
	return cfg
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Env: v.GetString("app_env"),
		DB: db{
			DatabaseURI: v.GetString("database_uri"),
			Migrations:  v.GetString("migrations_path"),
		},
		Server: server{RunAddress: v.GetString("run_address")},
		Logger: logger{LogLevel: v.GetString("log_level")},
		Auth: auth{
			Secret:     v.GetString("jwt_secret"),
			AccessTTL:  v.GetDuration("access_token_ttl"),
			RefreshTTL: v.GetDuration("refresh_token_ttl"),
		},
		Sync: sync{
			BatchSize:  v.GetInt("sync_batch_size"),
			MaxRecords: v.GetInt("sync_max_records"),
		},
	}

	if cfg.Auth.Secret == "" {
		if cfg.Env == EnvProd {
			return nil, errMissingSecret
		}
		cfg.Auth.Secret = devSecret
	}
	if cfg.DB.DatabaseURI == "" {
		return nil, errMissingDatabase
	}

	return cfg, nil
}
