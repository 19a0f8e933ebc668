// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env             string `yaml:"env" env:"ENV" env-default:"local"`
	Storage         `yaml:"storage"`
	RedisConnection `yaml:"redis_connection"`
	HTTPServer      `yaml:"http_server"`
	JWTToken        `yaml:"jwttoken"`
	Webhooks        `yaml:"webhooks"`
	Ledger          `yaml:"ledger"`
	RabbitMQ        `yaml:"rabbitmq"`
}

// Storage структура для выбора и настройки хранилища
type Storage struct {
	Driver         string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"mongo"` // mongo, postgres или memory
	MongoURI       string `yaml:"mongo_uri" env:"DATABASE_URI"`
	MongoDatabase  string `yaml:"mongo_database" env:"DATABASE_NAME"`
	NoTransactions bool   `yaml:"no_transactions"` // для одиночного mongod без replica set
	PostgresDSN    string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	MigrationsPath string `yaml:"migrations_path" env-default:"./migrations"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"5"`
	RateBurst   int           `yaml:"rate_burst" env-default:"10"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDR"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
	UserTTL      time.Duration `yaml:"user_ttl" env-default:"10m"` // срок жизни теневой копии пользователя
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"SECRET"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"168h"`
}

// Webhooks секреты, которыми площадки и платёжный источник подписывают запросы
type Webhooks struct {
	DBLToken  string `yaml:"dbl_token" env:"DBL_TOKEN"`
	KofiToken string `yaml:"kofi_token" env:"KOFI_TOKEN"`
}

// Ledger параметры начисления голосов и жизненного цикла подписок
type Ledger struct {
	XPPerVote           int64         `yaml:"xp_per_vote" env-default:"750"`
	ExpirySweepInterval time.Duration `yaml:"expiry_sweep_interval" env-default:"1h"`
}

// RabbitMQ настройки публикации доменных событий; пустой URL отключает публикацию
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
	Exchange           string        `yaml:"exchange" env-default:"thomas.events"`
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// Load читает конфиг из файла и проверяет обязательные поля.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Driver {
	case "mongo":
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return fmt.Errorf("storage: mongo_uri and mongo_database are required for driver mongo")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("storage: postgres_dsn is required for driver postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Driver)
	}
	if c.JWTSecretKey == "" {
		return fmt.Errorf("jwttoken: jwt_secret_key is required")
	}
	if c.XPPerVote <= 0 {
		return fmt.Errorf("ledger: xp_per_vote must be positive")
	}
	if c.UserTTL <= 0 {
		return fmt.Errorf("redis_connection: user_ttl must be positive")
	}
	if c.DBLToken == "" {
		return fmt.Errorf("webhooks: dbl_token is required")
	}
	if c.KofiToken == "" {
		return fmt.Errorf("webhooks: kofi_token is required")
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Storage:\n"+
			"  Driver: %s\n"+
			"  MongoDatabase: %s\n"+
			"  NoTransactions: %t\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"  UserTTL: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWTToken:\n"+
			"  TokenTTL: %s\n"+
			"Ledger:\n"+
			"  XPPerVote: %d\n"+
			"  ExpirySweepInterval: %s\n",
		c.Env,
		c.Driver,
		c.MongoDatabase,
		c.NoTransactions,
		c.AddressRedis,
		c.DB,
		c.UserTTL,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.TokenTTL,
		c.XPPerVote,
		c.ExpirySweepInterval,
	)
}
