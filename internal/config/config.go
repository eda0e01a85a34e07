// Package config предоставляет структуры и функции для загрузки конфигурации
// портала и планировщика из YAML-файла с переопределением через переменные окружения.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env                     string   `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string   `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string   `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	AdminEmails             []string `yaml:"admin_emails" env:"ADMIN_EMAILS" env-separator:","`
	HTTPServer              `yaml:"http_server"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	Identity                `yaml:"identity"`
	Predictor               `yaml:"predictor"`
	RateLimit               `yaml:"rate_limit"`
	CORS                    `yaml:"cors"`
	Sweeper                 `yaml:"sweeper"`
	Cache                   `yaml:"cache"`
	SMTP                    `yaml:"smtp"`
	Notifier                `yaml:"notifier"`
}

// HTTPServer настройки HTTP-сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// RedisConnection настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"address" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	MaxRetries   int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeout" env:"REDIS_TIMEOUT" env-default:"2s"`
}

// RabbitMQ настройки брокера для событий о планах.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env:"RABBITMQ_MAX_RETRIES" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env:"RABBITMQ_RETRY_DELAY" env-default:"2s"`
}

// Identity настройки проверки токенов провайдера идентификации.
type Identity struct {
	JWKSURL     string        `yaml:"jwks_url" env:"IDENTITY_JWKS_URL"`
	Issuer      string        `yaml:"issuer" env:"IDENTITY_ISSUER"`
	Audience    string        `yaml:"audience" env:"IDENTITY_AUDIENCE"`
	HMACSecret  string        `yaml:"hmac_secret" env:"IDENTITY_HMAC_SECRET"`
	JWKSRefresh time.Duration `yaml:"jwks_refresh" env:"IDENTITY_JWKS_REFRESH" env-default:"5m"`
}

// Predictor настройки внешнего сервиса предсказаний.
type Predictor struct {
	BaseURL        string        `yaml:"base_url" env:"PREDICTOR_BASE_URL" env-default:"http://localhost:5959"`
	Timeout        time.Duration `yaml:"timeout" env:"PREDICTOR_TIMEOUT" env-default:"15s"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" env:"PREDICTOR_MAX_UPLOAD_BYTES" env-default:"10485760"`
}

// RateLimit ограничение запросов к прокси предсказаний на одного пользователя.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env:"RATE_LIMIT_RPS" env-default:"2"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"5"`
}

// CORS разрешённые источники браузерных запросов.
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:","`
}

// Sweeper расписание пакетного истечения планов. Пустой MetricsAddress
// отключает отдачу метрик планировщиком.
type Sweeper struct {
	Schedule       string `yaml:"schedule" env:"SWEEPER_SCHEDULE" env-default:"@every 5m"`
	MetricsAddress string `yaml:"metrics_address" env:"SWEEPER_METRICS_ADDRESS"`
}

// Cache время жизни записей пользователей в кеше.
type Cache struct {
	UserTTL time.Duration `yaml:"user_ttl" env:"CACHE_USER_TTL" env-default:"10m"`
}

// SMTP почтовый сервер для уведомлений о планах.
type SMTP struct {
	SMTPHost    string        `yaml:"host" env:"SMTP_HOST"`
	SMTPPort    string        `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser    string        `yaml:"user" env:"SMTP_USER"`
	SMTPPass    string        `yaml:"password" env:"SMTP_PASSWORD"`
	From        string        `yaml:"from" env:"SMTP_FROM"`
	SMTPTimeout time.Duration `yaml:"timeout" env:"SMTP_TIMEOUT" env-default:"10s"`
}

// Notifier настройки обработчика событий о планах.
type Notifier struct {
	PortalURL   string `yaml:"portal_url" env:"NOTIFIER_PORTAL_URL" env-default:"http://localhost:3000"`
	Concurrency int    `yaml:"concurrency" env:"NOTIFIER_CONCURRENCY" env-default:"10"`
}

// Load читает конфиг по пути path и проверяет обязательные поля.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	if path == "" {
		return nil, fmt.Errorf("%s: CONFIG_PATH is not set", op)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cfg.AdminEmails = normalizeEmails(cfg.AdminEmails)
	return &cfg, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.JWKSURL == "" && c.HMACSecret == "" {
		return errors.New("identity: either jwks_url or hmac_secret must be set")
	}
	if c.RPS <= 0 || c.Burst <= 0 {
		return errors.New("rate_limit: rps and burst must be positive")
	}
	return nil
}

func normalizeEmails(in []string) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// String возвращает конфиг без секретов, для логирования при старте.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"HTTPServer: %s (timeout %s, idle %s)\n"+
			"Redis: %s db=%d\n"+
			"RabbitMQ configured: %t\n"+
			"Identity: jwks=%q issuer=%q audience=%q hmac=%t\n"+
			"Admins: %d\n"+
			"Predictor: %s (timeout %s)\n"+
			"Sweeper schedule: %s\n"+
			"SMTP: %s:%s\n",
		c.Env,
		c.AddressHTTP, c.TimeoutHTTP, c.IdleTimeout,
		c.AddressRedis, c.DB,
		c.RabbitMQURL != "",
		c.JWKSURL, c.Issuer, c.Audience, c.HMACSecret != "",
		len(c.AdminEmails),
		c.BaseURL, c.Predictor.Timeout,
		c.Schedule,
		c.SMTPHost, c.SMTPPort,
	)
}
