package app

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config — общая структура настроек витрины.
// Заполняется из YAML-файла (CONFIG_PATH) и/или переменных окружения.
type Config struct {
	Env        string `yaml:"env" env:"STOREFRONT_ENV" env-default:"local"`
	StorageDSN string `yaml:"storage_dsn" env:"STOREFRONT_STORAGE_DSN"`

	HTTPServer  `yaml:"http_server"`
	Redis       `yaml:"redis"`
	Kafka       `yaml:"kafka"`
	Discounts   `yaml:"discounts"`
	Outbox      `yaml:"outbox"`
	Idempotency `yaml:"idempotency"`
}

// HTTPServer — настройки HTTP API и сервера метрик.
type HTTPServer struct {
	Addr        string        `yaml:"addr" env:"STOREFRONT_HTTP_ADDR" env-default:":8080"`
	MetricsAddr string        `yaml:"metrics_addr" env:"STOREFRONT_METRICS_ADDR" env-default:":9090"`
	Timeout     time.Duration `yaml:"timeout" env:"STOREFRONT_HTTP_TIMEOUT" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"STOREFRONT_HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// Redis — настройки подключения к Redis; пустой адрес отключает кеш каталога.
type Redis struct {
	Addr        string        `yaml:"addr" env:"STOREFRONT_REDIS_ADDR"`
	Password    string        `yaml:"password" env:"STOREFRONT_REDIS_PASSWORD"`
	DB          int           `yaml:"db" env:"STOREFRONT_REDIS_DB" env-default:"0"`
	MaxRetries  int           `yaml:"max_retries" env:"STOREFRONT_REDIS_MAX_RETRIES" env-default:"3"`
	DialTimeout time.Duration `yaml:"dial_timeout" env:"STOREFRONT_REDIS_DIAL_TIMEOUT" env-default:"5s"`
	Timeout     time.Duration `yaml:"timeout" env:"STOREFRONT_REDIS_TIMEOUT" env-default:"3s"`
}

// Kafka — настройки брокера; пустой список брокеров отключает публикацию событий.
type Kafka struct {
	Brokers []string `yaml:"brokers" env:"STOREFRONT_KAFKA_BROKERS" env-separator:","`
}

// Discounts — пороговые значения скидочных стратегий.
type Discounts struct {
	MinimumOrderPrice string `yaml:"minimum_order_price" env:"DISCOUNT_MINIMUM_ORDER_PRICE" env-default:"500.00"`
	OrderPriceRate    string `yaml:"order_price_rate" env:"DISCOUNT_ORDER_PRICE_RATE" env-default:"0.05"`
	PremiumUserRate   string `yaml:"premium_user_rate" env:"DISCOUNT_PREMIUM_USER_RATE" env-default:"0.10"`
}

// Outbox — параметры воркера публикации событий.
type Outbox struct {
	PollInterval time.Duration `yaml:"poll_interval" env:"STOREFRONT_OUTBOX_POLL_INTERVAL" env-default:"1s"`
	BatchSize    int           `yaml:"batch_size" env:"STOREFRONT_OUTBOX_BATCH_SIZE" env-default:"100"`
	MaxAttempts  int           `yaml:"max_attempts" env:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" env-default:"3"`
}

// Idempotency — параметры хранения ключей идемпотентности.
type Idempotency struct {
	TTL             time.Duration `yaml:"ttl" env:"STOREFRONT_IDEMPOTENCY_TTL" env-default:"24h"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"STOREFRONT_IDEMPOTENCY_CLEANUP_INTERVAL" env-default:"10m"`
}

// LoadConfig читает конфигурацию из файла CONFIG_PATH, если он задан,
// иначе только из переменных окружения.
func LoadConfig() (Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read config from env: %w", err)
	}
	return cfg, nil
}
