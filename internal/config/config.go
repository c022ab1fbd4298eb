package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"dramaforge/shared/utils"

	"github.com/kelseyhightower/envconfig"
)

// Драйверы хранилища.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config содержит конфигурацию drama-сервиса.
type Config struct {
	// Настройки сервера
	Port        string `envconfig:"SERVER_PORT" default:"8080"`
	Env         string `envconfig:"ENV" default:"production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	// Список через запятую; пустой разрешает только http://localhost:3000.
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`

	// Хранилище каталога и ассетов
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"memory"`
	CatalogPath   string `envconfig:"CATALOG_PATH" default:"catalog.yml"`
	SeedCatalog   bool   `envconfig:"SEED_CATALOG" default:"true"`

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBName        string        `envconfig:"DB_NAME" default:"dramaforge"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string `ignored:"true"`

	// Redis для снапшотов сессий. Пусто = хранение в памяти процесса.
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SnapshotTTL   time.Duration `envconfig:"SNAPSHOT_TTL" default:"24h"`
	SessionIdle   time.Duration `envconfig:"SESSION_IDLE_TTL" default:"30m"`
	RedisPassword string        `ignored:"true"`

	// RabbitMQ для chain settlement. Пусто = локальные детерминированные квитанции.
	RabbitMQURL          string        `envconfig:"RABBITMQ_URL" default:""`
	SettlementQueue      string        `envconfig:"SETTLEMENT_QUEUE" default:"drama_settlements"`
	SettlementTimeout    time.Duration `envconfig:"SETTLEMENT_TIMEOUT" default:"10s"`
	SettlementSeed       uint64        `envconfig:"SETTLEMENT_SEED" default:"0"`
	ReconcileInterval    time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1m"`
	ReconcileMaxAttempts int           `envconfig:"RECONCILE_MAX_ATTEMPTS" default:"5"`

	// Внешний генератор кадров. Пусто = генератор по каталогу.
	GeneratorURL      string        `envconfig:"GENERATOR_URL" default:""`
	GeneratorTimeout  time.Duration `envconfig:"GENERATOR_TIMEOUT" default:"60s"`
	GenerationRate    time.Duration `envconfig:"GENERATION_RATE_INTERVAL" default:"0s"`
	GenerationBurst   int           `envconfig:"GENERATION_RATE_BURST" default:"3"`
	GeneratorSeed     uint64        `envconfig:"GENERATOR_SEED" default:"0"`
	GeneratorAPIToken string        `ignored:"true"`

	// Переменные с префиксом GAMEPLAY_, например GAMEPLAY_REFRESH_COST.
	Gameplay GameplayEnv
}

// GameplayEnv - игровые параметры сессии из окружения.
type GameplayEnv struct {
	CandidatesPerGeneration int  `envconfig:"CANDIDATES_PER_GENERATION" default:"3"`
	EditablePeriod          int  `envconfig:"EDITABLE_PERIOD" default:"1"`
	DailyFreeRefreshes      int  `envconfig:"DAILY_FREE_REFRESHES" default:"10"`
	RefreshCost             int  `envconfig:"REFRESH_COST" default:"10"`
	CustomFrameCost         int  `envconfig:"CUSTOM_FRAME_COST" default:"30"`
	ConfirmationReward      int  `envconfig:"CONFIRMATION_REWARD" default:"10"`
	TargetFrameCount        int  `envconfig:"TARGET_FRAME_COUNT" default:"5"`
	MaxScriptLength         int  `envconfig:"MAX_SCRIPT_LENGTH" default:"200"`
	InitialBalance          int  `envconfig:"INITIAL_BALANCE" default:"100"`
	RewardFinalFrame        bool `envconfig:"REWARD_FINAL_FRAME" default:"false"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// GetAllowedOrigins разбивает CORSAllowedOrigins на список.
func (c *Config) GetAllowedOrigins() []string {
	if strings.TrimSpace(c.CORSAllowedOrigins) == "" {
		return nil
	}
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации drama-сервиса: %w", err)
	}

	switch cfg.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		password, err := utils.ReadSecretOrEnv("db_password", "DB_PASSWORD")
		if err != nil {
			return nil, err
		}
		cfg.DBPassword = password
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.RedisAddr != "" {
		// Пароль Redis опционален
		cfg.RedisPassword, _ = utils.ReadSecretOrEnv("redis_password", "REDIS_PASSWORD")
	}
	if cfg.GeneratorURL != "" {
		cfg.GeneratorAPIToken, _ = utils.ReadSecretOrEnv("generator_token", "GENERATOR_API_TOKEN")
	}

	log.Printf("Конфигурация drama-сервиса загружена:")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  Storage: %s (catalog %s)", cfg.StorageDriver, cfg.CatalogPath)
	if cfg.StorageDriver == StoragePostgres {
		log.Printf("  DB DSN: postgres://%s:***@%s:%s/%s?sslmode=%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	}
	log.Printf("  Redis: %q", cfg.RedisAddr)
	log.Printf("  RabbitMQ configured: %t, settlement queue: %s", cfg.RabbitMQURL != "", cfg.SettlementQueue)
	log.Printf("  Generator URL: %q", cfg.GeneratorURL)

	return &cfg, nil
}
