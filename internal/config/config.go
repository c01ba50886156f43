package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/paaavkata/coinbase-mirror/pkg/coinbase"
	"github.com/paaavkata/coinbase-mirror/pkg/database"
)

type Config struct {
	Database database.Config
	Coinbase coinbase.Config

	Exchange       string
	Pair           string
	Granularity    int64
	CandleSyncCron string
	TradeSyncCron  string

	Redis       RedisConfig
	LockTTL     time.Duration
	MetricsPort string
}

// RedisConfig is optional; an empty Addr keeps locks in process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads the environment, after applying an optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: database.Config{
			DbUri: getEnv("DB_URI", "postgres://localhost:5432/coinbase_mirror?sslmode=disable"),
		},
		Coinbase: coinbase.Config{
			APIKey:     getEnv("COINBASE_API_KEY", ""),
			APISecret:  getEnv("COINBASE_API_SECRET", ""),
			Passphrase: getEnv("COINBASE_PASSPHRASE", ""),
			Sandbox:    getEnvBool("COINBASE_SANDBOX", false),
			BaseURL:    getEnv("COINBASE_API_URL", ""),
			PublicURL:  getEnv("COINBASE_PUBLIC_URL", ""),
		},
		Exchange:       getEnv("EXCHANGE_NAME", "coinbase"),
		Pair:           getEnv("PAIR", "BTC-USD"),
		Granularity:    int64(getEnvInt("CANDLE_GRANULARITY", 300)),
		CandleSyncCron: getEnv("CANDLE_SYNC_CRON", "0 */5 * * * *"),
		TradeSyncCron:  getEnv("TRADE_SYNC_CRON", "*/30 * * * * *"),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		LockTTL:     time.Duration(getEnvInt("LOCK_TTL_SECONDS", 120)) * time.Second,
		MetricsPort: getEnv("METRICS_PORT", "8080"),
	}
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
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
