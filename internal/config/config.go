package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port                     string
	AllowedOrigin            string
	DatabaseDriver           string
	DatabaseURL              string
	SQLitePath               string
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	DashboardCacheTTLSeconds int
	QuantityPolicy           string
	LowStockThreshold        int
	LogLevel                 string
	LogFormat                string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("DASHBOARD_CACHE_TTL_SECONDS", "30"))
	if err != nil || ttl < 1 {
		ttl = 30
	}
	threshold, err := strconv.Atoi(getEnv("LOW_STOCK_THRESHOLD", "10"))
	if err != nil || threshold < 1 {
		threshold = 10
	}

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	if driver == "" {
		driver = DriverSQLite
		if databaseURL != "" {
			driver = DriverPostgres
		}
	}

	return Config{
		Port:                     getEnv("PORT", "8080"),
		AllowedOrigin:            getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseDriver:           driver,
		DatabaseURL:              databaseURL,
		SQLitePath:               getEnv("SQLITE_PATH", "shop.db"),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  redisDB,
		DashboardCacheTTLSeconds: ttl,
		QuantityPolicy:           strings.ToLower(getEnv("QUANTITY_POLICY", "skip")),
		LowStockThreshold:        threshold,
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		LogFormat:                getEnv("LOG_FORMAT", "text"),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) DashboardCacheTTL() time.Duration {
	return time.Duration(c.DashboardCacheTTLSeconds) * time.Second
}

func getEnv(key string, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}
