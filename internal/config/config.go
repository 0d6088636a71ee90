package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

type Config struct {
	HTTPAddr      string
	AllowedOrigin string
	ServiceName   string

	DB        postgres.Options
	DBMigrate bool
	Tx        postgres.TxConfig

	RedisAddr    string
	KafkaBrokers []string

	LogLevel  string
	LogFormat string
	LogFile   string

	OTLPEndpoint string

	LowStockThreshold int
	InventoryGroup    string
	InventoryWorkers  int

	// InventoryMetricsAddr serves /metrics for the watcher when set.
	InventoryMetricsAddr string
}

// Load reads the environment. Call godotenv.Load first to pick up a .env file.
func Load() Config {
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "5000")
	v.SetDefault("CLIENT_URL", "http://localhost:3000")
	v.SetDefault("SERVICE_NAME", "storefront-api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_NAME", "sixpack")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASS", "")
	v.SetDefault("DB_POOL_SIZE", 10)
	v.SetDefault("DB_MIGRATE", false)
	v.SetDefault("STATEMENT_TIMEOUT", 5*time.Second)
	v.SetDefault("TX_TIMEOUT", 10*time.Second)
	v.SetDefault("TX_MAX_RETRIES", 3)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("KAFKA_BROKERS", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", "")

	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	v.SetDefault("LOW_STOCK_THRESHOLD", 5)
	v.SetDefault("INVENTORY_GROUP", "inventory-watcher")
	v.SetDefault("INVENTORY_WORKERS", 4)
	v.SetDefault("INVENTORY_METRICS_ADDR", "")
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) Config {
	return Config{
		HTTPAddr:      ":" + v.GetString("PORT"),
		AllowedOrigin: v.GetString("CLIENT_URL"),
		ServiceName:   v.GetString("SERVICE_NAME"),

		DB: postgres.Options{
			Host:             v.GetString("DB_HOST"),
			Port:             v.GetInt("DB_PORT"),
			Name:             v.GetString("DB_NAME"),
			User:             v.GetString("DB_USER"),
			Password:         v.GetString("DB_PASS"),
			PoolSize:         v.GetInt("DB_POOL_SIZE"),
			StatementTimeout: v.GetDuration("STATEMENT_TIMEOUT"),
		},
		DBMigrate: v.GetBool("DB_MIGRATE"),
		Tx: postgres.TxConfig{
			Timeout:  v.GetDuration("TX_TIMEOUT"),
			MaxTries: v.GetUint("TX_MAX_RETRIES"),
		},

		RedisAddr:    v.GetString("REDIS_ADDR"),
		KafkaBrokers: splitCSV(v.GetString("KAFKA_BROKERS")),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
		LogFile:   v.GetString("LOG_FILE"),

		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),

		LowStockThreshold: v.GetInt("LOW_STOCK_THRESHOLD"),
		InventoryGroup:    v.GetString("INVENTORY_GROUP"),
		InventoryWorkers:  v.GetInt("INVENTORY_WORKERS"),

		InventoryMetricsAddr: v.GetString("INVENTORY_METRICS_ADDR"),
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
