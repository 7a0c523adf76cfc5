package config

import (
	"strings"

	"github.com/threatgate/threatgate/internal/database"
	"github.com/threatgate/threatgate/internal/vault"
)

type AppConfig struct {
	APIPort     string `env:"PORT" envDefault:"12222"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	RedisURL    string `env:"REDIS_URL"`
	GeoIPPath   string `env:"GEOIP_DB_PATH"`
}

type DatabaseConfig struct {
	Host            string `env:"THREATGATE_POSTGRES_HOST,required"`
	Port            string `env:"THREATGATE_POSTGRES_PORT,required"`
	User            string `env:"THREATGATE_POSTGRES_USER,required"`
	DBName          string `env:"THREATGATE_POSTGRES_DB_NAME,required"`
	Password        string `env:"THREATGATE_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"THREATGATE_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"THREATGATE_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"THREATGATE_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"THREATGATE_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"THREATGATE_POSTGRES_SSL_MODE" envDefault:"require"`
}

func (c *DatabaseConfig) ToConnectionConfig() *database.DatabaseConfig {
	return &database.DatabaseConfig{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		DBName:          c.DBName,
		Password:        c.Password,
		MaxConn:         c.MaxConn,
		MaxIdleConn:     c.MaxIdleConn,
		ConnMaxLifetime: c.ConnMaxLifetime,
		LogLevel:        c.LogLevel,
		SSLMode:         c.SSLMode,
	}
}

// VaultConfig carries the secret-encryption key ring. Keys is a comma separated
// list of version=material pairs, e.g. "v1=<base64>,v2=<base64>", so keys can be
// rotated by adding a version and flipping ActiveVersion.
type VaultConfig struct {
	Keys          string `env:"VAULT_KEYS,required" validate:"required"`
	ActiveVersion string `env:"VAULT_ACTIVE_KEY_VERSION" envDefault:"v1" validate:"required"`
}

func (c *VaultConfig) KeyConfig() vault.KeyConfig {
	keys := make(map[string]string)
	for _, pair := range strings.Split(c.Keys, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return vault.KeyConfig{
		Keys:          keys,
		ActiveVersion: c.ActiveVersion,
	}
}

type CollectorConfig struct {
	TickIntervalSeconds int     `env:"COLLECTOR_TICK_INTERVAL_SECONDS" envDefault:"30" validate:"gt=0"`
	RunTimeoutSeconds   int     `env:"COLLECTOR_RUN_TIMEOUT_SECONDS" envDefault:"600" validate:"gt=0"`
	MaxPages            int     `env:"COLLECTOR_MAX_PAGES" envDefault:"200" validate:"gt=0"`
	BackoffMinSeconds   int     `env:"COLLECTOR_BACKOFF_MIN_SECONDS" envDefault:"60" validate:"gt=0"`
	BackoffMaxSeconds   int     `env:"COLLECTOR_BACKOFF_MAX_SECONDS" envDefault:"3600" validate:"gt=0"`
	BackoffFactor       float64 `env:"COLLECTOR_BACKOFF_FACTOR" envDefault:"2" validate:"gt=1"`
	CallTimeoutSeconds  int     `env:"COLLECTOR_CALL_TIMEOUT_SECONDS" envDefault:"30" validate:"gt=0"`
	TransientRetries    int     `env:"COLLECTOR_TRANSIENT_RETRIES" envDefault:"2" validate:"gte=0"`
	PortalPageSize      int     `env:"COLLECTOR_PORTAL_PAGE_SIZE" envDefault:"500" validate:"gt=0"`
}

type CronConfig struct {
	Enabled             bool `env:"CRON_ENABLED" envDefault:"true"`
	CredentialAlertDays int  `env:"CRON_CREDENTIAL_ALERT_DAYS" envDefault:"90" validate:"gt=0"`
	ExpirySweepEnabled  bool `env:"CRON_EXPIRY_SWEEP_ENABLED" envDefault:"false"`
}
