package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Server       ServerConfig    `validate:"required"`
	Logging      LoggingConfig   `validate:"required"`
	Postgres     PostgresConfig  `validate:"required"`
	Stripe       StripeConfig    `validate:"required"`
	Webhook      WebhookConfig   `validate:"required"`
	Scheduler    SchedulerConfig `validate:"required"`
	Notification NotificationConfig
	Cache        CacheConfig
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level string
}

type PostgresConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// GetDSN returns the postgres connection string
func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type StripeConfig struct {
	SecretKey     string `validate:"required"`
	WebhookSecret string `validate:"required"`
}

// WebhookConfig controls retry behaviour for inbound processor events
type WebhookConfig struct {
	MaxRetries     int           `validate:"gte=0"`
	RetryBaseDelay time.Duration `validate:"gt=0"`
}

// SchedulerConfig carries schedule expressions and enabled flags per job,
// plus the shared expected-duration budget after which a long-running alert
// is raised.
type SchedulerConfig struct {
	Jobs        map[string]JobConfig
	JobBudget   time.Duration
	Concurrency int `validate:"gte=1"`
}

type JobConfig struct {
	Schedule string
	Enabled  bool
}

type NotificationConfig struct {
	Endpoint string
	Headers  map[string]string
	Enabled  bool
}

type CacheConfig struct {
	Enabled    bool
	LicenseTTL time.Duration
}

func NewConfig() (*Configuration, error) {
	// Local development convenience only; missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/licensing")

	v.SetEnvPrefix("LICENSING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "licensing")
	v.SetDefault("postgres.dbname", "licensing")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.maxopenconns", 20)
	v.SetDefault("postgres.maxidleconns", 5)
	v.SetDefault("webhook.maxretries", 3)
	v.SetDefault("webhook.retrybasedelay", time.Second)
	v.SetDefault("scheduler.jobbudget", time.Hour)
	v.SetDefault("scheduler.concurrency", 4)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.licensettl", 30*time.Second)

	// Default job schedules match the documented cadence; each job can be
	// disabled or rescheduled independently via config.
	v.SetDefault("scheduler.jobs", map[string]map[string]any{
		"license-expiry-check":      {"schedule": "0 2 * * *", "enabled": true},
		"usage-data-aggregation":    {"schedule": "0 1 * * *", "enabled": true},
		"renewal-reminders":         {"schedule": "0 9 * * *", "enabled": true},
		"license-compliance-check":  {"schedule": "0 3 * * *", "enabled": true},
		"monthly-billing-cycle":     {"schedule": "0 0 1 * *", "enabled": true},
		"webhook-retention-cleanup": {"schedule": "0 4 * * *", "enabled": true},
		"job-health-monitor":        {"schedule": "*/15 * * * *", "enabled": true},
	})
}

func (c *Configuration) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}
