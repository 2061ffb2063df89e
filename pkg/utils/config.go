package utils

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Email        EmailConfig
	Payment      PaymentConfig
	Subscription SubscriptionConfig
	Jobs         JobsConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	Driver   string // postgres | memory
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	StatusCacheTTL time.Duration
}

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type PaymentConfig struct {
	StripeSecretKey            string
	Currency                   string
	SuccessURL                 string
	CancelURL                  string
	WebhookSecret              string
	WebhookAllowUnsignedLegacy bool
}

type SubscriptionConfig struct {
	TrialDays int
}

type JobsConfig struct {
	MaintenanceInterval time.Duration
	WorkerConcurrency   int
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "homecare-booking")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("STATUS_CACHE_TTL_SECONDS", 60)
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("PAYMENT_CURRENCY", "usd")
	viper.SetDefault("WEBHOOK_ALLOW_UNSIGNED_LEGACY", false)
	viper.SetDefault("TRIAL_DAYS", 14)
	viper.SetDefault("MAINTENANCE_INTERVAL_MINUTES", 60)
	viper.SetDefault("WORKER_CONCURRENCY", 5)

	if err := viper.ReadInConfig(); err != nil {
		// .env is optional in containers, the environment carries the values
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    viper.GetString("APP_NAME"),
			Port:    viper.GetString("PORT"),
			Debug:   viper.GetBool("DEBUG"),
			LogPath: viper.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			Driver:   viper.GetString("DB_DRIVER"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Addr:           viper.GetString("REDIS_ADDR"),
			Password:       viper.GetString("REDIS_PASSWORD"),
			DB:             viper.GetInt("REDIS_DB"),
			StatusCacheTTL: time.Duration(viper.GetInt("STATUS_CACHE_TTL_SECONDS")) * time.Second,
		},
		Email: EmailConfig{
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetInt("SMTP_PORT"),
			User:     viper.GetString("SMTP_USER"),
			Password: viper.GetString("SMTP_PASS"),
			From:     viper.GetString("EMAIL_FROM"),
		},
		Payment: PaymentConfig{
			StripeSecretKey:            viper.GetString("STRIPE_SECRET_KEY"),
			Currency:                   viper.GetString("PAYMENT_CURRENCY"),
			SuccessURL:                 viper.GetString("PAYMENT_SUCCESS_URL"),
			CancelURL:                  viper.GetString("PAYMENT_CANCEL_URL"),
			WebhookSecret:              viper.GetString("WEBHOOK_SECRET"),
			WebhookAllowUnsignedLegacy: viper.GetBool("WEBHOOK_ALLOW_UNSIGNED_LEGACY"),
		},
		Subscription: SubscriptionConfig{
			TrialDays: viper.GetInt("TRIAL_DAYS"),
		},
		Jobs: JobsConfig{
			MaintenanceInterval: time.Duration(viper.GetInt("MAINTENANCE_INTERVAL_MINUTES")) * time.Minute,
			WorkerConcurrency:   viper.GetInt("WORKER_CONCURRENCY"),
		},
	}

	return config, nil
}
