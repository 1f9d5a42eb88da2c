package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type SchedulerConfig struct {
	Enabled              bool
	CheckIntervalSeconds int
	ReminderTimes        []string
}

type NotifierConfig struct {
	EmailGatewayURL string
	SMSGatewayURL   string
	APIKey          string
	Timeout         time.Duration
}

type Config struct {
	Environment string
	PublicURL   string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Scheduler   SchedulerConfig
	Notifier    NotifierConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		PublicURL:   v.GetString("PUBLIC_URL"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Scheduler: SchedulerConfig{
			Enabled:              v.GetBool("SCHEDULER_ENABLED"),
			CheckIntervalSeconds: v.GetInt("SCHEDULER_CHECK_INTERVAL_SECONDS"),
			ReminderTimes:        parseList(v.GetString("SCHEDULER_REMINDER_TIMES")),
		},
		Notifier: NotifierConfig{
			EmailGatewayURL: v.GetString("NOTIFIER_EMAIL_URL"),
			SMSGatewayURL:   v.GetString("NOTIFIER_SMS_URL"),
			APIKey:          v.GetString("NOTIFIER_API_KEY"),
			Timeout:         v.GetDuration("NOTIFIER_TIMEOUT"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = fmt.Sprintf("http://localhost:%d", cfg.HTTP.Port)
	}
	if cfg.Scheduler.CheckIntervalSeconds == 0 {
		cfg.Scheduler.CheckIntervalSeconds = 60
	}
	if len(cfg.Scheduler.ReminderTimes) == 0 {
		cfg.Scheduler.ReminderTimes = []string{"09:00"}
	}
	if cfg.Notifier.Timeout == 0 {
		cfg.Notifier.Timeout = 10 * time.Second
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Scheduler.CheckIntervalSeconds < 10 || cfg.Scheduler.CheckIntervalSeconds > 3600 {
		return fmt.Errorf("SCHEDULER_CHECK_INTERVAL_SECONDS must be between 10 and 3600")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
