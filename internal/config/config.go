// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"carwatch/internal/scraper"
)

type Config struct {
	WatchURL      string              `yaml:"watch_url"`
	Rod           RodConfig           `yaml:"rod"`
	Backoff       BackoffConfig       `yaml:"backoff"`
	HTTP          HttpConfig          `yaml:"http"`
	SelectorsFile string              `yaml:"selectors_file"`
	Selectors     scraper.Selectors   `yaml:"selectors"`
	Normalize     NormalizeConfig     `yaml:"normalize"`
	Storage       StorageConfig       `yaml:"storage"`
	Notify        NotifyConfig        `yaml:"notify"`
	Report        ReportConfig        `yaml:"report"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type RodConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ChromePath       string `yaml:"chrome_path"`
	PageTimeoutS     int    `yaml:"page_timeout_s"`
	WaitLoadTimeoutS int    `yaml:"wait_load_timeout_s"`
	LazyLoadDelayS   int    `yaml:"lazy_load_delay_s"`
}

type BackoffConfig struct {
	MinMS            int `yaml:"min_ms"`
	MaxMS            int `yaml:"max_ms"`
	JitterPct        int `yaml:"jitter_pct"`
	TransportDelayMS int `yaml:"transport_delay_ms"`
}

type HttpConfig struct {
	UserAgents                []string `yaml:"user_agents"`
	TotalTimeoutMS            int      `yaml:"total_timeout_ms"`
	MaxAttempts               int      `yaml:"max_attempts"`
	MaxIdleConnections        int      `yaml:"max_idle_connections"`
	MaxIdleConnectionsPerHost int      `yaml:"max_idle_connections_per_host"`
	IdleConnectionTimeoutS    int      `yaml:"idle_connection_timeout_s"`
	AcceptLanguage            string   `yaml:"accept_language"`
	CloudflareBypass          bool     `yaml:"cloudflare_bypass"`
}

type NormalizeConfig struct {
	TrimNBSP       bool `yaml:"trim_nbsp"`
	CollapseSpaces bool `yaml:"collapse_spaces"`
}

type StorageConfig struct {
	StatePath string `yaml:"state_path"`
}

type NotifyConfig struct {
	Telegram          TelegramConfig `yaml:"telegram"`
	Email             EmailConfig    `yaml:"email"`
	HeartbeatEveryRun bool           `yaml:"heartbeat_every_run"`
}

type TelegramConfig struct {
	Token     string `yaml:"token"`
	ChatID    string `yaml:"chat_id"`
	APIBase   string `yaml:"api_base"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type EmailConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Subject  string   `yaml:"subject"`
}

type ReportConfig struct {
	// RenameThreshold <= 0 отключает подсказки о переименованиях
	RenameThreshold float64 `yaml:"rename_threshold"`
}

type SchedulerConfig struct {
	Mode      string `yaml:"mode"`
	IntervalS int    `yaml:"interval_s"`
}

type ObservabilityConfig struct {
	LogPath    string `yaml:"log_path"`
	LogLevel   string `yaml:"log_level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// ConfigError описывает невалидное или отсутствующее значение конфигурации
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ConfigError{Field: field, Reason: reason}
}

// Validation
func (c *Config) Validate() error {
	if c.WatchURL == "" {
		return invalid("watch_url", "is required (WATCH_URL)")
	}
	if u, err := url.Parse(c.WatchURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("watch_url", "must be an absolute http(s) URL")
	}
	if len(c.HTTP.UserAgents) == 0 {
		return invalid("http.user_agents", "must contain at least one entry")
	}
	if c.HTTP.TotalTimeoutMS <= 0 {
		return invalid("http.total_timeout_ms", "must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return invalid("http.max_attempts", "must be > 0")
	}
	if c.Backoff.MinMS <= 0 {
		return invalid("backoff.min_ms", "must be > 0")
	}
	if c.Backoff.MaxMS <= 0 {
		return invalid("backoff.max_ms", "must be > 0")
	}
	if c.Backoff.MinMS > c.Backoff.MaxMS {
		return invalid("backoff.min_ms", "must be <= backoff.max_ms")
	}
	if c.Backoff.JitterPct < 0 || c.Backoff.JitterPct > 100 {
		return invalid("backoff.jitter_pct", "must be between 0 and 100")
	}
	if c.Backoff.TransportDelayMS < 0 {
		return invalid("backoff.transport_delay_ms", "must be >= 0")
	}
	if c.Selectors.Item == "" {
		return invalid("selectors.item", "is required")
	}
	if c.Storage.StatePath == "" {
		return invalid("storage.state_path", "is required")
	}
	if c.Report.RenameThreshold > 1 {
		return invalid("report.rename_threshold", "must be <= 1")
	}
	if c.Scheduler.Mode != "interval" && c.Scheduler.Mode != "oneshot" {
		return invalid("scheduler.mode", "must be 'interval' or 'oneshot'")
	}
	if c.Scheduler.Mode == "interval" && c.Scheduler.IntervalS <= 0 {
		return invalid("scheduler.interval_s", "must be > 0 when mode is 'interval'")
	}
	if c.Observability.LogLevel == "" {
		return invalid("observability.log_level", "is required")
	}
	if c.Rod.Enabled {
		if c.Rod.PageTimeoutS <= 0 {
			return invalid("rod.page_timeout_s", "must be > 0")
		}
		if c.Rod.WaitLoadTimeoutS <= 0 {
			return invalid("rod.wait_load_timeout_s", "must be > 0")
		}
		if c.Rod.LazyLoadDelayS < 0 {
			return invalid("rod.lazy_load_delay_s", "must be >= 0")
		}
	}
	return nil
}

// ValidateNotify проверяет учётные данные уведомлений. Нужны только для команды run.
func (c *Config) ValidateNotify() error {
	if c.Notify.Telegram.Token == "" {
		return invalid("notify.telegram.token", "is required (TELEGRAM_TOKEN)")
	}
	if c.Notify.Telegram.ChatID == "" {
		return invalid("notify.telegram.chat_id", "is required (TELEGRAM_CHAT_ID)")
	}
	if c.Notify.Email.Enabled {
		if c.Notify.Email.Host == "" {
			return invalid("notify.email.host", "is required when email is enabled")
		}
		if c.Notify.Email.From == "" {
			return invalid("notify.email.from", "is required when email is enabled")
		}
		if len(c.Notify.Email.To) == 0 {
			return invalid("notify.email.to", "must contain at least one recipient")
		}
	}
	return nil
}

// Getters
func (c *Config) GetTotalTimeout() time.Duration {
	return time.Duration(c.HTTP.TotalTimeoutMS) * time.Millisecond
}

func (c *Config) GetIdleConnectionTimeout() time.Duration {
	return time.Duration(c.HTTP.IdleConnectionTimeoutS) * time.Second
}

func (c *Config) GetBackoffMin() time.Duration {
	return time.Duration(c.Backoff.MinMS) * time.Millisecond
}

func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Backoff.MaxMS) * time.Millisecond
}

func (c *Config) GetTransportRetryDelay() time.Duration {
	return time.Duration(c.Backoff.TransportDelayMS) * time.Millisecond
}

func (c *Config) GetTelegramTimeout() time.Duration {
	return time.Duration(c.Notify.Telegram.TimeoutMS) * time.Millisecond
}

func (c *Config) GetSchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalS) * time.Second
}

func (c *Config) GetRodPageTimeout() time.Duration {
	return time.Duration(c.Rod.PageTimeoutS) * time.Second
}

func (c *Config) GetRodWaitLoadTimeout() time.Duration {
	return time.Duration(c.Rod.WaitLoadTimeoutS) * time.Second
}

func (c *Config) GetRodLazyLoadDelay() time.Duration {
	return time.Duration(c.Rod.LazyLoadDelayS) * time.Second
}
