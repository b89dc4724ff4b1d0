package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"carwatch/internal/scraper"
)

// Defaults возвращает значения, которыми заполняются пустые поля после чтения файла и env
func Defaults() Config {
	return Config{
		Rod: RodConfig{
			PageTimeoutS:     30,
			WaitLoadTimeoutS: 20,
		},
		Backoff: BackoffConfig{
			MinMS:            5000,
			MaxMS:            60000,
			JitterPct:        20,
			TransportDelayMS: 2000,
		},
		HTTP: HttpConfig{
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
				"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
			},
			TotalTimeoutMS:            10000,
			MaxAttempts:               5,
			MaxIdleConnections:        10,
			MaxIdleConnectionsPerHost: 2,
			IdleConnectionTimeoutS:    90,
			AcceptLanguage:            "fr-FR,fr;q=0.9,en;q=0.6",
		},
		Selectors: scraper.Selectors{
			Item: "option",
		},
		Storage: StorageConfig{
			StatePath: "data/last_list.txt",
		},
		Notify: NotifyConfig{
			Telegram: TelegramConfig{
				APIBase:   "https://api.telegram.org",
				TimeoutMS: 10000,
			},
			Email: EmailConfig{
				Port:    587,
				Subject: "carwatch",
			},
		},
		Report: ReportConfig{
			RenameThreshold: 0.9,
		},
		Scheduler: SchedulerConfig{
			Mode: "oneshot",
		},
		Observability: ObservabilityConfig{
			LogLevel:   "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig читает YAML (если файл есть), применяет переменные окружения и значения по умолчанию
func LoadConfig(filePath string) (*Config, error) {
	var cfg Config

	if filePath != "" {
		if err := decodeFile(filePath, &cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			log.Printf("Config file %s not found, using environment only", filePath)
		}
	}

	applyEnv(&cfg, os.LookupEnv)

	if err := mergo.Merge(&cfg, Defaults()); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if cfg.SelectorsFile != "" {
		path := cfg.SelectorsFile
		// Относительный путь считаем от каталога конфига
		if !filepath.IsAbs(path) && filePath != "" {
			path = filepath.Join(filepath.Dir(filePath), path)
		}
		selectors, err := LoadSelectors(path)
		if err != nil {
			return nil, err
		}
		cfg.Selectors = *selectors
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &cfg, nil
}

func decodeFile(filePath string, cfg *Config) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close config file: %v", closeErr)
		}
	}()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		// Пустой файл или только комментарии: всё берётся из env и умолчаний
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// applyEnv переопределяет значения из окружения; пустые переменные игнорируются
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"WATCH_URL", &cfg.WatchURL},
		{"TELEGRAM_TOKEN", &cfg.Notify.Telegram.Token},
		{"TELEGRAM_CHAT_ID", &cfg.Notify.Telegram.ChatID},
		{"CARWATCH_STATE_PATH", &cfg.Storage.StatePath},
		{"CARWATCH_LOG_LEVEL", &cfg.Observability.LogLevel},
	}
	for _, o := range overrides {
		if v, ok := lookup(o.key); ok && v != "" {
			*o.dst = v
		}
	}
}
