package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"carwatch/internal/config"
	"carwatch/internal/fetcher"
	"carwatch/internal/normalize"
	"carwatch/internal/notifier"
	"carwatch/internal/observability"
	"carwatch/internal/scraper"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "carwatch",
	Short:         "carwatch watches a vehicle configurator page and reports added or removed options.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWatch,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the YAML config file")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log notifications instead of sending them and do not persist state")
}

// Execute завершает процесс с кодом 1 только при ошибках запуска (конфигурация, браузер)
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(cfg.Observability.LogPath, cfg.Observability.LogLevel, observability.RotationOptions{
		MaxSizeMB:  cfg.Observability.MaxSizeMB,
		MaxBackups: cfg.Observability.MaxBackups,
		MaxAgeDays: cfg.Observability.MaxAgeDays,
	})
}

func newPipeline(cfg *config.Config, logger *observability.Logger) (*fetcher.Fetcher, *scraper.Scraper, error) {
	f, err := fetcher.NewFetcher(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create fetcher: %w", err)
	}
	return f, scraper.NewScraper(&cfg.Selectors, normalize.NewNormalizer(cfg)), nil
}

func newNotifier(cfg *config.Config, logger *observability.Logger, dryRun bool) notifier.Notifier {
	if dryRun {
		return notifier.NewLogNotifier(logger)
	}

	channels := notifier.Multi{notifier.NewTelegram(cfg.Notify.Telegram, cfg.GetTelegramTimeout())}
	if cfg.Notify.Email.Enabled {
		channels = append(channels, notifier.NewEmail(cfg.Notify.Email))
	}
	return channels
}
