package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"carwatch/internal/app"
	"carwatch/internal/config"
	"carwatch/internal/storage"
	"carwatch/internal/storage/file"
)

var dryRun bool

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log notifications instead of sending them and do not persist state")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetches the watched page, reports changes since the last run and saves the new list.",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if !dryRun {
		if err := cfg.ValidateNotify(); err != nil {
			return fmt.Errorf("config validation error: %w", err)
		}
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Close() }()

	f, scr, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Failed to close fetcher", "error", err.Error())
		}
	}()

	orch := app.NewOrchestrator(cfg, logger, f, scr, file.NewStore(cfg.Storage.StatePath), newNotifier(cfg, logger, dryRun))
	orch.SetDryRun(dryRun)

	ctx, cancel := app.GracefulShutdown(logger, 0)
	defer cancel()

	// Ошибки запуска (fetch, блокировка) уже залогированы и отправлены оператору; код выхода 0
	if err := orch.Run(ctx); err != nil && !errors.Is(err, storage.ErrLocked) {
		logger.Warn("Run finished with error", "error", err.Error())
	}
	return nil
}
