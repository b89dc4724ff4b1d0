package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carwatch/internal/checksum"
	"carwatch/internal/config"
	"carwatch/internal/fetcher"
	"carwatch/internal/notifier"
	"carwatch/internal/observability"
	"carwatch/internal/reconcile"
	"carwatch/internal/scraper"
	"carwatch/internal/storage"
)

// Source получает документ по URL (fetcher.Fetcher)
type Source interface {
	Fetch(ctx context.Context, urlStr string) (*fetcher.FetchResponse, error)
}

// Extractor достаёт список опций из документа (scraper.Scraper)
type Extractor interface {
	ExtractItems(body []byte) (scraper.ItemList, error)
}

type Orchestrator struct {
	cfg      *config.Config
	logger   *observability.Logger
	source   Source
	scraper  Extractor
	store    storage.StateStore
	notifier notifier.Notifier
	checksum *checksum.Generator
	dryRun   bool
}

func NewOrchestrator(
	cfg *config.Config,
	logger *observability.Logger,
	source Source,
	s Extractor,
	store storage.StateStore,
	n notifier.Notifier,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		source:   source,
		scraper:  s,
		store:    store,
		notifier: n,
		checksum: checksum.NewGenerator(),
	}
}

// SetDryRun отключает сохранение состояния
func (o *Orchestrator) SetDryRun(dryRun bool) {
	o.dryRun = dryRun
}

type RunStats struct {
	PriorItems    int
	CurrentItems  int
	Added         int
	Removed       int
	FirstRun      bool
	Notified      bool
	Persisted     bool
	ListHash      string
	StoppedReason string
}

// Run выполняет один запуск (oneshot) или повторяет запуски с интервалом до отмены ctx
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.cfg.Scheduler.Mode != "interval" {
		_, err := o.RunOnce(ctx)
		return err
	}

	interval := o.cfg.GetSchedulerInterval()
	o.logger.Info("Starting interval mode", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := o.RunOnce(ctx); err != nil {
			o.logger.Warn("Run ended early", "error", err.Error())
		}

		select {
		case <-ctx.Done():
			o.logger.Info("Interval mode stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce: загрузка состояния → fetch → diff → уведомление → сохранение.
// При ошибке fetch состояние не трогается.
func (o *Orchestrator) RunOnce(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}

	if locker, ok := o.store.(storage.Locker); ok && !o.dryRun {
		unlock, err := locker.Lock()
		if err != nil {
			if errors.Is(err, storage.ErrLocked) {
				o.logger.Warn("Another run holds the state, skipping")
				stats.StoppedReason = "state locked"
			}
			return stats, err
		}
		defer func() {
			if err := unlock(); err != nil {
				o.logger.Error("Failed to release state lock", "error", err.Error())
			}
		}()
	}

	prior, found, err := o.store.Load(ctx)
	if err != nil {
		o.logger.Error("Failed to load prior state", "error", err.Error())
		o.notify(ctx, reconcile.FormatFailure(err))
		stats.StoppedReason = "state load failed"
		return stats, fmt.Errorf("load state: %w", err)
	}
	stats.FirstRun = !found
	stats.PriorItems = len(prior)

	current, err := o.fetchCurrent(ctx)
	if err != nil {
		o.logger.Error("Fetch failed",
			"url", o.cfg.WatchURL,
			"error", err.Error(),
		)
		o.notify(ctx, reconcile.FormatFailure(err))
		stats.StoppedReason = "fetch failed"
		return stats, err
	}
	stats.CurrentItems = len(current)
	stats.ListHash = o.checksum.GenerateListHash(current)

	if !found || o.cfg.Notify.HeartbeatEveryRun {
		stats.Notified = o.notify(ctx, reconcile.FormatHeartbeat(len(current))) || stats.Notified
	}

	// Первый запуск: только heartbeat, без отчёта "всё добавлено"
	if found {
		cs := reconcile.Diff(prior, current)
		stats.Added = len(cs.Added)
		stats.Removed = len(cs.Removed)

		if !cs.Empty() {
			report := reconcile.FormatReport(cs, current, reconcile.ReportOptions{
				RenameThreshold: o.cfg.Report.RenameThreshold,
			})
			stats.Notified = o.notify(ctx, report) || stats.Notified
		}
	}

	o.logger.Info("Reconciled",
		"first_run", stats.FirstRun,
		"prior_items", stats.PriorItems,
		"current_items", stats.CurrentItems,
		"added", stats.Added,
		"removed", stats.Removed,
		"list_hash", stats.ListHash,
	)

	if o.dryRun {
		stats.StoppedReason = "dry run"
		return stats, nil
	}

	if err := o.store.Save(ctx, current); err != nil {
		o.logger.Error("Failed to persist state", "error", err.Error())
		stats.StoppedReason = "persist failed"
		return stats, fmt.Errorf("save state: %w", err)
	}
	stats.Persisted = true

	return stats, nil
}

func (o *Orchestrator) fetchCurrent(ctx context.Context) (scraper.ItemList, error) {
	resp, err := o.source.Fetch(ctx, o.cfg.WatchURL)
	if err != nil {
		return nil, err
	}

	items, err := o.scraper.ExtractItems(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	o.logger.Debug("Items extracted", "url", resp.URL, "count", len(items))
	return items, nil
}

// notify - best-effort: ошибка логируется и не прерывает запуск
func (o *Orchestrator) notify(ctx context.Context, text string) bool {
	if err := o.notifier.Notify(ctx, text); err != nil {
		o.logger.Error("Notification failed", "error", err.Error())
		return false
	}
	return true
}
