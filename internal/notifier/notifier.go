// Package notifier доставляет текстовые сообщения оператору.
// Доставка best-effort: вызывающий логирует ошибку и продолжает работу.
package notifier

import (
	"context"
	"errors"

	"carwatch/internal/observability"
)

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Multi отправляет сообщение во все каналы; ошибка одного не мешает остальным
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier пишет сообщения в лог вместо отправки (dry-run)
type LogNotifier struct {
	logger *observability.Logger
}

func NewLogNotifier(logger *observability.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, text string) error {
	n.logger.Info("Notification (dry-run)", "text", text)
	return nil
}
