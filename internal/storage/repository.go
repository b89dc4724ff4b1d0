package storage

import (
	"context"
	"errors"

	"carwatch/internal/scraper"
)

// ErrLocked - состояние удерживает другой запуск
var ErrLocked = errors.New("state is locked by another run")

// StateStore хранит список, полученный последним успешным запуском
type StateStore interface {
	// Load возвращает сохранённый список. found=false при первом запуске.
	Load(ctx context.Context) (items scraper.ItemList, found bool, err error)

	// Save полностью заменяет сохранённый список. Частичная запись не допускается.
	Save(ctx context.Context, items scraper.ItemList) error
}

// Locker даёт эксклюзивную аренду состояния на время запуска
type Locker interface {
	// Lock возвращает ErrLocked, если аренда занята. unlock освобождает её.
	Lock() (unlock func() error, err error)
}
