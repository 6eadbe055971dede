package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"brightside/internal/cache"
	"brightside/internal/domain"
)

// Refresher запускает цикл обновления кэша.
type Refresher interface {
	Refresh(ctx context.Context) (RefreshReport, error)
}

// Query задает выборку новостей для выдачи.
type Query struct {
	Limit    int
	Category string
	Region   string
}

// NewsGetterUseCase отдает новости из кэша. При включенном ленивом обновлении
// пустой кэш заполняется синхронно, устаревший - в фоне, а читатель получает
// текущий снимок.
type NewsGetterUseCase struct {
	cache        *cache.Cache
	refresher    Refresher
	log          *slog.Logger
	defaultLimit int
	lazy         bool
	now          func() time.Time
}

// NewNewsGetterUseCase создает сценарий чтения новостей.
// defaultLimit применяется к запросам без лимита, lazy включает обновление при чтении.
func NewNewsGetterUseCase(c *cache.Cache, refresher Refresher, log *slog.Logger, defaultLimit int, lazy bool) *NewsGetterUseCase {
	return &NewsGetterUseCase{
		cache:        c,
		refresher:    refresher,
		log:          log.With(slog.String("component", "news-getter")),
		defaultLimit: defaultLimit,
		lazy:         lazy,
		now:          time.Now,
	}
}

// Snapshot возвращает текущий снимок, при необходимости обновляя кэш.
func (us *NewsGetterUseCase) Snapshot(ctx context.Context) *domain.Snapshot {
	if us.lazy && us.refresher != nil && us.cache.Stale(us.now()) {
		if us.cache.Snapshot().Empty() {
			if _, err := us.refresher.Refresh(context.WithoutCancel(ctx)); err != nil {
				us.log.Warn("Initial refresh failed, serving empty cache", slog.Any("error", err))
			}
		} else {
			go func() {
				if _, err := us.refresher.Refresh(context.WithoutCancel(ctx)); err != nil {
					us.log.Warn("Background refresh failed, serving stale cache", slog.Any("error", err))
				}
			}()
		}
	}
	return us.cache.Snapshot()
}

// Cached возвращает текущий снимок без обновления.
func (us *NewsGetterUseCase) Cached() *domain.Snapshot {
	return us.cache.Snapshot()
}

// GetNews возвращает до q.Limit новостей, отфильтрованных по категории и региону.
// Неположительный лимит заменяется лимитом по умолчанию.
func (us *NewsGetterUseCase) GetNews(ctx context.Context, q Query) ([]domain.Item, error) {
	return us.Select(us.Snapshot(ctx), q), nil
}

// Select применяет запрос к снимку.
func (us *NewsGetterUseCase) Select(snap *domain.Snapshot, q Query) []domain.Item {
	limit := q.Limit
	if limit <= 0 {
		limit = us.defaultLimit
	}
	out := make([]domain.Item, 0, min(limit, len(snap.Items)))
	for _, it := range snap.Items {
		if len(out) >= limit {
			break
		}
		if q.Category != "" && !strings.EqualFold(it.Category, q.Category) {
			continue
		}
		if q.Region != "" && !strings.EqualFold(it.Region, q.Region) {
			continue
		}
		out = append(out, it)
	}
	return out
}
