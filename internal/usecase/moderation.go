package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"brightside/internal/cache"
	"brightside/internal/domain"
	"brightside/storage"
)

// ErrEmptyFeedList возвращается при попытке сохранить пустой список лент.
var ErrEmptyFeedList = errors.New("feed list must not be empty")

// ModerationUseCase реализует действия администратора: управление списком лент
// и снятие отдельных новостей.
type ModerationUseCase struct {
	catalog FeedCatalog
	feeds   FeedListStorage
	removed RemovedLinkStorage
	cache   *cache.Cache
	log     *slog.Logger
}

// NewModerationUseCase создает сценарий модерации.
func NewModerationUseCase(
	catalog FeedCatalog,
	feeds FeedListStorage,
	removed RemovedLinkStorage,
	c *cache.Cache,
	log *slog.Logger,
) *ModerationUseCase {
	return &ModerationUseCase{
		catalog: catalog,
		feeds:   feeds,
		removed: removed,
		cache:   c,
		log:     log.With(slog.String("component", "moderation")),
	}
}

// ActiveSources возвращает список лент, заданный администратором,
// или встроенный каталог, если список ещё не задавался.
func (uc *ModerationUseCase) ActiveSources(ctx context.Context) ([]domain.FeedSource, error) {
	urls, err := uc.feeds.ListFeeds(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return uc.catalog.Sources(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load feed list: %w", err)
	}
	return uc.catalog.Resolve(urls)
}

// SetFeeds проверяет и сохраняет новый список лент. Изменения вступают в силу
// в следующем цикле обновления.
func (uc *ModerationUseCase) SetFeeds(ctx context.Context, urls []string) ([]domain.FeedSource, error) {
	sources, err := uc.catalog.Resolve(urls)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, ErrEmptyFeedList
	}
	clean := make([]string, 0, len(sources))
	for _, s := range sources {
		clean = append(clean, s.URL)
	}
	if err := uc.feeds.ReplaceFeeds(ctx, clean); err != nil {
		return nil, fmt.Errorf("failed to save feed list: %w", err)
	}
	uc.log.Info("Feed list updated", slog.Int("count", len(clean)))
	return sources, nil
}

// RemoveArticle снимает новость: ссылка запоминается, чтобы не вернуться
// в следующих циклах, и сразу убирается из текущего снимка.
// Возвращает false, если ссылка уже была снята.
func (uc *ModerationUseCase) RemoveArticle(ctx context.Context, link string) (bool, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return false, errors.New("article link is required")
	}
	added, err := uc.removed.AddRemovedLink(ctx, link)
	if err != nil {
		return false, fmt.Errorf("failed to record removed link: %w", err)
	}
	inCache := uc.cache.Remove(link)
	uc.log.Info("Article removed",
		slog.String("link", link),
		slog.Bool("new", added),
		slog.Bool("was_cached", inCache),
	)
	return added, nil
}
