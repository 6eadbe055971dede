package usecase

import (
	"context"
	"io"

	"brightside/internal/domain"
	"brightside/internal/sentiment"
)

// FeedFetcher определяет интерфейс для загрузки данных лент из внешних источников.
// Возвращает io.ReadCloser, который должен быть закрыт после использования.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// FeedParser определяет интерфейс для разбора RSS/Atom в доменную модель.
type FeedParser interface {
	Parse(ctx context.Context, reader io.Reader) (*domain.Feed, error)
}

// ItemFilter принимает решение по каждой новости.
type ItemFilter interface {
	Evaluate(item domain.Item) sentiment.Decision
}

// FeedCatalog - реестр известных источников.
type FeedCatalog interface {
	Sources() []domain.FeedSource
	Resolve(urls []string) ([]domain.FeedSource, error)
}

// FeedListStorage хранит список лент, заданный администратором.
type FeedListStorage interface {
	ListFeeds(ctx context.Context) ([]string, error)
	ReplaceFeeds(ctx context.Context, urls []string) error
}

// RemovedLinkStorage хранит ссылки, снятые модератором.
type RemovedLinkStorage interface {
	RemovedLinks(ctx context.Context) (map[string]struct{}, error)
	AddRemovedLink(ctx context.Context, link string) (bool, error)
}

// SourceLister возвращает источники, которые нужно обработать в текущем цикле.
type SourceLister interface {
	ActiveSources(ctx context.Context) ([]domain.FeedSource, error)
}
