package storage

import (
	"context"
	"errors"

	"brightside/internal/domain"
)

// ErrNotFound возвращается, когда запрошенная запись отсутствует.
// Для списка лент означает, что администратор его ещё не задавал.
var ErrNotFound = errors.New("not found")

// Storage определяет общий интерфейс хранилища: список активных лент,
// ссылки, снятые модератором, и подписчики рассылки.
type Storage interface {
	ListFeeds(ctx context.Context) ([]string, error)
	ReplaceFeeds(ctx context.Context, urls []string) error
	RemovedLinks(ctx context.Context) (map[string]struct{}, error)
	AddRemovedLink(ctx context.Context, link string) (bool, error)
	GetSubscriber(ctx context.Context, email string) (domain.Subscriber, error)
	SaveSubscriber(ctx context.Context, sub domain.Subscriber) error
	DeactivateSubscriber(ctx context.Context, token string) error
	Close()
}
