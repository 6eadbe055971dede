package storage

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"brightside/internal/domain"
)

// MemoryStore - хранилище в памяти процесса. Используется, когда база данных
// не настроена; данные живут до перезапуска.
type MemoryStore struct {
	mu          sync.RWMutex
	log         *slog.Logger
	feeds       []string
	removed     map[string]struct{}
	subscribers map[string]domain.Subscriber
}

// NewMemoryStore создает пустое хранилище в памяти.
func NewMemoryStore(log *slog.Logger) *MemoryStore {
	log.Info("Initializing in-memory storage", slog.String("component", "storage"))
	return &MemoryStore{
		log:         log,
		removed:     make(map[string]struct{}),
		subscribers: make(map[string]domain.Subscriber),
	}
}

func (m *MemoryStore) ListFeeds(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.feeds) == 0 {
		return nil, ErrNotFound
	}
	out := make([]string, len(m.feeds))
	copy(out, m.feeds)
	return out, nil
}

func (m *MemoryStore) ReplaceFeeds(_ context.Context, urls []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feeds = append([]string(nil), urls...)
	return nil
}

func (m *MemoryStore) RemovedLinks(_ context.Context) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]struct{}, len(m.removed))
	for k := range m.removed {
		out[k] = struct{}{}
	}
	return out, nil
}

func (m *MemoryStore) AddRemovedLink(_ context.Context, link string) (bool, error) {
	link = strings.TrimSpace(link)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.removed[link]; ok || link == "" {
		return false, nil
	}
	m.removed[link] = struct{}{}
	return true, nil
}

func (m *MemoryStore) GetSubscriber(_ context.Context, email string) (domain.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subscribers[email]
	if !ok {
		return domain.Subscriber{}, ErrNotFound
	}
	return sub, nil
}

func (m *MemoryStore) SaveSubscriber(_ context.Context, sub domain.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers[sub.Email] = sub
	return nil
}

func (m *MemoryStore) DeactivateSubscriber(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, sub := range m.subscribers {
		if sub.Token == token {
			sub.Active = false
			m.subscribers[email] = sub
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) Close() {}
