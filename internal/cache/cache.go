// Package cache хранит последний успешно собранный снимок новостей в памяти.
package cache

import (
	"sync"
	"time"

	"brightside/internal/domain"
)

// Cache - потокобезопасный держатель снимка. Читатели получают текущий снимок
// и не должны его изменять; писатель заменяет снимок целиком.
type Cache struct {
	mu   sync.RWMutex
	snap *domain.Snapshot
	ttl  time.Duration
}

// New создает пустой кэш. Снимок старше ttl считается устаревшим.
func New(ttl time.Duration) *Cache {
	return &Cache{
		snap: &domain.Snapshot{BySource: map[string][]domain.Item{}},
		ttl:  ttl,
	}
}

// Snapshot возвращает текущий снимок. Результат никогда не равен nil.
func (c *Cache) Snapshot() *domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Replace атомарно заменяет снимок.
func (c *Cache) Replace(s *domain.Snapshot) {
	if s == nil {
		return
	}
	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()
}

// TTL возвращает срок актуальности снимка.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Stale сообщает, что кэш пуст или снимок старше ttl на момент now.
func (c *Cache) Stale(now time.Time) bool {
	s := c.Snapshot()
	if s.Empty() {
		return true
	}
	return now.Sub(s.FetchedAt) >= c.ttl
}

// Remove убирает новость с указанной ссылкой из текущего снимка,
// создавая новый снимок. Возвращает false, если такой новости нет.
func (c *Cache) Remove(link string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.snap
	found := false
	items := make([]domain.Item, 0, len(old.Items))
	for _, it := range old.Items {
		if it.Link == link {
			found = true
			continue
		}
		items = append(items, it)
	}
	if !found {
		return false
	}
	bySource := make(map[string][]domain.Item, len(old.BySource))
	for src, list := range old.BySource {
		kept := make([]domain.Item, 0, len(list))
		for _, it := range list {
			if it.Link != link {
				kept = append(kept, it)
			}
		}
		bySource[src] = kept
	}
	c.snap = &domain.Snapshot{
		Items:     items,
		BySource:  bySource,
		FetchedAt: old.FetchedAt,
		Sources:   old.Sources,
	}
	return true
}
