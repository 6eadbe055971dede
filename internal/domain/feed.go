package domain

import (
	"sort"
	"time"
)

// FeedSource описывает один RSS/Atom-источник из реестра лент.
// Значение неизменяемо после загрузки реестра.
type FeedSource struct {
	Name     string `json:"name" yaml:"name"`
	URL      string `json:"url" yaml:"url"`
	Region   string `json:"region" yaml:"region"`
	Category string `json:"category" yaml:"category"`
}

// Item представляет отдельную новость, прошедшую разбор ленты.
// Score заполняется фильтром тональности, Source - процессором лент.
type Item struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"summary"`
	PubDate     time.Time `json:"published"`
	SourceName  string    `json:"source_name"`
	SourceURL   string    `json:"source_feed"`
	Region      string    `json:"region"`
	Category    string    `json:"category"`
	Score       float64   `json:"sentiment_score"`
}

// Feed представляет полную ленту с метаданными и списком новостей.
type Feed struct {
	Title       string
	Link        string
	Description string
	Items       []Item
}

// SourceStatus фиксирует итог обработки одного источника за цикл обновления.
type SourceStatus struct {
	URL       string        `json:"url"`
	Name      string        `json:"name"`
	Parsed    int           `json:"parsed"`
	Kept      int           `json:"kept"`
	Dropped   int           `json:"dropped"`
	Err       string        `json:"error,omitempty"`
	CarriedIn int           `json:"carried_over,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Failed сообщает, завершилась ли обработка источника ошибкой.
func (s SourceStatus) Failed() bool { return s.Err != "" }

// Snapshot - неизменяемый срез агрегированных новостей, который отдается читателям.
// Писатель (цикл обновления) всегда заменяет его целиком.
type Snapshot struct {
	Items     []Item            `json:"items"`
	BySource  map[string][]Item `json:"-"`
	FetchedAt time.Time         `json:"fetched_at"`
	Sources   []SourceStatus    `json:"sources"`
}

// Empty сообщает, что снимок ни разу не заполнялся.
func (s *Snapshot) Empty() bool {
	return s == nil || s.FetchedAt.IsZero()
}

// SortItems упорядочивает новости от новых к старым, при равенстве дат - по заголовку.
func SortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].PubDate.Equal(items[j].PubDate) {
			return items[i].PubDate.After(items[j].PubDate)
		}
		return items[i].Title < items[j].Title
	})
}

// Subscriber - подписчик на ежедневную рассылку позитивных новостей.
type Subscriber struct {
	Email        string
	Token        string
	Active       bool
	SubscribedAt time.Time
}
