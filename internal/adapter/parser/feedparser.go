package parser

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"strings"
	"time"

	"brightside/internal/domain"

	"github.com/kennygrant/sanitize"
	"github.com/mmcdole/gofeed"
)

// ErrMalformedFeed возвращается, когда тело ответа не удалось разобрать как RSS или Atom.
var ErrMalformedFeed = errors.New("malformed feed")

const maxSummaryRunes = 500

// FeedParser разбирает RSS и Atom в доменную модель с помощью gofeed.
type FeedParser struct {
	log *slog.Logger
	now func() time.Time
}

// NewFeedParser создает новый экземпляр FeedParser.
func NewFeedParser(log *slog.Logger) *FeedParser {
	return &FeedParser{
		log: log,
		now: time.Now,
	}
}

// Parse реализует метод интерфейса FeedParser.
// Записи без заголовка или ссылки пропускаются. Дата публикации берется из published,
// затем из updated; если обеих нет, используется время разбора.
func (p *FeedParser) Parse(ctx context.Context, reader io.Reader) (*domain.Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parsed, err := gofeed.NewParser().Parse(reader)
	if err != nil {
		p.log.Warn("Error decoding feed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}
	now := p.now()
	feed := domain.Feed{
		Title:       strings.TrimSpace(parsed.Title),
		Link:        strings.TrimSpace(parsed.Link),
		Description: CleanText(parsed.Description),
		Items:       make([]domain.Item, 0, len(parsed.Items)),
	}
	skipped := 0
	for _, entry := range parsed.Items {
		if entry == nil {
			continue
		}
		title := CleanText(entry.Title)
		link := strings.TrimSpace(entry.Link)
		if title == "" || link == "" {
			skipped++
			continue
		}
		summary := entry.Description
		if strings.TrimSpace(summary) == "" {
			summary = entry.Content
		}
		pubDate := now
		switch {
		case entry.PublishedParsed != nil:
			pubDate = *entry.PublishedParsed
		case entry.UpdatedParsed != nil:
			pubDate = *entry.UpdatedParsed
		}
		feed.Items = append(feed.Items, domain.Item{
			Title:       title,
			Link:        link,
			Description: truncate(CleanText(summary), maxSummaryRunes),
			PubDate:     pubDate.UTC(),
		})
	}
	if skipped > 0 {
		p.log.Debug("Skipped entries without title or link", slog.Int("count", skipped))
	}
	return &feed, nil
}

// CleanText удаляет HTML-разметку, раскрывает сущности и схлопывает пробелы.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(html.UnescapeString(sanitize.HTML(s))), " ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n-1])) + "…"
}
