package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"brightside/internal/domain"
	"brightside/internal/sentiment"
)

// FeedProcessingUseCase обрабатывает одну ленту: загрузка, разбор и отбор позитивных новостей.
type FeedProcessingUseCase struct {
	fetcher FeedFetcher
	parser  FeedParser
	filter  ItemFilter
	log     *slog.Logger
}

// NewFeedProcessingUseCase создает новый экземпляр UseCase для обработки лент.
func NewFeedProcessingUseCase(
	fetcher FeedFetcher,
	parser FeedParser,
	filter ItemFilter,
	log *slog.Logger,
) *FeedProcessingUseCase {
	return &FeedProcessingUseCase{
		fetcher: fetcher,
		parser:  parser,
		filter:  filter,
		log:     log,
	}
}

// ProcessFeed выполняет полный цикл обработки ленты и возвращает отобранные новости
// вместе со статусом источника. Новости из removed отбрасываются до оценки тональности.
// Ошибка загрузки или разбора возвращается вызывающей стороне, статус при этом заполнен.
func (uc *FeedProcessingUseCase) ProcessFeed(
	ctx context.Context,
	src domain.FeedSource,
	removed map[string]struct{},
) ([]domain.Item, domain.SourceStatus, error) {
	start := time.Now()
	status := domain.SourceStatus{URL: src.URL, Name: src.Name}
	log := uc.log.With(
		slog.String("component", "feed-processor"),
		slog.String("feed", src.Name),
		slog.String("url", src.URL),
	)
	fail := func(stage string, err error) ([]domain.Item, domain.SourceStatus, error) {
		status.Err = err.Error()
		status.Duration = time.Since(start)
		log.Warn("Feed processing failed", slog.String("stage", stage), slog.Any("error", err))
		return nil, status, fmt.Errorf("%s failed for %s: %w", stage, src.Name, err)
	}

	log.Debug("Processing feed started")
	reader, err := uc.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return fail("fetch", err)
	}
	defer reader.Close()

	feed, err := uc.parser.Parse(ctx, reader)
	if err != nil {
		return fail("parse", err)
	}
	status.Parsed = len(feed.Items)

	reasons := make(map[sentiment.Reason]int)
	kept := make([]domain.Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		item.SourceName = src.Name
		item.SourceURL = src.URL
		item.Region = src.Region
		item.Category = src.Category
		if _, ok := removed[item.Link]; ok {
			reasons[sentiment.ReasonRemoved]++
			continue
		}
		decision := uc.filter.Evaluate(item)
		reasons[decision.Reason]++
		if !decision.Keep {
			continue
		}
		item.Score = decision.Score
		kept = append(kept, item)
	}
	status.Kept = len(kept)
	status.Dropped = status.Parsed - status.Kept
	status.Duration = time.Since(start)

	log.Info("Feed processing completed",
		slog.Int("items_found", status.Parsed),
		slog.Int("items_kept", status.Kept),
		slog.Int("dropped_keyword", reasons[sentiment.ReasonKeyword]),
		slog.Int("dropped_sentiment", reasons[sentiment.ReasonBelowThreshold]),
		slog.Int("dropped_removed", reasons[sentiment.ReasonRemoved]),
		slog.Duration("duration", status.Duration),
	)
	return kept, status, nil
}
