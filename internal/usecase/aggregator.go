package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"brightside/internal/cache"
	"brightside/internal/dedup"
	"brightside/internal/domain"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrAllSourcesFailed возвращается, когда в цикле не удалось обработать ни одного источника.
// Кэш в этом случае не меняется.
var ErrAllSourcesFailed = errors.New("all feed sources failed")

// RefreshReport - сводка одного цикла обновления.
type RefreshReport struct {
	StartedAt  time.Time             `json:"started_at"`
	Duration   time.Duration         `json:"duration"`
	Sources    []domain.SourceStatus `json:"sources"`
	Kept       int                   `json:"kept"`
	Duplicates int                   `json:"duplicates"`
	Failed     int                   `json:"failed"`
}

// AggregatorOptions - параметры цикла обновления.
type AggregatorOptions struct {
	Concurrency  int
	FetchTimeout time.Duration
	// CycleTimeout ограничивает весь цикл, который не зависит от контекста вызывающих.
	CycleTimeout time.Duration
}

// Aggregator собирает новости из всех активных источников и публикует снимок в кэш.
type Aggregator struct {
	processor *FeedProcessingUseCase
	sources   SourceLister
	removed   RemovedLinkStorage
	cache     *cache.Cache
	log       *slog.Logger
	opts      AggregatorOptions
	now       func() time.Time

	group singleflight.Group
}

// NewAggregator создает агрегатор. Нулевые параметры заменяются значениями по умолчанию.
func NewAggregator(
	processor *FeedProcessingUseCase,
	sources SourceLister,
	removed RemovedLinkStorage,
	c *cache.Cache,
	log *slog.Logger,
	opts AggregatorOptions,
) *Aggregator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.CycleTimeout <= 0 {
		opts.CycleTimeout = 5 * time.Minute
	}
	return &Aggregator{
		processor: processor,
		sources:   sources,
		removed:   removed,
		cache:     c,
		log:       log.With(slog.String("component", "aggregator")),
		opts:      opts,
		now:       time.Now,
	}
}

// Refresh выполняет цикл обновления. Одновременные вызовы объединяются в один цикл,
// и все вызывающие получают его результат. Цикл выполняется на отвязанном контексте
// с ограничением CycleTimeout: отмена ctx прекращает только ожидание этого
// вызывающего, а цикл завершается для остальных.
func (a *Aggregator) Refresh(ctx context.Context) (RefreshReport, error) {
	const op = "usecase.Aggregator.Refresh"
	if err := ctx.Err(); err != nil {
		return RefreshReport{}, fmt.Errorf("%s: refresh cancelled: %w", op, err)
	}
	ch := a.group.DoChan("refresh", func() (any, error) {
		cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.opts.CycleTimeout)
		defer cancel()
		return a.refresh(cycleCtx)
	})
	select {
	case res := <-ch:
		if res.Shared {
			a.log.Debug("Joined in-flight refresh")
		}
		report, _ := res.Val.(RefreshReport)
		return report, res.Err
	case <-ctx.Done():
		return RefreshReport{}, fmt.Errorf("%s: stopped waiting for refresh: %w", op, ctx.Err())
	}
}

type sourceResult struct {
	items  []domain.Item
	status domain.SourceStatus
	err    error
}

func (a *Aggregator) refresh(ctx context.Context) (RefreshReport, error) {
	const op = "usecase.Aggregator.refresh"
	report := RefreshReport{StartedAt: a.now()}
	log := a.log.With(slog.String("op", op))

	sources, err := a.sources.ActiveSources(ctx)
	if err != nil {
		return report, fmt.Errorf("%s: failed to list sources: %w", op, err)
	}
	removed, err := a.removed.RemovedLinks(ctx)
	if err != nil {
		log.Warn("Could not load removed links, continuing without them", slog.Any("error", err))
		removed = map[string]struct{}{}
	}
	log.Info("Feed processing cycle started", slog.Int("feeds_to_process", len(sources)))

	results := make([]sourceResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i] = sourceResult{
					status: domain.SourceStatus{URL: src.URL, Name: src.Name, Err: gctx.Err().Error()},
					err:    gctx.Err(),
				}
				return nil
			}
			opCtx, cancel := context.WithTimeout(gctx, a.opts.FetchTimeout)
			defer cancel()
			items, status, err := a.processor.ProcessFeed(opCtx, src, removed)
			results[i] = sourceResult{items: items, status: status, err: err}
			// Ошибки источников не прерывают группу.
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("%s: refresh cancelled: %w", op, err)
	}

	prev := a.cache.Snapshot()
	bySource := make(map[string][]domain.Item, len(sources))
	var all []domain.Item
	for i, res := range results {
		status := res.status
		url := sources[i].URL
		if res.err != nil {
			report.Failed++
			carried := withoutRemoved(prev.BySource[url], removed)
			status.CarriedIn = len(carried)
			bySource[url] = carried
			all = append(all, carried...)
		} else {
			bySource[url] = res.items
			all = append(all, res.items...)
		}
		report.Sources = append(report.Sources, status)
	}

	if len(sources) > 0 && report.Failed == len(sources) {
		report.Duration = time.Since(report.StartedAt)
		log.Error("Feed processing cycle failed for every source, keeping previous snapshot",
			slog.Int("total", len(sources)),
		)
		return report, ErrAllSourcesFailed
	}

	deduped := dedup.Items(all)
	items := deduped.Items
	// Ссылки, снятые модератором во время цикла, не должны вернуться в снимок.
	if latest, err := a.removed.RemovedLinks(ctx); err != nil {
		log.Warn("Could not reload removed links before publishing", slog.Any("error", err))
	} else if len(latest) > len(removed) {
		items = withoutRemoved(items, latest)
		for url, list := range bySource {
			bySource[url] = withoutRemoved(list, latest)
		}
	}
	domain.SortItems(items)
	report.Kept = len(items)
	report.Duplicates = deduped.Removed
	report.Duration = time.Since(report.StartedAt)

	a.cache.Replace(&domain.Snapshot{
		Items:     items,
		BySource:  bySource,
		FetchedAt: a.now(),
		Sources:   report.Sources,
	})

	log.Info("Feed processing cycle completed",
		slog.Int("successful", len(sources)-report.Failed),
		slog.Int("errors", report.Failed),
		slog.Int("total", len(sources)),
		slog.Int("kept", report.Kept),
		slog.Int("duplicates", report.Duplicates),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

func withoutRemoved(items []domain.Item, removed map[string]struct{}) []domain.Item {
	if len(items) == 0 {
		return nil
	}
	out := make([]domain.Item, 0, len(items))
	for _, it := range items {
		if _, ok := removed[it.Link]; !ok {
			out = append(out, it)
		}
	}
	return out
}
