package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"brightside/internal/domain"
	"brightside/internal/usecase"

	"golang.org/x/sync/errgroup"
)

// FetchOnce выполняет один цикл обновления и печатает отобранные новости.
// limit <= 0 означает вывод всех новостей.
func FetchOnce(ctx context.Context, core *Core, w io.Writer, limit int) error {
	report, err := core.Aggregator.Refresh(ctx)
	if err != nil && !errors.Is(err, usecase.ErrAllSourcesFailed) {
		return err
	}
	items := core.Cache.Snapshot().Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, it := range items {
		fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n", it.Score, it.PubDate.Format("2006-01-02"), it.SourceName, it.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d kept, %d duplicates, %d/%d feeds failed in %s\n",
		report.Kept, report.Duplicates, report.Failed, len(report.Sources), report.Duration.Round(time.Millisecond))
	return err
}

// FeedCheck - результат проверки одной ленты.
type FeedCheck struct {
	Source domain.FeedSource
	Items  int
	Err    error
}

// CheckFeeds загружает и разбирает каждую ленту, не применяя фильтр тональности.
// Результаты возвращаются в порядке sources.
func CheckFeeds(
	ctx context.Context,
	fetcher usecase.FeedFetcher,
	parser usecase.FeedParser,
	sources []domain.FeedSource,
	concurrency int,
) []FeedCheck {
	out := make([]FeedCheck, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, src := range sources {
		g.Go(func() error {
			out[i] = checkFeed(gctx, fetcher, parser, src)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func checkFeed(ctx context.Context, fetcher usecase.FeedFetcher, parser usecase.FeedParser, src domain.FeedSource) FeedCheck {
	res := FeedCheck{Source: src}
	body, err := fetcher.Fetch(ctx, src.URL)
	if err != nil {
		res.Err = err
		return res
	}
	defer body.Close()
	feed, err := parser.Parse(ctx, body)
	if err != nil {
		res.Err = err
		return res
	}
	res.Items = len(feed.Items)
	return res
}

// PrintChecks печатает таблицу результатов и возвращает число неудачных лент.
func PrintChecks(w io.Writer, checks []FeedCheck) int {
	failed := 0
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range checks {
		if c.Err != nil {
			failed++
			fmt.Fprintf(tw, "FAIL\t%s\t%s\t%v\n", c.Source.Name, c.Source.URL, c.Err)
			continue
		}
		fmt.Fprintf(tw, "OK\t%s\t%s\t%d items\n", c.Source.Name, c.Source.URL, c.Items)
	}
	tw.Flush()
	return failed
}
