package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"brightside/internal/adapter/parser"
	"brightside/internal/cache"
	"brightside/internal/domain"
	"brightside/internal/registry"
	"brightside/internal/sentiment"
	"brightside/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  atomic.Int32
	// gate, если задан, задерживает ответ до закрытия канала.
	gate chan struct{}
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("failed to fetch url %s: connection refused", url)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *stubFetcher) set(url, body string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.errs[url] = err
		delete(f.bodies, url)
		return
	}
	f.bodies[url] = body
	delete(f.errs, url)
}

// titleScorer считает позитивными только заголовки со словом "good".
type titleScorer struct{}

func (titleScorer) Score(text string) float64 {
	if strings.Contains(strings.ToLower(text), "good") {
		return 0.9
	}
	return 0.1
}

type staticSources []domain.FeedSource

func (s staticSources) ActiveSources(context.Context) ([]domain.FeedSource, error) { return s, nil }

func rss(items ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>Test</title>`)
	for i, title := range items {
		fmt.Fprintf(&b,
			`<item><title>%s</title><link>%s</link><description>Story %d</description><pubDate>Mon, 0%d Jun 2025 10:00:00 +0000</pubDate></item>`,
			title, linkFor(title), i, i+1)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func linkFor(title string) string {
	return "https://example.com/" + strings.ReplaceAll(strings.ToLower(title), " ", "-")
}

type fixture struct {
	fetcher *stubFetcher
	store   *storage.MemoryStore
	cache   *cache.Cache
	agg     *Aggregator
}

func newFixture(t *testing.T, sources ...domain.FeedSource) *fixture {
	t.Helper()
	log := discardLogger()
	f := &fixture{
		fetcher: &stubFetcher{bodies: map[string]string{}, errs: map[string]error{}},
		store:   storage.NewMemoryStore(log),
		cache:   cache.New(time.Minute),
	}
	filter := sentiment.NewFilter(titleScorer{}, sentiment.NewBlocklist(sentiment.DefaultNegativeKeywords), 0.8)
	processor := NewFeedProcessingUseCase(f.fetcher, parser.NewFeedParser(log), filter, log)
	f.agg = NewAggregator(processor, staticSources(sources), f.store, f.cache, log, AggregatorOptions{Concurrency: 4})
	return f
}

var (
	feedA = domain.FeedSource{Name: "A", URL: "https://a.example/rss", Region: "uk", Category: "science"}
	feedB = domain.FeedSource{Name: "B", URL: "https://b.example/rss", Region: "us", Category: "health"}
)

func TestAggregator_OnePositiveFeedOneUnreachable(t *testing.T) {
	f := newFixture(t, feedA, feedB)
	f.fetcher.set(feedA.URL, rss("Good harvest", "Storm damage", "Good samaritan returns wallet"), nil)

	report, err := f.agg.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Kept)
	snap := f.cache.Snapshot()
	require.Len(t, snap.Items, 2)
	for _, it := range snap.Items {
		assert.Contains(t, it.Title, "Good")
		assert.Equal(t, "A", it.SourceName)
		assert.Equal(t, "uk", it.Region)
		assert.Greater(t, it.Score, 0.8)
	}
	assert.Equal(t, "Good samaritan returns wallet", snap.Items[0].Title, "newest first")
	assert.False(t, snap.Empty())
}

func TestAggregator_CarriesOverFailedSource(t *testing.T) {
	f := newFixture(t, feedA, feedB)
	f.fetcher.set(feedA.URL, rss("Good harvest"), nil)
	f.fetcher.set(feedB.URL, rss("Good doctors"), nil)
	_, err := f.agg.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, f.cache.Snapshot().Items, 2)

	f.fetcher.set(feedB.URL, "", errors.New("timeout"))
	f.fetcher.set(feedA.URL, rss("Good harvest", "Good new park"), nil)
	report, err := f.agg.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	snap := f.cache.Snapshot()
	assert.Len(t, snap.BySource[feedB.URL], 1)
	for _, st := range report.Sources {
		if st.URL == feedB.URL {
			assert.True(t, st.Failed())
			assert.Equal(t, 1, st.CarriedIn)
		}
	}
}

func TestAggregator_AllFailedKeepsSnapshot(t *testing.T) {
	f := newFixture(t, feedA)
	f.fetcher.set(feedA.URL, rss("Good harvest"), nil)
	_, err := f.agg.Refresh(context.Background())
	require.NoError(t, err)
	before := f.cache.Snapshot()

	f.fetcher.set(feedA.URL, "", errors.New("dns failure"))
	_, err = f.agg.Refresh(context.Background())

	assert.ErrorIs(t, err, ErrAllSourcesFailed)
	assert.Same(t, before, f.cache.Snapshot())
}

func TestAggregator_MalformedFeedIsSourceFailure(t *testing.T) {
	f := newFixture(t, feedA, feedB)
	f.fetcher.set(feedA.URL, "<html>not a feed", nil)
	f.fetcher.set(feedB.URL, rss("Good doctors"), nil)

	report, err := f.agg.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, f.cache.Snapshot().Items, 1)
}

func TestAggregator_DeduplicatesAcrossSources(t *testing.T) {
	f := newFixture(t, feedA, feedB)
	f.fetcher.set(feedA.URL, rss("Good harvest"), nil)
	f.fetcher.set(feedB.URL, rss("Good harvest"), nil)

	report, err := f.agg.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Kept)
	assert.Equal(t, 1, report.Duplicates)
}

func TestAggregator_SkipsRemovedLinks(t *testing.T) {
	f := newFixture(t, feedA)
	f.fetcher.set(feedA.URL, rss("Good harvest", "Good samaritan"), nil)
	_, err := f.store.AddRemovedLink(context.Background(), linkFor("Good harvest"))
	require.NoError(t, err)

	_, err = f.agg.Refresh(context.Background())

	require.NoError(t, err)
	items := f.cache.Snapshot().Items
	require.Len(t, items, 1)
	assert.Equal(t, linkFor("Good samaritan"), items[0].Link)
}

func TestAggregator_NoSources(t *testing.T) {
	f := newFixture(t)

	report, err := f.agg.Refresh(context.Background())

	require.NoError(t, err)
	assert.Zero(t, report.Kept)
	assert.False(t, f.cache.Snapshot().Empty())
}

func TestAggregator_CancelledContext(t *testing.T) {
	f := newFixture(t, feedA)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.agg.Refresh(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, f.cache.Snapshot().Empty())
}

type refreshResult struct {
	report RefreshReport
	err    error
}

func refreshAsync(ctx context.Context, agg *Aggregator) <-chan refreshResult {
	out := make(chan refreshResult, 1)
	go func() {
		report, err := agg.Refresh(ctx)
		out <- refreshResult{report: report, err: err}
	}()
	return out
}

func TestAggregator_ConcurrentRefreshesShareOneCycle(t *testing.T) {
	f := newFixture(t, feedA, feedB)
	f.fetcher.set(feedA.URL, rss("Good harvest"), nil)
	f.fetcher.set(feedB.URL, rss("Good doctors"), nil)
	f.fetcher.gate = make(chan struct{})

	first := refreshAsync(context.Background(), f.agg)
	require.Eventually(t, func() bool { return f.fetcher.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	second := refreshAsync(context.Background(), f.agg)
	time.Sleep(50 * time.Millisecond)
	close(f.fetcher.gate)

	r1, r2 := <-first, <-second
	require.NoError(t, r1.err)
	require.NoError(t, r2.err)
	assert.EqualValues(t, 2, f.fetcher.calls.Load(), "one fetch per source")
	assert.Equal(t, r1.report, r2.report)
	assert.Equal(t, 2, r1.report.Kept)
}

func TestAggregator_CancelledCallerDoesNotAbortSharedCycle(t *testing.T) {
	f := newFixture(t, feedA)
	f.fetcher.set(feedA.URL, rss("Good harvest"), nil)
	f.fetcher.gate = make(chan struct{})
	adminCtx, cancelAdmin := context.WithCancel(context.Background())
	defer cancelAdmin()

	admin := refreshAsync(adminCtx, f.agg)
	require.Eventually(t, func() bool { return f.fetcher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	scheduled := refreshAsync(context.Background(), f.agg)
	time.Sleep(50 * time.Millisecond)
	cancelAdmin()

	adminRes := <-admin
	assert.ErrorIs(t, adminRes.err, context.Canceled)
	close(f.fetcher.gate)

	res := <-scheduled
	require.NoError(t, res.err)
	assert.Equal(t, 1, res.report.Kept)
	assert.Len(t, f.cache.Snapshot().Items, 1)
	assert.EqualValues(t, 1, f.fetcher.calls.Load())
}

func TestAggregator_ArticleRemovedDuringCycleStaysRemoved(t *testing.T) {
	f := newFixture(t, feedA)
	f.fetcher.set(feedA.URL, rss("Good harvest", "Good samaritan"), nil)
	f.fetcher.gate = make(chan struct{})
	reg, err := registry.New([]domain.FeedSource{feedA})
	require.NoError(t, err)
	moderation := NewModerationUseCase(reg, f.store, f.store, f.cache, discardLogger())

	done := refreshAsync(context.Background(), f.agg)
	require.Eventually(t, func() bool { return f.fetcher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	added, err := moderation.RemoveArticle(context.Background(), linkFor("Good harvest"))
	require.NoError(t, err)
	require.True(t, added)
	close(f.fetcher.gate)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 1, res.report.Kept)
	snap := f.cache.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, linkFor("Good samaritan"), snap.Items[0].Link)
	assert.Len(t, snap.BySource[feedA.URL], 1)
}

func TestNewsGetter_FiltersAndLimits(t *testing.T) {
	f := newFixture(t, feedA, feedB)
	f.fetcher.set(feedA.URL, rss("Good harvest", "Good new park"), nil)
	f.fetcher.set(feedB.URL, rss("Good doctors"), nil)
	_, err := f.agg.Refresh(context.Background())
	require.NoError(t, err)
	getter := NewNewsGetterUseCase(f.cache, f.agg, discardLogger(), 10, false)

	all, err := getter.GetNews(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := getter.GetNews(context.Background(), Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	health, err := getter.GetNews(context.Background(), Query{Category: "HEALTH"})
	require.NoError(t, err)
	require.Len(t, health, 1)
	assert.Equal(t, "Good doctors", health[0].Title)

	uk, err := getter.GetNews(context.Background(), Query{Region: "uk"})
	require.NoError(t, err)
	assert.Len(t, uk, 2)
}

func TestNewsGetter_LazyRefreshOnEmptyCache(t *testing.T) {
	f := newFixture(t, feedA)
	f.fetcher.set(feedA.URL, rss("Good harvest"), nil)
	getter := NewNewsGetterUseCase(f.cache, f.agg, discardLogger(), 10, true)

	items, err := getter.GetNews(context.Background(), Query{})

	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.EqualValues(t, 1, f.fetcher.calls.Load())
}

func TestNewsGetter_StaleCacheServedWhileRefreshing(t *testing.T) {
	f := newFixture(t, feedA)
	f.fetcher.set(feedA.URL, rss("Good harvest"), nil)
	_, err := f.agg.Refresh(context.Background())
	require.NoError(t, err)
	getter := NewNewsGetterUseCase(f.cache, f.agg, discardLogger(), 10, true)
	getter.now = func() time.Time { return time.Now().Add(time.Hour) }
	f.fetcher.set(feedA.URL, rss("Good harvest", "Good new park"), nil)

	items, err := getter.GetNews(context.Background(), Query{})

	require.NoError(t, err)
	assert.NotEmpty(t, items)
	assert.Eventually(t, func() bool {
		return len(f.cache.Snapshot().Items) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestNewsGetter_LazyDisabledDoesNotFetch(t *testing.T) {
	f := newFixture(t, feedA)
	getter := NewNewsGetterUseCase(f.cache, f.agg, discardLogger(), 10, false)

	items, err := getter.GetNews(context.Background(), Query{})

	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, f.fetcher.calls.Load())
}

func newModeration(t *testing.T) (*ModerationUseCase, *storage.MemoryStore, *cache.Cache) {
	t.Helper()
	reg, err := registry.New([]domain.FeedSource{feedA, feedB})
	require.NoError(t, err)
	store := storage.NewMemoryStore(discardLogger())
	c := cache.New(time.Minute)
	return NewModerationUseCase(reg, store, store, c, discardLogger()), store, c
}

func TestModeration_ActiveSourcesDefaultsToCatalog(t *testing.T) {
	uc, _, _ := newModeration(t)

	sources, err := uc.ActiveSources(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []domain.FeedSource{feedA, feedB}, sources)
}

func TestModeration_SetFeeds(t *testing.T) {
	uc, store, _ := newModeration(t)

	sources, err := uc.SetFeeds(context.Background(), []string{
		"  " + feedB.URL,
		"# disabled https://a.example/rss",
		"https://custom.example/feed.xml",
		feedB.URL,
	})

	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, feedB, sources[0])
	assert.Equal(t, registry.CustomRegion, sources[1].Region)
	assert.Equal(t, "custom.example", sources[1].Name)

	urls, err := store.ListFeeds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{feedB.URL, "https://custom.example/feed.xml"}, urls)

	active, err := uc.ActiveSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sources, active)
}

func TestModeration_SetFeedsRejectsEmptyAndInvalid(t *testing.T) {
	uc, store, _ := newModeration(t)

	_, err := uc.SetFeeds(context.Background(), []string{"", "# only a comment"})
	assert.ErrorIs(t, err, ErrEmptyFeedList)

	_, err = uc.SetFeeds(context.Background(), []string{"ftp://nope"})
	assert.Error(t, err)

	_, err = store.ListFeeds(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestModeration_RemoveArticle(t *testing.T) {
	uc, store, c := newModeration(t)
	c.Replace(&domain.Snapshot{
		Items: []domain.Item{
			{Title: "Keep", Link: "https://example.com/keep"},
			{Title: "Drop", Link: "https://example.com/drop"},
		},
		FetchedAt: time.Now(),
	})

	added, err := uc.RemoveArticle(context.Background(), " https://example.com/drop ")
	require.NoError(t, err)
	assert.True(t, added)
	require.Len(t, c.Snapshot().Items, 1)
	assert.Equal(t, "Keep", c.Snapshot().Items[0].Title)

	removed, err := store.RemovedLinks(context.Background())
	require.NoError(t, err)
	assert.Contains(t, removed, "https://example.com/drop")

	added, err = uc.RemoveArticle(context.Background(), "https://example.com/drop")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = uc.RemoveArticle(context.Background(), "   ")
	assert.Error(t, err)
}

func TestSubscriptions_Lifecycle(t *testing.T) {
	store := storage.NewMemoryStore(discardLogger())
	uc := NewSubscriptionUseCase(store, discardLogger())
	ctx := context.Background()

	outcome, err := uc.Subscribe(ctx, " Reader@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, Subscribed, outcome)

	outcome, err = uc.Subscribe(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, AlreadySubscribed, outcome)

	sub, err := store.GetSubscriber(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.True(t, sub.Active)
	require.NotEmpty(t, sub.Token)

	require.NoError(t, uc.Unsubscribe(ctx, sub.Token))
	sub, err = store.GetSubscriber(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.False(t, sub.Active)

	outcome, err = uc.Subscribe(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, Reactivated, outcome)
}

func TestSubscriptions_Invalid(t *testing.T) {
	uc := NewSubscriptionUseCase(storage.NewMemoryStore(discardLogger()), discardLogger())

	for _, email := range []string{"", "not-an-email", "@@"} {
		_, err := uc.Subscribe(context.Background(), email)
		assert.ErrorIs(t, err, ErrInvalidEmail, email)
	}
	assert.ErrorIs(t, uc.Unsubscribe(context.Background(), "garbage"), ErrUnknownToken)
	assert.ErrorIs(t, uc.Unsubscribe(context.Background(), "7f8c3a7e-2b1d-4c55-9a7e-0d3f3a2b1c4d"), ErrUnknownToken)
}
