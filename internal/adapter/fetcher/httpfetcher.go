package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 30 * time.Second
	// maxBodyBytes ограничивает размер одной ленты.
	maxBodyBytes = 10 << 20
)

// Options задает параметры HTTPFetcher. Нулевые значения заменяются значениями по умолчанию.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// PerHostInterval - минимальный интервал между запросами к одному хосту.
	PerHostInterval time.Duration
	Client          *http.Client
}

// HTTPFetcher реализует интерфейс FeedFetcher для загрузки лент по HTTP.
// Использует общий пул соединений и ограничивает частоту запросов к каждому хосту.
type HTTPFetcher struct {
	client    *http.Client
	log       *slog.Logger
	userAgent string
	interval  time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher создает новый экземпляр HTTPFetcher.
func NewHTTPFetcher(log *slog.Logger, opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: opts.Timeout,
			},
		}
	}
	return &HTTPFetcher{
		client:    client,
		log:       log,
		userAgent: opts.UserAgent,
		interval:  opts.PerHostInterval,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// limiter возвращает ограничитель частоты для хоста, создавая его при первом обращении.
func (f *HTTPFetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		limit := rate.Inf
		if f.interval > 0 {
			limit = rate.Every(f.interval)
		}
		l = rate.NewLimiter(limit, 1)
		f.limiters[host] = l
	}
	return l
}

// Fetch выполняет GET-запрос ленты по указанному URL.
// Возвращает тело ответа, которое должно быть закрыто вызывающей стороной.
// Любой статус, кроме 200, считается ошибкой.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	log := f.log.With(slog.String("component", "fetcher"), slog.String("url", rawURL))
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		log.Error("Invalid feed URL", slog.Any("error", err))
		return nil, fmt.Errorf("invalid url %s", rawURL)
	}
	if err := f.limiter(u.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait for %s: %w", rawURL, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		log.Error("Failed to create HTTP request", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create request for url %s: %w", rawURL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")
	log.Debug("Fetching URL")
	resp, err := f.client.Do(req)
	if err != nil {
		log.Warn("HTTP request failed", slog.Any("error", err))
		return nil, fmt.Errorf("failed to fetch url %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		log.Warn("Unexpected status code", slog.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("unexpected status code: %d for url %s", resp.StatusCode, rawURL)
	}
	log.Debug("Successfully fetched URL")
	return &limitedBody{Reader: io.LimitReader(resp.Body, maxBodyBytes), closer: resp.Body}, nil
}

type limitedBody struct {
	io.Reader
	closer io.Closer
}

func (b *limitedBody) Close() error { return b.closer.Close() }
