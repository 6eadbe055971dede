package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(opts Options) *HTTPFetcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHTTPFetcher(logger, opts)
}

func TestHTTPFetcher_Fetch_Success(t *testing.T) {
	var gotUA string
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test response data"))
	}))
	defer testServer.Close()
	fetcher := newTestFetcher(Options{UserAgent: "BrightSide-Test"})

	reader, err := fetcher.Fetch(context.Background(), testServer.URL)

	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "test response data", string(data))
	assert.Equal(t, "BrightSide-Test", gotUA)
}

func TestHTTPFetcher_Fetch_NotFound(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer testServer.Close()
	fetcher := newTestFetcher(Options{})

	reader, err := fetcher.Fetch(context.Background(), testServer.URL)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 404")
	assert.Nil(t, reader)
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	fetcher := newTestFetcher(Options{})

	reader, err := fetcher.Fetch(context.Background(), "invalid://url")

	assert.Error(t, err)
	assert.Nil(t, reader)
}

func TestHTTPFetcher_Unreachable(t *testing.T) {
	testServer := httptest.NewServer(http.NotFoundHandler())
	addr := testServer.URL
	testServer.Close()
	fetcher := newTestFetcher(Options{Timeout: time.Second})

	reader, err := fetcher.Fetch(context.Background(), addr)

	assert.ErrorContains(t, err, "failed to fetch url")
	assert.Nil(t, reader)
}

func TestHTTPFetcher_ContextCancelled(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("slow response"))
	}))
	defer testServer.Close()
	fetcher := newTestFetcher(Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader, err := fetcher.Fetch(ctx, testServer.URL)

	assert.Error(t, err)
	assert.Nil(t, reader)
}

func TestHTTPFetcher_PerHostLimiterShared(t *testing.T) {
	fetcher := newTestFetcher(Options{PerHostInterval: time.Minute})

	a := fetcher.limiter("example.com")
	b := fetcher.limiter("example.com")
	c := fetcher.limiter("other.com")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
